// Package blockcfg defines the block, header and fragment values that the
// network layer carries between peers.
//
// The network core treats these values as opaque: it propagates headers and
// fragments, and moves blocks around during bootstrap, but it never interprets
// their contents. Consensus rules and ledger validation live elsewhere. The
// only property checked here is that a header hash matches the header fields,
// which is enough to detect corrupted or mislabelled blocks on the wire.
//
// Hashes are blake2b-256 digests.
package blockcfg
