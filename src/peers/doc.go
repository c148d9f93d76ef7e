// Package peers defines the node records exchanged by the gossip protocol.
//
// A node is identified by a NodeID derived from its public key. Its record
// also carries the address where it accepts connections, which is empty for
// nodes behind a NAT, and the topics it is interested in. Records travel
// between nodes inside Gossip payloads; the most recently seen record for a
// given identity wins.
//
// Trusted peers are configured out of band, either in the node configuration
// or in a peers.json file in the data directory (see JSONPeers). They are the
// entry points of the network: they are always gossiped with and they are the
// only peers used to bootstrap the chain.
package peers
