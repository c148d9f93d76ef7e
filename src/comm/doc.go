// Package comm holds the outbound communication handles of established
// connections and the registry that maps node identities to them.
//
// A PeerComms is a set of bounded queues drained by the goroutine that owns
// the underlying connection. Producers never block on it: a full queue or a
// closed handle is reported through an error and the caller moves on.
//
// The Peers registry keeps at most one live handle per node identity and at
// most a configured number of handles overall, evicting the least recently
// used one when full.
package comm
