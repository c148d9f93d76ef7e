// Package topology maintains the local view of network membership.
//
// The Topology records the nodes learned from gossip and from the trusted
// peer configuration. It selects the nodes to gossip with and to propagate
// blocks and fragments to, through a pluggable Policy. Nodes that fail are
// evicted and quarantined for a decay period so they are not immediately
// selected again. Trusted peers are never evicted.
package topology
