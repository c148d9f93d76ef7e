// Package network runs the peer-to-peer side of a node.
//
// Start wires a GlobalState, shared by every task of the node, and runs the
// network tasks until its context is cancelled:
//
// - the listener, accepting incoming connections and handing the requests of
// peers to the other tasks of the node
//
// - the initial connections to the nodes already known, typically the
// trusted peers
//
// - the dispatcher, draining the ordered queue of NetworkMsg commands and
// the gossip timer
//
// - the gossip timer itself
//
// Propagation never waits for a connection to be established. Items for
// nodes with a live handle are queued on that handle; for the other nodes a
// connection is started in the background and the item is queued on the new
// handle, to be delivered once the connection is up.
//
// Bootstrap and FetchBlock are used before Start, to obtain block0 and catch
// up with the chain from the trusted peers.
package network
