// Package intercom defines the messages exchanged between the network task
// and the other tasks of a node.
//
// NetworkMsg values are the commands consumed by the network dispatcher, in
// the order they are sent. ClientMsg, TransactionMsg and BlockMsg values flow
// the other way: the network hands what it receives from peers to the tasks
// that own the chain. Requests that expect an answer carry a reply channel
// with room for exactly one value, so that answering never blocks.
package intercom
