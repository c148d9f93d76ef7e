// Package net implements the transports used by nodes to talk to each other.
//
// The Transport interface offers request/response RPCs (Handshake,
// AnnounceBlock, SendFragments, Gossip, GetBlocks, PullBlocksToTip,
// PullHeaders) and a Consumer channel through which incoming requests are
// handed to the node. There are two implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// A Client is a session with one remote node opened by Dial. Dial performs a
// handshake in which both nodes check that they share the same block0, and
// the remote node proves that it owns the key its identity is derived from.
//
// Requests are framed by a byte indicating the message type followed by the
// msgpack encoded request. The response is an error string followed by the
// response object, both msgpack encoded.
package net
