package net

import (
	"time"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// ChainPullChunkSize is the maximum number of blocks returned by a single
// PullBlocksToTip request. The requester pulls again from the last block it
// received until it gets a shorter chunk.
const ChainPullChunkSize = 32

// HandshakeRequest opens a session with a node. The Nonce is signed by the
// responder to prove ownership of its key.
type HandshakeRequest struct {
	NodeID  peers.NodeID
	PubKey  string
	Block0  blockcfg.HeaderHash
	Address string
	Nonce   []byte
}

// HandshakeResponse carries the identity of the responder and its signature
// of the request nonce followed by block0.
type HandshakeResponse struct {
	NodeID    peers.NodeID
	PubKey    string
	Block0    blockcfg.HeaderHash
	Signature string
}

// BlockAnnouncementRequest announces a new block header.
type BlockAnnouncementRequest struct {
	FromID peers.NodeID
	Header blockcfg.Header
}

// FragmentRequest pushes fragments.
type FragmentRequest struct {
	FromID    peers.NodeID
	Fragments []blockcfg.Fragment
}

// GossipRequest pushes node records. Records are encoded in wire format.
type GossipRequest struct {
	FromID peers.NodeID
	Nodes  []WireNode
}

// AckResponse acknowledges a push request.
type AckResponse struct {
	FromID  peers.NodeID
	Success bool
}

// GetBlocksRequest asks for specific blocks.
type GetBlocksRequest struct {
	FromID peers.NodeID
	IDs    []blockcfg.HeaderHash
}

// PullBlocksToTipRequest asks for the blocks following the most recent of
// the From checkpoints known to the responder, up to its tip.
type PullBlocksToTipRequest struct {
	FromID peers.NodeID
	From   []blockcfg.HeaderHash
}

// PullHeadersRequest asks for the headers following the most recent of the
// From checkpoints, up to To.
type PullHeadersRequest struct {
	FromID peers.NodeID
	From   []blockcfg.HeaderHash
	To     blockcfg.HeaderHash
}

// BlocksResponse returns blocks in chain order.
type BlocksResponse struct {
	FromID peers.NodeID
	Blocks []blockcfg.Block
}

// HeadersResponse returns headers in chain order.
type HeadersResponse struct {
	FromID  peers.NodeID
	Headers []blockcfg.Header
}

// WireNode is the light-weight wire representation of a peers.Node. LastSeen
// is in unix nanoseconds, 0 when the node was never seen.
type WireNode struct {
	ID       peers.NodeID
	Address  string
	Blocks   uint8
	Messages uint8
	LastSeen int64
}

// ToWireNodes converts node records to their wire representation.
func ToWireNodes(nodes []peers.Node) []WireNode {
	res := make([]WireNode, 0, len(nodes))
	for _, n := range nodes {
		var lastSeen int64
		if !n.LastSeen.IsZero() {
			lastSeen = n.LastSeen.UnixNano()
		}
		res = append(res, WireNode{
			ID:       n.ID,
			Address:  n.Address,
			Blocks:   uint8(n.Subscriptions.Blocks),
			Messages: uint8(n.Subscriptions.Messages),
			LastSeen: lastSeen,
		})
	}
	return res
}

// Node converts a wire record back to a peers.Node.
func (w WireNode) Node() peers.Node {
	var lastSeen time.Time
	if w.LastSeen != 0 {
		lastSeen = time.Unix(0, w.LastSeen)
	}
	return peers.Node{
		ID:      w.ID,
		Address: w.Address,
		Subscriptions: peers.Subscriptions{
			Blocks:   peers.Interest(w.Blocks),
			Messages: peers.Interest(w.Messages),
		},
		LastSeen: lastSeen,
	}
}

// Gossip converts the request payload to a peers.Gossip.
func (r *GossipRequest) Gossip() peers.Gossip {
	nodes := make([]peers.Node, 0, len(r.Nodes))
	for _, w := range r.Nodes {
		nodes = append(nodes, w.Node())
	}
	return peers.Gossip{Nodes: nodes}
}
