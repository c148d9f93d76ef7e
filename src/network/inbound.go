package network

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/intercom"
	"github.com/mosaicnetworks/blocknet/src/net"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// handleInbound serves the requests of remote nodes until ctx is done. Each
// request is processed in its own goroutine.
func handleInbound(ctx context.Context, global *GlobalState) error {
	consumer := global.transport.Consumer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case rpc := <-consumer:
			global.Spawn(func() {
				processRPC(ctx, global, rpc)
			})
		}
	}
}

func processRPC(ctx context.Context, global *GlobalState, rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.HandshakeRequest:
		processHandshake(global, rpc, cmd)
	case *net.GossipRequest:
		processGossip(global, rpc, cmd)
	case *net.BlockAnnouncementRequest:
		processBlockAnnouncement(ctx, global, rpc, cmd)
	case *net.FragmentRequest:
		processFragments(ctx, global, rpc, cmd)
	case *net.GetBlocksRequest:
		processGetBlocks(ctx, global, rpc, cmd)
	case *net.PullBlocksToTipRequest:
		processPullBlocksToTip(ctx, global, rpc, cmd)
	case *net.PullHeadersRequest:
		processPullHeaders(ctx, global, rpc, cmd)
	default:
		global.Logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func processHandshake(global *GlobalState, rpc net.RPC, cmd *net.HandshakeRequest) {
	global.Logger.WithFields(logrus.Fields{
		"from_id": cmd.NodeID.Short(),
		"address": cmd.Address,
	}).Debug("process HandshakeRequest")

	resp, err := global.handshake.Answer(cmd)
	if err != nil {
		global.Logger.WithError(err).Info("Rejected handshake")
		rpc.Respond(nil, err)
		return
	}

	// The record carries no subscriptions and a zero LastSeen, so that any
	// gossiped record of the dialer replaces it.
	node := peers.Node{ID: cmd.NodeID, Address: cmd.Address}
	global.Topology.MergeGossip([]peers.Node{node})

	rpc.Respond(resp, nil)
}

func processGossip(global *GlobalState, rpc net.RPC, cmd *net.GossipRequest) {
	gossip := cmd.Gossip()

	merged := global.Topology.MergeGossip(gossip.Nodes)

	global.Logger.WithFields(logrus.Fields{
		"from_id":  cmd.FromID.Short(),
		"received": gossip.Len(),
		"merged":   merged,
	}).Debug("process GossipRequest")

	rpc.Respond(&net.AckResponse{FromID: global.NodeID(), Success: true}, nil)
}

func processBlockAnnouncement(ctx context.Context, global *GlobalState, rpc net.RPC, cmd *net.BlockAnnouncementRequest) {
	msg := intercom.AnnouncedHeader{Header: cmd.Header, From: cmd.FromID}

	select {
	case global.channels.BlockBox <- msg:
		rpc.Respond(&net.AckResponse{FromID: global.NodeID(), Success: true}, nil)
	case <-ctx.Done():
		rpc.Respond(nil, net.ErrTransportShutdown)
	}
}

func processFragments(ctx context.Context, global *GlobalState, rpc net.RPC, cmd *net.FragmentRequest) {
	msg := intercom.TransactionMsg{Fragments: cmd.Fragments, From: cmd.FromID}

	select {
	case global.channels.TransactionBox <- msg:
		rpc.Respond(&net.AckResponse{FromID: global.NodeID(), Success: true}, nil)
	case <-ctx.Done():
		rpc.Respond(nil, net.ErrTransportShutdown)
	}
}

func processGetBlocks(ctx context.Context, global *GlobalState, rpc net.RPC, cmd *net.GetBlocksRequest) {
	reply := intercom.NewBlocksReply()
	blocks, err := requestBlocks(ctx, global, intercom.GetBlocksByID{IDs: cmd.IDs, Reply: reply}, reply)
	respondBlocks(global, rpc, blocks, err)
}

func processPullBlocksToTip(ctx context.Context, global *GlobalState, rpc net.RPC, cmd *net.PullBlocksToTipRequest) {
	reply := intercom.NewBlocksReply()
	msg := intercom.GetBlocksToTip{
		From:  cmd.From,
		Limit: net.ChainPullChunkSize,
		Reply: reply,
	}
	blocks, err := requestBlocks(ctx, global, msg, reply)
	respondBlocks(global, rpc, blocks, err)
}

func processPullHeaders(ctx context.Context, global *GlobalState, rpc net.RPC, cmd *net.PullHeadersRequest) {
	reply := intercom.NewHeadersReply()
	msg := intercom.GetHeaders{From: cmd.From, To: cmd.To, Reply: reply}

	if err := submitClientMsg(ctx, global, msg); err != nil {
		rpc.Respond(nil, err)
		return
	}

	select {
	case r := <-reply:
		if r.Err != nil {
			rpc.Respond(nil, r.Err)
			return
		}
		rpc.Respond(&net.HeadersResponse{FromID: global.NodeID(), Headers: r.Headers}, nil)
	case <-ctx.Done():
		rpc.Respond(nil, net.ErrTransportShutdown)
	}
}

func requestBlocks(ctx context.Context, global *GlobalState, msg intercom.ClientMsg, reply chan intercom.BlocksReply) ([]blockcfg.Block, error) {
	if err := submitClientMsg(ctx, global, msg); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.Blocks, r.Err
	case <-ctx.Done():
		return nil, net.ErrTransportShutdown
	}
}

func submitClientMsg(ctx context.Context, global *GlobalState, msg intercom.ClientMsg) error {
	select {
	case global.channels.ClientBox <- msg:
		return nil
	case <-ctx.Done():
		return net.ErrTransportShutdown
	}
}

func respondBlocks(global *GlobalState, rpc net.RPC, blocks []blockcfg.Block, err error) {
	if err != nil {
		rpc.Respond(nil, err)
		return
	}
	rpc.Respond(&net.BlocksResponse{FromID: global.NodeID(), Blocks: blocks}, nil)
}
