package network

import (
	"context"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// propagateBlock announces header to the nodes interested in blocks,
// connecting to those without a live handle.
func propagateBlock(ctx context.Context, global *GlobalState, header blockcfg.Header) {
	view := global.Topology.ViewFor(peers.BlocksTopic)
	unreached := global.Peers.PropagateBlock(view, header)
	for _, node := range unreached {
		connectAndPropagateWith(ctx, global, node, func(comms *comm.PeerComms) {
			comms.TryAnnounceBlock(header)
		})
	}
}

// propagateFragment sends fragment to the nodes interested in messages,
// connecting to those without a live handle.
func propagateFragment(ctx context.Context, global *GlobalState, fragment blockcfg.Fragment) {
	view := global.Topology.ViewFor(peers.MessagesTopic)
	unreached := global.Peers.PropagateFragment(view, fragment)
	for _, node := range unreached {
		connectAndPropagateWith(ctx, global, node, func(comms *comm.PeerComms) {
			comms.TrySendFragment(fragment)
		})
	}
}

// sendGossipRound sends every node of the view the gossip selected for it,
// connecting to those without a live handle.
func sendGossipRound(ctx context.Context, global *GlobalState) {
	view := global.Topology.View()

	global.Logger.WithField("nodes", len(view)).Debug("Gossip round")

	for _, node := range view {
		gossip := global.Topology.SelectGossips(node)
		err := global.Peers.PropagateGossipTo(node.ID, gossip)
		if err == nil {
			continue
		}
		if !comm.IsPeerErr(err, comm.PeerUnknown) {
			global.Logger.WithError(err).WithField("node_id", node.ID.Short()).Warn("Failed to send gossip")
			continue
		}
		connectAndPropagateWith(ctx, global, node, func(comms *comm.PeerComms) {
			comms.TrySendGossip(gossip)
		})
	}
}
