package network

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/intercom"
)

// handleNetworkInput is the single consumer of the command queue. Commands
// are handled in order; none of them waits on the network.
func handleNetworkInput(ctx context.Context, global *GlobalState, input <-chan intercom.NetworkMsg, ticks <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			sendGossipRound(ctx, global)
		case msg, ok := <-input:
			if !ok {
				global.Logger.Debug("Network input closed")
				return nil
			}
			handleNetworkMsg(ctx, global, msg)
		}
	}
}

func handleNetworkMsg(ctx context.Context, global *GlobalState, msg intercom.NetworkMsg) {
	switch m := msg.(type) {
	case intercom.PropagateBlock:
		propagateBlock(ctx, global, m.Header)

	case intercom.PropagateFragment:
		propagateFragment(ctx, global, m.Fragment)

	case intercom.GetBlocks:
		if err := global.Peers.FetchBlocks(m.IDs); err != nil {
			global.Logger.WithError(err).Warn("Cannot fetch blocks")
		}

	case intercom.GetNextBlock:
		err := global.Peers.SolicitBlocks(m.NodeID, []blockcfg.HeaderHash{m.ID})
		if comm.IsPeerErr(err, comm.PeerUnknown) {
			global.Logger.WithField("node_id", m.NodeID.Short()).Debug("Peer gone, fetching block from another peer")
			err = global.Peers.FetchBlocks([]blockcfg.HeaderHash{m.ID})
		}
		if err != nil {
			global.Logger.WithError(err).WithField("block", m.ID.String()).Warn("Cannot solicit block")
		}

	case intercom.PullHeaders:
		if err := global.Peers.PullHeaders(m.NodeID, m.From, m.To); err != nil {
			global.Logger.WithError(err).WithFields(logrus.Fields{
				"node_id": m.NodeID.Short(),
				"to":      m.To.String(),
			}).Warn("Cannot pull headers")
		}

	case intercom.PeerStats:
		if !m.Respond(global.Peers.Stats()) {
			global.Logger.Warn("PeerStats reply dropped")
		}

	default:
		global.Logger.Warnf("Unknown network message %T", msg)
	}
}
