package network

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/intercom"
)

// Start runs the network tasks of the node until ctx is done.
func Start(ctx context.Context, params TaskParams) error {
	global, err := NewGlobalState(params)
	if err != nil {
		return err
	}

	timer := NewGossipTimer(params.Config.GossipInterval)

	return Run(ctx, global, params.Input, timer)
}

// Run runs the network tasks over an existing GlobalState: the listener, the
// inbound request handler, the initial connections, the command dispatcher
// and the gossip timer. A task that fails is logged and does not stop the
// others. Run returns when ctx is done and all spawned work has returned.
func Run(ctx context.Context, global *GlobalState, input <-chan intercom.NetworkMsg, timer *GossipTimer) error {
	var group errgroup.Group

	run := func(name string, task func() error) {
		group.Go(func() error {
			if err := task(); err != nil {
				global.Logger.WithError(err).WithField("task", name).Error("Network task failed")
			}
			return nil
		})
	}

	run("listener", func() error {
		global.Logger.WithField("listen_addr", global.transport.LocalAddr()).Info("Start listening")
		if err := global.transport.Listen(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			global.Logger.WithError(err).Error("Cannot accept incoming connections, running outbound only")
		}
		return nil
	})

	run("inbound", func() error {
		return handleInbound(ctx, global)
	})

	run("connections", func() error {
		connectToView(ctx, global)
		return nil
	})

	run("dispatcher", func() error {
		return handleNetworkInput(ctx, global, input, timer.Ticks())
	})

	run("gossip timer", func() error {
		return timer.Run(ctx)
	})

	run("shutdown", func() error {
		<-ctx.Done()
		global.Logger.Debug("Shutting down network")
		global.Peers.Clear()
		return global.transport.Close()
	})

	err := group.Wait()

	global.Executor.Wait()

	return err
}

// connectToView connects to every node of the initial view that has an
// address and sends it the local gossip.
func connectToView(ctx context.Context, global *GlobalState) {
	for _, node := range global.Topology.View() {
		if !node.HasAddress() {
			continue
		}
		gossip := global.Topology.SelectGossips(node)
		connectAndPropagateWith(ctx, global, node, func(comms *comm.PeerComms) {
			comms.TrySendGossip(gossip)
		})
	}
}
