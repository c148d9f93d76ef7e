package network

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/intercom"
	"github.com/mosaicnetworks/blocknet/src/net"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// ConnState is the state of an outbound connection.
type ConnState uint32

const (
	// Connecting is the initial state: the transport session is being opened.
	Connecting ConnState = iota
	// Identifying checks the identity proved by the remote node against the
	// one that was expected.
	Identifying
	// Established means the handle is registered and drained.
	Established
	// Closed is the final state of an established connection.
	Closed
	// Failed is the final state of a connection that never got established.
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Identifying:
		return "Identifying"
	case Established:
		return "Established"
	case Closed:
		return "Closed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ConnectionState is the context of one outbound connection attempt.
type ConnectionState struct {
	global  *GlobalState
	timeout time.Duration
	node    peers.Node
	logger  *logrus.Entry

	state ConnState
}

// NewConnectionState prepares a connection to node.
func NewConnectionState(global *GlobalState, node peers.Node) *ConnectionState {
	timeout := global.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ConnectionState{
		global:  global,
		timeout: timeout,
		node:    node,
		logger:  global.Logger.WithField("peer_addr", node.Address),
	}
}

// State returns the current state of the connection.
func (cs *ConnectionState) State() ConnState {
	stateAddr := (*uint32)(&cs.state)
	return ConnState(atomic.LoadUint32(stateAddr))
}

func (cs *ConnectionState) setState(s ConnState) {
	stateAddr := (*uint32)(&cs.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// connect opens and authenticates the transport session.
func (cs *ConnectionState) connect(ctx context.Context) (*net.Client, error) {
	cs.setState(Connecting)

	dialCtx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	client, err := net.Dial(dialCtx, cs.global.transport, cs.node.Address, cs.global.handshake)
	if err != nil {
		cs.setState(Failed)
		return nil, err
	}

	cs.setState(Identifying)

	if client.RemoteNodeID() == cs.global.NodeID() {
		client.Close()
		cs.setState(Failed)
		return nil, fmt.Errorf("%s is the local node", cs.node.Address)
	}

	return client, nil
}

// connectAndPropagateWith connects to node in the background. The handle of
// the new connection is registered right away, after useComms queued the
// item to deliver on it, so that concurrent propagations reuse it instead of
// opening more connections. Nodes without an address are skipped.
func connectAndPropagateWith(ctx context.Context, global *GlobalState, node peers.Node, useComms func(*comm.PeerComms)) {
	if !node.HasAddress() {
		global.Logger.WithField("node_id", node.ID.Short()).Debug("Ignoring P2P node without an address")
		return
	}

	cs := NewConnectionState(global, node)
	comms := comm.NewPeerComms(node.Address)
	useComms(comms)
	global.Peers.InsertPeer(node.ID, comms)

	global.Spawn(func() {
		runConnection(ctx, cs, comms)
	})
}

// runConnection drives a connection through its states until it fails or
// closes.
func runConnection(ctx context.Context, cs *ConnectionState, comms *comm.PeerComms) {
	global := cs.global
	expected := cs.node.ID

	client, err := cs.connect(ctx)
	if err != nil {
		cs.logger.WithError(err).Info("Failed to connect to peer")
		if global.Peers.RemovePeerIf(expected, comms) {
			global.metrics.ObserveEviction(comm.ReasonConnectFailed)
		}
		comms.Close()
		global.Topology.EvictNode(expected)
		return
	}

	if comms.IsClosed() {
		cs.logger.Debug("Peer handle closed while connecting")
		cs.setState(Failed)
		client.Close()
		return
	}

	id := client.RemoteNodeID()
	if id != expected && !reconcileIdentity(global, expected, id, comms, cs.logger) {
		cs.setState(Failed)
		comms.Close()
		client.Close()
		return
	}

	comms.MarkEstablished()
	cs.setState(Established)
	cs.logger.WithField("node_id", id.Short()).Debug("Connected to peer")

	runSession(ctx, global, client, comms, cs.logger)

	cs.setState(Closed)
	global.Peers.RemovePeerIf(id, comms)
	comms.Close()
	client.Close()

	entry := cs.logger
	if err := client.Err(); err != nil && err != net.ErrClientClosed {
		entry = entry.WithError(err)
	}
	entry.Debug("client P2P connection closed")
}

// reconcileIdentity corrects the registry and the topology when the node
// reached at an address is not the one gossip said was there: the stale
// record is evicted, the stale mapping removed, and the handle registered
// under the identity the remote node proved. It reports false, leaving the
// registry untouched, when comms no longer is the handle of expected.
func reconcileIdentity(global *GlobalState, expected, actual peers.NodeID, comms *comm.PeerComms, logger *logrus.Entry) bool {
	logger.WithFields(logrus.Fields{
		"expected": expected.Short(),
		"actual":   actual.Short(),
	}).Info("Peer identity mismatch")

	global.Topology.EvictNode(expected)

	if !global.Peers.RemovePeerIf(expected, comms) {
		logger.WithField("node_id", expected.Short()).Warn("Peer to reconcile was already removed")
		return false
	}

	global.Peers.InsertPeer(actual, comms)
	global.metrics.ObserveEviction(comm.ReasonIdentityMismatch)
	return true
}

// runSession forwards the items queued on comms to the remote node until
// either side closes or ctx is done.
func runSession(ctx context.Context, global *GlobalState, client *net.Client, comms *comm.PeerComms, logger *logrus.Entry) {
	from := client.RemoteNodeID()

	deliver := func(msg intercom.BlockMsg) bool {
		select {
		case global.channels.BlockBox <- msg:
			return true
		case <-ctx.Done():
			return false
		case <-comms.Done():
			return false
		}
	}

	for {
		var err error

		select {
		case <-ctx.Done():
			return
		case <-comms.Done():
			return
		case <-client.Done():
			return
		case header := <-comms.BlockAnnouncements():
			err = client.SendBlockAnnouncement(header)
		case fragment := <-comms.Fragments():
			err = client.SendFragment(fragment)
		case gossip := <-comms.Gossip():
			err = client.SendGossip(gossip)
		case ids := <-comms.BlockSolicitations():
			blocks, serr := client.SolicitBlocks(ids)
			err = serr
			for _, b := range blocks {
				if !deliver(intercom.NetworkBlock{Block: b, From: from}) {
					return
				}
			}
		case pull := <-comms.HeaderPulls():
			headers, perr := client.PullHeaders(pull.From, pull.To)
			err = perr
			if perr == nil && len(headers) > 0 {
				if !deliver(intercom.NetworkHeaders{Headers: headers, From: from}) {
					return
				}
			}
		}

		if err != nil {
			logger.WithError(err).Debug("Peer request failed")
			return
		}
	}
}
