package network

import (
	"crypto/ecdsa"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/intercom"
	"github.com/mosaicnetworks/blocknet/src/net"
	"github.com/mosaicnetworks/blocknet/src/peers"
	"github.com/mosaicnetworks/blocknet/src/topology"
)

// TaskParams gathers what the network tasks need from the rest of the node.
type TaskParams struct {
	Config    Config
	Block0    blockcfg.HeaderHash
	Key       *ecdsa.PrivateKey
	Transport net.Transport
	Input     <-chan intercom.NetworkMsg
	Channels  intercom.Channels
	Metrics   *comm.Metrics
	Logger    *logrus.Entry
}

// GlobalState is shared by every network task for the lifetime of the node.
// Topology and Peers synchronize internally; the other fields never change.
type GlobalState struct {
	Block0   blockcfg.HeaderHash
	Config   Config
	Topology *topology.Topology
	Peers    *comm.Peers
	Executor *Executor
	Logger   *logrus.Entry

	transport net.Transport
	handshake *net.Handshake
	channels  intercom.Channels
	metrics   *comm.Metrics
}

// NewGlobalState creates the state shared by the network tasks. The local
// node advertises the public address of the configuration and the configured
// subscriptions; trusted peers are added to the topology.
func NewGlobalState(params TaskParams) (*GlobalState, error) {
	logger := params.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	policy, err := params.Config.NewPolicy()
	if err != nil {
		return nil, err
	}

	handshake := net.NewHandshake(params.Key, params.Block0, params.Config.PublicAddress)

	self := peers.NewNode(handshake.NodeID(), params.Config.PublicAddress)
	topo := topology.New(self, policy, params.Config.Topology, logger)

	for topic, interest := range params.Config.Subscriptions {
		if err := topo.AddSubscription(topic, interest); err != nil {
			return nil, err
		}
	}

	trusted := make([]peers.Node, 0, len(params.Config.TrustedPeers))
	for _, tp := range params.Config.TrustedPeers {
		trusted = append(trusted, tp.Node())
	}
	topo.AddTrustedPeers(trusted...)

	return &GlobalState{
		Block0:    params.Block0,
		Config:    params.Config,
		Topology:  topo,
		Peers:     comm.NewPeers(params.Config.MaxConnections, logger, params.Metrics),
		Executor:  &Executor{},
		Logger:    logger.WithField("node_id", handshake.NodeID().Short()),
		transport: params.Transport,
		handshake: handshake,
		channels:  params.Channels,
		metrics:   params.Metrics,
	}, nil
}

// NodeID returns the identity of the local node.
func (g *GlobalState) NodeID() peers.NodeID {
	return g.handshake.NodeID()
}

// Spawn runs f in the background.
func (g *GlobalState) Spawn(f func()) {
	g.Executor.Spawn(f)
}
