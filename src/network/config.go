package network

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/peers"
	"github.com/mosaicnetworks/blocknet/src/topology"
)

const (
	// DefaultGossipInterval is the period of gossip rounds.
	DefaultGossipInterval = 10 * time.Second
	// DefaultTimeout bounds connection attempts.
	DefaultTimeout = 15 * time.Second
)

// Protocol is the transport protocol the node listens with.
type Protocol string

// TCP is the only supported protocol.
const TCP Protocol = "tcp"

// ParseProtocol validates a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case TCP, "":
		return TCP, nil
	default:
		return "", fmt.Errorf("unsupported listen protocol %q", s)
	}
}

// Policy names a topology selection policy.
const (
	PolicyRandom   = "random"
	PolicyInterest = "interest"
)

// Config is the configuration of the network tasks.
type Config struct {
	ListenAddress  string
	PublicAddress  string
	Protocol       Protocol
	TrustedPeers   []peers.TrustedPeer
	MaxConnections int
	Timeout        time.Duration
	GossipInterval time.Duration
	Subscriptions  map[peers.Topic]peers.Interest
	Policy         string
	Fanout         int
	Topology       topology.Config
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Protocol:       TCP,
		MaxConnections: comm.DefaultMaxConnections,
		Timeout:        DefaultTimeout,
		GossipInterval: DefaultGossipInterval,
		Subscriptions: map[peers.Topic]peers.Interest{
			peers.BlocksTopic:   peers.InterestNormal,
			peers.MessagesTopic: peers.InterestNormal,
		},
		Policy:   PolicyRandom,
		Fanout:   topology.DefaultFanout,
		Topology: topology.DefaultConfig(),
	}
}

// NewPolicy returns the topology policy named in the configuration.
func (c Config) NewPolicy() (topology.Policy, error) {
	switch c.Policy {
	case PolicyRandom, "":
		return &topology.RandomPolicy{Fanout: c.Fanout}, nil
	case PolicyInterest:
		return &topology.InterestPolicy{Fanout: c.Fanout}, nil
	default:
		return nil, fmt.Errorf("unknown topology policy %q", c.Policy)
	}
}
