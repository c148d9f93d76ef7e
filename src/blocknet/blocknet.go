package blocknet

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/blockchain"
	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/config"
	"github.com/mosaicnetworks/blocknet/src/crypto/keys"
	"github.com/mosaicnetworks/blocknet/src/intercom"
	"github.com/mosaicnetworks/blocknet/src/net"
	"github.com/mosaicnetworks/blocknet/src/network"
	"github.com/mosaicnetworks/blocknet/src/peers"
	"github.com/mosaicnetworks/blocknet/src/service"
)

// DefaultNetMsgsSize is the capacity of the queue of the network tasks.
const DefaultNetMsgsSize = 64

// Blocknet is a full node: a blockchain kept in sync with its peers by the
// network tasks.
type Blocknet struct {
	Config    *config.Config
	Transport net.Transport
	Store     blockchain.Store
	Chain     *blockchain.Blockchain
	Pool      *blockchain.FragmentPool
	Registry  *prometheus.Registry
	Metrics   *comm.Metrics
	Channels  intercom.Channels
	NetMsgs   chan intercom.NetworkMsg
	Network   *network.GlobalState
	Service   *service.Service

	netConf network.Config
	logger  *logrus.Entry
}

// NewBlocknet creates a node from config. A Transport set before Init is
// used instead of a TCP transport.
func NewBlocknet(conf *config.Config) *Blocknet {
	engine := &Blocknet{
		Config:   conf,
		Channels: intercom.NewChannels(),
		NetMsgs:  make(chan intercom.NetworkMsg, DefaultNetMsgsSize),
		logger:   conf.Logger(),
	}

	return engine
}

func (b *Blocknet) initKey() error {
	if b.Config.Key == nil {
		key, created, err := keys.ReadOrGenerate(keys.NewSimpleKeyfile(b.Config.Keyfile()))
		if err != nil {
			b.logger.WithError(err).Error("Cannot read or generate a private key")
			return err
		}

		if created {
			b.logger.WithField("node_id", peers.NodeIDFromPublicKey(&key.PublicKey)).Info("Created a new key")
		}

		b.Config.Key = key
	}
	return nil
}

func (b *Blocknet) initNetworkConfig() error {
	netConf, err := b.Config.NetworkConfig()
	if err != nil {
		return err
	}

	if b.Transport != nil {
		netConf.ListenAddress = b.Transport.LocalAddr()
		netConf.PublicAddress = b.Transport.AdvertiseAddr()
	}

	b.netConf = netConf

	return nil
}

func (b *Blocknet) initTransport() error {
	if b.Transport != nil {
		return nil
	}

	transport, err := net.NewTCPTransport(
		b.Config.BindAddr,
		b.Config.AdvertiseAddr,
		b.Config.MaxPool,
		b.Config.TCPTimeout,
		b.Config.HandshakeTimeout,
		b.logger,
	)
	if err != nil {
		return err
	}

	b.Transport = transport

	return nil
}

func (b *Blocknet) initStore() error {
	if !b.Config.Store {
		b.Store = blockchain.NewInmemStore()

		b.logger.Debug("created new in-mem store")
	} else {
		var err error

		b.logger.WithField("path", b.Config.DatabaseDir).Debug("Attempting to load or create database")

		b.Store, err = blockchain.NewBadgerStore(b.Config.DatabaseDir, b.Config.CacheSize, b.logger)
		if err != nil {
			return err
		}
	}

	b.Pool = blockchain.NewFragmentPool(b.Config.CacheSize)

	return nil
}

// initChain loads the chain held by the store, or creates it from the genesis
// block, and brings it up to date with the trusted peers.
func (b *Blocknet) initChain() error {
	source := network.NewTransportSource(b.Transport, peers.NodeIDFromPublicKey(&b.Config.Key.PublicKey))

	chain, err := blockchain.LoadBlockchain(b.Store)
	switch {
	case err == nil:
		b.logger.WithField("block0", chain.Block0().String()).Debug("Loaded blockchain from store")
	case common.IsStore(err, common.Empty):
		genesis, err := b.genesis(source)
		if err != nil {
			return err
		}
		chain, err = blockchain.NewBlockchain(b.Store, genesis)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if b.Config.Block0 != "" {
		block0, err := blockcfg.ParseHeaderHash(b.Config.Block0)
		if err != nil {
			return err
		}
		if block0 != chain.Block0() {
			return blockchain.ErrBlock0Mismatch
		}
	}

	b.Chain = chain

	if len(b.netConf.TrustedPeers) > 0 {
		if !network.Bootstrap(b.netConf, source, chain, b.logger) {
			b.logger.Warn("Could not bootstrap the blockchain from any trusted peer")
		}
	}

	b.logger.WithFields(logrus.Fields{
		"block0": chain.Block0().String(),
		"tip":    chain.Tip().ComputeHash().String(),
		"length": chain.Tip().ChainLength,
	}).Info("Blockchain ready")

	return nil
}

func (b *Blocknet) genesis(source network.BlockSource) (blockcfg.Block, error) {
	if b.Config.Block0 != "" {
		hash, err := blockcfg.ParseHeaderHash(b.Config.Block0)
		if err != nil {
			return blockcfg.Block{}, err
		}
		return network.FetchBlock(b.netConf, source, hash, b.logger)
	}

	if b.Config.Genesis {
		genesis := blockcfg.NewGenesis(nil, time.Now().UTC())
		b.logger.WithField("block0", genesis.Hash().String()).Info("Created a new genesis block")
		return genesis, nil
	}

	return blockcfg.Block{}, fmt.Errorf("no blockchain in store: set block0 or genesis")
}

func (b *Blocknet) initNetwork() error {
	b.Registry = prometheus.NewRegistry()
	b.Metrics = comm.NewMetrics(b.Registry)

	global, err := network.NewGlobalState(network.TaskParams{
		Config:    b.netConf,
		Block0:    b.Chain.Block0(),
		Key:       b.Config.Key,
		Transport: b.Transport,
		Input:     b.NetMsgs,
		Channels:  b.Channels,
		Metrics:   b.Metrics,
		Logger:    b.logger,
	})
	if err != nil {
		return err
	}

	b.Network = global

	return nil
}

func (b *Blocknet) initService() error {
	if !b.Config.NoService {
		b.Service = service.NewService(b.Config.ServiceAddr, b.NetMsgs, b.Network.Topology, b.Registry, b.logger)
	}
	return nil
}

// Init prepares the node: key, transport, store, chain and network state.
func (b *Blocknet) Init() error {
	if err := b.initKey(); err != nil {
		return err
	}

	if err := b.initNetworkConfig(); err != nil {
		return err
	}

	if err := b.initTransport(); err != nil {
		return err
	}

	if err := b.initStore(); err != nil {
		return err
	}

	if err := b.initChain(); err != nil {
		return err
	}

	if err := b.initNetwork(); err != nil {
		return err
	}

	if err := b.initService(); err != nil {
		return err
	}

	return nil
}

// Run runs the node until ctx is done, then closes the store.
func (b *Blocknet) Run(ctx context.Context) error {
	if b.Service != nil {
		go b.Service.Serve()
	}

	var group errgroup.Group

	group.Go(func() error {
		return blockchain.Serve(ctx, b.Chain, b.Pool, b.Channels, b.NetMsgs, b.logger)
	})

	group.Go(func() error {
		return network.Run(ctx, b.Network, b.NetMsgs, network.NewGossipTimer(b.netConf.GossipInterval))
	})

	err := group.Wait()

	if cerr := b.Store.Close(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}

// Keygen creates a new key in datadir. It fails if a key already exists.
func Keygen(datadir string) (peers.NodeID, error) {
	keyfile := keys.NewSimpleKeyfile(filepath.Join(datadir, config.DefaultKeyfile))

	if _, err := keyfile.ReadKey(); err == nil {
		return "", fmt.Errorf("another key already lives under %s", datadir)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return "", err
	}

	if err := keyfile.WriteKey(key); err != nil {
		return "", err
	}

	return peers.NodeIDFromPublicKey(&key.PublicKey), nil
}
