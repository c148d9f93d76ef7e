package network

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/net"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// BlockSource retrieves chain data from the node at a given address.
type BlockSource interface {
	PullBlocksToTip(target string, from []blockcfg.HeaderHash) ([]blockcfg.Block, error)
	GetBlocks(target string, ids []blockcfg.HeaderHash) ([]blockcfg.Block, error)
}

// Chain is the part of the blockchain that bootstrap extends.
type Chain interface {
	Checkpoints() []blockcfg.HeaderHash
	ApplyBlock(block blockcfg.Block) (bool, error)
}

// TransportSource is a BlockSource backed by a Transport.
type TransportSource struct {
	trans  net.Transport
	fromID peers.NodeID
}

// NewTransportSource returns a BlockSource sending requests through trans
// on behalf of fromID.
func NewTransportSource(trans net.Transport, fromID peers.NodeID) *TransportSource {
	return &TransportSource{trans: trans, fromID: fromID}
}

// PullBlocksToTip implements BlockSource.
func (s *TransportSource) PullBlocksToTip(target string, from []blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	args := net.PullBlocksToTipRequest{
		FromID: s.fromID,
		From:   from,
	}

	var out net.BlocksResponse

	err := s.trans.PullBlocksToTip(target, &args, &out)

	return out.Blocks, err
}

// GetBlocks implements BlockSource.
func (s *TransportSource) GetBlocks(target string, ids []blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	args := net.GetBlocksRequest{
		FromID: s.fromID,
		IDs:    ids,
	}

	var out net.BlocksResponse

	err := s.trans.GetBlocks(target, &args, &out)

	return out.Blocks, err
}

// shufflePeers returns the trusted peers in the order they are tried.
var shufflePeers = func(trusted []peers.TrustedPeer) []peers.TrustedPeer {
	res := make([]peers.TrustedPeer, len(trusted))
	copy(res, trusted)
	rand.Shuffle(len(res), func(i, j int) {
		res[i], res[j] = res[j], res[i]
	})
	return res
}

// Bootstrap brings chain up to date with the first trusted peer that serves
// it. Peers are tried one after the other in random order; a failure with
// one peer is logged and the next one is tried. It returns whether a peer
// succeeded.
func Bootstrap(conf Config, source BlockSource, chain Chain, logger *logrus.Entry) bool {
	if len(conf.TrustedPeers) == 0 {
		logger.Warn("No trusted peers joinable to bootstrap the blockchain")
		return false
	}

	for _, peer := range shufflePeers(conf.TrustedPeers) {
		entry := logger.WithField("peer_addr", peer.Address)

		entry.Info("Bootstrapping from peer")

		err := bootstrapFrom(peer.Address, source, chain)
		if err == nil {
			entry.Info("Bootstrap from peer completed")
			return true
		}

		if IsBootstrapErr(err, Connect) {
			entry.WithError(err).Warn("Unable to reach peer for initial bootstrap")
		} else {
			entry.WithError(err).Warn("Initial bootstrap failed")
		}
	}

	return false
}

func bootstrapFrom(address string, source BlockSource, chain Chain) error {
	for {
		checkpoints := chain.Checkpoints()

		blocks, err := source.PullBlocksToTip(address, checkpoints)
		if err != nil {
			kind := Transport
			if net.IsConnectError(err) {
				kind = Connect
			}
			return &BootstrapErr{Kind: kind, Peer: address, Err: err}
		}

		progress := false
		for _, b := range blocks {
			moved, err := chain.ApplyBlock(b)
			if err != nil {
				return &BootstrapErr{Kind: Apply, Peer: address, Err: err}
			}
			progress = progress || moved
		}

		if len(blocks) < net.ChainPullChunkSize || !progress {
			return nil
		}
	}
}

// FetchBlock downloads the block identified by hash from the first trusted
// peer that has it. Peers are tried one after the other in random order.
func FetchBlock(conf Config, source BlockSource, hash blockcfg.HeaderHash, logger *logrus.Entry) (blockcfg.Block, error) {
	if len(conf.TrustedPeers) == 0 {
		return blockcfg.Block{}, ErrNoTrustedPeers
	}

	entry := logger.WithField("block", hash.String())

	for _, peer := range shufflePeers(conf.TrustedPeers) {
		blocks, err := source.GetBlocks(peer.Address, []blockcfg.HeaderHash{hash})
		if err != nil {
			entry.WithError(err).WithField("peer_addr", peer.Address).Info("Unable to download block from peer")
			continue
		}

		for _, b := range blocks {
			if b.Hash() == hash {
				entry.WithField("peer_addr", peer.Address).Info("Downloaded block")
				return b, nil
			}
		}

		entry.WithField("peer_addr", peer.Address).Info("Peer did not return the block")
	}

	return blockcfg.Block{}, CouldNotDownloadBlockErr{Block: hash}
}
