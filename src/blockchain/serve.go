package blockchain

import (
	"context"

	"github.com/sirupsen/logrus"

	cm "github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/intercom"
)

// Serve answers the requests of peers from chain and applies the blocks and
// fragments received from the network until ctx is done. New tips and new
// fragments are sent back to the network through netMsgs for propagation.
func Serve(
	ctx context.Context,
	chain *Blockchain,
	pool *FragmentPool,
	channels intercom.Channels,
	netMsgs chan<- intercom.NetworkMsg,
	logger *logrus.Entry,
) error {
	logger = logger.WithField("prefix", "blockchain")

	send := func(msg intercom.NetworkMsg) {
		select {
		case netMsgs <- msg:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-channels.ClientBox:
			handleClientMsg(chain, msg)
		case msg := <-channels.TransactionBox:
			for _, f := range pool.Insert(msg.Fragments) {
				send(intercom.PropagateFragment{Fragment: f})
			}
		case msg := <-channels.BlockBox:
			handleBlockMsg(chain, msg, send, logger)
		}
	}
}

func handleClientMsg(chain *Blockchain, msg intercom.ClientMsg) {
	switch m := msg.(type) {
	case intercom.GetBlocksByID:
		blocks, err := chain.GetBlocks(m.IDs)
		m.Reply <- intercom.BlocksReply{Blocks: blocks, Err: err}
	case intercom.GetBlocksToTip:
		blocks, err := chain.BlocksToTip(m.From, m.Limit)
		m.Reply <- intercom.BlocksReply{Blocks: blocks, Err: err}
	case intercom.GetHeaders:
		headers, err := chain.Headers(m.From, m.To)
		m.Reply <- intercom.HeadersReply{Headers: headers, Err: err}
	}
}

func handleBlockMsg(chain *Blockchain, msg intercom.BlockMsg, send func(intercom.NetworkMsg), logger *logrus.Entry) {
	switch m := msg.(type) {
	case intercom.AnnouncedHeader:
		logger.WithFields(logrus.Fields{
			"block":  m.Header.Hash.String(),
			"length": m.Header.ChainLength,
			"from":   m.From.Short(),
		}).Debug("Block announced")

		if chain.HasBlock(m.Header.Hash) {
			return
		}
		if chain.HasBlock(m.Header.Parent) {
			send(intercom.GetNextBlock{NodeID: m.From, ID: m.Header.Hash})
			return
		}
		send(intercom.PullHeaders{NodeID: m.From, From: chain.Checkpoints(), To: m.Header.Hash})

	case intercom.NetworkHeaders:
		missing := []intercom.GetNextBlock{}
		for _, h := range m.Headers {
			if !chain.HasBlock(h.Hash) {
				missing = append(missing, intercom.GetNextBlock{NodeID: m.From, ID: h.Hash})
			}
		}
		for _, req := range missing {
			send(req)
		}

	case intercom.NetworkBlock:
		moved, err := chain.ApplyBlock(m.Block)
		if err != nil {
			if cm.IsStore(err, cm.MissingParent) {
				send(intercom.PullHeaders{NodeID: m.From, From: chain.Checkpoints(), To: m.Block.Hash()})
				return
			}
			logger.WithError(err).WithField("block", m.Block.Hash().String()).Warn("Rejected block")
			return
		}
		if moved {
			logger.WithFields(logrus.Fields{
				"block":  m.Block.Hash().String(),
				"length": m.Block.Header.ChainLength,
			}).Info("New tip")
			send(intercom.PropagateBlock{Header: m.Block.Header})
		}
	}
}
