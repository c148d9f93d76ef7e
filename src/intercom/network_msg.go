package intercom

import (
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/comm"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// NetworkMsg is a command for the network dispatcher.
type NetworkMsg interface {
	networkMsg()
}

// PropagateBlock announces a new block header to the network.
type PropagateBlock struct {
	Header blockcfg.Header
}

// PropagateFragment sends a fragment to the network.
type PropagateFragment struct {
	Fragment blockcfg.Fragment
}

// GetBlocks solicits blocks from any connected peer.
type GetBlocks struct {
	IDs []blockcfg.HeaderHash
}

// GetNextBlock solicits the block following ID from a specific peer.
type GetNextBlock struct {
	NodeID peers.NodeID
	ID     blockcfg.HeaderHash
}

// PullHeaders asks a specific peer for headers from From up to To.
type PullHeaders struct {
	NodeID peers.NodeID
	From   []blockcfg.HeaderHash
	To     blockcfg.HeaderHash
}

// PeerStats asks for a description of the connected peers. The reply
// channel holds one answer, so Respond never blocks the dispatcher.
type PeerStats struct {
	reply chan []comm.PeerStat
}

// NewPeerStats creates a PeerStats command with its reply channel.
func NewPeerStats() PeerStats {
	return PeerStats{reply: make(chan []comm.PeerStat, 1)}
}

// Reply delivers the answer to the command.
func (m PeerStats) Reply() <-chan []comm.PeerStat {
	return m.reply
}

// Respond answers the command. It reports false if the command was not
// created by NewPeerStats or was already answered.
func (m PeerStats) Respond(stats []comm.PeerStat) bool {
	select {
	case m.reply <- stats:
		return true
	default:
		return false
	}
}

func (PropagateBlock) networkMsg()    {}
func (PropagateFragment) networkMsg() {}
func (GetBlocks) networkMsg()         {}
func (GetNextBlock) networkMsg()      {}
func (PullHeaders) networkMsg()       {}
func (PeerStats) networkMsg()         {}
