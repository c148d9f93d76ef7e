package intercom

import (
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// DefaultBoxSize is the capacity of the channels created by NewChannels.
const DefaultBoxSize = 64

// ClientMsg is a request from a peer that must be answered from the chain.
type ClientMsg interface {
	clientMsg()
}

// BlocksReply answers block requests.
type BlocksReply struct {
	Blocks []blockcfg.Block
	Err    error
}

// HeadersReply answers header requests.
type HeadersReply struct {
	Headers []blockcfg.Header
	Err     error
}

// GetBlocksByID asks for specific blocks.
type GetBlocksByID struct {
	IDs   []blockcfg.HeaderHash
	Reply chan BlocksReply
}

// GetBlocksToTip asks for at most Limit blocks following the most recent
// known checkpoint in From.
type GetBlocksToTip struct {
	From  []blockcfg.HeaderHash
	Limit int
	Reply chan BlocksReply
}

// GetHeaders asks for the headers following the most recent known
// checkpoint in From, up to To.
type GetHeaders struct {
	From  []blockcfg.HeaderHash
	To    blockcfg.HeaderHash
	Reply chan HeadersReply
}

func (GetBlocksByID) clientMsg()  {}
func (GetBlocksToTip) clientMsg() {}
func (GetHeaders) clientMsg()     {}

// NewBlocksReply returns a reply channel for block requests.
func NewBlocksReply() chan BlocksReply {
	return make(chan BlocksReply, 1)
}

// NewHeadersReply returns a reply channel for header requests.
func NewHeadersReply() chan HeadersReply {
	return make(chan HeadersReply, 1)
}

// TransactionMsg carries fragments received from a peer.
type TransactionMsg struct {
	Fragments []blockcfg.Fragment
	From      peers.NodeID
}

// BlockMsg is chain data received from a peer.
type BlockMsg interface {
	blockMsg()
}

// AnnouncedHeader is a block header announced by a peer.
type AnnouncedHeader struct {
	Header blockcfg.Header
	From   peers.NodeID
}

// NetworkBlock is a block received in answer to a solicitation.
type NetworkBlock struct {
	Block blockcfg.Block
	From  peers.NodeID
}

// NetworkHeaders are headers received in answer to a pull.
type NetworkHeaders struct {
	Headers []blockcfg.Header
	From    peers.NodeID
}

func (AnnouncedHeader) blockMsg() {}
func (NetworkBlock) blockMsg()    {}
func (NetworkHeaders) blockMsg()  {}

// Channels are the inputs of the tasks fed by the network.
type Channels struct {
	ClientBox      chan ClientMsg
	TransactionBox chan TransactionMsg
	BlockBox       chan BlockMsg
}

// NewChannels creates buffered channels of size DefaultBoxSize.
func NewChannels() Channels {
	return Channels{
		ClientBox:      make(chan ClientMsg, DefaultBoxSize),
		TransactionBox: make(chan TransactionMsg, DefaultBoxSize),
		BlockBox:       make(chan BlockMsg, DefaultBoxSize),
	}
}
