package net

// Transport provides an interface for network transports to allow a node to
// communicate with other nodes.
type Transport interface {

	// Listen accepts incoming connections until the transport is closed. It
	// returns a ListenError if the transport cannot accept connections.
	Listen() error

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Handshake exchanges identities with the target node. See Dial.
	Handshake(target string, args *HandshakeRequest, resp *HandshakeResponse) error

	// AnnounceBlock, SendFragments and Gossip push data to the target node.

	AnnounceBlock(target string, args *BlockAnnouncementRequest, resp *AckResponse) error

	SendFragments(target string, args *FragmentRequest, resp *AckResponse) error

	Gossip(target string, args *GossipRequest, resp *AckResponse) error

	// GetBlocks, PullBlocksToTip and PullHeaders retrieve chain data from
	// the target node.

	GetBlocks(target string, args *GetBlocksRequest, resp *BlocksResponse) error

	PullBlocksToTip(target string, args *PullBlocksToTipRequest, resp *BlocksResponse) error

	PullHeaders(target string, args *PullHeadersRequest, resp *HeadersResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
