package net

import (
	"context"
	"crypto/ecdsa"
	"sync"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// Client is an authenticated session with a remote node. Requests go through
// the underlying Transport. The first failed request closes the client.
type Client struct {
	trans  Transport
	target string

	localID  peers.NodeID
	remoteID peers.NodeID
	remote   *ecdsa.PublicKey

	done      chan struct{}
	closeOnce sync.Once
	errLock   sync.Mutex
	err       error
}

// Dial performs a handshake with the node at target and returns a session
// bound to the identity it proved. The handshake is abandoned when ctx is
// done.
func Dial(ctx context.Context, trans Transport, target string, hs *Handshake) (*Client, error) {
	req, err := hs.Request()
	if err != nil {
		return nil, err
	}

	type result struct {
		resp HandshakeResponse
		err  error
	}
	resCh := make(chan result, 1)

	go func() {
		var resp HandshakeResponse
		err := trans.Handshake(target, req, &resp)
		resCh <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ConnectError{Target: target, Err: ctx.Err()}
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}

		pub, err := hs.Verify(req, &res.resp)
		if err != nil {
			return nil, err
		}

		return &Client{
			trans:    trans,
			target:   target,
			localID:  hs.NodeID(),
			remoteID: res.resp.NodeID,
			remote:   pub,
			done:     make(chan struct{}),
		}, nil
	}
}

// RemoteNodeID returns the identity proved by the remote node.
func (c *Client) RemoteNodeID() peers.NodeID {
	return c.remoteID
}

// RemotePublicKey returns the public key of the remote node.
func (c *Client) RemotePublicKey() *ecdsa.PublicKey {
	return c.remote
}

// Target returns the address the client is connected to.
func (c *Client) Target() string {
	return c.target
}

// SendBlockAnnouncement announces header to the remote node.
func (c *Client) SendBlockAnnouncement(header blockcfg.Header) error {
	args := BlockAnnouncementRequest{FromID: c.localID, Header: header}
	var resp AckResponse
	return c.call(func() error {
		return c.trans.AnnounceBlock(c.target, &args, &resp)
	})
}

// SendFragment sends a fragment to the remote node.
func (c *Client) SendFragment(fragment blockcfg.Fragment) error {
	args := FragmentRequest{FromID: c.localID, Fragments: []blockcfg.Fragment{fragment}}
	var resp AckResponse
	return c.call(func() error {
		return c.trans.SendFragments(c.target, &args, &resp)
	})
}

// SendGossip sends node records to the remote node.
func (c *Client) SendGossip(gossip peers.Gossip) error {
	args := GossipRequest{FromID: c.localID, Nodes: ToWireNodes(gossip.Nodes)}
	var resp AckResponse
	return c.call(func() error {
		return c.trans.Gossip(c.target, &args, &resp)
	})
}

// SolicitBlocks retrieves the given blocks from the remote node.
func (c *Client) SolicitBlocks(ids []blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	args := GetBlocksRequest{FromID: c.localID, IDs: ids}
	var resp BlocksResponse
	err := c.call(func() error {
		return c.trans.GetBlocks(c.target, &args, &resp)
	})
	return resp.Blocks, err
}

// PullHeaders retrieves headers from the remote node.
func (c *Client) PullHeaders(from []blockcfg.HeaderHash, to blockcfg.HeaderHash) ([]blockcfg.Header, error) {
	args := PullHeadersRequest{FromID: c.localID, From: from, To: to}
	var resp HeadersResponse
	err := c.call(func() error {
		return c.trans.PullHeaders(c.target, &args, &resp)
	})
	return resp.Headers, err
}

// Done is closed when the client is closed, either explicitly or after a
// failed request.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that closed the client, if any.
func (c *Client) Err() error {
	c.errLock.Lock()
	defer c.errLock.Unlock()
	return c.err
}

// Close closes the client.
func (c *Client) Close() {
	c.fail(ErrClientClosed)
}

func (c *Client) call(f func() error) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	if err := f(); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.errLock.Lock()
		c.err = err
		c.errLock.Unlock()
		close(c.done)
	})
}
