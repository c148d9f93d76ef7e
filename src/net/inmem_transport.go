package net

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewInmemAddr returns a new in-memory addr with a randomly generated UUID as
// the ID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport implements the Transport interface, to allow nodes to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport is used to initialize a new transport
// and generates a random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    500 * time.Millisecond,
	}
	return addr, trans
}

// SetTimeout changes how long requests wait for a response.
func (i *InmemTransport) SetTimeout(timeout time.Duration) {
	i.Lock()
	defer i.Unlock()
	i.timeout = timeout
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Handshake implements the Transport interface.
func (i *InmemTransport) Handshake(target string, args *HandshakeRequest, resp *HandshakeResponse) error {
	return inmemCall(i, target, args, resp)
}

// AnnounceBlock implements the Transport interface.
func (i *InmemTransport) AnnounceBlock(target string, args *BlockAnnouncementRequest, resp *AckResponse) error {
	return inmemCall(i, target, args, resp)
}

// SendFragments implements the Transport interface.
func (i *InmemTransport) SendFragments(target string, args *FragmentRequest, resp *AckResponse) error {
	return inmemCall(i, target, args, resp)
}

// Gossip implements the Transport interface.
func (i *InmemTransport) Gossip(target string, args *GossipRequest, resp *AckResponse) error {
	return inmemCall(i, target, args, resp)
}

// GetBlocks implements the Transport interface.
func (i *InmemTransport) GetBlocks(target string, args *GetBlocksRequest, resp *BlocksResponse) error {
	return inmemCall(i, target, args, resp)
}

// PullBlocksToTip implements the Transport interface.
func (i *InmemTransport) PullBlocksToTip(target string, args *PullBlocksToTipRequest, resp *BlocksResponse) error {
	return inmemCall(i, target, args, resp)
}

// PullHeaders implements the Transport interface.
func (i *InmemTransport) PullHeaders(target string, args *PullHeadersRequest, resp *HeadersResponse) error {
	return inmemCall(i, target, args, resp)
}

// inmemCall sends args to target and copies the response back into resp.
func inmemCall[T any](i *InmemTransport, target string, args interface{}, resp *T) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}

	out, ok := rpcResp.Response.(*T)
	if !ok {
		return fmt.Errorf("unexpected response type %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

func (i *InmemTransport) makeRPC(target string, args interface{}) (rpcResp RPCResponse, err error) {
	i.RLock()
	peer, ok := i.peers[target]
	timeout := i.timeout
	i.RUnlock()

	if !ok {
		err = &ConnectError{Target: target, Err: fmt.Errorf("no route to peer")}
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Send the RPC over
	respCh := make(chan RPCResponse, 1)
	select {
	case peer.consumerCh <- RPC{Command: args, RespChan: respCh}:
	case <-timer.C:
		err = fmt.Errorf("command timed out")
		return
	}

	// Wait for a response
	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = rpcResp.Error
		}
	case <-timer.C:
		err = fmt.Errorf("command timed out")
	}
	return
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen returns immediately: there is nothing to bind in memory.
func (i *InmemTransport) Listen() error {
	return nil
}
