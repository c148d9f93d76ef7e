package net

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

/*******************************************************************************
MOST OF THIS IS TAKEN FROM HASHICORP RAFT
*******************************************************************************/

const (
	rpcHandshake uint8 = iota
	rpcBlockAnnouncement
	rpcFragments
	rpcGossip
	rpcGetBlocks
	rpcPullBlocksToTip
	rpcPullHeaders
)

const (
	bufSize = 64 * 1024
)

/*
NetworkTransport provides a network based transport that can be used to
communicate with other nodes on remote machines. It requires an underlying
stream layer to provide a stream abstraction, which can be simple TCP, TLS,
etc.

This transport is very simple and lightweight. Each RPC request is framed by
sending a byte that indicates the message type, followed by the msgpack
encoded request.

The response is an error string followed by the response object, both are
encoded using msgpack.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan RPC

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer
	handle *codec.MsgpackHandle

	timeout          time.Duration
	handshakeTimeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *codec.Decoder
	enc    *codec.Encoder
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// NewNetworkTransport creates a new network transport with the given stream
// layer. The maxPool controls how many connections we will pool (per
// target). The timeout is used to apply I/O deadlines, the handshakeTimeout
// is used for handshakes instead.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	handshakeTimeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	trans := &NetworkTransport{
		connPool:         make(map[string][]*netConn),
		consumeCh:        make(chan RPC),
		logger:           logger,
		maxPool:          maxPool,
		shutdownCh:       make(chan struct{}),
		stream:           stream,
		handle:           msgpackHandle(),
		timeout:          timeout,
		handshakeTimeout: handshakeTimeout,
	}

	return trans
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.connPoolLock.Lock()
		for target, conns := range n.connPool {
			for _, c := range conns {
				c.Release()
			}
			delete(n.connPool, target)
		}
		n.connPoolLock.Unlock()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection from the pool.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	if n.IsShutdown() {
		return nil, ErrTransportShutdown
	}

	// Check for a pooled conn
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	// Dial a new connection
	conn, err := n.stream.Dial(target, timeout)
	if err != nil {
		return nil, &ConnectError{Target: target, Err: err}
	}

	// Wrap the conn
	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}
	// Setup encoder/decoders
	netConn.dec = codec.NewDecoder(netConn.r, n.handle)
	netConn.enc = codec.NewEncoder(netConn.w, n.handle)

	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Handshake implements the Transport interface.
func (n *NetworkTransport) Handshake(target string, args *HandshakeRequest, resp *HandshakeResponse) error {
	return n.genericRPC(target, rpcHandshake, n.handshakeTimeout, args, resp)
}

// AnnounceBlock implements the Transport interface.
func (n *NetworkTransport) AnnounceBlock(target string, args *BlockAnnouncementRequest, resp *AckResponse) error {
	return n.genericRPC(target, rpcBlockAnnouncement, n.timeout, args, resp)
}

// SendFragments implements the Transport interface.
func (n *NetworkTransport) SendFragments(target string, args *FragmentRequest, resp *AckResponse) error {
	return n.genericRPC(target, rpcFragments, n.timeout, args, resp)
}

// Gossip implements the Transport interface.
func (n *NetworkTransport) Gossip(target string, args *GossipRequest, resp *AckResponse) error {
	return n.genericRPC(target, rpcGossip, n.timeout, args, resp)
}

// GetBlocks implements the Transport interface.
func (n *NetworkTransport) GetBlocks(target string, args *GetBlocksRequest, resp *BlocksResponse) error {
	return n.genericRPC(target, rpcGetBlocks, n.timeout, args, resp)
}

// PullBlocksToTip implements the Transport interface.
func (n *NetworkTransport) PullBlocksToTip(target string, args *PullBlocksToTipRequest, resp *BlocksResponse) error {
	return n.genericRPC(target, rpcPullBlocksToTip, n.timeout, args, resp)
}

// PullHeaders implements the Transport interface.
func (n *NetworkTransport) PullHeaders(target string, args *PullHeadersRequest, resp *HeadersResponse) error {
	return n.genericRPC(target, rpcPullHeaders, n.timeout, args, resp)
}

// genericRPC handles a simple request/response RPC.
func (n *NetworkTransport) genericRPC(target string, rpcType uint8, timeout time.Duration, args interface{}, resp interface{}) error {
	// Get a conn
	conn, err := n.getConn(target, timeout)
	if err != nil {
		return err
	}

	// Set a deadline
	if timeout > 0 {
		conn.conn.SetDeadline(time.Now().Add(timeout))
	}

	// Send the RPC
	if err = sendRPC(conn, rpcType, args); err != nil {
		return err
	}

	// Decode the response
	canReturn, err := decodeResponse(conn, resp)
	if canReturn {
		n.returnConn(conn)
	}

	return err
}

// sendRPC is used to encode and send the RPC.
func sendRPC(conn *netConn, rpcType uint8, args interface{}) error {
	// Write the request type
	if err := conn.w.WriteByte(rpcType); err != nil {
		conn.Release()
		return err
	}

	// Send the request
	if err := conn.enc.Encode(args); err != nil {
		conn.Release()
		return err
	}

	// Flush
	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}
	return nil
}

// decodeResponse is used to decode an RPC response and reports whether
// the connection can be reused.
func decodeResponse(conn *netConn, resp interface{}) (bool, error) {
	// Decode the error if any
	var rpcError string
	if err := conn.dec.Decode(&rpcError); err != nil {
		conn.Release()
		return false, err
	}

	// Decode the response
	if err := conn.dec.Decode(resp); err != nil {
		conn.Release()
		return false, err
	}

	// Format an error if any
	if rpcError != "" {
		return true, fmt.Errorf("%s", rpcError)
	}
	return true, nil
}

// Bind binds the stream layer without accepting connections yet. Calling it
// before Listen makes LocalAddr available immediately.
func (n *NetworkTransport) Bind() error {
	return n.stream.Bind()
}

// Listen binds the stream layer and handles incoming connections until the
// transport is closed.
func (n *NetworkTransport) Listen() error {
	if err := n.Bind(); err != nil {
		return err
	}

	for {
		// Accept incoming connections
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return nil
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		// Handle the connection in dedicated routine
		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, n.handle)
	enc := codec.NewEncoder(w, n.handle)

	for {
		if err := n.handleCommand(r, dec, enc); err != nil {
			if err == ErrTransportShutdown {
				n.logger.WithField("error", err).Debug("Stopped handling connection")
			} else if err != io.EOF {
				n.logger.WithField("error", err).Error("Failed to decode incoming command")
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// newCommand returns an empty request for rpcType.
func newCommand(rpcType uint8) (interface{}, error) {
	switch rpcType {
	case rpcHandshake:
		return &HandshakeRequest{}, nil
	case rpcBlockAnnouncement:
		return &BlockAnnouncementRequest{}, nil
	case rpcFragments:
		return &FragmentRequest{}, nil
	case rpcGossip:
		return &GossipRequest{}, nil
	case rpcGetBlocks:
		return &GetBlocksRequest{}, nil
	case rpcPullBlocksToTip:
		return &PullBlocksToTipRequest{}, nil
	case rpcPullHeaders:
		return &PullHeadersRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown rpc type %d", rpcType)
	}
}

// handleCommand is used to decode and dispatch a single command.
func (n *NetworkTransport) handleCommand(r *bufio.Reader, dec *codec.Decoder, enc *codec.Encoder) error {
	// Get the rpc type
	rpcType, err := r.ReadByte()
	if err != nil {
		return err
	}

	// Create the RPC object
	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		RespChan: respCh,
	}

	// Decode the command
	cmd, err := newCommand(rpcType)
	if err != nil {
		return err
	}
	if err := dec.Decode(cmd); err != nil {
		return err
	}
	rpc.Command = cmd

	// Dispatch the RPC
	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	// Wait for response
	select {
	case resp := <-respCh:
		// Send the error first
		respErr := ""
		if resp.Error != nil {
			respErr = resp.Error.Error()
		}
		if err := enc.Encode(respErr); err != nil {
			return err
		}

		// Send the response
		if err := enc.Encode(resp.Response); err != nil {
			return err
		}
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	return nil
}
