package comm

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/blocknet/src/peers"
)

var (
	// ErrQueueFull is returned when a message cannot be queued without blocking.
	ErrQueueFull = errors.New("peer queue is full")
	// ErrCommsClosed is returned when queueing on a handle that was closed.
	ErrCommsClosed = errors.New("peer communication handle closed")
)

// PeerErrType enumerates the recoverable conditions of the registry.
type PeerErrType uint32

const (
	// PeerUnknown means no live handle is registered for the node.
	PeerUnknown PeerErrType = iota
	// NoPeers means the registry holds no live handle at all.
	NoPeers
)

// PeerErr is returned by registry operations that need a live handle. It is
// not fatal: callers usually connect to the node and retry.
type PeerErr struct {
	errType PeerErrType
	id      peers.NodeID
}

// NewPeerErr creates a PeerErr about node id.
func NewPeerErr(errType PeerErrType, id peers.NodeID) PeerErr {
	return PeerErr{
		errType: errType,
		id:      id,
	}
}

// NodeID returns the node the error is about, if any.
func (e PeerErr) NodeID() peers.NodeID {
	return e.id
}

func (e PeerErr) Error() string {
	switch e.errType {
	case PeerUnknown:
		return fmt.Sprintf("peer %s unknown", e.id.Short())
	case NoPeers:
		return "no peers connected"
	default:
		return "peer error"
	}
}

// IsPeerErr checks that an error is a PeerErr of type t, looking through
// wrapped errors.
func IsPeerErr(err error, t PeerErrType) bool {
	var peerErr PeerErr
	return errors.As(err, &peerErr) && peerErr.errType == t
}
