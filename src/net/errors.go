package net

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrBlock0Mismatch is returned when a node belongs to another network.
	ErrBlock0Mismatch = errors.New("block0 mismatch")

	// ErrBadIdentity is returned when a node id is not derived from the public
	// key that comes with it.
	ErrBadIdentity = errors.New("node id does not match public key")

	// ErrBadSignature is returned when the handshake signature is invalid.
	ErrBadSignature = errors.New("invalid handshake signature")

	// ErrClientClosed is returned by a Client after Close.
	ErrClientClosed = errors.New("client closed")
)

// ConnectError is returned when the target node cannot be reached at all, as
// opposed to failures of an established exchange.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError reports whether err, or an error it wraps, is a ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// ListenError is returned by Listen when incoming connections cannot be
// accepted. Outbound operations are unaffected.
type ListenError struct {
	Addr string
	Err  error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *ListenError) Unwrap() error {
	return e.Err
}
