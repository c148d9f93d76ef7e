package net

import (
	"errors"
	"net"
	"sync"
	"time"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
	errNotBound        = errors.New("stream layer is not bound")
)

// TCPStreamLayer implements StreamLayer interface for plain TCP.
type TCPStreamLayer struct {
	sync.Mutex

	bindAddr  string
	advertise string
	listener  *net.TCPListener
	closed    bool
}

// NewTCPStreamLayer creates a stream layer that will bind to bindAddr. An
// empty advertise address means the bound address is advertised.
func NewTCPStreamLayer(bindAddr string, advertise string) (*TCPStreamLayer, error) {
	if advertise != "" {
		resolved, err := net.ResolveTCPAddr("tcp", advertise)
		if err != nil {
			return nil, err
		}
		if resolved.IP.IsUnspecified() {
			return nil, errNotAdvertisable
		}
	}

	return &TCPStreamLayer{
		bindAddr:  bindAddr,
		advertise: advertise,
	}, nil
}

// Bind implements the StreamLayer interface.
func (t *TCPStreamLayer) Bind() error {
	t.Lock()
	defer t.Unlock()

	if t.listener != nil {
		return nil
	}
	if t.closed {
		return &ListenError{Addr: t.bindAddr, Err: ErrTransportShutdown}
	}

	list, err := net.Listen("tcp", t.bindAddr)
	if err != nil {
		return &ListenError{Addr: t.bindAddr, Err: err}
	}

	addr, ok := list.Addr().(*net.TCPAddr)
	if !ok {
		list.Close()
		return &ListenError{Addr: t.bindAddr, Err: errNotTCP}
	}
	if t.advertise == "" && addr.IP.IsUnspecified() {
		list.Close()
		return &ListenError{Addr: t.bindAddr, Err: errNotAdvertisable}
	}

	t.listener = list.(*net.TCPListener)
	return nil
}

// Dial implements the StreamLayer interface.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

// Accept implements the net.Listener interface.
func (t *TCPStreamLayer) Accept() (c net.Conn, err error) {
	t.Lock()
	list := t.listener
	t.Unlock()

	if list == nil {
		return nil, errNotBound
	}
	return list.Accept()
}

// Close implements the net.Listener interface.
func (t *TCPStreamLayer) Close() (err error) {
	t.Lock()
	defer t.Unlock()

	t.closed = true
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// Addr implements the net.Listener interface. It is nil until Bind succeeds.
func (t *TCPStreamLayer) Addr() net.Addr {
	t.Lock()
	defer t.Unlock()

	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// AdvertiseAddr implements the SteamLayer interface.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	// Use an advertise addr if provided
	if t.advertise != "" {
		return t.advertise
	}
	if addr := t.Addr(); addr != nil {
		return addr.String()
	}
	return t.bindAddr
}
