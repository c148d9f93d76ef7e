package net

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NewTCPTransport returns a NetworkTransport that is built on top of a TCP
// streaming transport layer, with log output going to the supplied Logger.
// The transport binds bindAddr when Listen is called, so outbound requests
// work even if the address cannot be bound.
func NewTCPTransport(
	bindAddr string,
	advertise string,
	maxPool int,
	timeout time.Duration,
	handshakeTimeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {
	stream, err := NewTCPStreamLayer(bindAddr, advertise)
	if err != nil {
		return nil, err
	}

	return NewNetworkTransport(stream, maxPool, timeout, handshakeTimeout, logger), nil
}
