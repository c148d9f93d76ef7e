package network

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

// ErrNoTrustedPeers is returned by FetchBlock when no trusted peer is
// configured.
var ErrNoTrustedPeers = errors.New("no trusted peers specified")

// CouldNotDownloadBlockErr is returned by FetchBlock when no trusted peer
// provided the block.
type CouldNotDownloadBlockErr struct {
	Block blockcfg.HeaderHash
}

func (e CouldNotDownloadBlockErr) Error() string {
	return fmt.Sprintf("could not download block %s", e.Block)
}

// BootstrapErrKind tells at which step bootstrapping from a peer failed.
type BootstrapErrKind uint32

const (
	// Connect means the peer could not be reached.
	Connect BootstrapErrKind = iota
	// Transport means the exchange with the peer failed.
	Transport
	// Apply means a block received from the peer was rejected.
	Apply
)

func (k BootstrapErrKind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Transport:
		return "transport"
	case Apply:
		return "apply"
	default:
		return "unknown"
	}
}

// BootstrapErr is the failure to bootstrap from one peer. It never aborts
// the bootstrap: the next peer is tried.
type BootstrapErr struct {
	Kind BootstrapErrKind
	Peer string
	Err  error
}

func (e *BootstrapErr) Error() string {
	return fmt.Sprintf("bootstrap from %s failed (%s): %v", e.Peer, e.Kind, e.Err)
}

func (e *BootstrapErr) Unwrap() error {
	return e.Err
}

// IsBootstrapErr checks that err is a BootstrapErr of kind k.
func IsBootstrapErr(err error, k BootstrapErrKind) bool {
	var be *BootstrapErr
	return errors.As(err, &be) && be.Kind == k
}
