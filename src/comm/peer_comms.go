package comm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// DefaultQueueSize is the capacity of each queue of a PeerComms.
const DefaultQueueSize = 64

// HeaderPull asks a peer for the headers between From and To.
type HeaderPull struct {
	From []blockcfg.HeaderHash
	To   blockcfg.HeaderHash
}

// PeerComms is the outbound side of one connection. The queues are filled by
// the registry and drained by the connection that owns the handle.
type PeerComms struct {
	address string

	blockAnnouncements chan blockcfg.Header
	fragments          chan blockcfg.Fragment
	gossip             chan peers.Gossip
	blockSolicitations chan []blockcfg.HeaderHash
	headerPulls        chan HeaderPull

	done      chan struct{}
	closeOnce sync.Once

	createdAt     time.Time
	establishedAt atomic.Int64
	lastUsed      atomic.Int64

	blocksSent    atomic.Uint64
	fragmentsSent atomic.Uint64
	gossipSent    atomic.Uint64
}

// NewPeerComms creates a handle for a connection to address with queues of
// DefaultQueueSize.
func NewPeerComms(address string) *PeerComms {
	return NewPeerCommsSize(address, DefaultQueueSize)
}

// NewPeerCommsSize creates a handle with queues of the given capacity.
func NewPeerCommsSize(address string, size int) *PeerComms {
	if size <= 0 {
		size = DefaultQueueSize
	}
	pc := &PeerComms{
		address:            address,
		blockAnnouncements: make(chan blockcfg.Header, size),
		fragments:          make(chan blockcfg.Fragment, size),
		gossip:             make(chan peers.Gossip, size),
		blockSolicitations: make(chan []blockcfg.HeaderHash, size),
		headerPulls:        make(chan HeaderPull, size),
		done:               make(chan struct{}),
		createdAt:          time.Now(),
	}
	pc.lastUsed.Store(pc.createdAt.UnixNano())
	return pc
}

// Address returns the address the handle was created for.
func (pc *PeerComms) Address() string {
	return pc.address
}

// TryAnnounceBlock queues a block announcement.
func (pc *PeerComms) TryAnnounceBlock(header blockcfg.Header) error {
	if err := trySend(pc, pc.blockAnnouncements, header); err != nil {
		return err
	}
	pc.blocksSent.Add(1)
	return nil
}

// TrySendFragment queues a fragment.
func (pc *PeerComms) TrySendFragment(fragment blockcfg.Fragment) error {
	if err := trySend(pc, pc.fragments, fragment); err != nil {
		return err
	}
	pc.fragmentsSent.Add(1)
	return nil
}

// TrySendGossip queues a gossip payload.
func (pc *PeerComms) TrySendGossip(gossip peers.Gossip) error {
	if err := trySend(pc, pc.gossip, gossip); err != nil {
		return err
	}
	pc.gossipSent.Add(1)
	return nil
}

// TrySolicitBlocks queues a request for the given blocks.
func (pc *PeerComms) TrySolicitBlocks(ids []blockcfg.HeaderHash) error {
	return trySend(pc, pc.blockSolicitations, append([]blockcfg.HeaderHash(nil), ids...))
}

// TryPullHeaders queues a request for a range of headers.
func (pc *PeerComms) TryPullHeaders(from []blockcfg.HeaderHash, to blockcfg.HeaderHash) error {
	return trySend(pc, pc.headerPulls, HeaderPull{
		From: append([]blockcfg.HeaderHash(nil), from...),
		To:   to,
	})
}

// BlockAnnouncements is drained by the connection.
func (pc *PeerComms) BlockAnnouncements() <-chan blockcfg.Header {
	return pc.blockAnnouncements
}

// Fragments is drained by the connection.
func (pc *PeerComms) Fragments() <-chan blockcfg.Fragment {
	return pc.fragments
}

// Gossip is drained by the connection.
func (pc *PeerComms) Gossip() <-chan peers.Gossip {
	return pc.gossip
}

// BlockSolicitations is drained by the connection.
func (pc *PeerComms) BlockSolicitations() <-chan []blockcfg.HeaderHash {
	return pc.blockSolicitations
}

// HeaderPulls is drained by the connection.
func (pc *PeerComms) HeaderPulls() <-chan HeaderPull {
	return pc.headerPulls
}

// Done is closed when the handle is closed.
func (pc *PeerComms) Done() <-chan struct{} {
	return pc.done
}

// Close marks the handle closed. The connection draining it shuts down.
// Closing twice is a no-op.
func (pc *PeerComms) Close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
	})
}

// IsClosed reports whether Close was called.
func (pc *PeerComms) IsClosed() bool {
	select {
	case <-pc.done:
		return true
	default:
		return false
	}
}

// MarkEstablished records that the underlying connection is up.
func (pc *PeerComms) MarkEstablished() {
	pc.establishedAt.Store(time.Now().UnixNano())
}

// EstablishedAt returns when the connection came up, or the zero time.
func (pc *PeerComms) EstablishedAt() time.Time {
	ns := pc.establishedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// LastUsed returns when a message was last queued.
func (pc *PeerComms) LastUsed() time.Time {
	return time.Unix(0, pc.lastUsed.Load())
}

func trySend[T any](pc *PeerComms, ch chan T, v T) error {
	if pc.IsClosed() {
		return ErrCommsClosed
	}
	select {
	case ch <- v:
		pc.lastUsed.Store(time.Now().UnixNano())
		return nil
	case <-pc.done:
		return ErrCommsClosed
	default:
		return ErrQueueFull
	}
}
