package comm

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

// DefaultMaxConnections bounds the registry when no limit is configured.
const DefaultMaxConnections = 256

const (
	kindBlock    = "block"
	kindFragment = "fragment"
	kindGossip   = "gossip"
)

// PeerStat describes one registry entry.
type PeerStat struct {
	NodeID        peers.NodeID
	Address       string
	EstablishedAt time.Time
	LastUsed      time.Time
	BlocksSent    uint64
	FragmentsSent uint64
	GossipSent    uint64
}

// Peers maps node identities to live communication handles. It is safe for
// concurrent use.
type Peers struct {
	sync.Mutex

	lru            *simplelru.LRU[peers.NodeID, *PeerComms]
	maxConnections int

	metrics *Metrics
	logger  *logrus.Entry
}

// NewPeers creates a registry holding at most maxConnections handles. A
// non-positive maxConnections defaults to DefaultMaxConnections.
func NewPeers(maxConnections int, logger *logrus.Entry, metrics *Metrics) *Peers {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	// Eviction is handled explicitly in InsertPeer, the callback stays nil.
	lru, err := simplelru.NewLRU[peers.NodeID, *PeerComms](maxConnections, nil)
	if err != nil {
		panic(err)
	}

	return &Peers{
		lru:            lru,
		maxConnections: maxConnections,
		metrics:        metrics,
		logger:         logger.WithField("prefix", "peers"),
	}
}

// InsertPeer registers comms as the handle of id. A previous distinct handle
// for id is closed. When the registry is full, the least recently used entry
// is evicted and closed first.
func (p *Peers) InsertPeer(id peers.NodeID, comms *PeerComms) {
	p.Lock()
	defer p.Unlock()

	if old, ok := p.lru.Peek(id); ok {
		if old != comms {
			old.Close()
			p.metrics.ObserveEviction(ReasonSuperseded)
			p.logger.WithField("node_id", id.Short()).Debug("Superseding peer connection")
		}
	} else if p.lru.Len() >= p.maxConnections {
		if evictedID, evicted, ok := p.lru.RemoveOldest(); ok {
			evicted.Close()
			p.metrics.ObserveEviction(ReasonCapacity)
			p.logger.WithField("node_id", evictedID.Short()).Debug("Evicting least recently used peer")
		}
	}

	p.lru.Add(id, comms)
	p.metrics.SetConnected(p.lru.Len())
}

// RemovePeer detaches the handle of id from the registry and returns it,
// without closing it.
func (p *Peers) RemovePeer(id peers.NodeID) (*PeerComms, bool) {
	p.Lock()
	defer p.Unlock()

	comms, ok := p.lru.Peek(id)
	if !ok {
		return nil, false
	}
	p.lru.Remove(id)
	p.metrics.SetConnected(p.lru.Len())
	return comms, true
}

// RemovePeerIf removes the entry for id only if it maps to comms. It reports
// whether the entry was removed.
func (p *Peers) RemovePeerIf(id peers.NodeID, comms *PeerComms) bool {
	p.Lock()
	defer p.Unlock()

	return p.removeIf(id, comms)
}

func (p *Peers) removeIf(id peers.NodeID, comms *PeerComms) bool {
	current, ok := p.lru.Peek(id)
	if !ok || current != comms {
		return false
	}
	p.lru.Remove(id)
	p.metrics.SetConnected(p.lru.Len())
	return true
}

// Get returns the handle of id and marks it as recently used.
func (p *Peers) Get(id peers.NodeID) (*PeerComms, bool) {
	p.Lock()
	defer p.Unlock()

	return p.lru.Get(id)
}

// Len returns the number of registered handles.
func (p *Peers) Len() int {
	p.Lock()
	defer p.Unlock()

	return p.lru.Len()
}

// IDs returns the registered identities, least recently used first.
func (p *Peers) IDs() []peers.NodeID {
	p.Lock()
	defer p.Unlock()

	return p.lru.Keys()
}

// FetchBlocks solicits blocks from the most recently used live peer.
func (p *Peers) FetchBlocks(ids []blockcfg.HeaderHash) error {
	p.Lock()
	keys := p.lru.Keys()
	p.Unlock()

	for i := len(keys) - 1; i >= 0; i-- {
		id := keys[i]
		comms, ok := p.Get(id)
		if !ok {
			continue
		}

		err := comms.TrySolicitBlocks(ids)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrCommsClosed):
			p.dropClosed(id, comms)
		default:
			p.logger.WithError(err).WithField("node_id", id.Short()).Debug("Cannot fetch blocks from peer")
		}
	}

	return NewPeerErr(NoPeers, "")
}

// SolicitBlocks asks peer id for the given blocks.
func (p *Peers) SolicitBlocks(id peers.NodeID, ids []blockcfg.HeaderHash) error {
	comms, ok := p.Get(id)
	if !ok {
		return NewPeerErr(PeerUnknown, id)
	}

	err := comms.TrySolicitBlocks(ids)
	if errors.Is(err, ErrCommsClosed) {
		p.dropClosed(id, comms)
		return NewPeerErr(PeerUnknown, id)
	}
	return err
}

// PullHeaders asks peer id for the headers between from and to.
func (p *Peers) PullHeaders(id peers.NodeID, from []blockcfg.HeaderHash, to blockcfg.HeaderHash) error {
	comms, ok := p.Get(id)
	if !ok {
		return NewPeerErr(PeerUnknown, id)
	}

	err := comms.TryPullHeaders(from, to)
	if errors.Is(err, ErrCommsClosed) {
		p.dropClosed(id, comms)
		return NewPeerErr(PeerUnknown, id)
	}
	return err
}

// PropagateBlock announces header to every node with a live handle and
// returns the nodes that could not be reached.
func (p *Peers) PropagateBlock(nodes []peers.Node, header blockcfg.Header) []peers.Node {
	return p.propagate(nodes, kindBlock, func(comms *PeerComms) error {
		return comms.TryAnnounceBlock(header)
	})
}

// PropagateFragment sends fragment to every node with a live handle and
// returns the nodes that could not be reached.
func (p *Peers) PropagateFragment(nodes []peers.Node, fragment blockcfg.Fragment) []peers.Node {
	return p.propagate(nodes, kindFragment, func(comms *PeerComms) error {
		return comms.TrySendFragment(fragment)
	})
}

// PropagateGossipTo sends gossip to node id. It returns a PeerUnknown error
// when no live handle exists for id.
func (p *Peers) PropagateGossipTo(id peers.NodeID, gossip peers.Gossip) error {
	reached := p.deliver(id, kindGossip, func(comms *PeerComms) error {
		return comms.TrySendGossip(gossip)
	})
	if !reached {
		return NewPeerErr(PeerUnknown, id)
	}
	return nil
}

// Stats returns a description of every entry, least recently used first.
// It does not affect recency.
func (p *Peers) Stats() []PeerStat {
	p.Lock()
	defer p.Unlock()

	stats := []PeerStat{}
	for _, id := range p.lru.Keys() {
		comms, ok := p.lru.Peek(id)
		if !ok {
			continue
		}
		stats = append(stats, PeerStat{
			NodeID:        id,
			Address:       comms.Address(),
			EstablishedAt: comms.EstablishedAt(),
			LastUsed:      comms.LastUsed(),
			BlocksSent:    comms.blocksSent.Load(),
			FragmentsSent: comms.fragmentsSent.Load(),
			GossipSent:    comms.gossipSent.Load(),
		})
	}
	return stats
}

// Clear closes and removes every handle.
func (p *Peers) Clear() {
	p.Lock()
	defer p.Unlock()

	for _, id := range p.lru.Keys() {
		if comms, ok := p.lru.Peek(id); ok {
			comms.Close()
		}
	}
	p.lru.Purge()
	p.metrics.SetConnected(0)
}

func (p *Peers) propagate(nodes []peers.Node, kind string, try func(*PeerComms) error) []peers.Node {
	unreached := []peers.Node{}
	for _, n := range nodes {
		if !p.deliver(n.ID, kind, try) {
			unreached = append(unreached, n)
		}
	}
	return unreached
}

// deliver reports false when id has no live handle. A full queue counts as
// reached: the handle stays in place and the item is dropped.
func (p *Peers) deliver(id peers.NodeID, kind string, try func(*PeerComms) error) bool {
	comms, ok := p.Get(id)
	if !ok {
		p.metrics.ObservePropagation(kind, ResultUnreached)
		return false
	}

	err := try(comms)
	switch {
	case err == nil:
		p.metrics.ObservePropagation(kind, ResultDelivered)
		return true
	case errors.Is(err, ErrCommsClosed):
		p.dropClosed(id, comms)
		p.metrics.ObservePropagation(kind, ResultUnreached)
		return false
	default:
		p.logger.WithError(err).WithFields(logrus.Fields{
			"node_id": id.Short(),
			"kind":    kind,
		}).Warn("Dropping message for peer")
		p.metrics.ObservePropagation(kind, ResultDropped)
		return true
	}
}

func (p *Peers) dropClosed(id peers.NodeID, comms *PeerComms) {
	p.Lock()
	removed := p.removeIf(id, comms)
	p.Unlock()

	if removed {
		p.metrics.ObserveEviction(ReasonClosed)
		p.logger.WithField("node_id", id.Short()).Debug("Removed closed peer handle")
	}
}
