package topology

import (
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/blocknet/src/peers"
)

const (
	// DefaultEvictionDecay is how long an evicted node stays non-selectable.
	DefaultEvictionDecay = 10 * time.Minute
	// DefaultQuarantineSize bounds the number of quarantined identities.
	DefaultQuarantineSize = 4096
)

// Config tunes the Topology.
type Config struct {
	EvictionDecay  time.Duration
	QuarantineSize int
}

// DefaultConfig returns the default Topology configuration.
func DefaultConfig() Config {
	return Config{
		EvictionDecay:  DefaultEvictionDecay,
		QuarantineSize: DefaultQuarantineSize,
	}
}

// Topology is the membership view of the local node. It is safe for
// concurrent use; every method returns copies, never references into the
// internal state.
type Topology struct {
	sync.RWMutex

	self       peers.Node
	nodes      map[peers.NodeID]peers.Node
	trusted    map[peers.NodeID]struct{}
	quarantine *expirable.LRU[peers.NodeID, time.Time]
	policy     Policy

	logger *logrus.Entry
}

// New creates a Topology for the local node self. A nil policy defaults to a
// RandomPolicy.
func New(self peers.Node, policy Policy, conf Config, logger *logrus.Entry) *Topology {
	if policy == nil {
		policy = NewRandomPolicy()
	}
	if conf.EvictionDecay <= 0 {
		conf.EvictionDecay = DefaultEvictionDecay
	}
	if conf.QuarantineSize <= 0 {
		conf.QuarantineSize = DefaultQuarantineSize
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Topology{
		self:       self,
		nodes:      make(map[peers.NodeID]peers.Node),
		trusted:    make(map[peers.NodeID]struct{}),
		quarantine: expirable.NewLRU[peers.NodeID, time.Time](conf.QuarantineSize, nil, conf.EvictionDecay),
		policy:     policy,
		logger:     logger.WithField("prefix", "topology"),
	}
}

// Node returns the record of the local node, as advertised in gossip.
func (t *Topology) Node() peers.Node {
	t.RLock()
	defer t.RUnlock()

	self := t.self
	self.LastSeen = time.Now()
	return self
}

// AddSubscription sets the interest the local node advertises for topic.
func (t *Topology) AddSubscription(topic peers.Topic, interest peers.Interest) error {
	t.Lock()
	defer t.Unlock()

	return t.self.Subscriptions.Set(topic, interest)
}

// AddTrustedPeers registers nodes that are always selected and never
// evicted. A trusted peer is removed from quarantine.
func (t *Topology) AddTrustedPeers(nodes ...peers.Node) {
	t.Lock()
	defer t.Unlock()

	for _, n := range nodes {
		if !n.ID.Valid() || n.ID == t.self.ID {
			t.logger.WithField("node_id", n.ID).Warn("Ignoring invalid trusted peer")
			continue
		}
		t.trusted[n.ID] = struct{}{}
		t.quarantine.Remove(n.ID)
		if existing, ok := t.nodes[n.ID]; !ok || n.FresherThan(existing) {
			t.nodes[n.ID] = n
		}
	}
}

// IsTrusted reports whether id belongs to a trusted peer.
func (t *Topology) IsTrusted(id peers.NodeID) bool {
	t.RLock()
	defer t.RUnlock()

	_, ok := t.trusted[id]
	return ok
}

// Trusted returns the records of the trusted peers.
func (t *Topology) Trusted() peers.View {
	t.RLock()
	defer t.RUnlock()

	res := peers.View{}
	for id := range t.trusted {
		res = append(res, t.nodes[id])
	}
	sortByID(res)
	return res
}

// View returns a snapshot of every selectable node, trusted peers included.
// The local node is not part of the view.
func (t *Topology) View() peers.View {
	t.RLock()
	defer t.RUnlock()

	res := make(peers.View, 0, len(t.nodes))
	for _, n := range t.nodes {
		if t.isSelectable(n.ID) {
			res = append(res, n)
		}
	}
	sortByID(res)
	return res
}

// ViewFor returns the propagation targets for messages on topic: every
// trusted peer plus the nodes chosen by the policy among those interested in
// the topic.
func (t *Topology) ViewFor(topic peers.Topic) peers.View {
	t.RLock()
	defer t.RUnlock()

	res := t.trustedNodes(peers.NodeID(""))

	candidates := []peers.Node{}
	for _, n := range t.nodes {
		if _, ok := t.trusted[n.ID]; ok {
			continue
		}
		if !t.isSelectable(n.ID) || n.Subscriptions.Get(topic) == peers.InterestNone {
			continue
		}
		candidates = append(candidates, n)
	}
	sortByID(candidates)

	return append(res, t.policy.Select(candidates, t.self)...)
}

// SelectGossips computes the gossip payload for target: the local record,
// the trusted peers, and the nodes chosen by the policy. The target itself is
// never part of its own gossip.
func (t *Topology) SelectGossips(target peers.Node) peers.Gossip {
	t.RLock()
	defer t.RUnlock()

	self := t.self
	self.LastSeen = time.Now()

	nodes := []peers.Node{self}
	nodes = append(nodes, t.trustedNodes(target.ID)...)

	candidates := []peers.Node{}
	for _, n := range t.nodes {
		if _, ok := t.trusted[n.ID]; ok {
			continue
		}
		if n.ID == target.ID || !t.isSelectable(n.ID) {
			continue
		}
		candidates = append(candidates, n)
	}
	sortByID(candidates)

	nodes = append(nodes, t.policy.Select(candidates, target)...)

	return peers.Gossip{Nodes: nodes}
}

// MergeGossip inserts or refreshes the records received in a gossip payload.
// Invalid identities, the local node, and quarantined nodes are dropped. A
// known record is only replaced by a strictly fresher one, so merging the
// same payload twice has the same effect as merging it once. It returns the
// number of records inserted or updated.
func (t *Topology) MergeGossip(nodes []peers.Node) int {
	t.Lock()
	defer t.Unlock()

	updated := 0
	for _, n := range nodes {
		switch {
		case !n.ID.Valid():
			t.logger.WithField("node_id", n.ID).Debug("Dropping gossip with invalid node id")
			continue
		case n.ID == t.self.ID:
			continue
		case !t.isSelectable(n.ID):
			t.logger.WithField("node_id", n.ID).Debug("Dropping gossip about quarantined node")
			continue
		}

		existing, ok := t.nodes[n.ID]
		if ok && !n.FresherThan(existing) {
			continue
		}
		if ok && n.Address == "" {
			n.Address = existing.Address
		}

		t.nodes[n.ID] = n
		updated++
	}

	return updated
}

// EvictNode removes a node from the view and quarantines it for the
// eviction decay. Trusted peers are not evicted. It reports whether the node
// was evicted.
func (t *Topology) EvictNode(id peers.NodeID) bool {
	t.Lock()
	defer t.Unlock()

	if _, ok := t.trusted[id]; ok {
		t.logger.WithField("node_id", id).Debug("Not evicting trusted peer")
		return false
	}

	delete(t.nodes, id)
	t.quarantine.Add(id, time.Now())

	t.logger.WithField("node_id", id).Debug("Evicted node")

	return true
}

// IsQuarantined reports whether id was evicted less than a decay period ago.
func (t *Topology) IsQuarantined(id peers.NodeID) bool {
	t.RLock()
	defer t.RUnlock()

	return !t.isSelectable(id)
}

// Len returns the number of known nodes, quarantined ones excluded.
func (t *Topology) Len() int {
	return len(t.View())
}

func (t *Topology) isSelectable(id peers.NodeID) bool {
	_, quarantined := t.quarantine.Peek(id)
	return !quarantined
}

func (t *Topology) trustedNodes(exclude peers.NodeID) []peers.Node {
	res := []peers.Node{}
	for id := range t.trusted {
		if id != exclude {
			res = append(res, t.nodes[id])
		}
	}
	sortByID(res)
	return res
}

func sortByID(nodes []peers.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
}
