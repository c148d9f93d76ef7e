package topology

import (
	"math/rand"
	"sort"

	"github.com/mosaicnetworks/blocknet/src/peers"
)

// DefaultFanout is the number of nodes selected by the default policy, in
// addition to the trusted peers.
const DefaultFanout = 8

// Policy selects, among known nodes, those that should receive a message
// destined to, or on behalf of, target. Implementations must not return the
// target itself and must not modify known.
type Policy interface {
	Select(known []peers.Node, target peers.Node) []peers.Node
}

// RandomPolicy selects a random subset of Fanout nodes. A zero Fanout selects
// every known node.
type RandomPolicy struct {
	Fanout int
}

// NewRandomPolicy returns a RandomPolicy with the default fanout.
func NewRandomPolicy() *RandomPolicy {
	return &RandomPolicy{Fanout: DefaultFanout}
}

// Select implements the Policy interface.
func (p *RandomPolicy) Select(known []peers.Node, target peers.Node) []peers.Node {
	candidates := peers.Exclude(known, target.ID)

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	return truncate(candidates, p.Fanout)
}

// InterestPolicy prefers the nodes with the highest combined subscription
// interest, and among those the most recently seen.
type InterestPolicy struct {
	Fanout int
}

// Select implements the Policy interface.
func (p *InterestPolicy) Select(known []peers.Node, target peers.Node) []peers.Node {
	candidates := peers.Exclude(known, target.ID)

	sort.SliceStable(candidates, func(i, j int) bool {
		wi, wj := candidates[i].Subscriptions.Weight(), candidates[j].Subscriptions.Weight()
		if wi != wj {
			return wi > wj
		}
		return candidates[i].FresherThan(candidates[j])
	})

	return truncate(candidates, p.Fanout)
}

func truncate(nodes []peers.Node, n int) []peers.Node {
	if n <= 0 || len(nodes) <= n {
		return nodes
	}
	return nodes[:n]
}
