package peers

// Gossip is a set of node records sent to a peer to grow and refresh its
// view of the network.
type Gossip struct {
	Nodes []Node
}

// NewGossip copies nodes into a new Gossip.
func NewGossip(nodes ...Node) Gossip {
	return Gossip{Nodes: append([]Node(nil), nodes...)}
}

// Len returns the number of records.
func (g Gossip) Len() int {
	return len(g.Nodes)
}

// View is an owned snapshot of node records. Modifying it does not affect the
// topology it was taken from.
type View []Node

// IDs returns the identities in the view, in order.
func (v View) IDs() []NodeID {
	res := make([]NodeID, 0, len(v))
	for _, n := range v {
		res = append(res, n.ID)
	}
	return res
}

// Find looks up a record by identity.
func (v View) Find(id NodeID) (Node, bool) {
	for _, n := range v {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Addresses returns the addresses of the nodes that have one.
func (v View) Addresses() []string {
	res := []string{}
	for _, n := range v {
		if n.HasAddress() {
			res = append(res, n.Address)
		}
	}
	return res
}

// Exclude returns a copy of nodes without the record for id.
func Exclude(nodes []Node, id NodeID) []Node {
	res := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID != id {
			res = append(res, n)
		}
	}
	return res
}
