package peers

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mosaicnetworks/blocknet/src/crypto/keys"
)

// NodeID identifies a node. It is the hex encoded blake2b-256 digest of the
// node's public key.
type NodeID string

// NodeIDFromPublicKey derives the identity of the owner of pub.
func NodeIDFromPublicKey(pub *ecdsa.PublicKey) NodeID {
	return NodeID(keys.IdentityHex(pub))
}

// Valid reports whether id has the shape of a derived identity.
func (id NodeID) Valid() bool {
	if len(id) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(id))
	return err == nil && strings.ToLower(string(id)) == string(id)
}

func (id NodeID) String() string {
	return string(id)
}

// Short returns an abbreviated form for log output.
func (id NodeID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// Topic names a class of messages a node can subscribe to.
type Topic string

const (
	// BlocksTopic covers block announcements.
	BlocksTopic Topic = "blocks"
	// MessagesTopic covers fragments.
	MessagesTopic Topic = "messages"
)

// Interest is the level of interest of a node in a topic.
type Interest uint8

const (
	InterestNone Interest = iota
	InterestLow
	InterestNormal
	InterestHigh
)

// ParseInterest parses "none", "low", "normal" or "high".
func ParseInterest(s string) (Interest, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return InterestNone, nil
	case "low":
		return InterestLow, nil
	case "normal":
		return InterestNormal, nil
	case "high":
		return InterestHigh, nil
	default:
		return InterestNone, fmt.Errorf("unknown interest level %q", s)
	}
}

func (i Interest) String() string {
	switch i {
	case InterestNone:
		return "none"
	case InterestLow:
		return "low"
	case InterestNormal:
		return "normal"
	case InterestHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Subscriptions records the interest of a node in each topic.
type Subscriptions struct {
	Blocks   Interest
	Messages Interest
}

// Set updates the interest for topic.
func (s *Subscriptions) Set(topic Topic, interest Interest) error {
	switch topic {
	case BlocksTopic:
		s.Blocks = interest
	case MessagesTopic:
		s.Messages = interest
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}
	return nil
}

// Get returns the interest for topic.
func (s Subscriptions) Get(topic Topic) Interest {
	switch topic {
	case BlocksTopic:
		return s.Blocks
	case MessagesTopic:
		return s.Messages
	default:
		return InterestNone
	}
}

// Weight sums the interest levels, used to rank nodes.
func (s Subscriptions) Weight() int {
	return int(s.Blocks) + int(s.Messages)
}

// Node is the gossiped record of a node.
type Node struct {
	ID            NodeID
	Address       string
	Subscriptions Subscriptions
	LastSeen      time.Time
}

// NewNode returns a record for id, reachable at address if not empty.
func NewNode(id NodeID, address string) Node {
	return Node{
		ID:       id,
		Address:  address,
		LastSeen: time.Now(),
	}
}

// HasAddress reports whether the node accepts incoming connections.
func (n Node) HasAddress() bool {
	return n.Address != ""
}

// FresherThan reports whether n was seen strictly after other.
func (n Node) FresherThan(other Node) bool {
	return n.LastSeen.After(other.LastSeen)
}

func (n Node) String() string {
	if n.Address == "" {
		return n.ID.Short()
	}
	return fmt.Sprintf("%s@%s", n.ID.Short(), n.Address)
}

// TrustedPeer is the configuration form of a trusted node.
type TrustedPeer struct {
	ID      NodeID `json:"id" mapstructure:"id"`
	Address string `json:"address" mapstructure:"address"`
}

// Node converts the configuration entry into a record.
func (tp TrustedPeer) Node() Node {
	return NewNode(tp.ID, tp.Address)
}
