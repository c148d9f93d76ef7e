package net

import (
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocknet/src/peers"
)

func TestWireNodeZeroLastSeen(t *testing.T) {
	id := peers.NodeID(fmt.Sprintf("%064x", 1))
	unseen := peers.Node{ID: id, Address: "10.0.0.1:1337"}

	wire := ToWireNodes([]peers.Node{unseen})
	if wire[0].LastSeen != 0 {
		t.Fatalf("unseen node should be encoded as 0, got %d", wire[0].LastSeen)
	}
	if back := wire[0].Node(); !back.LastSeen.IsZero() {
		t.Fatalf("unseen node should decode to the zero time, got %v", back.LastSeen)
	}
}

func TestWireNodeLastSeen(t *testing.T) {
	id := peers.NodeID(fmt.Sprintf("%064x", 2))
	seen := peers.Node{
		ID:            id,
		Address:       "10.0.0.2:1337",
		Subscriptions: peers.Subscriptions{Blocks: peers.InterestHigh},
		LastSeen:      time.Unix(1700000000, 42),
	}

	back := ToWireNodes([]peers.Node{seen})[0].Node()
	if !back.LastSeen.Equal(seen.LastSeen) {
		t.Fatalf("expected %v, got %v", seen.LastSeen, back.LastSeen)
	}
	if back.Subscriptions.Blocks != peers.InterestHigh {
		t.Fatalf("unexpected subscriptions %v", back.Subscriptions)
	}
}
