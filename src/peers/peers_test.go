package peers

import (
	"strings"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocknet/src/crypto/keys"
)

func newTestID(t *testing.T) NodeID {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return NodeIDFromPublicKey(&key.PublicKey)
}

func TestNodeIDValid(t *testing.T) {
	id := newTestID(t)

	if !id.Valid() {
		t.Fatalf("derived id %s should be valid", id)
	}

	invalid := []NodeID{"", "abc", NodeID(strings.ToUpper(string(id))), NodeID(strings.Repeat("z", 64))}
	for _, bad := range invalid {
		if bad.Valid() {
			t.Fatalf("%q should not be valid", bad)
		}
	}
}

func TestParseInterest(t *testing.T) {
	cases := map[string]Interest{
		"none":   InterestNone,
		"low":    InterestLow,
		"Normal": InterestNormal,
		" high ": InterestHigh,
	}
	for s, want := range cases {
		got, err := ParseInterest(s)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if got != want {
			t.Fatalf("%q: expected %v, got %v", s, want, got)
		}
	}

	if _, err := ParseInterest("extreme"); err == nil {
		t.Fatalf("unknown level should fail")
	}
}

func TestSubscriptions(t *testing.T) {
	var s Subscriptions

	if err := s.Set(BlocksTopic, InterestHigh); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := s.Set(MessagesTopic, InterestLow); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := s.Set(Topic("votes"), InterestLow); err == nil {
		t.Fatalf("unknown topic should fail")
	}

	if s.Get(BlocksTopic) != InterestHigh || s.Get(MessagesTopic) != InterestLow {
		t.Fatalf("unexpected subscriptions %+v", s)
	}

	if s.Weight() != int(InterestHigh)+int(InterestLow) {
		t.Fatalf("unexpected weight %d", s.Weight())
	}
}

func TestViewHelpers(t *testing.T) {
	a := NewNode(newTestID(t), "127.0.0.1:1")
	b := NewNode(newTestID(t), "")
	v := View{a, b}

	if got := v.Addresses(); len(got) != 1 || got[0] != a.Address {
		t.Fatalf("unexpected addresses %v", got)
	}

	if _, ok := v.Find(b.ID); !ok {
		t.Fatalf("b should be found")
	}

	if rest := Exclude(v, a.ID); len(rest) != 1 || rest[0].ID != b.ID {
		t.Fatalf("unexpected exclusion result %v", rest)
	}

	older := a
	older.LastSeen = a.LastSeen.Add(-time.Minute)
	if !a.FresherThan(older) || older.FresherThan(a) {
		t.Fatalf("freshness comparison is wrong")
	}
}

func TestJSONPeers(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONPeers(dir)

	trusted, err := store.TrustedPeers()
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if len(trusted) != 0 {
		t.Fatalf("expected no peers, got %d", len(trusted))
	}

	want := []TrustedPeer{
		{ID: newTestID(t), Address: "127.0.0.1:3000"},
		{ID: newTestID(t), Address: "127.0.0.1:3001"},
	}

	if err := store.Write(want); err != nil {
		t.Fatalf("err: %v", err)
	}

	got, err := store.TrustedPeers()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d peers, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("peer %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	if err := store.Write([]TrustedPeer{{ID: "nope", Address: "x"}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := store.TrustedPeers(); err == nil {
		t.Fatalf("invalid id should be rejected")
	}
}
