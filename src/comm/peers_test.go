package comm

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

func testID(i int) peers.NodeID {
	return peers.NodeID(fmt.Sprintf("%064x", i))
}

func newTestPeers(t *testing.T, max int) (*Peers, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewPeers(max, common.NewTestEntry(t, common.TestLogLevel), metrics), metrics
}

func TestInsertPeerSupersedes(t *testing.T) {
	p, metrics := newTestPeers(t, 4)

	first := NewPeerComms("127.0.0.1:1")
	second := NewPeerComms("127.0.0.1:1")

	p.InsertPeer(testID(1), first)
	p.InsertPeer(testID(1), second)

	if p.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", p.Len())
	}
	if !first.IsClosed() {
		t.Fatalf("superseded handle should be closed")
	}
	if second.IsClosed() {
		t.Fatalf("new handle should be live")
	}
	got, ok := p.Get(testID(1))
	if !ok || got != second {
		t.Fatalf("registry should hold the new handle")
	}

	if v := testutil.ToFloat64(metrics.evicted.WithLabelValues(ReasonSuperseded)); v != 1 {
		t.Fatalf("expected 1 superseded eviction, got %v", v)
	}

	// Re-inserting the same handle is a no-op.
	p.InsertPeer(testID(1), second)
	if second.IsClosed() {
		t.Fatalf("re-inserting the same handle should not close it")
	}
}

func TestInsertPeerEvictsLRU(t *testing.T) {
	p, metrics := newTestPeers(t, 3)

	handles := []*PeerComms{}
	for i := 0; i < 3; i++ {
		h := NewPeerComms("")
		handles = append(handles, h)
		p.InsertPeer(testID(i), h)
	}

	// Touch 0 so that 1 becomes the least recently used.
	if _, ok := p.Get(testID(0)); !ok {
		t.Fatalf("peer 0 missing")
	}

	p.InsertPeer(testID(3), NewPeerComms(""))

	if p.Len() != 3 {
		t.Fatalf("registry should stay at capacity, got %d", p.Len())
	}
	if _, ok := p.Get(testID(1)); ok {
		t.Fatalf("least recently used peer should be evicted")
	}
	if !handles[1].IsClosed() {
		t.Fatalf("evicted handle should be closed")
	}
	if handles[0].IsClosed() || handles[2].IsClosed() {
		t.Fatalf("other handles should be live")
	}
	if v := testutil.ToFloat64(metrics.connected); v != 3 {
		t.Fatalf("expected gauge at 3, got %v", v)
	}
}

func TestRemovePeer(t *testing.T) {
	p, _ := newTestPeers(t, 0)

	h := NewPeerComms("")
	p.InsertPeer(testID(1), h)

	other := NewPeerComms("")
	if p.RemovePeerIf(testID(1), other) {
		t.Fatalf("should not remove a different handle")
	}

	got, ok := p.RemovePeer(testID(1))
	if !ok || got != h {
		t.Fatalf("RemovePeer should return the handle")
	}
	if h.IsClosed() {
		t.Fatalf("RemovePeer should not close the handle")
	}
	if _, ok := p.RemovePeer(testID(1)); ok {
		t.Fatalf("second removal should find nothing")
	}
}

func TestPropagateReturnsUnreached(t *testing.T) {
	p, metrics := newTestPeers(t, 0)

	live := NewPeerComms("")
	closed := NewPeerComms("")
	p.InsertPeer(testID(1), live)
	p.InsertPeer(testID(2), closed)
	closed.Close()

	nodes := []peers.Node{
		{ID: testID(1)},
		{ID: testID(2)},
		{ID: testID(3)},
	}

	header := blockcfg.NewGenesis(nil, time.Unix(0, 0)).Header
	unreached := p.PropagateBlock(nodes, header)

	if len(unreached) != 2 || unreached[0].ID != testID(2) || unreached[1].ID != testID(3) {
		t.Fatalf("unexpected unreached set %v", unreached)
	}

	select {
	case got := <-live.BlockAnnouncements():
		if got.Hash != header.Hash {
			t.Fatalf("wrong header delivered")
		}
	default:
		t.Fatalf("live peer should have received the announcement")
	}

	if _, ok := p.Get(testID(2)); ok {
		t.Fatalf("closed handle should be removed")
	}

	if v := testutil.ToFloat64(metrics.propagation.WithLabelValues(kindBlock, ResultUnreached)); v != 2 {
		t.Fatalf("expected 2 unreached, got %v", v)
	}
}

func TestPropagateFullQueueIsReached(t *testing.T) {
	p, _ := newTestPeers(t, 0)

	h := NewPeerCommsSize("", 1)
	p.InsertPeer(testID(1), h)

	nodes := []peers.Node{{ID: testID(1)}}
	fragment := blockcfg.NewFragment([]byte("tx"))

	if unreached := p.PropagateFragment(nodes, fragment); len(unreached) != 0 {
		t.Fatalf("first fragment should be delivered")
	}
	if unreached := p.PropagateFragment(nodes, fragment); len(unreached) != 0 {
		t.Fatalf("full queue should not report the peer unreached")
	}
	if _, ok := p.Get(testID(1)); !ok {
		t.Fatalf("handle with full queue should stay registered")
	}
	if err := h.TrySendFragment(fragment); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPeerUnknown(t *testing.T) {
	p, _ := newTestPeers(t, 0)

	err := p.SolicitBlocks(testID(9), nil)
	if !IsPeerErr(err, PeerUnknown) {
		t.Fatalf("expected PeerUnknown, got %v", err)
	}

	err = p.PullHeaders(testID(9), nil, blockcfg.HeaderHash{})
	if !IsPeerErr(err, PeerUnknown) {
		t.Fatalf("expected PeerUnknown, got %v", err)
	}

	err = p.PropagateGossipTo(testID(9), peers.Gossip{})
	if !IsPeerErr(err, PeerUnknown) {
		t.Fatalf("expected PeerUnknown, got %v", err)
	}

	if err := p.FetchBlocks(nil); !IsPeerErr(err, NoPeers) {
		t.Fatalf("expected NoPeers, got %v", err)
	}
}

func TestFetchBlocksUsesMostRecentPeer(t *testing.T) {
	p, _ := newTestPeers(t, 0)

	a := NewPeerComms("")
	b := NewPeerComms("")
	p.InsertPeer(testID(1), a)
	p.InsertPeer(testID(2), b)
	p.Get(testID(1))

	ids := []blockcfg.HeaderHash{{1}}
	if err := p.FetchBlocks(ids); err != nil {
		t.Fatalf("err: %v", err)
	}

	select {
	case got := <-a.BlockSolicitations():
		if len(got) != 1 || got[0] != ids[0] {
			t.Fatalf("unexpected solicitation %v", got)
		}
	default:
		t.Fatalf("most recently used peer should be asked")
	}
	if len(b.BlockSolicitations()) != 0 {
		t.Fatalf("other peer should not be asked")
	}
}

func TestStats(t *testing.T) {
	p, _ := newTestPeers(t, 0)

	h := NewPeerComms("127.0.0.1:5000")
	h.MarkEstablished()
	p.InsertPeer(testID(1), h)

	if err := p.PropagateGossipTo(testID(1), peers.Gossip{}); err != nil {
		t.Fatalf("err: %v", err)
	}

	stats := p.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat, got %d", len(stats))
	}
	s := stats[0]
	if s.NodeID != testID(1) || s.Address != "127.0.0.1:5000" || s.GossipSent != 1 {
		t.Fatalf("unexpected stat %+v", s)
	}
	if s.EstablishedAt.IsZero() {
		t.Fatalf("established time should be set")
	}
}

func TestConcurrentInsertKeepsOneLiveHandle(t *testing.T) {
	p, _ := newTestPeers(t, 4)

	handles := make([]*PeerComms, 32)
	for i := range handles {
		handles[i] = NewPeerComms("127.0.0.1:1")
	}

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *PeerComms) {
			defer wg.Done()
			p.InsertPeer(testID(1), h)
		}(h)
	}
	wg.Wait()

	if p.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", p.Len())
	}

	current, ok := p.Get(testID(1))
	if !ok {
		t.Fatalf("entry should be registered")
	}

	open := 0
	for _, h := range handles {
		if !h.IsClosed() {
			open++
			if h != current {
				t.Fatalf("an open handle is not the registered one")
			}
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly 1 open handle, got %d", open)
	}
}
