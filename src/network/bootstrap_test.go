package network

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/blockchain"
	"github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/net"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

type fakeSource struct {
	blocks   []blockcfg.Block
	fail     map[string]error
	attempts []string
}

func (s *fakeSource) PullBlocksToTip(target string, from []blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	s.attempts = append(s.attempts, target)
	if err, ok := s.fail[target]; ok {
		return nil, err
	}
	return s.blocks, nil
}

func (s *fakeSource) GetBlocks(target string, ids []blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	s.attempts = append(s.attempts, target)
	if err, ok := s.fail[target]; ok {
		return nil, err
	}
	res := []blockcfg.Block{}
	for _, b := range s.blocks {
		for _, id := range ids {
			if b.Hash() == id {
				res = append(res, b)
			}
		}
	}
	return res, nil
}

func keepPeerOrder(t *testing.T) {
	orig := shufflePeers
	shufflePeers = func(trusted []peers.TrustedPeer) []peers.TrustedPeer {
		return trusted
	}
	t.Cleanup(func() {
		shufflePeers = orig
	})
}

func testChain(n int) []blockcfg.Block {
	res := []blockcfg.Block{}
	parent := testGenesis.Header
	for i := 0; i < n; i++ {
		b := blockcfg.NewBlock(parent, [][]byte{[]byte(fmt.Sprintf("tx%d", i))}, time.Unix(int64(i+1), 0))
		res = append(res, b)
		parent = b.Header
	}
	return res
}

func trustedConfig(addrs ...string) Config {
	conf := DefaultConfig()
	for _, a := range addrs {
		conf.TrustedPeers = append(conf.TrustedPeers, peers.TrustedPeer{Address: a})
	}
	return conf
}

func newTestChain(t *testing.T) *blockchain.Blockchain {
	chain, err := blockchain.NewBlockchain(blockchain.NewInmemStore(), testGenesis)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return chain
}

func TestBootstrapStopsAtFirstSuccess(t *testing.T) {
	keepPeerOrder(t)

	blocks := testChain(3)
	source := &fakeSource{
		blocks: blocks,
		fail: map[string]error{
			"A": &net.ConnectError{Target: "A", Err: errors.New("connection refused")},
		},
	}
	chain := newTestChain(t)

	ok := Bootstrap(trustedConfig("A", "B", "C"), source, chain, common.NewTestEntry(t, common.TestLogLevel))
	if !ok {
		t.Fatalf("bootstrap should succeed")
	}

	if !reflect.DeepEqual(source.attempts, []string{"A", "B"}) {
		t.Fatalf("attempts should be [A B], not %v", source.attempts)
	}

	if tip := chain.Tip().ComputeHash(); tip != blocks[2].Hash() {
		t.Fatalf("tip should be %s, not %s", blocks[2].Hash(), tip)
	}
}

func TestBootstrapAllPeersFail(t *testing.T) {
	keepPeerOrder(t)

	source := &fakeSource{
		fail: map[string]error{
			"A": &net.ConnectError{Target: "A", Err: errors.New("timeout")},
			"B": errors.New("broken pipe"),
		},
	}

	if Bootstrap(trustedConfig("A", "B"), source, newTestChain(t), common.NewTestEntry(t, common.TestLogLevel)) {
		t.Fatalf("bootstrap should fail")
	}
	if len(source.attempts) != 2 {
		t.Fatalf("every peer should be tried once, got %v", source.attempts)
	}

	if Bootstrap(DefaultConfig(), source, newTestChain(t), common.NewTestEntry(t, common.TestLogLevel)) {
		t.Fatalf("bootstrap without trusted peers should fail")
	}
}

func TestBootstrapErrorKinds(t *testing.T) {
	blocks := testChain(2)

	source := &fakeSource{
		fail: map[string]error{
			"A": &net.ConnectError{Target: "A", Err: errors.New("timeout")},
			"B": errors.New("broken pipe"),
		},
	}

	if err := bootstrapFrom("A", source, newTestChain(t)); !IsBootstrapErr(err, Connect) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if err := bootstrapFrom("B", source, newTestChain(t)); !IsBootstrapErr(err, Transport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	// Orphan block: its parent is not sent.
	source.blocks = blocks[1:]
	err := bootstrapFrom("C", source, newTestChain(t))
	if !IsBootstrapErr(err, Apply) {
		t.Fatalf("expected apply error, got %v", err)
	}
	if !common.IsStore(err, common.MissingParent) {
		t.Fatalf("apply error should wrap the store error, got %v", err)
	}
}

func TestFetchBlock(t *testing.T) {
	keepPeerOrder(t)

	logger := common.NewTestEntry(t, common.TestLogLevel)
	blocks := testChain(2)
	target := blocks[1].Hash()

	source := &fakeSource{}
	if _, err := FetchBlock(DefaultConfig(), source, target, logger); err != ErrNoTrustedPeers {
		t.Fatalf("expected ErrNoTrustedPeers, got %v", err)
	}
	if len(source.attempts) != 0 {
		t.Fatalf("no peer should be contacted, got %v", source.attempts)
	}

	source = &fakeSource{
		fail: map[string]error{
			"A": errors.New("timeout"),
			"B": errors.New("timeout"),
			"C": errors.New("timeout"),
		},
	}
	_, err := FetchBlock(trustedConfig("A", "B", "C"), source, target, logger)
	var cerr CouldNotDownloadBlockErr
	if !errors.As(err, &cerr) || cerr.Block != target {
		t.Fatalf("expected CouldNotDownloadBlockErr, got %v", err)
	}
	if !reflect.DeepEqual(source.attempts, []string{"A", "B", "C"}) {
		t.Fatalf("attempts should be [A B C], not %v", source.attempts)
	}

	source = &fakeSource{
		blocks: blocks,
		fail: map[string]error{
			"A": errors.New("timeout"),
		},
	}
	block, err := FetchBlock(trustedConfig("A", "B", "C"), source, target, logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if block.Hash() != target {
		t.Fatalf("fetched block should be %s, not %s", target, block.Hash())
	}
	if !reflect.DeepEqual(source.attempts, []string{"A", "B"}) {
		t.Fatalf("attempts should be [A B], not %v", source.attempts)
	}
}
