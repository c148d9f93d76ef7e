package blockchain

import (
	"fmt"
	"testing"
	"time"

	cm "github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

func newTestChain(t *testing.T, store Store, length int) (*Blockchain, []blockcfg.Block) {
	genesis := blockcfg.NewGenesis([][]byte{[]byte("genesis")}, time.Unix(0, 0))
	chain, err := NewBlockchain(store, genesis)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	blocks := []blockcfg.Block{genesis}
	for i := 1; i <= length; i++ {
		b := blockcfg.NewBlock(blocks[i-1].Header, [][]byte{[]byte(fmt.Sprintf("tx%d", i))}, time.Unix(int64(i), 0))
		moved, err := chain.ApplyBlock(b)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if !moved {
			t.Fatalf("block %d should move the tip", i)
		}
		blocks = append(blocks, b)
	}
	return chain, blocks
}

func TestApplyBlock(t *testing.T) {
	chain, blocks := newTestChain(t, NewInmemStore(), 3)

	if chain.Tip().Hash != blocks[3].Hash() {
		t.Fatalf("tip should be the last block")
	}

	moved, err := chain.ApplyBlock(blocks[2])
	if err != nil || moved {
		t.Fatalf("re-applying a block should be a no-op, got %v %v", moved, err)
	}

	orphanParent := blockcfg.NewBlock(blocks[3].Header, [][]byte{[]byte("a")}, time.Unix(10, 0))
	orphan := blockcfg.NewBlock(orphanParent.Header, [][]byte{[]byte("b")}, time.Unix(11, 0))
	if _, err := chain.ApplyBlock(orphan); !cm.IsStore(err, cm.MissingParent) {
		t.Fatalf("expected MissingParent, got %v", err)
	}

	fork := blockcfg.NewBlock(blocks[1].Header, [][]byte{[]byte("fork")}, time.Unix(20, 0))
	moved, err = chain.ApplyBlock(fork)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if moved {
		t.Fatalf("a shorter fork should not move the tip")
	}

	tampered := blockcfg.NewBlock(blocks[3].Header, [][]byte{[]byte("x")}, time.Unix(30, 0))
	tampered.Contents = [][]byte{[]byte("y")}
	if _, err := chain.ApplyBlock(tampered); err != blockcfg.ErrHashMismatch {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
}

func TestBlocksToTip(t *testing.T) {
	chain, blocks := newTestChain(t, NewInmemStore(), 5)

	got, err := chain.BlocksToTip([]blockcfg.HeaderHash{blocks[2].Hash()}, 0)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 3 || got[0].Hash() != blocks[3].Hash() || got[2].Hash() != blocks[5].Hash() {
		t.Fatalf("unexpected blocks %v", got)
	}

	got, err = chain.BlocksToTip(nil, 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 2 || got[0].Hash() != blocks[1].Hash() {
		t.Fatalf("unknown checkpoints should start after block0, got %v", got)
	}

	got, err = chain.BlocksToTip([]blockcfg.HeaderHash{blocks[5].Hash()}, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("nothing should follow the tip, got %v %v", got, err)
	}
}

func TestHeaders(t *testing.T) {
	chain, blocks := newTestChain(t, NewInmemStore(), 4)

	headers, err := chain.Headers([]blockcfg.HeaderHash{blocks[1].Hash()}, blocks[3].Hash())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(headers) != 2 || headers[0] != blocks[2].Header || headers[1] != blocks[3].Header {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestCheckpoints(t *testing.T) {
	chain, blocks := newTestChain(t, NewInmemStore(), 10)

	cps := chain.Checkpoints()
	if cps[0] != blocks[10].Hash() {
		t.Fatalf("first checkpoint should be the tip")
	}
	if cps[len(cps)-1] != blocks[0].Hash() {
		t.Fatalf("last checkpoint should be block0")
	}
	if len(cps) >= 10 {
		t.Fatalf("checkpoints should be sparse, got %d", len(cps))
	}
}

func TestBlock0Mismatch(t *testing.T) {
	store := NewInmemStore()
	newTestChain(t, store, 1)

	other := blockcfg.NewGenesis([][]byte{[]byte("other")}, time.Unix(0, 0))
	if _, err := NewBlockchain(store, other); err != ErrBlock0Mismatch {
		t.Fatalf("expected ErrBlock0Mismatch, got %v", err)
	}
}

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir, 2, cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	_, blocks := newTestChain(t, store, 4)

	if err := store.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	store, err = NewBadgerStore(dir, 2, cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer store.Close()

	chain, err := LoadBlockchain(store)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if chain.Block0() != blocks[0].Hash() {
		t.Fatalf("block0 not persisted")
	}
	if chain.Tip().Hash != blocks[4].Hash() {
		t.Fatalf("tip not persisted")
	}

	got, err := chain.GetBlocks([]blockcfg.HeaderHash{blocks[1].Hash(), blocks[3].Hash()})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got[0].Hash() != blocks[1].Hash() || string(got[1].Contents[0]) != "tx3" {
		t.Fatalf("unexpected blocks %v", got)
	}

	if _, err := store.GetBlock(blockcfg.HeaderHash{9}); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestLoadEmptyStore(t *testing.T) {
	if _, err := LoadBlockchain(NewInmemStore()); !cm.IsStore(err, cm.Empty) {
		t.Fatalf("expected Empty, got %v", err)
	}
}
