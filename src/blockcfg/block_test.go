package blockcfg

import (
	"testing"
	"time"
)

func TestBlockChainLink(t *testing.T) {
	genesis := NewGenesis([][]byte{[]byte("initial")}, time.Unix(0, 0))

	if !genesis.Header.IsGenesis() {
		t.Fatalf("genesis header should be recognised as genesis")
	}

	if err := genesis.Verify(); err != nil {
		t.Fatalf("err: %v", err)
	}

	next := NewBlock(genesis.Header, [][]byte{[]byte("tx1"), []byte("tx2")}, time.Unix(10, 0))

	if next.Header.Parent != genesis.Hash() {
		t.Fatalf("parent should be %s, not %s", genesis.Hash(), next.Header.Parent)
	}

	if next.Header.ChainLength != 1 {
		t.Fatalf("chain length should be 1, not %d", next.Header.ChainLength)
	}

	if next.Hash() == genesis.Hash() {
		t.Fatalf("blocks should not share a hash")
	}
}

func TestBlockVerifyTampered(t *testing.T) {
	b := NewGenesis([][]byte{[]byte("a")}, time.Unix(1, 0))
	b.Contents[0] = []byte("b")

	if err := b.Verify(); err != ErrHashMismatch {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
}

func TestHeaderHashText(t *testing.T) {
	b := NewGenesis(nil, time.Unix(2, 0))

	text, err := b.Hash().MarshalText()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	var h HeaderHash
	if err := h.UnmarshalText(append([]byte("0x"), text...)); err != nil {
		t.Fatalf("err: %v", err)
	}

	if h != b.Hash() {
		t.Fatalf("hash should round-trip through text")
	}

	if _, err := ParseHeaderHash("abcd"); err == nil {
		t.Fatalf("short hash should be rejected")
	}
}

func TestFragmentID(t *testing.T) {
	f1 := NewFragment([]byte("payload"))
	f2 := NewFragment([]byte("payload"))
	f3 := NewFragment([]byte("other"))

	if f1.ID != f2.ID {
		t.Fatalf("identical payloads should share an id")
	}

	if f1.ID == f3.ID {
		t.Fatalf("different payloads should not share an id")
	}
}
