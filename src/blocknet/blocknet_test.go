package blocknet

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/config"
	"github.com/mosaicnetworks/blocknet/src/net"
)

func newTestEngine(t *testing.T) (*Blocknet, *net.InmemTransport) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.SetDataDir(t.TempDir())
	conf.NoService = true

	_, trans := net.NewInmemTransport("")

	engine := NewBlocknet(conf)
	engine.Transport = trans

	return engine, trans
}

func TestInitWithoutGenesis(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.Init(); err == nil {
		t.Fatalf("Init should fail without block0 or genesis")
	}
}

func TestInitFromTrustedPeer(t *testing.T) {
	a, transA := newTestEngine(t)
	a.Config.Genesis = true

	if err := a.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	parent := a.Chain.Tip()
	for i := 0; i < 3; i++ {
		b := blockcfg.NewBlock(parent, [][]byte{[]byte(fmt.Sprintf("tx%d", i))}, time.Unix(int64(i+1), 0))
		if _, err := a.Chain.ApplyBlock(b); err != nil {
			t.Fatalf("err: %v", err)
		}
		parent = b.Header
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("err: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Run did not return")
		}
	}()

	b, transB := newTestEngine(t)
	transA.Connect(transB.LocalAddr(), transB)
	transB.Connect(transA.LocalAddr(), transA)

	b.Config.Block0 = a.Chain.Block0().String()
	b.Config.TrustedPeers = []string{fmt.Sprintf("%s@%s", a.Network.NodeID(), transA.LocalAddr())}

	if err := b.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	if b.Chain.Block0() != a.Chain.Block0() {
		t.Fatalf("block0 should be %s, not %s", a.Chain.Block0(), b.Chain.Block0())
	}
	if b.Chain.Tip().ComputeHash() != parent.ComputeHash() {
		t.Fatalf("tip should be %s, not %s", parent.ComputeHash(), b.Chain.Tip().ComputeHash())
	}
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()

	id, err := Keygen(dir)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !id.Valid() {
		t.Fatalf("invalid node id %s", id)
	}

	if _, err := Keygen(dir); err == nil {
		t.Fatalf("a second key should not overwrite the first one")
	}
}
