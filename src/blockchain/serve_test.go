package blockchain

import (
	"context"
	"testing"
	"time"

	cm "github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/intercom"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

func startServe(t *testing.T, chain *Blockchain) (intercom.Channels, chan intercom.NetworkMsg, context.CancelFunc) {
	channels := intercom.NewChannels()
	netMsgs := make(chan intercom.NetworkMsg, 16)
	ctx, cancel := context.WithCancel(context.Background())

	go Serve(ctx, chain, NewFragmentPool(0), channels, netMsgs, cm.NewTestEntry(t, cm.TestLogLevel))

	return channels, netMsgs, cancel
}

func nextNetworkMsg(t *testing.T, netMsgs chan intercom.NetworkMsg) intercom.NetworkMsg {
	select {
	case msg := <-netMsgs:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timeout")
		return nil
	}
}

func TestServeClientRequests(t *testing.T) {
	chain, blocks := newTestChain(t, NewInmemStore(), 3)
	channels, _, cancel := startServe(t, chain)
	defer cancel()

	reply := intercom.NewBlocksReply()
	channels.ClientBox <- intercom.GetBlocksToTip{From: []blockcfg.HeaderHash{blocks[1].Hash()}, Limit: 32, Reply: reply}

	select {
	case r := <-reply:
		if r.Err != nil || len(r.Blocks) != 2 {
			t.Fatalf("unexpected reply %v", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
}

func TestServeAppliesAndPropagates(t *testing.T) {
	chain, blocks := newTestChain(t, NewInmemStore(), 1)
	channels, netMsgs, cancel := startServe(t, chain)
	defer cancel()

	from := peers.NodeID("aa")
	next := blockcfg.NewBlock(blocks[1].Header, nil, time.Unix(5, 0))

	channels.BlockBox <- intercom.AnnouncedHeader{Header: next.Header, From: from}
	msg := nextNetworkMsg(t, netMsgs)
	get, ok := msg.(intercom.GetNextBlock)
	if !ok || get.ID != next.Hash() || get.NodeID != from {
		t.Fatalf("expected GetNextBlock, got %#v", msg)
	}

	channels.BlockBox <- intercom.NetworkBlock{Block: next, From: from}
	msg = nextNetworkMsg(t, netMsgs)
	prop, ok := msg.(intercom.PropagateBlock)
	if !ok || prop.Header.Hash != next.Hash() {
		t.Fatalf("expected PropagateBlock, got %#v", msg)
	}
	if chain.Tip().Hash != next.Hash() {
		t.Fatalf("tip should move")
	}

	fragment := blockcfg.NewFragment([]byte("tx"))
	channels.TransactionBox <- intercom.TransactionMsg{Fragments: []blockcfg.Fragment{fragment, fragment}, From: from}
	msg = nextNetworkMsg(t, netMsgs)
	if pf, ok := msg.(intercom.PropagateFragment); !ok || pf.Fragment.ID != fragment.ID {
		t.Fatalf("expected PropagateFragment, got %#v", msg)
	}

	select {
	case msg := <-netMsgs:
		t.Fatalf("duplicate fragment should not be propagated, got %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
