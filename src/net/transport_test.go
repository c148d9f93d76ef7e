package net

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/crypto/keys"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport("")
		return it
	case TCP:
		tt, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, 2*time.Second, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		if err := tt.Bind(); err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

// connectTestTransports makes trans2 able to reach trans1.
func connectTestTransports(trans1, trans2 Transport) {
	if it1, ok := trans1.(*InmemTransport); ok {
		it2 := trans2.(*InmemTransport)
		it1.Connect(it2.LocalAddr(), it2)
		it2.Connect(it1.LocalAddr(), it1)
	}
}

func newTestHandshake(t *testing.T, block0 blockcfg.HeaderHash) *Handshake {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return NewHandshake(key, block0, "")
}

// serve answers handshakes with hs and records the other requests.
func serve(t *testing.T, trans Transport, hs *Handshake, blocks []blockcfg.Block, received chan<- interface{}) {
	for rpc := range trans.Consumer() {
		switch cmd := rpc.Command.(type) {
		case *HandshakeRequest:
			resp, err := hs.Answer(cmd)
			rpc.Respond(resp, err)
		case *GossipRequest, *BlockAnnouncementRequest, *FragmentRequest:
			received <- cmd
			rpc.Respond(&AckResponse{FromID: hs.NodeID(), Success: true}, nil)
		case *GetBlocksRequest:
			received <- cmd
			rpc.Respond(&BlocksResponse{FromID: hs.NodeID(), Blocks: blocks}, nil)
		case *PullHeadersRequest:
			received <- cmd
			headers := []blockcfg.Header{}
			for _, b := range blocks {
				headers = append(headers, b.Header)
			}
			rpc.Respond(&HeadersResponse{FromID: hs.NodeID(), Headers: headers}, nil)
		default:
			t.Errorf("unexpected command %T", cmd)
			rpc.Respond(nil, nil)
		}
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_DialAndExchange(t *testing.T) {
	genesis := blockcfg.NewGenesis([][]byte{[]byte("genesis")}, time.Unix(1, 0))
	next := blockcfg.NewBlock(genesis.Header, [][]byte{[]byte("tx")}, time.Unix(2, 0))
	chain := []blockcfg.Block{genesis, next}

	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, t)
		trans2 := NewTestTransport(ttype, t)
		connectTestTransports(trans1, trans2)

		remote := newTestHandshake(t, genesis.Hash())
		local := newTestHandshake(t, genesis.Hash())

		received := make(chan interface{}, 8)
		go serve(t, trans1, remote, chain, received)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		client, err := Dial(ctx, trans2, trans1.AdvertiseAddr(), local)
		cancel()
		if err != nil {
			t.Fatalf("dial: %v", err)
		}

		if client.RemoteNodeID() != remote.NodeID() {
			t.Fatalf("expected remote id %s, got %s", remote.NodeID(), client.RemoteNodeID())
		}

		node := peers.NewNode(local.NodeID(), "127.0.0.1:7000")
		node.Subscriptions.Blocks = peers.InterestHigh
		if err := client.SendGossip(peers.NewGossip(node)); err != nil {
			t.Fatalf("gossip: %v", err)
		}

		select {
		case cmd := <-received:
			req := cmd.(*GossipRequest)
			got := req.Gossip()
			if req.FromID != local.NodeID() || got.Len() != 1 {
				t.Fatalf("unexpected gossip request %#v", req)
			}
			n := got.Nodes[0]
			if n.ID != node.ID || n.Address != node.Address || n.Subscriptions != node.Subscriptions || !n.LastSeen.Equal(node.LastSeen) {
				t.Fatalf("gossip mismatch: %#v %#v", n, node)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout")
		}

		blocks, err := client.SolicitBlocks([]blockcfg.HeaderHash{next.Hash()})
		if err != nil {
			t.Fatalf("solicit: %v", err)
		}
		<-received
		if !reflect.DeepEqual(blocks, chain) {
			t.Fatalf("blocks mismatch: %#v %#v", blocks, chain)
		}

		headers, err := client.PullHeaders([]blockcfg.HeaderHash{genesis.Hash()}, next.Hash())
		if err != nil {
			t.Fatalf("pull headers: %v", err)
		}
		<-received
		if len(headers) != 2 || headers[1] != next.Header {
			t.Fatalf("unexpected headers %#v", headers)
		}

		client.Close()
		if err := client.SendBlockAnnouncement(next.Header); err != ErrClientClosed {
			t.Fatalf("expected ErrClientClosed, got %v", err)
		}

		trans2.Close()
		trans1.Close()
	}
}

func TestTransport_Block0Mismatch(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, t)
		trans2 := NewTestTransport(ttype, t)
		connectTestTransports(trans1, trans2)

		remote := newTestHandshake(t, blockcfg.HeaderHash{1})
		local := newTestHandshake(t, blockcfg.HeaderHash{2})

		go serve(t, trans1, remote, nil, make(chan interface{}, 1))

		_, err := Dial(context.Background(), trans2, trans1.AdvertiseAddr(), local)
		if err == nil {
			t.Fatalf("dial across networks should fail")
		}

		trans2.Close()
		trans1.Close()
	}
}

func TestTransport_ConnectError(t *testing.T) {
	_, trans := NewInmemTransport("")
	hs := newTestHandshake(t, blockcfg.HeaderHash{})

	_, err := Dial(context.Background(), trans, "nowhere", hs)
	if !IsConnectError(err) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}

func TestTransport_DialTimeout(t *testing.T) {
	_, trans1 := NewInmemTransport("")
	_, trans2 := NewInmemTransport("")
	connectTestTransports(trans1, trans2)

	// Nobody consumes trans1's requests.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, trans2, trans1.LocalAddr(), newTestHandshake(t, blockcfg.HeaderHash{}))
	if !IsConnectError(err) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
}
