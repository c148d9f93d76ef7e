package net

import (
	"testing"

	"github.com/mosaicnetworks/blocknet/src/common"
)

func TestTCPTransport_BadAddr(t *testing.T) {
	trans, err := NewTCPTransport("0.0.0.0:0", "", 1, 0, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	err = trans.Listen()
	lerr, ok := err.(*ListenError)
	if !ok || lerr.Err != errNotAdvertisable {
		t.Fatalf("expected not advertisable listen error, got %v", err)
	}
}

func TestTCPTransport_WithAdvertise(t *testing.T) {
	trans, err := NewTCPTransport("0.0.0.0:0", "127.0.0.1:12345", 1, 0, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	if err := trans.Bind(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if trans.AdvertiseAddr() != "127.0.0.1:12345" {
		t.Fatalf("bad: %v", trans.AdvertiseAddr())
	}
}

func TestTCPTransport_BindFailure(t *testing.T) {
	first, err := NewTCPTransport("127.0.0.1:0", "", 1, 0, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer first.Close()
	if err := first.Bind(); err != nil {
		t.Fatalf("err: %v", err)
	}

	second, err := NewTCPTransport(first.LocalAddr(), "", 1, 0, 0, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer second.Close()

	if _, ok := second.Listen().(*ListenError); !ok {
		t.Fatalf("binding a used address should fail with a ListenError")
	}
}
