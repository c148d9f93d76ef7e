package net

import (
	"github.com/ugorji/go/codec"
)

// msgpackHandle returns the codec handle used for everything sent on the
// wire.
func msgpackHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.RawToString = true
	h.WriteExt = true
	return h
}
