package blockcfg

import (
	"encoding/binary"
	"errors"
	"time"
)

// ErrHashMismatch is returned by Verify when a header hash does not match the
// header fields.
var ErrHashMismatch = errors.New("header hash does not match header contents")

// Header is the part of a block that is announced to peers.
type Header struct {
	Hash        HeaderHash
	Parent      HeaderHash
	ChainLength uint64
	Date        int64
	ContentHash HeaderHash
}

// Block is a header plus its raw contents.
type Block struct {
	Header   Header
	Contents [][]byte
}

// NewGenesis creates the first block of a chain. Its hash is the block0 hash
// used to tell networks apart.
func NewGenesis(contents [][]byte, date time.Time) Block {
	return newBlock(HeaderHash{}, 0, contents, date)
}

// NewBlock creates a block on top of parent.
func NewBlock(parent Header, contents [][]byte, date time.Time) Block {
	return newBlock(parent.Hash, parent.ChainLength+1, contents, date)
}

func newBlock(parent HeaderHash, length uint64, contents [][]byte, date time.Time) Block {
	h := Header{
		Parent:      parent,
		ChainLength: length,
		Date:        date.UnixNano(),
		ContentHash: contentHash(contents),
	}
	h.Hash = h.ComputeHash()
	return Block{Header: h, Contents: contents}
}

// ComputeHash hashes the header fields, excluding Hash itself.
func (h Header) ComputeHash() HeaderHash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], h.ChainLength)
	binary.BigEndian.PutUint64(buf[8:], uint64(h.Date))
	return HeaderHash(sum256(h.Parent[:], buf[:], h.ContentHash[:]))
}

// IsGenesis reports whether h is the header of a first block.
func (h Header) IsGenesis() bool {
	return h.ChainLength == 0 && h.Parent.IsZero()
}

// Hash returns the hash of the block header.
func (b Block) Hash() HeaderHash {
	return b.Header.Hash
}

// Verify checks that the header hash matches its fields and that the content
// hash matches the contents.
func (b Block) Verify() error {
	if b.Header.ComputeHash() != b.Header.Hash {
		return ErrHashMismatch
	}
	if contentHash(b.Contents) != b.Header.ContentHash {
		return ErrHashMismatch
	}
	return nil
}

func contentHash(contents [][]byte) HeaderHash {
	parts := make([][]byte, 0, len(contents))
	for _, c := range contents {
		d := sum256(c)
		parts = append(parts, d[:])
	}
	return HeaderHash(sum256(parts...))
}
