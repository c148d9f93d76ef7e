package blockcfg

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size in bytes of a HeaderHash or FragmentID.
const HashSize = blake2b.Size256

// HeaderHash identifies a block header.
type HeaderHash [HashSize]byte

// ParseHeaderHash decodes a hex string, with or without the 0x prefix.
func ParseHeaderHash(s string) (HeaderHash, error) {
	var h HeaderHash
	if err := decodeHash(s, h[:]); err != nil {
		return h, fmt.Errorf("invalid header hash %q: %w", s, err)
	}
	return h, nil
}

// String returns the lowercase hex representation of the hash.
func (h HeaderHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h HeaderHash) IsZero() bool {
	return h == HeaderHash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h HeaderHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HeaderHash) UnmarshalText(text []byte) error {
	parsed, err := ParseHeaderHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// FragmentID identifies a fragment (transaction or certificate).
type FragmentID [HashSize]byte

// String returns the lowercase hex representation of the id.
func (id FragmentID) String() string {
	return hex.EncodeToString(id[:])
}

func decodeHash(s string, dst []byte) error {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

func sum256(parts ...[]byte) [HashSize]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
