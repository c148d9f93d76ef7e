package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Sign signs the blake2b-256 digest of data with the private key.
func Sign(priv *ecdsa.PrivateKey, data []byte) (r, s *big.Int, err error) {
	digest := blake2b.Sum256(data)
	return ecdsa.Sign(rand.Reader, priv, digest[:])
}

// Verify verifies that r and s form a signature of data by the owner of pub.
func Verify(pub *ecdsa.PublicKey, data []byte, r, s *big.Int) bool {
	if pub == nil || r == nil || s == nil {
		return false
	}
	digest := blake2b.Sum256(data)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// EncodeSignature returns a string representation of a signature.
func EncodeSignature(r, s *big.Int) string {
	return fmt.Sprintf("%s|%s", r.Text(36), s.Text(36))
}

// DecodeSignature parses a string representation of a signature as produced by
// EncodeSignature.
func DecodeSignature(sig string) (r, s *big.Int, err error) {
	values := strings.Split(sig, "|")
	if len(values) != 2 {
		return r, s, fmt.Errorf("wrong number of values in signature: got %d, want 2", len(values))
	}
	r, ok := new(big.Int).SetString(values[0], 36)
	if !ok {
		return nil, nil, fmt.Errorf("malformed signature")
	}
	s, ok = new(big.Int).SetString(values[1], 36)
	if !ok {
		return nil, nil, fmt.Errorf("malformed signature")
	}
	return r, s, nil
}
