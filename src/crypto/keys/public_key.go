package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ToPublicKey is a wrapper around elliptic.Unmarshal on the secp256k1 curve.
// The argument pub is expected to be the uncompressed form of a point, as
// returned by FromPublicKey.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey outputs the point in uncompressed form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed
// form of the public key, prefixed with 0x.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return "0x" + hex.EncodeToString(FromPublicKey(pub))
}

// ParsePublicKeyHex decodes a string produced by PublicKeyHex.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return nil, err
	}
	pub := ToPublicKey(raw)
	if pub == nil {
		return nil, errors.New("invalid secp256k1 public key")
	}
	return pub, nil
}

// IdentityHex returns the hex encoded blake2b-256 digest of the uncompressed
// public key. This is the node identity string.
func IdentityHex(pub *ecdsa.PublicKey) string {
	sum := blake2b.Sum256(FromPublicKey(pub))
	return hex.EncodeToString(sum[:])
}
