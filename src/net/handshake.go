package net

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
	"github.com/mosaicnetworks/blocknet/src/crypto/keys"
	"github.com/mosaicnetworks/blocknet/src/peers"
)

const nonceSize = 32

// Handshake holds the local credentials presented when opening or accepting
// a session. Both sides must agree on block0; the responder proves its
// identity by signing the nonce chosen by the dialer.
type Handshake struct {
	key     *ecdsa.PrivateKey
	nodeID  peers.NodeID
	pubKey  string
	block0  blockcfg.HeaderHash
	address string
}

// NewHandshake creates the credentials of the node owning key, on the network
// identified by block0, reachable at address (possibly empty).
func NewHandshake(key *ecdsa.PrivateKey, block0 blockcfg.HeaderHash, address string) *Handshake {
	return &Handshake{
		key:     key,
		nodeID:  peers.NodeIDFromPublicKey(&key.PublicKey),
		pubKey:  keys.PublicKeyHex(&key.PublicKey),
		block0:  block0,
		address: address,
	}
}

// NodeID returns the local identity.
func (hs *Handshake) NodeID() peers.NodeID {
	return hs.nodeID
}

// Block0 returns the hash identifying the network.
func (hs *Handshake) Block0() blockcfg.HeaderHash {
	return hs.block0
}

// Request builds a handshake request with a fresh nonce.
func (hs *Handshake) Request() (*HandshakeRequest, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return &HandshakeRequest{
		NodeID:  hs.nodeID,
		PubKey:  hs.pubKey,
		Block0:  hs.block0,
		Address: hs.address,
		Nonce:   nonce,
	}, nil
}

// Answer validates an incoming request and signs its nonce.
func (hs *Handshake) Answer(req *HandshakeRequest) (*HandshakeResponse, error) {
	if req.Block0 != hs.block0 {
		return nil, ErrBlock0Mismatch
	}
	if _, err := checkIdentity(req.NodeID, req.PubKey); err != nil {
		return nil, err
	}
	if len(req.Nonce) != nonceSize {
		return nil, fmt.Errorf("invalid nonce length %d", len(req.Nonce))
	}

	r, s, err := keys.Sign(hs.key, signedPayload(req.Nonce, hs.block0))
	if err != nil {
		return nil, err
	}

	return &HandshakeResponse{
		NodeID:    hs.nodeID,
		PubKey:    hs.pubKey,
		Block0:    hs.block0,
		Signature: keys.EncodeSignature(r, s),
	}, nil
}

// Verify checks the response to req and returns the public key of the
// responder.
func (hs *Handshake) Verify(req *HandshakeRequest, resp *HandshakeResponse) (*ecdsa.PublicKey, error) {
	if resp.Block0 != hs.block0 {
		return nil, ErrBlock0Mismatch
	}

	pub, err := checkIdentity(resp.NodeID, resp.PubKey)
	if err != nil {
		return nil, err
	}

	r, s, err := keys.DecodeSignature(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !keys.Verify(pub, signedPayload(req.Nonce, hs.block0), r, s) {
		return nil, ErrBadSignature
	}

	return pub, nil
}

func checkIdentity(id peers.NodeID, pubHex string) (*ecdsa.PublicKey, error) {
	pub, err := keys.ParsePublicKeyHex(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIdentity, err)
	}
	if peers.NodeIDFromPublicKey(pub) != id {
		return nil, ErrBadIdentity
	}
	return pub, nil
}

func signedPayload(nonce []byte, block0 blockcfg.HeaderHash) []byte {
	payload := make([]byte, 0, len(nonce)+len(block0))
	payload = append(payload, nonce...)
	return append(payload, block0[:]...)
}
