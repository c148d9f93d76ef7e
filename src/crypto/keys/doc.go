// Package keys implements the node keys used by blocknet.
//
// Every node owns a secp256k1 key-pair. The public key is exchanged during
// the connection handshake and the node identity is derived from it, so a
// peer cannot claim an identity without holding the matching private key.
package keys
