// Package blockchain keeps the local copy of the chain.
//
// It is the collaborator the network hands blocks to and answers peer
// requests from. Blocks are stored by hash in a Store, either in memory or in
// a Badger database, and linked to their parent; the tip is the stored block
// with the greatest chain length. Validation is limited to hash integrity and
// parent linkage.
package blockchain
