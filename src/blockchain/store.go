package blockchain

import (
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

// Store persists blocks and the chain pointers.
type Store interface {
	GetBlock(hash blockcfg.HeaderHash) (blockcfg.Block, error)
	PutBlock(block blockcfg.Block) error
	HasBlock(hash blockcfg.HeaderHash) bool
	Block0() (blockcfg.HeaderHash, error)
	SetBlock0(hash blockcfg.HeaderHash) error
	Tip() (blockcfg.HeaderHash, error)
	SetTip(hash blockcfg.HeaderHash) error
	Close() error
}
