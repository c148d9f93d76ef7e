package blockchain

import (
	"sync"

	cm "github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

// InmemStore implements the Store interface with maps. Nothing is evicted, so
// it is meant for tests and short lived nodes.
type InmemStore struct {
	sync.RWMutex
	blocks map[blockcfg.HeaderHash]blockcfg.Block
	block0 *blockcfg.HeaderHash
	tip    *blockcfg.HeaderHash
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		blocks: make(map[blockcfg.HeaderHash]blockcfg.Block),
	}
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(hash blockcfg.HeaderHash) (blockcfg.Block, error) {
	s.RLock()
	defer s.RUnlock()

	b, ok := s.blocks[hash]
	if !ok {
		return blockcfg.Block{}, cm.NewStoreErr("Block", cm.KeyNotFound, hash.String())
	}
	return b, nil
}

// PutBlock implements the Store interface.
func (s *InmemStore) PutBlock(block blockcfg.Block) error {
	s.Lock()
	defer s.Unlock()

	s.blocks[block.Hash()] = block
	return nil
}

// HasBlock implements the Store interface.
func (s *InmemStore) HasBlock(hash blockcfg.HeaderHash) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.blocks[hash]
	return ok
}

// Block0 implements the Store interface.
func (s *InmemStore) Block0() (blockcfg.HeaderHash, error) {
	s.RLock()
	defer s.RUnlock()

	if s.block0 == nil {
		return blockcfg.HeaderHash{}, cm.NewStoreErr("Block0", cm.Empty, "")
	}
	return *s.block0, nil
}

// SetBlock0 implements the Store interface.
func (s *InmemStore) SetBlock0(hash blockcfg.HeaderHash) error {
	s.Lock()
	defer s.Unlock()

	s.block0 = &hash
	return nil
}

// Tip implements the Store interface.
func (s *InmemStore) Tip() (blockcfg.HeaderHash, error) {
	s.RLock()
	defer s.RUnlock()

	if s.tip == nil {
		return blockcfg.HeaderHash{}, cm.NewStoreErr("Tip", cm.Empty, "")
	}
	return *s.tip, nil
}

// SetTip implements the Store interface.
func (s *InmemStore) SetTip(hash blockcfg.HeaderHash) error {
	s.Lock()
	defer s.Unlock()

	s.tip = &hash
	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
