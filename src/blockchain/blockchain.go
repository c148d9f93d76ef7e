package blockchain

import (
	"errors"
	"fmt"
	"sync"

	cm "github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

// ErrBlock0Mismatch is returned when a store was created for another chain.
var ErrBlock0Mismatch = errors.New("store belongs to another block0")

// Blockchain links the blocks of a Store into a chain rooted at block0.
// It is safe for concurrent use.
type Blockchain struct {
	sync.RWMutex

	store  Store
	block0 blockcfg.HeaderHash
	tip    blockcfg.Header
}

// NewBlockchain creates a chain from genesis in store. If the store already
// holds a chain, it must have been created from the same genesis block.
func NewBlockchain(store Store, genesis blockcfg.Block) (*Blockchain, error) {
	if err := genesis.Verify(); err != nil {
		return nil, err
	}
	if !genesis.Header.IsGenesis() {
		return nil, fmt.Errorf("block %s is not a genesis block", genesis.Hash())
	}

	existing, err := store.Block0()
	switch {
	case err == nil && existing != genesis.Hash():
		return nil, ErrBlock0Mismatch
	case err == nil:
		return LoadBlockchain(store)
	case !cm.IsStore(err, cm.Empty):
		return nil, err
	}

	if err := store.PutBlock(genesis); err != nil {
		return nil, err
	}
	if err := store.SetBlock0(genesis.Hash()); err != nil {
		return nil, err
	}
	if err := store.SetTip(genesis.Hash()); err != nil {
		return nil, err
	}

	return &Blockchain{
		store:  store,
		block0: genesis.Hash(),
		tip:    genesis.Header,
	}, nil
}

// LoadBlockchain opens the chain already held by store. It fails with an
// Empty StoreErr if the store holds no chain.
func LoadBlockchain(store Store) (*Blockchain, error) {
	block0, err := store.Block0()
	if err != nil {
		return nil, err
	}

	tipHash, err := store.Tip()
	if err != nil {
		return nil, err
	}

	tip, err := store.GetBlock(tipHash)
	if err != nil {
		return nil, err
	}

	return &Blockchain{
		store:  store,
		block0: block0,
		tip:    tip.Header,
	}, nil
}

// Block0 returns the hash of the genesis block.
func (bc *Blockchain) Block0() blockcfg.HeaderHash {
	return bc.block0
}

// Tip returns the header of the current tip.
func (bc *Blockchain) Tip() blockcfg.Header {
	bc.RLock()
	defer bc.RUnlock()
	return bc.tip
}

// HasBlock reports whether the block is stored.
func (bc *Blockchain) HasBlock(hash blockcfg.HeaderHash) bool {
	return bc.store.HasBlock(hash)
}

// Checkpoints returns hashes of the current branch at exponentially growing
// distances from the tip, ending with block0. A peer answers chain pulls from
// the most recent checkpoint it knows.
func (bc *Blockchain) Checkpoints() []blockcfg.HeaderHash {
	bc.RLock()
	defer bc.RUnlock()

	res := []blockcfg.HeaderHash{}
	current := bc.tip
	step := uint64(1)
	for {
		res = append(res, current.Hash)
		if current.IsGenesis() {
			break
		}

		target := uint64(0)
		if current.ChainLength > step {
			target = current.ChainLength - step
		}

		next, ok := bc.ancestor(current, target)
		if !ok {
			break
		}
		current = next
		if len(res) >= 2 {
			step *= 2
		}
	}

	if res[len(res)-1] != bc.block0 {
		res = append(res, bc.block0)
	}
	return res
}

// ApplyBlock stores a block whose parent is known and moves the tip if the
// block extends the longest chain. It reports whether the tip moved. Applying
// a known block is a no-op.
func (bc *Blockchain) ApplyBlock(block blockcfg.Block) (bool, error) {
	if err := block.Verify(); err != nil {
		return false, err
	}

	bc.Lock()
	defer bc.Unlock()

	if bc.store.HasBlock(block.Hash()) {
		return false, nil
	}

	if block.Header.IsGenesis() {
		return false, ErrBlock0Mismatch
	}

	parent, err := bc.store.GetBlock(block.Header.Parent)
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			return false, cm.NewStoreErr("Block", cm.MissingParent, block.Hash().String())
		}
		return false, err
	}
	if parent.Header.ChainLength+1 != block.Header.ChainLength {
		return false, fmt.Errorf("block %s has chain length %d, parent has %d",
			block.Hash(), block.Header.ChainLength, parent.Header.ChainLength)
	}

	if err := bc.store.PutBlock(block); err != nil {
		return false, err
	}

	if block.Header.ChainLength <= bc.tip.ChainLength {
		return false, nil
	}

	if err := bc.store.SetTip(block.Hash()); err != nil {
		return false, err
	}
	bc.tip = block.Header
	return true, nil
}

// GetBlocks returns the requested blocks, in the requested order.
func (bc *Blockchain) GetBlocks(ids []blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	res := make([]blockcfg.Block, 0, len(ids))
	for _, id := range ids {
		b, err := bc.store.GetBlock(id)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, nil
}

// BlocksToTip returns at most limit blocks of the current branch that follow
// the most recent checkpoint in from. When no checkpoint is on the branch,
// blocks are returned from the one following block0. A non-positive limit
// means no limit.
func (bc *Blockchain) BlocksToTip(from []blockcfg.HeaderHash, limit int) ([]blockcfg.Block, error) {
	bc.RLock()
	defer bc.RUnlock()

	branch, err := bc.branchAfter(from, bc.tip.Hash)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(branch) > limit {
		branch = branch[:limit]
	}
	return branch, nil
}

// Headers returns the headers that follow the most recent checkpoint in from
// on the branch ending at to, in chain order.
func (bc *Blockchain) Headers(from []blockcfg.HeaderHash, to blockcfg.HeaderHash) ([]blockcfg.Header, error) {
	bc.RLock()
	defer bc.RUnlock()

	branch, err := bc.branchAfter(from, to)
	if err != nil {
		return nil, err
	}

	res := make([]blockcfg.Header, 0, len(branch))
	for _, b := range branch {
		res = append(res, b.Header)
	}
	return res, nil
}

// branchAfter walks back from end until it meets one of the checkpoints or
// block0, and returns the blocks after that point in chain order.
func (bc *Blockchain) branchAfter(from []blockcfg.HeaderHash, end blockcfg.HeaderHash) ([]blockcfg.Block, error) {
	checkpoints := make(map[blockcfg.HeaderHash]struct{}, len(from))
	for _, h := range from {
		checkpoints[h] = struct{}{}
	}

	reversed := []blockcfg.Block{}
	current := end
	for {
		if _, ok := checkpoints[current]; ok {
			break
		}
		b, err := bc.store.GetBlock(current)
		if err != nil {
			return nil, err
		}
		if b.Header.IsGenesis() {
			break
		}
		reversed = append(reversed, b)
		current = b.Header.Parent
	}

	res := make([]blockcfg.Block, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		res = append(res, reversed[i])
	}
	return res, nil
}

// ancestor walks back from h to the block with the given chain length.
func (bc *Blockchain) ancestor(h blockcfg.Header, length uint64) (blockcfg.Header, bool) {
	current := h
	for current.ChainLength > length {
		b, err := bc.store.GetBlock(current.Parent)
		if err != nil {
			return blockcfg.Header{}, false
		}
		current = b.Header
	}
	return current, true
}
