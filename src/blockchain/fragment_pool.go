package blockchain

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

// DefaultPoolSize bounds the number of fragments kept by a FragmentPool.
const DefaultPoolSize = 4096

// FragmentPool holds the fragments received but not yet included in a block.
// The oldest fragments are dropped when the pool is full.
type FragmentPool struct {
	sync.Mutex
	fragments *lru.Cache[blockcfg.FragmentID, blockcfg.Fragment]
}

// NewFragmentPool creates a pool holding at most size fragments.
func NewFragmentPool(size int) *FragmentPool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	cache, err := lru.New[blockcfg.FragmentID, blockcfg.Fragment](size)
	if err != nil {
		panic(err)
	}
	return &FragmentPool{fragments: cache}
}

// Insert adds the fragments not already pooled and returns them.
func (p *FragmentPool) Insert(fragments []blockcfg.Fragment) []blockcfg.Fragment {
	p.Lock()
	defer p.Unlock()

	added := []blockcfg.Fragment{}
	for _, f := range fragments {
		if f.ID != blockcfg.NewFragment(f.Payload).ID {
			continue
		}
		if p.fragments.Contains(f.ID) {
			continue
		}
		p.fragments.Add(f.ID, f)
		added = append(added, f)
	}
	return added
}

// Len returns the number of pooled fragments.
func (p *FragmentPool) Len() int {
	return p.fragments.Len()
}
