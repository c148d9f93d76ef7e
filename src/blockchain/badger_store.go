package blockchain

import (
	"fmt"

	"github.com/dgraph-io/badger"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"

	cm "github.com/mosaicnetworks/blocknet/src/common"
	"github.com/mosaicnetworks/blocknet/src/blockcfg"
)

const (
	blockPrefix = "block"
	block0Key   = "block0"
	tipKey      = "tip"
)

// DefaultCacheSize is the number of blocks kept in memory by a BadgerStore.
const DefaultCacheSize = 512

// BadgerStore implements the Store interface on top of a Badger database,
// with an LRU cache of recently used blocks.
type BadgerStore struct {
	db     *badger.DB
	cache  *lru.Cache[blockcfg.HeaderHash, blockcfg.Block]
	handle *codec.MsgpackHandle
	path   string
}

// NewBadgerStore opens, or creates, the database in path.
func NewBadgerStore(path string, cacheSize int, logger *logrus.Entry) (*BadgerStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	if logger != nil {
		opts.Logger = logger.WithField("prefix", "badger")
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[blockcfg.HeaderHash, blockcfg.Block](cacheSize)
	if err != nil {
		handle.Close()
		return nil, err
	}

	return &BadgerStore{
		db:     handle,
		cache:  cache,
		handle: &codec.MsgpackHandle{},
		path:   path,
	}, nil
}

// StorePath returns the database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//==============================================================================
//Keys

func blockKey(hash blockcfg.HeaderHash) []byte {
	return []byte(fmt.Sprintf("%s_%s", blockPrefix, hash))
}

// GetBlock implements the Store interface.
func (s *BadgerStore) GetBlock(hash blockcfg.HeaderHash) (blockcfg.Block, error) {
	if b, ok := s.cache.Get(hash); ok {
		return b, nil
	}

	var block blockcfg.Block
	if err := s.dbGet(blockKey(hash), &block); err != nil {
		return blockcfg.Block{}, mapError(err, "Block", hash.String())
	}

	s.cache.Add(hash, block)
	return block, nil
}

// PutBlock implements the Store interface.
func (s *BadgerStore) PutBlock(block blockcfg.Block) error {
	if err := s.dbSet(blockKey(block.Hash()), block); err != nil {
		return err
	}
	s.cache.Add(block.Hash(), block)
	return nil
}

// HasBlock implements the Store interface.
func (s *BadgerStore) HasBlock(hash blockcfg.HeaderHash) bool {
	if s.cache.Contains(hash) {
		return true
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blockKey(hash))
		return err
	})
	return err == nil
}

// Block0 implements the Store interface.
func (s *BadgerStore) Block0() (blockcfg.HeaderHash, error) {
	var hash blockcfg.HeaderHash
	err := s.dbGet([]byte(block0Key), &hash)
	if isDBKeyNotFound(err) {
		return hash, cm.NewStoreErr("Block0", cm.Empty, "")
	}
	return hash, err
}

// SetBlock0 implements the Store interface.
func (s *BadgerStore) SetBlock0(hash blockcfg.HeaderHash) error {
	return s.dbSet([]byte(block0Key), hash)
}

// Tip implements the Store interface.
func (s *BadgerStore) Tip() (blockcfg.HeaderHash, error) {
	var hash blockcfg.HeaderHash
	err := s.dbGet([]byte(tipKey), &hash)
	if isDBKeyNotFound(err) {
		return hash, cm.NewStoreErr("Tip", cm.Empty, "")
	}
	return hash, err
}

// SetTip implements the Store interface.
func (s *BadgerStore) SetTip(hash blockcfg.HeaderHash) error {
	return s.dbSet([]byte(tipKey), hash)
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func (s *BadgerStore) dbGet(key []byte, out interface{}) error {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}

	return codec.NewDecoderBytes(val, s.handle).Decode(out)
}

func (s *BadgerStore) dbSet(key []byte, in interface{}) error {
	var val []byte
	if err := codec.NewEncoderBytes(&val, s.handle).Encode(in); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
