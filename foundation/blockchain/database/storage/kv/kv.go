// Package kv implements the ability to read and write blocks to a badger
// key/value database.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/dgraph-io/badger/v4"
)

// KV represents the serialization implementation for reading and storing
// blocks in a badger database keyed by block number. This implements the
// database.Serializer interface.
type KV struct {
	db *badger.DB
}

// New constructs a KV value for use. An empty dbPath opens an in-memory
// database.
func New(dbPath string, evHandler func(v string, args ...any)) (*KV, error) {
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger{evHandler: evHandler}).
		WithLoggingLevel(badger.WARNING)

	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &KV{db: db}, nil
}

// Close closes the badger database.
func (kv *KV) Close() error {
	return kv.db.Close()
}

// Write takes the specified database block and stores it under the key
// for the block number.
func (kv *KV) Write(block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(block.Number), data)
	})
}

// GetBlock locates and returns the contents of the specified block by number.
func (kv *KV) GetBlock(num uint64) (database.Block, error) {
	var block database.Block

	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(num))
		if err != nil {
			return err
		}

		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &block)
		})
	})
	if err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (kv *KV) ForEach() database.Iterator {
	return &kvIterator{kv: kv}
}

// Reset will clear out all the blocks in the database.
func (kv *KV) Reset() error {
	return kv.db.DropAll()
}

// key forms the key for the specified block. The number is zero padded so
// the keys sort in block order.
func key(blockNum uint64) []byte {
	return []byte(fmt.Sprintf("block_%020d", blockNum))
}

// =============================================================================

// kvIterator represents the iteration implementation for walking
// through and reading blocks. This implements the database Iterator
// interface.
type kvIterator struct {
	kv      *KV    // Access to the storage API.
	current uint64 // Current block number being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from the database.
func (ki *kvIterator) Next() (database.Block, error) {
	if ki.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	ki.current++
	block, err := ki.kv.GetBlock(ki.current)
	if errors.Is(err, badger.ErrKeyNotFound) {
		ki.eoc = true
	}

	return block, err
}

// Done returns the end of chain value.
func (ki *kvIterator) Done() bool {
	return ki.eoc
}

// =============================================================================

// badgerLogger routes badger logging into the event handler.
type badgerLogger struct {
	evHandler func(v string, args ...any)
}

func (l badgerLogger) log(level string, v string, args ...any) {
	if l.evHandler != nil {
		l.evHandler("kv: badger: "+level+": "+v, args...)
	}
}

func (l badgerLogger) Errorf(v string, args ...any)   { l.log("ERROR", v, args...) }
func (l badgerLogger) Warningf(v string, args ...any) { l.log("WARNING", v, args...) }
func (l badgerLogger) Infof(v string, args ...any)    { l.log("INFO", v, args...) }
func (l badgerLogger) Debugf(v string, args ...any)   { l.log("DEBUG", v, args...) }
