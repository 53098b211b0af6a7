// Package database handles all the lower level support for maintaining the
// blockchain: mining and validating blocks, the append only chain of blocks
// and the storage those blocks are persisted to.
package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = math.MaxUint64

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Serializer interface {
	Write(block Block) error
	GetBlock(num uint64) (Block, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (Block, error)
	Done() bool
}

// =============================================================================

// Database manages the chain of blocks. The chain is append only and the
// Database is the sole owner of the blocks it holds.
type Database struct {
	mu sync.RWMutex

	genesis    genesis.Genesis
	rules      Rules
	blocks     []Block
	serializer Serializer
	evHandler  func(v string, args ...any)
}

// New constructs a new database and replays any blocks found in storage.
// Every stored block must pass validation or the database can't be opened.
func New(gen genesis.Genesis, serializer Serializer, evHandler func(v string, args ...any)) (*Database, error) {
	if serializer == nil {
		return nil, errors.New("a storage serializer must be provided")
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	rules := Rules{
		Difficulty: gen.Difficulty,
		Algorithm:  Algorithm(gen.Algorithm),
	}
	if err := rules.Check(); err != nil {
		return nil, fmt.Errorf("genesis rules: %w", err)
	}

	db := Database{
		genesis:    gen,
		rules:      rules,
		serializer: serializer,
		evHandler:  ev,
	}

	// Read all the blocks from storage and validate them as they are loaded.
	iter := serializer.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		switch len(db.blocks) {
		case 0:
			if err := rules.validateGenesis(block); err != nil {
				return nil, fmt.Errorf("stored genesis: %w", err)
			}

		default:
			if err := rules.ValidateBlock(block, db.blocks[len(db.blocks)-1], ev); err != nil {
				return nil, fmt.Errorf("stored block: %w", err)
			}
		}

		db.blocks = append(db.blocks, block)
	}

	ev("database: New: loaded blocks[%d]", len(db.blocks))

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Genesis returns the genesis information the chain was created with.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Rules returns the proof of work rules for the chain.
func (db *Database) Rules() Rules {
	return db.rules
}

// GenerateGenesis mines the first block of the chain. The genesis block has
// no previous block, so it links to ZeroHash and is not validated against
// one. The genesis date is used as the timestamp so every node produces the
// same genesis block.
func (db *Database) GenerateGenesis(ctx context.Context) (Block, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.blocks) > 0 {
		return Block{}, ErrGenesisExists
	}

	db.evHandler("database: GenerateGenesis: started")
	defer db.evHandler("database: GenerateGenesis: completed")

	var timeStamp int64
	if !db.genesis.Date.IsZero() {
		timeStamp = db.genesis.Date.UTC().Unix()
	}

	block, err := POW(ctx, POWArgs{
		Rules:         db.rules,
		Number:        1,
		PrevBlockHash: ZeroHash,
		Payload:       db.genesis.Payload,
		TimeStamp:     timeStamp,
		MaxAttempts:   db.genesis.MaxAttempts,
		Workers:       db.genesis.Workers,
		EvHandler:     db.evHandler,
	})
	if err != nil {
		return Block{}, err
	}

	if err := db.serializer.Write(block); err != nil {
		return Block{}, err
	}
	db.blocks = append(db.blocks, block)

	return block, nil
}

// TryAppend validates the block against the latest block in the chain and
// if that passes, writes the block to storage and adds it to the chain. A
// rejected block leaves the chain untouched.
func (db *Database) TryAppend(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.blocks) == 0 {
		db.evHandler("database: TryAppend: WARNING: %s", ErrNoGenesis)
		return ErrNoGenesis
	}

	if err := db.rules.ValidateBlock(block, db.blocks[len(db.blocks)-1], db.evHandler); err != nil {
		db.evHandler("database: TryAppend: REJECTED: %s", err)
		return err
	}

	if err := db.serializer.Write(block); err != nil {
		return err
	}
	db.blocks = append(db.blocks, block)

	db.evHandler("database: TryAppend: block added: blk[%s]", block)

	return nil
}

// Replace swaps the current chain for the specified chain. This is used to
// adopt a chain selected by SelectPreferred. The chain must be valid, begin
// with a genesis block and still be preferred over the current chain when
// the swap happens, otherwise ErrChainNotPreferred is returned. The chain
// that was replaced is returned.
func (db *Database) Replace(blocks []Block) ([]Block, error) {
	if len(blocks) == 0 {
		return nil, ErrNoGenesis
	}

	if err := db.rules.validateGenesis(blocks[0]); err != nil {
		return nil, err
	}

	if err := db.rules.ValidateChain(blocks, db.evHandler); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	// The chain may have grown since the caller made its choice.
	chain, ok := db.rules.SelectPreferred(db.blocks, blocks, db.evHandler)
	if !ok || len(chain) != len(blocks) || chain[len(chain)-1].Hash != blocks[len(blocks)-1].Hash {
		db.evHandler("database: Replace: WARNING: %s: current blocks[%d]: new blocks[%d]", ErrChainNotPreferred, len(db.blocks), len(blocks))
		return nil, ErrChainNotPreferred
	}

	if err := db.serializer.Reset(); err != nil {
		return nil, err
	}

	for _, block := range blocks {
		if err := db.serializer.Write(block); err != nil {
			return nil, err
		}
	}

	replaced := db.blocks

	db.blocks = make([]Block, len(blocks))
	copy(db.blocks, blocks)

	db.evHandler("database: Replace: chain replaced: blocks[%d]", len(blocks))

	return replaced, nil
}

// Validate reports if the specified chain is valid under the rules of
// this chain.
func (db *Database) Validate(blocks []Block) bool {
	return db.rules.ValidateChain(blocks, db.evHandler) == nil
}

// SelectPreferred applies the chain selection rules to the local and
// remote chains.
func (db *Database) SelectPreferred(local []Block, remote []Block) ([]Block, bool) {
	return db.rules.SelectPreferred(local, remote, db.evHandler)
}

// =============================================================================

// LatestBlock returns the latest block. A zero block is returned when the
// chain is empty.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}
	}
	return db.blocks[len(db.blocks)-1]
}

// Count returns the number of blocks in the chain.
func (db *Database) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Blocks returns a copy of the chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)
	return blocks
}

// BlocksByNumber returns the set of blocks between the specified numbers
// inclusive. Use QueryLatest to represent the latest block.
func (db *Database) BlocksByNumber(from uint64, to uint64) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return nil
	}

	latest := db.blocks[len(db.blocks)-1].Number
	if from == QueryLatest {
		from = latest
	}
	if to == QueryLatest || to > latest {
		to = latest
	}
	if from == 0 {
		from = 1
	}

	var out []Block
	for _, block := range db.blocks {
		if block.Number >= from && block.Number <= to {
			out = append(out, block)
		}
	}

	return out
}

// GetBlock returns the block for the specified number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num == 0 || num > uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("block %d does not exist", num)
	}

	return db.blocks[num-1], nil
}

// =============================================================================

// validateGenesis checks the specified block is a properly mined genesis block.
func (r Rules) validateGenesis(block Block) error {
	if block.Number != 1 {
		return newRejectError(ReasonBadSequence, block.Number, fmt.Sprint(block.Number), "1")
	}

	if block.PrevBlockHash != ZeroHash {
		return newRejectError(ReasonBadLink, block.Number, block.PrevBlockHash, ZeroHash)
	}

	if !r.IsSolved(block.Hash) {
		return newRejectError(ReasonBadProofOfWork, block.Number, block.Hash, fmt.Sprintf("%d leading zeros", r.Difficulty))
	}

	if hash := r.Hash(block); hash != block.Hash {
		return newRejectError(ReasonHashMismatch, block.Number, block.Hash, hash)
	}

	return nil
}
