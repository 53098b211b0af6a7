// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and payload sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining()
	SignalSharePayload(entry mempool.Entry)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerKey   *ecdsa.PrivateKey
	Host       string
	Genesis    genesis.Genesis
	Storage    database.Serializer
	KnownPeers *peer.PeerSet
	EvHandler  EventHandler
}

// State manages the blockchain database.
type State struct {
	mu          sync.RWMutex
	allowMining bool
	resyncing   atomic.Bool

	minerKey     *ecdsa.PrivateKey
	minerAccount string
	host         string
	evHandler    EventHandler

	knownPeers *peer.PeerSet
	genesis    genesis.Genesis
	mempool    *mempool.Mempool
	db         *database.Database

	Worker Worker
}

// New constructs a new blockchain for data management. If storage holds no
// blocks, the genesis block is mined before New returns. The state owns the
// storage from here on, so it's closed when New fails.
func New(cfg Config) (*State, error) {
	closeStorage := func() {
		if cfg.Storage != nil {
			cfg.Storage.Close()
		}
	}

	if cfg.MinerKey == nil {
		closeStorage()
		return nil, errors.New("a miner key must be provided")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the storage for the blockchain. All blocks found in storage
	// are validated as they are loaded.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		closeStorage()
		return nil, err
	}

	if db.Count() == 0 {
		ev("state: New: mining genesis block")

		block, err := db.GenerateGenesis(context.Background())
		if err != nil {
			db.Close()
			return nil, err
		}

		ev("state: New: genesis block: blk[%s]", block)
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	state := State{
		allowMining: true,

		minerKey:     cfg.MinerKey,
		minerAccount: signature.Address(cfg.MinerKey),
		host:         cfg.Host,
		evHandler:    ev,

		knownPeers: knownPeers,
		genesis:    cfg.Genesis,
		mempool:    mempool.New(),
		db:         db,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the storage is properly closed.
	return s.db.Close()
}

// IsMiningAllowed identifies if we are allowed to mine blocks. This
// might be turned off while the chain is being reorganized.
func (s *State) IsMiningAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.allowMining
}

// setMining changes the state of the allowMining flag.
func (s *State) setMining(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowMining = allow
}

// worker returns the registered worker or a worker that does nothing when
// the state is used without background operations.
func (s *State) worker() Worker {
	if s.Worker == nil {
		return noopWorker{}
	}
	return s.Worker
}

// =============================================================================

type noopWorker struct{}

func (noopWorker) Shutdown()                        {}
func (noopWorker) Sync()                            {}
func (noopWorker) SignalStartMining()               {}
func (noopWorker) SignalCancelMining()              {}
func (noopWorker) SignalSharePayload(mempool.Entry) {}
