package state

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
)

// Set of error variables for block processing.
var (
	ErrNoPayloads       = errors.New("no payloads in mempool")
	ErrInvalidSignature = errors.New("invalid block proposal signature")
)

// BlockProposal represents a mined block a node proposes to its peers. The
// signature identifies the node that mined the block.
type BlockProposal struct {
	Block     database.Block `json:"block"`
	Signature string         `json:"signature"`
}

// NewBlockProposal signs the block with the specified key.
func NewBlockProposal(block database.Block, minerKey *ecdsa.PrivateKey) (BlockProposal, error) {
	sig, err := signature.Sign(block, minerKey)
	if err != nil {
		return BlockProposal{}, err
	}

	return BlockProposal{Block: block, Signature: sig}, nil
}

// MinerAccount returns the account of the node that signed the proposal.
func (bp BlockProposal) MinerAccount() (string, error) {
	return signature.FromAddress(bp.Block, bp.Signature)
}

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. The oldest payload in the mempool is used. If
// the nonce budget runs out, the payload moves to the back of the mempool.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	entry, ok := s.mempool.PickNext()
	if !ok {
		return database.Block{}, ErrNoPayloads
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: payload[%s]", entry.ID)

	latest := s.db.LatestBlock()

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		Rules:         s.db.Rules(),
		Number:        latest.Number + 1,
		PrevBlockHash: latest.Hash,
		Payload:       entry.Payload,
		MaxAttempts:   s.genesis.MaxAttempts,
		Workers:       s.genesis.Workers,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		if errors.Is(err, database.ErrExhausted) {
			s.evHandler("state: MineNewBlock: MINING: budget exhausted, requeue payload[%s]", entry.ID)
			s.mempool.Requeue(entry.ID)
		}
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	if err := s.validateUpdateDatabase(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain. ErrChainForked is
// returned when the block can't be linked because the peer is ahead of us or
// on a different chain.
func (s *State) ProcessProposedBlock(proposal BlockProposal) error {
	block := proposal.Block

	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]", block.PrevBlockHash, block.Hash)
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash)

	miner, err := proposal.MinerAccount()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	s.evHandler("state: ProcessProposedBlock: miner[%s]", miner)

	if err := s.processBlock(block); err != nil {
		return err
	}

	// If a mining operation is running it is now mining on a stale tail
	// and needs to stop immediately.
	s.evHandler("state: ProcessProposedBlock: signal mining to cancel")
	s.worker().SignalCancelMining()

	return nil
}

// =============================================================================

// processBlock validates and appends a block that was mined by a peer. A
// block that is already part of the chain is ignored.
func (s *State) processBlock(block database.Block) error {
	if existing, err := s.db.GetBlock(block.Number); err == nil && existing.Hash == block.Hash {
		s.evHandler("state: processBlock: block already exists: blk[%s]", block)
		return nil
	}

	latest := s.db.LatestBlock()

	if err := s.validateUpdateDatabase(block); err != nil {
		if database.IsReject(err) && (block.Number > latest.Number+1 || (block.Number == latest.Number+1 && block.PrevBlockHash != latest.Hash)) {
			return fmt.Errorf("%w: %w", database.ErrChainForked, err)
		}
		return err
	}

	return nil
}

// validateUpdateDatabase takes the block and appends it to the chain after
// validation. If the block is accepted the payload it records is removed
// from the mempool.
func (s *State) validateUpdateDatabase(block database.Block) error {
	s.evHandler("state: validateUpdateDatabase: validate block")

	if err := s.db.TryAppend(block); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: remove payload from mempool")
	s.mempool.DeletePayload(block.Payload)

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"block":%s}`, block.Hash, string(blockJSON))
}
