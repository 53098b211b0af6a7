package state

import (
	"errors"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// ErrNoValidChain is returned when neither the local nor the remote chain
// passes validation.
var ErrNoValidChain = errors.New("neither chain is valid")

// Reconcile applies the chain selection rules to the local chain and the
// specified remote chain. If the remote chain is preferred it replaces the
// local chain and true is returned. No mining is allowed to take place while
// this process is running. New payloads can be placed into the mempool.
func (s *State) Reconcile(remote []database.Block) (bool, error) {
	s.evHandler("state: Reconcile: started: remote blocks[%d]", len(remote))
	defer s.evHandler("state: Reconcile: completed")

	// Don't allow mining to continue until the chain is settled.
	s.setMining(false)
	defer func() {
		s.setMining(true)
		if s.mempool.Count() > 0 {
			s.worker().SignalStartMining()
		}
	}()

	s.worker().SignalCancelMining()

	local := s.db.Blocks()

	chain, ok := s.db.SelectPreferred(local, remote)
	if !ok {
		return false, ErrNoValidChain
	}

	if isSameTail(chain, local) {
		s.evHandler("state: Reconcile: keeping local chain")
		return false, nil
	}

	// The local chain can grow while the choice is made, so the database
	// makes the final decision and hands back the chain it replaced.
	replaced, err := s.db.Replace(chain)
	if err != nil {
		if errors.Is(err, database.ErrChainNotPreferred) {
			s.evHandler("state: Reconcile: local chain changed and is preferred")
			return false, nil
		}

		s.evHandler("state: Reconcile: ERROR: %s", err)
		return false, err
	}

	// Payloads from local blocks that are no longer part of the chain go
	// back into the mempool so they can be mined again.
	adopted := make(map[string]struct{}, len(chain))
	for _, block := range chain {
		adopted[block.Hash] = struct{}{}
		s.mempool.DeletePayload(block.Payload)
	}

	for _, block := range replaced {
		if _, exists := adopted[block.Hash]; exists || block.Number == 1 {
			continue
		}

		if entry, added := s.mempool.Upsert(block.Payload); added {
			s.evHandler("state: Reconcile: orphaned payload requeued: payload[%s]", entry.ID)
		}
	}

	s.evHandler("state: Reconcile: remote chain adopted: latest blk[%s]", s.db.LatestBlock())

	return true, nil
}

// Resync asks the worker to synchronize with the known peers in the
// background. Only one resync runs at a time.
func (s *State) Resync() {
	if !s.resyncing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		s.evHandler("state: Resync: started: *****************************")
		defer func() {
			s.resyncing.Store(false)
			s.evHandler("state: Resync: completed: *****************************")
		}()

		s.worker().Sync()
	}()
}

// isSameTail reports if both chains have the same length and end in the
// same block.
func isSameTail(a []database.Block, b []database.Block) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return a[len(a)-1].Hash == b[len(b)-1].Hash
}
