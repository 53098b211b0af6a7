package database

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Rules         Rules
	Number        uint64
	PrevBlockHash string
	Payload       string
	TimeStamp     int64  // Zero means capture the current time.
	MaxAttempts   uint64 // Zero means search until the context is cancelled.
	Workers       int    // Number of goroutines sharing the nonce search.
	EvHandler     func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The nonce space is split between the
// workers so worker i tries i, i+W, i+2W and so on. The lowest solving nonce
// always wins, which makes the result the same as a single worker search.
// ErrExhausted is returned when no nonce below MaxAttempts solves the puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	if err := args.Rules.Check(); err != nil {
		return Block{}, err
	}

	// The timestamp is captured once and is part of every hash attempt.
	timeStamp := args.TimeStamp
	if timeStamp == 0 {
		timeStamp = time.Now().UTC().Unix()
	}

	limit := args.MaxAttempts
	if limit == 0 {
		limit = math.MaxUint64
	}

	workers := max(args.Workers, 1)

	ev("database: POW: MINING: started: blk[%d]: workers[%d]: limit[%d]", args.Number, workers, args.MaxAttempts)
	defer ev("database: POW: MINING: completed: blk[%d]", args.Number)

	search := nonceSearch{
		rules:         args.Rules,
		number:        args.Number,
		prevBlockHash: args.PrevBlockHash,
		payload:       args.Payload,
		timeStamp:     timeStamp,
		limit:         limit,
		stride:        uint64(workers),
		ev:            ev,
	}
	search.best.Store(math.MaxUint64)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(start uint64) {
			defer wg.Done()
			search.run(ctx, start)
		}(uint64(i))
	}

	wg.Wait()

	// Did we timeout trying to solve the problem.
	if ctx.Err() != nil {
		ev("database: POW: MINING: CANCELLED: attempts[%d]", search.attempts.Load())
		return Block{}, ctx.Err()
	}

	nonce := search.best.Load()
	if nonce == math.MaxUint64 {
		ev("database: POW: MINING: EXHAUSTED: attempts[%d]", search.attempts.Load())
		return Block{}, ErrExhausted
	}

	nb := Block{
		Number:        args.Number,
		PrevBlockHash: args.PrevBlockHash,
		Payload:       args.Payload,
		TimeStamp:     timeStamp,
		Nonce:         nonce,
	}
	nb.Hash = args.Rules.Hash(nb)

	ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", nb.PrevBlockHash, nb.Hash, nb.Nonce)
	ev("database: POW: MINING: attempts[%d]", search.attempts.Load())

	return nb, nil
}

// =============================================================================

// nonceSearch holds the state shared by the workers looking for a nonce.
type nonceSearch struct {
	rules         Rules
	number        uint64
	prevBlockHash string
	payload       string
	timeStamp     int64
	limit         uint64
	stride        uint64
	ev            func(v string, args ...any)

	best     atomic.Uint64
	attempts atomic.Uint64
}

// run walks the partition of the nonce space that begins with start. It
// returns once a solution is found, a lower solution is known, the limit is
// reached or the context is cancelled.
func (ns *nonceSearch) run(ctx context.Context, start uint64) {
	for nonce := start; nonce < ns.limit && nonce < ns.best.Load(); {
		if ctx.Err() != nil {
			return
		}

		if attempts := ns.attempts.Add(1); attempts%1_000_000 == 0 {
			ns.ev("database: POW: MINING: attempts[%d]", attempts)
		}

		hash := ns.rules.hash(ns.number, ns.prevBlockHash, ns.payload, ns.timeStamp, nonce)
		if ns.rules.IsSolved(hash) {
			ns.record(nonce)
			return
		}

		if ns.limit-nonce <= ns.stride {
			return
		}
		nonce += ns.stride
	}
}

// record keeps the lowest solving nonce found by any worker.
func (ns *nonceSearch) record(nonce uint64) {
	for {
		current := ns.best.Load()
		if nonce >= current {
			return
		}
		if ns.best.CompareAndSwap(current, nonce) {
			return
		}
	}
}
