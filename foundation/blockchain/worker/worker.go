// Package worker implements mining, peer updates, and payload sharing for
// the blockchain.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
)

// peerUpdateInterval represents the interval of finding new peer nodes
// and updating the blockchain with missing blocks.
const peerUpdateInterval = time.Minute

// maxPayloadShareRequests represents the max number of pending payload
// network share requests that can be outstanding before share requests
// are dropped.
const maxPayloadShareRequests = 100

// exhaustedRetryDelay represents the time to wait before mining again after
// the nonce budget ran out. Blocks are stamped in seconds, so waiting for
// the next second gives the search a new timestamp.
const exhaustedRetryDelay = time.Second

// =============================================================================

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state          *state.State
	wg             sync.WaitGroup
	shutOnce       sync.Once
	ticker         *time.Ticker
	shut           chan struct{}
	startMining    chan bool
	cancelMining   chan bool
	payloadSharing chan mempool.Entry
	evHandler      state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	w := Worker{
		state:          st,
		ticker:         time.NewTicker(peerUpdateInterval),
		shut:           make(chan struct{}),
		startMining:    make(chan bool, 1),
		cancelMining:   make(chan bool, 1),
		payloadSharing: make(chan mempool.Entry, maxPayloadShareRequests),
		evHandler:      evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Update this node before starting any support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
		w.miningOperations,
		w.sharePayloadOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	// Payloads may have been pulled from peers during the sync.
	if st.QueryMempoolLength() > 0 {
		w.SignalStartMining()
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. It is safe to call
// more than once.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: signal cancel mining")
		w.SignalCancelMining()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	if !w.state.IsMiningAllowed() {
		w.evHandler("worker: SignalStartMining: mining turned off")
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// signalStartMiningAfter signals a mining operation once the delay passes.
// The signal is dropped if the worker shuts down first.
func (w *Worker) signalStartMiningAfter(d time.Duration) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			w.SignalStartMining()
		case <-w.shut:
		}
	}()
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// SignalSharePayload signals a share payload operation. If
// maxPayloadShareRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalSharePayload(entry mempool.Entry) {
	select {
	case w.payloadSharing <- entry:
		w.evHandler("worker: SignalSharePayload: share payload signaled")
	default:
		w.evHandler("worker: SignalSharePayload: queue full, payload won't be shared")
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
