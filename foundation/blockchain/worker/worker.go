// Package worker implements the harvesting workflow for the blockchain.
package worker

import (
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// DefaultHarvestInterval represents the interval between harvesting attempts.
const DefaultHarvestInterval = time.Second

// =============================================================================

// Worker manages the harvesting workflow for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	shut         chan struct{}
	startHarvest chan bool
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, interval time.Duration, evHandler state.EventHandler) *Worker {
	if interval <= 0 {
		interval = DefaultHarvestInterval
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		state:        st,
		ticker:       time.NewTicker(interval),
		shut:         make(chan struct{}),
		startHarvest: make(chan bool, 1),
		evHandler:    ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.harvestOperations,
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

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalHarvest starts a harvesting attempt. If there is already a signal
// pending in the channel, just return since an attempt will start.
func (w *Worker) SignalHarvest() {
	select {
	case w.startHarvest <- true:
	default:
	}
	w.evHandler("worker: SignalHarvest: harvesting signaled")
}

// =============================================================================

// harvestOperations runs a harvesting attempt on every tick or signal.
func (w *Worker) harvestOperations() {
	w.evHandler("worker: harvestOperations: G started")
	defer w.evHandler("worker: harvestOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runHarvestOperation()
			}
		case <-w.startHarvest:
			if !w.isShutdown() {
				w.runHarvestOperation()
			}
		case <-w.shut:
			w.evHandler("worker: harvestOperations: received shut signal")
			return
		}
	}
}

// runHarvestOperation asks the state to harvest the next block.
func (w *Worker) runHarvestOperation() {
	if !w.state.IsHarvestingAllowed() {
		return
	}

	if err := w.state.HarvestNextBlock(); err != nil {
		w.evHandler("worker: runHarvestOperation: HARVEST: ERROR: %s", err)
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
