/*
scheduler.go - Automated costing scheduler

PURPOSE:
  Periodically runs a full costing pass so that transactions loaded by
  upstream systems get costed without an operator pressing the button.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick performs one full engine run over all pending transactions
  - Skips silently when nothing is pending
  - Shares the handler's run mutex so ticks never overlap API runs

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewCostingScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunCosting endpoint (manual run)
  - costing/engine.go: run orchestration
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// CostingScheduler drives periodic costing runs.
type CostingScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCostingScheduler creates a new scheduler.
func NewCostingScheduler(handler *Handler) *CostingScheduler {
	return &CostingScheduler{
		Handler:  handler,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan bool),
	}
}

// Start begins the scheduler.
func (cs *CostingScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	cs.ticker = time.NewTicker(cs.Interval)
	cs.wg.Add(1)

	go cs.run()

	log.Printf("[Scheduler] Started with interval: %v", cs.Interval)
}

// Stop stops the scheduler.
func (cs *CostingScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (cs *CostingScheduler) run() {
	defer cs.wg.Done()

	// Run immediately on start
	cs.runOnce()

	for {
		select {
		case <-cs.ticker.C:
			cs.runOnce()
		case <-cs.stop:
			return
		}
	}
}

func (cs *CostingScheduler) runOnce() {
	ctx := context.Background()

	pending, err := cs.Handler.Store.PendingTransactions(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing pending transactions: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("[Scheduler] Costing %d pending transactions", len(pending))

	cs.Handler.runMu.Lock()
	defer cs.Handler.runMu.Unlock()

	report, err := cs.Handler.Engine.Run(ctx)
	if err != nil {
		log.Printf("[Scheduler] Costing run failed: %v", err)
		return
	}

	log.Printf("[Scheduler] Run %s completed: %d costed, %d flagged across %d groups",
		report.RunID, report.Costed(), report.Flagged(), len(report.Groups))
}

// RunNow triggers an immediate run (for testing/admin).
func (cs *CostingScheduler) RunNow() {
	cs.runOnce()
}

// GetNextRunTime returns when the next scheduled run will occur.
func (cs *CostingScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(cs.Interval)
}
