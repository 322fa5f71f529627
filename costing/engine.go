/*
engine.go - Run orchestration across costing groups

PURPOSE:
  Selects every transaction eligible for costing, partitions the set by
  group key, and drives one group processor per group. Groups are
  mutually independent, so they are dispatched to a small worker pool;
  replay within a group stays strictly sequential.

FAILURE ISOLATION:
  One group aborting never prevents sibling groups from being attempted.
  The run report carries a per-group result (state, counts, error) for
  operator triage.

RE-COSTING:
  Recost deletes one group's derived state (ledger rows, traces, running
  balance), resets its transaction flags and replays just that group.
  Concurrent runs touching the same group must be serialized by the
  caller.
*/
package costing

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine drives full costing runs and group re-costs.
type Engine struct {
	Store Store

	// Workers bounds how many groups are replayed concurrently.
	// Zero or one means sequential.
	Workers int
}

func NewEngine(store Store) *Engine {
	return &Engine{Store: store, Workers: 1}
}

// RunReport summarizes one engine invocation.
type RunReport struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     []GroupResult
}

// Costed and Flagged return the run-wide totals.
func (r *RunReport) Costed() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Costed
	}
	return n
}

func (r *RunReport) Flagged() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Flagged
	}
	return n
}

// Run performs a full costing pass: every eligible transaction, every
// group. The returned error covers only the selection query; per-group
// failures are reported in the run report, not returned.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.New(), StartedAt: time.Now()}

	pending, err := e.Store.PendingTransactions(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[Engine] run %s: %d pending transactions", report.RunID, len(pending))

	keys, byGroup := partition(pending)
	report.Groups = e.processGroups(ctx, keys, byGroup)
	report.FinishedAt = time.Now()

	log.Printf("[Engine] run %s: %d groups, %d costed, %d flagged",
		report.RunID, len(report.Groups), report.Costed(), report.Flagged())
	return report, nil
}

// Recost rebuilds one group from scratch: derived state deleted, flags
// reset, group replayed. Returns the group's result.
func (e *Engine) Recost(ctx context.Context, key GroupKey) (*RunReport, error) {
	report := &RunReport{RunID: uuid.New(), StartedAt: time.Now()}
	log.Printf("[Engine] recost %s: group %s", report.RunID, key)

	if err := e.Store.DeleteTracesByGroup(ctx, key); err != nil {
		return nil, err
	}
	if err := e.Store.DeleteEntriesByGroup(ctx, key); err != nil {
		return nil, err
	}
	if err := e.Store.DeleteRunningBalance(ctx, key); err != nil {
		return nil, err
	}
	if err := e.Store.ResetFlags(ctx, key); err != nil {
		return nil, err
	}

	pending, err := e.Store.PendingTransactions(ctx)
	if err != nil {
		return nil, err
	}

	var txs []Transaction
	for _, tx := range pending {
		if tx.Group == key {
			txs = append(txs, tx)
		}
	}

	processor := newGroupProcessor(e.Store, key, txs)
	report.Groups = []GroupResult{processor.process(ctx)}
	report.FinishedAt = time.Now()
	return report, nil
}

// processGroups fans the groups out over the worker pool, preserving the
// input group order in the results.
func (e *Engine) processGroups(ctx context.Context, keys []GroupKey, byGroup map[GroupKey][]Transaction) []GroupResult {
	results := make([]GroupResult, len(keys))

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(keys) {
		workers = len(keys)
	}

	if workers <= 1 {
		for i, key := range keys {
			results[i] = e.processOne(ctx, key, byGroup[key])
		}
		return results
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				key := keys[i]
				results[i] = e.processOne(ctx, key, byGroup[key])
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (e *Engine) processOne(ctx context.Context, key GroupKey, txs []Transaction) GroupResult {
	log.Printf("[Engine] processing group %s: %d transactions", key, len(txs))
	processor := newGroupProcessor(e.Store, key, txs)
	result := processor.process(ctx)
	if result.State == StateComplete {
		log.Printf("[Engine] group %s complete: %d costed", key, result.Costed)
	} else {
		log.Printf("[Engine] group %s aborted: %d costed, %d flagged: %v", key, result.Costed, result.Flagged, result.Err)
	}
	return result
}

// partition splits the globally ordered transaction list by group key,
// preserving replay order within each group and first-appearance order
// across groups.
func partition(txs []Transaction) ([]GroupKey, map[GroupKey][]Transaction) {
	var keys []GroupKey
	byGroup := make(map[GroupKey][]Transaction)
	for _, tx := range txs {
		if _, seen := byGroup[tx.Group]; !seen {
			keys = append(keys, tx.Group)
		}
		byGroup[tx.Group] = append(byGroup[tx.Group], tx)
	}
	return keys, byGroup
}
