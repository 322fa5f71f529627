/*
processor.go - Per-group replay state machine

PURPOSE:
  Owns one group's replay: seeds opening balances and the FIFO lot queue,
  walks the group's transactions in order, dispatches to the inflow or
  outflow handler, and applies the abort-on-error policy.

STATE MACHINE:
  stateInit -> stateReplaying -> {stateComplete | stateAborted}

  Once a handler fails, the FIFO queue is in an undefined state and every
  order-dependent transaction after the failure is unsafe to evaluate.
  The processor therefore transitions to stateAborted, flags the failing
  transaction and every remaining one for revision, and skips the daily
  snapshot recomputation. Transactions costed earlier in the same run are
  NOT rolled back; a future full run or re-cost picks up the flagged rows.

SEE ALSO:
  - engine.go: One processor per group, groups isolated from each other
  - snapshot.go: Daily recomputation triggered on stateComplete
*/
package costing

import (
	"context"
	"log"
)

// ProcessorState is the replay lifecycle of one group.
type ProcessorState string

const (
	stateInit      ProcessorState = "init"
	stateReplaying ProcessorState = "replaying"

	// StateComplete means every transaction of the run was costed.
	StateComplete ProcessorState = "complete"

	// StateAborted means a transaction failed; it and all later ones are
	// flagged for revision.
	StateAborted ProcessorState = "aborted"
)

// GroupResult summarizes one group's replay for the run report.
type GroupResult struct {
	Key     GroupKey
	State   ProcessorState
	Costed  int
	Flagged int

	// Err is the handler failure that aborted the replay, if any.
	Err error
}

// groupProcessor replays one group. It owns the group's lot queue and
// running balances exclusively for the duration of the run.
type groupProcessor struct {
	store Store
	key   GroupKey
	txs   []Transaction

	state ProcessorState
	bal   balances
	queue lotQueue

	inflow  inflowHandler
	outflow outflowHandler
}

func newGroupProcessor(store Store, key GroupKey, txs []Transaction) *groupProcessor {
	return &groupProcessor{
		store:   store,
		key:     key,
		txs:     txs,
		state:   stateInit,
		inflow:  inflowHandler{store: store},
		outflow: outflowHandler{store: store},
	}
}

// process runs the full replay and returns the group's result. Storage
// errors during seeding abort before any transaction is evaluated.
func (p *groupProcessor) process(ctx context.Context) GroupResult {
	result := GroupResult{Key: p.key, State: StateAborted}
	if len(p.txs) == 0 {
		result.State = StateComplete
		return result
	}

	if err := p.seed(ctx); err != nil {
		log.Printf("[Processor] group %s: seeding failed: %v", p.key, err)
		result.Err = err
		p.flagAll(ctx, &result)
		return result
	}

	p.state = stateReplaying
	for _, tx := range p.txs {
		if p.state == StateAborted {
			// Short-circuit: everything after the failure is deferred.
			if err := p.store.MarkForRevision(ctx, tx.ID); err != nil {
				log.Printf("[Processor] group %s: flagging tx %d failed: %v", p.key, tx.ID, err)
			}
			result.Flagged++
			continue
		}

		if err := p.replayOne(ctx, tx); err != nil {
			log.Printf("[Processor] group %s: tx %d failed, aborting replay: %v", p.key, tx.ID, err)
			if ferr := p.store.MarkForRevision(ctx, tx.ID); ferr != nil {
				log.Printf("[Processor] group %s: flagging tx %d failed: %v", p.key, tx.ID, ferr)
			}
			result.Flagged++
			if result.Err == nil {
				result.Err = err
			}
			p.state = StateAborted
			continue
		}
		result.Costed++
	}

	if p.state == StateAborted {
		return result
	}

	p.state = StateComplete
	result.State = StateComplete

	// Daily snapshots only once the whole run succeeded.
	dates := make([]Date, len(p.txs))
	for i, tx := range p.txs {
		dates[i] = tx.Date
	}
	if err := recomputeDailyBalances(ctx, p.store, p.key, MinDate(dates), MaxDate(dates)); err != nil {
		log.Printf("[Processor] group %s: daily balance recomputation failed: %v", p.key, err)
		result.Err = err
	}
	return result
}

// seed establishes the opening balances and lot queue. A group whose first
// transaction is an opening-balance row starts from zero with an empty
// queue; otherwise history continues from the last ledger row and the
// still-open lots strictly before the first transaction's date.
func (p *groupProcessor) seed(ctx context.Context) error {
	first := p.txs[0]
	if first.Kind == KindOpeningBalance {
		p.bal = balances{}
		return nil
	}

	last, err := p.store.LastEntryBefore(ctx, p.key, first.Date)
	if err != nil {
		return err
	}
	if last != nil {
		p.bal = balances{Quantity: last.BalanceQuantity, Value: last.BalanceValue}
	}

	open, err := p.store.OpenLotsBefore(ctx, p.key, first.Date)
	if err != nil {
		return err
	}
	for _, e := range open {
		p.queue.push(lotFromEntry(e))
	}
	return nil
}

// replayOne dispatches a single transaction and, on success, marks it
// costed and upserts the group's running balance.
func (p *groupProcessor) replayOne(ctx context.Context, tx Transaction) error {
	var (
		next balances
		err  error
	)
	switch tx.Kind {
	case KindOpeningBalance, KindInflow:
		next, err = p.inflow.handle(ctx, tx, &p.queue, p.bal)
	case KindOutflow:
		next, err = p.outflow.handle(ctx, tx, &p.queue, p.bal)
	default:
		err = &ValidationError{TransactionID: tx.ID, Field: "kind", Message: "is not costable"}
	}
	if err != nil {
		return err
	}

	p.bal = next
	if err := p.store.MarkCosted(ctx, tx.ID); err != nil {
		return err
	}
	return p.upsertRunningBalance(ctx, tx)
}

func (p *groupProcessor) upsertRunningBalance(ctx context.Context, tx Transaction) error {
	rb := RunningBalance{
		Group:     p.key,
		Quantity:  p.bal.Quantity,
		TotalCost: p.bal.Value,
		UpdatedAt: tx.Date,
	}
	rb.recalcAverage()
	return p.store.UpsertRunningBalance(ctx, rb)
}

// flagAll marks every transaction of the run for revision. Used when
// seeding itself fails and nothing can be evaluated.
func (p *groupProcessor) flagAll(ctx context.Context, result *GroupResult) {
	for _, tx := range p.txs {
		if err := p.store.MarkForRevision(ctx, tx.ID); err != nil {
			log.Printf("[Processor] group %s: flagging tx %d failed: %v", p.key, tx.ID, err)
		}
		result.Flagged++
	}
}
