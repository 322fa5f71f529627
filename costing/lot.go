package costing

import "github.com/shopspring/decimal"

// =============================================================================
// LOT - One inflow's remaining inventory, queued FIFO
// =============================================================================

// Lot is an in-memory view over one inflow ledger entry: its identity, unit
// cost and live remaining quantity. Lots are plain values; they never alias
// a persisted row. Draw-downs are written back explicitly through
// LedgerStore.UpdateAvailable.
type Lot struct {
	EntryID       int64
	TransactionID int64
	UnitCost      decimal.Decimal
	Remaining     decimal.Decimal
}

// lotFromEntry builds a Lot from an inflow ledger entry.
func lotFromEntry(e Entry) Lot {
	return Lot{
		EntryID:       e.ID,
		TransactionID: e.TransactionID,
		UnitCost:      e.UnitCost,
		Remaining:     e.Available,
	}
}

// lotQueue is a group's FIFO queue of non-exhausted lots, oldest first.
// It lives only for the duration of one group replay.
type lotQueue struct {
	lots []Lot
}

func (q *lotQueue) push(l Lot) {
	q.lots = append(q.lots, l)
}

// peek returns a pointer to the oldest lot, or nil if the queue is empty.
// The pointer is only valid until the next push or pop.
func (q *lotQueue) peek() *Lot {
	if len(q.lots) == 0 {
		return nil
	}
	return &q.lots[0]
}

func (q *lotQueue) pop() {
	if len(q.lots) > 0 {
		q.lots = q.lots[1:]
	}
}

func (q *lotQueue) len() int { return len(q.lots) }
