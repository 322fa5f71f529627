/*
outflow.go - FIFO consumption of inventory lots

PURPOSE:
  Handles outflow transactions: checks the available balance (with a
  bounded-tolerance auto-adjustment for near-matches), then drains the
  group's lot queue oldest-first, writing one ledger row per partial
  consumption plus a trace row attributing the cost to the inflow lot
  it came from.

TOLERANCE ADJUSTMENT:
  Outflows that exceed the available quantity by at most 0.5 units do not
  fail. Instead a synthetic inflow transaction is created for the
  shortfall, priced at the outflow's own price (zero if absent), written
  to the ledger, pushed onto the lot queue and folded into the balances
  before consumption proceeds. Larger shortfalls fail with
  InsufficientBalance and write nothing.

SEE ALSO:
  - inflow.go: Inflow handling
  - processor.go: Abort policy when this handler fails
*/
package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// adjustmentTolerance is the largest shortfall absorbed by a synthetic
// inflow rather than failing the outflow.
var adjustmentTolerance = decimal.RequireFromString("0.5")

// =============================================================================
// OUTFLOW HANDLER
// =============================================================================

type outflowHandler struct {
	store Store
}

func (h *outflowHandler) handle(ctx context.Context, tx Transaction, queue *lotQueue, cur balances) (balances, error) {
	requested := tx.Quantity
	if !requested.IsPositive() {
		return cur, &ValidationError{TransactionID: tx.ID, Field: "quantity", Message: "must be greater than zero"}
	}

	// 1. Shortfall check, with bounded-tolerance auto-adjustment.
	if cur.Quantity.LessThan(requested) {
		shortfall := requested.Sub(cur.Quantity)
		if shortfall.Abs().GreaterThan(adjustmentTolerance) {
			return cur, &InsufficientBalanceError{
				TransactionID: tx.ID,
				Group:         tx.Group,
				Requested:     requested,
				Available:     cur.Quantity,
				Shortfall:     shortfall,
			}
		}

		adjusted, err := h.createToleranceAdjustment(ctx, tx, shortfall, cur, queue)
		if err != nil {
			return cur, err
		}
		cur = adjusted
	}

	// 2. FIFO consumption loop.
	pending := requested
	costConsumed := decimal.Zero

	for pending.IsPositive() {
		lot := queue.peek()
		if lot == nil {
			return cur, &InsufficientBalanceError{
				TransactionID:  tx.ID,
				Group:          tx.Group,
				Requested:      requested,
				Available:      cur.Quantity,
				Shortfall:      pending,
				QueueExhausted: true,
			}
		}

		used := decimal.Min(pending, lot.Remaining)
		partialCost := used.Mul(lot.UnitCost)
		costConsumed = costConsumed.Add(partialCost)

		// Draw the lot down, persisting the new remaining quantity.
		lot.Remaining = lot.Remaining.Sub(used)
		if err := h.store.UpdateAvailable(ctx, lot.EntryID, lot.Remaining); err != nil {
			return cur, err
		}

		pending = pending.Sub(used)

		// Running balance at this partial consumption: quantity drawn down
		// incrementally, value net of cost consumed so far.
		partialQty := cur.Quantity.Sub(requested).Add(pending)
		partialVal := cur.Value.Sub(costConsumed)
		entry := outflowEntry(tx, used, partialCost, partialQty, partialVal)
		if _, err := h.store.InsertEntry(ctx, entry); err != nil {
			return cur, err
		}

		trace := Trace{
			Group:        tx.Group,
			InflowTxID:   lot.TransactionID,
			OutflowTxID:  tx.ID,
			QuantityUsed: used,
			CostConsumed: partialCost,
		}
		if err := h.store.InsertTrace(ctx, trace); err != nil {
			return cur, err
		}

		if !lot.Remaining.IsPositive() {
			queue.pop()
		}
	}

	// 3. Final balances.
	return balances{
		Quantity: cur.Quantity.Sub(requested),
		Value:    cur.Value.Sub(costConsumed),
	}, nil
}

// createToleranceAdjustment synthesizes the inflow that absorbs a small
// shortfall: a new transaction (marked costed immediately) plus its ledger
// row, pushed onto the queue and folded into the balances.
func (h *outflowHandler) createToleranceAdjustment(ctx context.Context, tx Transaction, shortfall decimal.Decimal, cur balances, queue *lotQueue) (balances, error) {
	price := tx.Price // zero value when the outflow carries no price

	adjustment := Transaction{
		Group:         tx.Group,
		Date:          tx.Date,
		Kind:          KindInflow,
		Quantity:      shortfall,
		Price:         price,
		Memo:          fmt.Sprintf("automatic tolerance adjustment for tx %d", tx.ID),
		AdjustmentFor: tx.ID,
		Costed:        true,
		ForRevision:   false,
	}
	adjID, err := h.store.InsertTransaction(ctx, adjustment)
	if err != nil {
		return cur, err
	}
	adjustment.ID = adjID

	next := balances{
		Quantity: cur.Quantity.Add(shortfall),
		Value:    cur.Value.Add(shortfall.Mul(price)),
	}

	entry := inflowEntry(adjustment, next.Quantity, next.Value)
	entryID, err := h.store.InsertEntry(ctx, entry)
	if err != nil {
		return cur, err
	}
	entry.ID = entryID

	queue.push(lotFromEntry(entry))
	return next, nil
}
