package costing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INFLOW HANDLER
// =============================================================================

// balances carries a group's running quantity and value through the replay.
type balances struct {
	Quantity decimal.Decimal
	Value    decimal.Decimal
}

// inflowHandler appends inventory: it writes the ledger row, opens the lot
// and returns the new balances. Inflows cannot fail on balance; only on
// validation or storage.
type inflowHandler struct {
	store Store
}

func (h *inflowHandler) handle(ctx context.Context, tx Transaction, queue *lotQueue, cur balances) (balances, error) {
	if !tx.Quantity.IsPositive() {
		return cur, &ValidationError{TransactionID: tx.ID, Field: "quantity", Message: "must be greater than zero"}
	}
	if tx.Price.IsNegative() {
		return cur, &ValidationError{TransactionID: tx.ID, Field: "price", Message: "must not be negative"}
	}

	next := balances{
		Quantity: cur.Quantity.Add(tx.Quantity),
		Value:    cur.Value.Add(tx.Quantity.Mul(tx.Price)),
	}

	entry := inflowEntry(tx, next.Quantity, next.Value)
	id, err := h.store.InsertEntry(ctx, entry)
	if err != nil {
		return cur, err
	}
	entry.ID = id

	queue.push(lotFromEntry(entry))
	return next, nil
}
