/*
adjust.go - Manual adjustments for flagged transactions

PURPOSE:
  When a replay aborts on InsufficientBalance, an operator resolves it by
  inserting a manual adjustment: an inflow that tops the group up to what
  the failing outflow needs, or a compensating outflow. The adjustment is
  inserted uncosted and the reference transaction's revision flag is
  cleared, so the next full run (or re-cost) replays both in order.

PROPOSALS:
  ProposeAdjustment computes a sensible default the operator can edit:
  - inflow: quantity = |tx qty| - prior balance quantity, priced at the
    prior average cost (prior value / prior quantity), falling back to
    the reference transaction's own price when there is no prior balance.
  - outflow: quantity = |tx qty| at the reference transaction's price.
*/
package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AdjustmentKind selects the direction of a manual adjustment.
type AdjustmentKind string

const (
	AdjustInflow  AdjustmentKind = "inflow"
	AdjustOutflow AdjustmentKind = "outflow"
)

// AdjustmentProposal is a suggested manual adjustment for one flagged
// transaction. The operator may accept it as-is or override quantity
// and price before creating it.
type AdjustmentProposal struct {
	ReferenceTxID int64
	Kind          AdjustmentKind
	Date          Date
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Memo          string

	// Prior balance context shown to the operator.
	PriorQuantity decimal.Decimal
	PriorValue    decimal.Decimal
}

// Adjuster proposes and creates manual adjustments.
type Adjuster struct {
	Store Store
}

// Propose computes the default adjustment for a reference transaction.
func (a *Adjuster) Propose(ctx context.Context, refTxID int64, kind AdjustmentKind) (*AdjustmentProposal, error) {
	ref, err := a.Store.GetTransaction(ctx, refTxID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, &ValidationError{TransactionID: refTxID, Field: "id", Message: "does not exist"}
	}

	priorQty, priorVal := decimal.Zero, decimal.Zero
	last, err := a.Store.LastEntryBefore(ctx, ref.Group, ref.Date)
	if err != nil {
		return nil, err
	}
	if last != nil {
		priorQty, priorVal = last.BalanceQuantity, last.BalanceValue
	}

	proposal := &AdjustmentProposal{
		ReferenceTxID: ref.ID,
		Kind:          kind,
		Date:          ref.Date,
		Memo:          fmt.Sprintf("adjustment proposal for tx %d", ref.ID),
		PriorQuantity: priorQty,
		PriorValue:    priorVal,
	}

	switch kind {
	case AdjustInflow:
		proposal.Quantity = ref.Quantity.Abs().Sub(priorQty)
		if priorQty.IsPositive() {
			proposal.Price = priorVal.DivRound(priorQty, costScale)
		} else {
			proposal.Price = ref.Price
		}
	case AdjustOutflow:
		proposal.Quantity = ref.Quantity.Abs()
		proposal.Price = ref.Price
	default:
		return nil, &ValidationError{TransactionID: refTxID, Field: "kind", Message: "must be inflow or outflow"}
	}
	return proposal, nil
}

// Create inserts a manual adjustment and clears the reference
// transaction's revision flag so the next run reconsiders it.
func (a *Adjuster) Create(ctx context.Context, refTxID int64, kind AdjustmentKind, quantity, price decimal.Decimal) (int64, error) {
	ref, err := a.Store.GetTransaction(ctx, refTxID)
	if err != nil {
		return 0, err
	}
	if ref == nil {
		return 0, &ValidationError{TransactionID: refTxID, Field: "id", Message: "does not exist"}
	}
	if !quantity.IsPositive() {
		return 0, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if price.IsNegative() {
		return 0, &ValidationError{Field: "price", Message: "must not be negative"}
	}

	txKind := KindInflow
	if kind == AdjustOutflow {
		txKind = KindOutflow
	}

	adjustment := Transaction{
		Group:         ref.Group,
		Date:          ref.Date,
		Kind:          txKind,
		Quantity:      quantity,
		Price:         price,
		Memo:          fmt.Sprintf("manual adjustment for tx %d", ref.ID),
		AdjustmentFor: ref.ID,
	}
	id, err := a.Store.InsertTransaction(ctx, adjustment)
	if err != nil {
		return 0, err
	}

	if ref.ForRevision {
		if err := a.Store.ClearRevisionFlag(ctx, ref.ID); err != nil {
			return 0, err
		}
	}
	return id, nil
}
