package costing

import "github.com/shopspring/decimal"

// =============================================================================
// ENTRY FACTORY - Pure construction of ledger rows
// =============================================================================

// costScale is the fractional precision of unit and average costs.
// Divisions round half-up to this many digits.
const costScale = 6

// inflowEntry builds the ledger row for an inflow (or opening-balance)
// transaction. The row opens a new lot: Available starts at the full
// transaction quantity.
func inflowEntry(tx Transaction, balanceQty, balanceVal decimal.Decimal) Entry {
	return Entry{
		TransactionID:   tx.ID,
		Group:           tx.Group,
		Date:            tx.Date,
		Kind:            KindInflow,
		Quantity:        tx.Quantity,
		UnitCost:        tx.Price,
		TotalCost:       tx.Quantity.Mul(tx.Price),
		BalanceQuantity: balanceQty,
		BalanceValue:    balanceVal,
		Available:       tx.Quantity,
	}
}

// outflowEntry builds the ledger row for one partial FIFO consumption of an
// outflow transaction. Unit cost is partial cost / quantity used, rounded
// half-up to costScale digits; zero when the quantity is zero.
func outflowEntry(tx Transaction, quantityUsed, partialCost, balanceQty, balanceVal decimal.Decimal) Entry {
	unitCost := decimal.Zero
	if !quantityUsed.IsZero() {
		unitCost = partialCost.DivRound(quantityUsed, costScale)
	}
	return Entry{
		TransactionID:   tx.ID,
		Group:           tx.Group,
		Date:            tx.Date,
		Kind:            KindOutflow,
		Quantity:        quantityUsed,
		UnitCost:        unitCost,
		TotalCost:       partialCost,
		BalanceQuantity: balanceQty,
		BalanceValue:    balanceVal,
		Available:       decimal.Zero,
	}
}
