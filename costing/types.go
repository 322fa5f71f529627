/*
Package costing provides the FIFO cost-basis engine.

PURPOSE:
  This package contains the types and algorithms for replaying economic
  events (inflows and outflows) against per-group inventory, consuming
  lots oldest-first and producing an append-only ledger (kardex) plus
  running and daily balance snapshots.

KEY CONCEPTS IN THIS FILE (types.go):
  - GroupKey: The unit of FIFO isolation (company|account|custodian|instrument)
  - Transaction: An economic event to be costed
  - Entry: One append-only ledger (kardex) row
  - RunningBalance / DailyBalance: Derived balance state
  - Trace: Links an outflow to the inflow lot it consumed

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Append-only ledger: Entries are never updated except for the
     remaining-available quantity of inflow rows, which is drawn down
     through an explicit store call
  3. Exactly-one terminal flag: Every processed transaction ends either
     costed or flagged for revision, never both, never neither

SEE ALSO:
  - processor.go: Per-group replay state machine
  - engine.go: Run orchestration across groups
  - store.go: Persistence contracts
*/
package costing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GROUP KEY - Unit of FIFO isolation
// =============================================================================

// GroupKey identifies one independent costing stream. Each group owns its
// own lot queue, running balance and daily balances.
type GroupKey struct {
	CompanyID    int64
	Account      string
	CustodianID  int64
	InstrumentID int64
}

// String renders the canonical pipe-separated form used as a grouping key
// and in the re-cost API: "company|account|custodian|instrument".
func (k GroupKey) String() string {
	return fmt.Sprintf("%d|%s|%d|%d", k.CompanyID, k.Account, k.CustodianID, k.InstrumentID)
}

// ParseGroupKey parses the pipe-separated form produced by String.
func ParseGroupKey(s string) (GroupKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return GroupKey{}, fmt.Errorf("invalid group key %q: want company|account|custodian|instrument", s)
	}
	company, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return GroupKey{}, fmt.Errorf("invalid company id in group key %q: %w", s, err)
	}
	custodian, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return GroupKey{}, fmt.Errorf("invalid custodian id in group key %q: %w", s, err)
	}
	instrument, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return GroupKey{}, fmt.Errorf("invalid instrument id in group key %q: %w", s, err)
	}
	return GroupKey{
		CompanyID:    company,
		Account:      parts[1],
		CustodianID:  custodian,
		InstrumentID: instrument,
	}, nil
}

// =============================================================================
// MOVEMENT KIND
// =============================================================================

// MovementKind classifies a transaction for costing purposes.
type MovementKind string

const (
	// KindOpeningBalance marks the start of a group's history. It behaves
	// like an inflow but signals that balances seed from zero.
	KindOpeningBalance MovementKind = "opening_balance"

	// KindInflow adds inventory (purchase, deposit, adjustment).
	KindInflow MovementKind = "inflow"

	// KindOutflow removes inventory (sale, withdrawal), consuming lots FIFO.
	KindOutflow MovementKind = "outflow"

	// KindExcluded is never costed (informational movements).
	KindExcluded MovementKind = "excluded"
)

// Rank returns the within-date processing priority: opening-balance rows
// first, then inflows, then outflows.
func (k MovementKind) Rank() int {
	switch k {
	case KindOpeningBalance:
		return 0
	case KindInflow:
		return 1
	case KindOutflow:
		return 2
	default:
		return 3
	}
}

// =============================================================================
// TRANSACTION - Economic event to be costed
// =============================================================================

// Transaction is an immutable economic event. The engine mutates only the
// two terminal flags (Costed / ForRevision), through the TransactionStore.
type Transaction struct {
	ID       int64
	Group    GroupKey
	Date     Date
	Kind     MovementKind
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Memo     string

	// AdjustmentFor references the transaction that triggered a synthetic
	// or manual adjustment. Zero for ordinary transactions.
	AdjustmentFor int64

	// Terminal flags. Exactly one is true once the transaction reaches a
	// terminal state.
	Costed      bool
	ForRevision bool
}

// Total returns quantity * price.
func (t Transaction) Total() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// =============================================================================
// ENTRY - Append-only ledger (kardex) row
// =============================================================================

// Entry is one append-only ledger row: a costing event and the running
// balance it produced. Inflow entries additionally carry Available, the
// remaining quantity of the lot they opened; it is drawn down in place as
// later outflows consume the lot.
type Entry struct {
	ID            int64
	TransactionID int64
	Group         GroupKey
	Date          Date
	Kind          MovementKind
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal

	// Running balances immediately after this entry.
	BalanceQuantity decimal.Decimal
	BalanceValue    decimal.Decimal

	// Available is the lot's remaining quantity (inflow entries only).
	Available decimal.Decimal
}

// =============================================================================
// BALANCES
// =============================================================================

// RunningBalance is the current position of one group: quantity held, total
// cost carried and the derived average unit cost. Upserted once per
// processed transaction.
type RunningBalance struct {
	Group       GroupKey
	Quantity    decimal.Decimal
	TotalCost   decimal.Decimal
	AverageCost decimal.Decimal
	UpdatedAt   Date
}

// recalcAverage derives AverageCost from TotalCost / Quantity.
func (b *RunningBalance) recalcAverage() {
	if b.Quantity.IsPositive() {
		b.AverageCost = b.TotalCost.DivRound(b.Quantity, costScale)
	} else {
		b.AverageCost = decimal.Zero
	}
}

// DailyBalance is the closing position of one group for one calendar day.
// Days without movement carry the prior day's close forward.
type DailyBalance struct {
	Group    GroupKey
	Date     Date
	Quantity decimal.Decimal
	Value    decimal.Decimal
}

// =============================================================================
// TRACE - Outflow-to-lot attribution
// =============================================================================

// Trace records that an outflow consumed part of one inflow lot: which
// inflow transaction funded it, how much quantity and at what cost.
type Trace struct {
	ID            int64
	Group         GroupKey
	InflowTxID    int64
	OutflowTxID   int64
	QuantityUsed  decimal.Decimal
	CostConsumed  decimal.Decimal
}
