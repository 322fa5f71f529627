/*
store.go - Persistence contracts for the costing engine

PURPOSE:
  Defines the interface between the engine and the database. The engine
  only ever touches storage through these contracts; implementations live
  in costing/store (in-memory) and store/sqlite (SQLite).

CONTRACT NOTES:
  - The ledger is append-only with one exception: an inflow entry's
    remaining-available quantity is drawn down via UpdateAvailable as
    later outflows consume the lot.
  - PendingTransactions returns rows in the required global replay order:
    date ascending, opening-balance rows first, inflows before outflows
    on the same date, id ascending as the final tie-break.
  - Delete methods exist only for re-costing: they remove a group's
    derived state so the group can be replayed from scratch.
*/
package costing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// TransactionStore persists economic events and their terminal flags.
type TransactionStore interface {
	// PendingTransactions returns every transaction eligible for costing
	// (kind != excluded, not costed, not flagged), in global replay order.
	PendingTransactions(ctx context.Context) ([]Transaction, error)

	// InsertTransaction persists a new transaction (synthetic tolerance
	// adjustments, manual adjustments) and returns its generated id.
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)

	// GetTransaction loads one transaction by id.
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)

	// MarkCosted sets costed=true, for-revision=false.
	MarkCosted(ctx context.Context, id int64) error

	// MarkForRevision sets costed=false, for-revision=true.
	MarkForRevision(ctx context.Context, id int64) error

	// ClearRevisionFlag sets for-revision=false without costing the row,
	// so a follow-up run reconsiders it. Used after manual adjustments.
	ClearRevisionFlag(ctx context.Context, id int64) error

	// ResetFlags clears both flags for every transaction of a group.
	ResetFlags(ctx context.Context, key GroupKey) error
}

// =============================================================================
// LEDGER STORE (kardex)
// =============================================================================

// LedgerStore persists append-only ledger entries.
type LedgerStore interface {
	// InsertEntry appends one ledger row and returns its generated id.
	InsertEntry(ctx context.Context, e Entry) (int64, error)

	// LastEntryBefore returns the group's latest ledger row strictly
	// before the given date (by date, then id), or nil if none.
	LastEntryBefore(ctx context.Context, key GroupKey, before Date) (*Entry, error)

	// OpenLotsBefore returns the group's inflow rows with available > 0
	// dated strictly before the given date, ordered by date then id.
	// These seed the FIFO queue.
	OpenLotsBefore(ctx context.Context, key GroupKey, before Date) ([]Entry, error)

	// EntriesInRange returns the group's ledger rows with date in
	// [from, to], ordered by date then id.
	EntriesInRange(ctx context.Context, key GroupKey, from, to Date) ([]Entry, error)

	// UpdateAvailable overwrites the remaining-available quantity of one
	// inflow entry. The only permitted ledger mutation.
	UpdateAvailable(ctx context.Context, entryID int64, remaining decimal.Decimal) error

	// DeleteEntriesByGroup removes all of a group's ledger rows (re-cost).
	DeleteEntriesByGroup(ctx context.Context, key GroupKey) error

	// ListGroups returns the distinct group keys present in the ledger.
	ListGroups(ctx context.Context) ([]GroupKey, error)
}

// =============================================================================
// BALANCE STORE
// =============================================================================

// BalanceStore persists running and daily balances.
type BalanceStore interface {
	// RunningBalance returns the group's running balance, or nil if the
	// group has never been costed.
	RunningBalance(ctx context.Context, key GroupKey) (*RunningBalance, error)

	// UpsertRunningBalance inserts or updates the group's running balance.
	UpsertRunningBalance(ctx context.Context, b RunningBalance) error

	// DeleteRunningBalance removes the group's running balance (re-cost).
	DeleteRunningBalance(ctx context.Context, key GroupKey) error

	// LastDailyBefore returns the group's latest daily balance strictly
	// before the given date, or nil if none.
	LastDailyBefore(ctx context.Context, key GroupKey, before Date) (*DailyBalance, error)

	// DailyInRange returns the group's daily balances with date in
	// [from, to], ordered by date.
	DailyInRange(ctx context.Context, key GroupKey, from, to Date) ([]DailyBalance, error)

	// UpsertDailyBalance inserts or updates one group+day closing balance.
	UpsertDailyBalance(ctx context.Context, b DailyBalance) error
}

// =============================================================================
// TRACE STORE
// =============================================================================

// TraceStore persists outflow-to-lot consumption traces.
type TraceStore interface {
	// InsertTrace appends one consumption trace.
	InsertTrace(ctx context.Context, t Trace) error

	// TracesByOutflow returns the traces recorded for one outflow
	// transaction, in insertion order.
	TracesByOutflow(ctx context.Context, outflowTxID int64) ([]Trace, error)

	// DeleteTracesByGroup removes all of a group's traces (re-cost).
	DeleteTracesByGroup(ctx context.Context, key GroupKey) error
}

// =============================================================================
// COMPOSITE STORE
// =============================================================================

// Store is the full persistence surface the engine requires.
type Store interface {
	TransactionStore
	LedgerStore
	BalanceStore
	TraceStore
}
