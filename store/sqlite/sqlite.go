/*
Package sqlite provides a SQLite-backed implementation of costing.Store.

PURPOSE:
  Implements every persistence contract of the costing engine using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  transactions:     Economic events plus their two terminal flags
  kardex:           Append-only ledger rows (available drawn down in place)
  running_balances: One row per group (find-or-create semantics)
  daily_balances:   One row per group per day
  cost_traces:      Outflow-to-lot consumption attribution

NUMERIC STORAGE:
  Quantities and costs are stored as TEXT and parsed with
  decimal.NewFromString. SQLite REAL would reintroduce the float errors
  the engine exists to avoid.

INDEXES:
  Hot paths are (group, date, id): the lot-queue seed, the opening
  balance seed and the daily recomputation all filter on the group key
  and order by date then id.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./costing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := costing.NewEngine(store)

SEE ALSO:
  - costing/store.go: Contract definitions
  - costing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/costing-engine/costing"
)

// Store implements costing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" opens its own empty database;
	// the store's writes are serialized by mu anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Economic events and their terminal flags
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		custodian_id INTEGER NOT NULL,
		instrument_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		memo TEXT,
		adjustment_for INTEGER NOT NULL DEFAULT 0,
		costed INTEGER NOT NULL DEFAULT 0,
		for_revision INTEGER NOT NULL DEFAULT 0
	);

	-- Append-only ledger (kardex)
	CREATE TABLE IF NOT EXISTS kardex (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL,
		company_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		custodian_id INTEGER NOT NULL,
		instrument_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		balance_quantity TEXT NOT NULL,
		balance_value TEXT NOT NULL,
		available TEXT NOT NULL
	);

	-- Current position per group
	CREATE TABLE IF NOT EXISTS running_balances (
		company_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		custodian_id INTEGER NOT NULL,
		instrument_id INTEGER NOT NULL,
		quantity TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		average_cost TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (company_id, account, custodian_id, instrument_id)
	);

	-- Closing position per group per day
	CREATE TABLE IF NOT EXISTS daily_balances (
		company_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		custodian_id INTEGER NOT NULL,
		instrument_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		quantity TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (company_id, account, custodian_id, instrument_id, date)
	);

	-- Outflow-to-lot attribution
	CREATE TABLE IF NOT EXISTS cost_traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		account TEXT NOT NULL,
		custodian_id INTEGER NOT NULL,
		instrument_id INTEGER NOT NULL,
		inflow_tx_id INTEGER NOT NULL,
		outflow_tx_id INTEGER NOT NULL,
		quantity_used TEXT NOT NULL,
		cost_consumed TEXT NOT NULL
	);

	-- Pending-transaction selection (hot path of every run)
	CREATE INDEX IF NOT EXISTS idx_transactions_pending
		ON transactions(costed, for_revision, date);

	-- Group history scans: lot seed, opening balance, daily recomputation
	CREATE INDEX IF NOT EXISTS idx_kardex_group_date
		ON kardex(company_id, account, custodian_id, instrument_id, date, id);

	CREATE INDEX IF NOT EXISTS idx_traces_outflow
		ON cost_traces(outflow_tx_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// kindRankSQL orders opening-balance rows first, then inflows, then
// outflows, mirroring costing.MovementKind.Rank.
const kindRankSQL = `CASE kind
	WHEN 'opening_balance' THEN 0
	WHEN 'inflow' THEN 1
	WHEN 'outflow' THEN 2
	ELSE 3 END`

const groupWhereSQL = `company_id = ? AND account = ? AND custodian_id = ? AND instrument_id = ?`

func groupArgs(key costing.GroupKey) []any {
	return []any{key.CompanyID, key.Account, key.CustodianID, key.InstrumentID}
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *Store) PendingTransactions(ctx context.Context) ([]costing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, company_id, account, custodian_id, instrument_id,
		       date, kind, quantity, price, memo, adjustment_for, costed, for_revision
		FROM transactions
		WHERE kind != 'excluded' AND costed = 0 AND for_revision = 0
		ORDER BY date ASC, ` + kindRankSQL + `, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []costing.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Store) InsertTransaction(ctx context.Context, tx costing.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(company_id, account, custodian_id, instrument_id,
			 date, kind, quantity, price, memo, adjustment_for, costed, for_revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Group.CompanyID, tx.Group.Account, tx.Group.CustodianID, tx.Group.InstrumentID,
		tx.Date.String(), string(tx.Kind), tx.Quantity.String(), tx.Price.String(),
		tx.Memo, tx.AdjustmentFor, boolToInt(tx.Costed), boolToInt(tx.ForRevision))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*costing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, account, custodian_id, instrument_id,
		       date, kind, quantity, price, memo, adjustment_for, costed, for_revision
		FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) MarkCosted(ctx context.Context, id int64) error {
	return s.setFlags(ctx, id, 1, 0)
}

func (s *Store) MarkForRevision(ctx context.Context, id int64) error {
	return s.setFlags(ctx, id, 0, 1)
}

func (s *Store) setFlags(ctx context.Context, id int64, costed, forRevision int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET costed = ?, for_revision = ? WHERE id = ?`,
		costed, forRevision, id)
	return err
}

func (s *Store) ClearRevisionFlag(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET for_revision = 0 WHERE id = ?`, id)
	return err
}

func (s *Store) ResetFlags(ctx context.Context, key costing.GroupKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET costed = 0, for_revision = 0 WHERE `+groupWhereSQL,
		groupArgs(key)...)
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e costing.Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO kardex
			(transaction_id, company_id, account, custodian_id, instrument_id,
			 date, kind, quantity, unit_cost, total_cost,
			 balance_quantity, balance_value, available)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TransactionID, e.Group.CompanyID, e.Group.Account, e.Group.CustodianID, e.Group.InstrumentID,
		e.Date.String(), string(e.Kind), e.Quantity.String(), e.UnitCost.String(), e.TotalCost.String(),
		e.BalanceQuantity.String(), e.BalanceValue.String(), e.Available.String())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) LastEntryBefore(ctx context.Context, key costing.GroupKey, before costing.Date) (*costing.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := append(groupArgs(key), before.String())
	entries, err := s.queryEntries(ctx, `
		SELECT id, transaction_id, company_id, account, custodian_id, instrument_id,
		       date, kind, quantity, unit_cost, total_cost,
		       balance_quantity, balance_value, available
		FROM kardex
		WHERE `+groupWhereSQL+` AND date < ?
		ORDER BY date DESC, id DESC
		LIMIT 1`, args...)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) OpenLotsBefore(ctx context.Context, key costing.GroupKey, before costing.Date) ([]costing.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := append(groupArgs(key), before.String())
	return s.queryEntries(ctx, `
		SELECT id, transaction_id, company_id, account, custodian_id, instrument_id,
		       date, kind, quantity, unit_cost, total_cost,
		       balance_quantity, balance_value, available
		FROM kardex
		WHERE `+groupWhereSQL+` AND kind = 'inflow' AND date < ? AND CAST(available AS REAL) > 0
		ORDER BY date ASC, id ASC`, args...)
}

func (s *Store) EntriesInRange(ctx context.Context, key costing.GroupKey, from, to costing.Date) ([]costing.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := append(groupArgs(key), from.String(), to.String())
	return s.queryEntries(ctx, `
		SELECT id, transaction_id, company_id, account, custodian_id, instrument_id,
		       date, kind, quantity, unit_cost, total_cost,
		       balance_quantity, balance_value, available
		FROM kardex
		WHERE `+groupWhereSQL+` AND date >= ? AND date <= ?
		ORDER BY date ASC, id ASC`, args...)
}

func (s *Store) UpdateAvailable(ctx context.Context, entryID int64, remaining decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE kardex SET available = ? WHERE id = ?`,
		remaining.String(), entryID)
	return err
}

func (s *Store) DeleteEntriesByGroup(ctx context.Context, key costing.GroupKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kardex WHERE `+groupWhereSQL, groupArgs(key)...)
	return err
}

func (s *Store) ListGroups(ctx context.Context) ([]costing.GroupKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT company_id, account, custodian_id, instrument_id
		FROM kardex
		ORDER BY company_id, account, custodian_id, instrument_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []costing.GroupKey
	for rows.Next() {
		var key costing.GroupKey
		if err := rows.Scan(&key.CompanyID, &key.Account, &key.CustodianID, &key.InstrumentID); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (s *Store) RunningBalance(ctx context.Context, key costing.GroupKey) (*costing.RunningBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, account, custodian_id, instrument_id,
		       quantity, total_cost, average_cost, updated_at
		FROM running_balances
		WHERE `+groupWhereSQL, groupArgs(key)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var (
		b            costing.RunningBalance
		qty, tc, avg string
		updatedAt    string
	)
	if err := rows.Scan(&b.Group.CompanyID, &b.Group.Account, &b.Group.CustodianID, &b.Group.InstrumentID,
		&qty, &tc, &avg, &updatedAt); err != nil {
		return nil, err
	}
	if b.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, err
	}
	if b.TotalCost, err = decimal.NewFromString(tc); err != nil {
		return nil, err
	}
	if b.AverageCost, err = decimal.NewFromString(avg); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = costing.ParseDate(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) UpsertRunningBalance(ctx context.Context, b costing.RunningBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO running_balances
			(company_id, account, custodian_id, instrument_id,
			 quantity, total_cost, average_cost, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, account, custodian_id, instrument_id) DO UPDATE SET
			quantity = excluded.quantity,
			total_cost = excluded.total_cost,
			average_cost = excluded.average_cost,
			updated_at = excluded.updated_at`,
		b.Group.CompanyID, b.Group.Account, b.Group.CustodianID, b.Group.InstrumentID,
		b.Quantity.String(), b.TotalCost.String(), b.AverageCost.String(), b.UpdatedAt.String())
	return err
}

func (s *Store) DeleteRunningBalance(ctx context.Context, key costing.GroupKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM running_balances WHERE `+groupWhereSQL, groupArgs(key)...)
	return err
}

func (s *Store) LastDailyBefore(ctx context.Context, key costing.GroupKey, before costing.Date) (*costing.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := append(groupArgs(key), before.String())
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, account, custodian_id, instrument_id, date, quantity, value
		FROM daily_balances
		WHERE `+groupWhereSQL+` AND date < ?
		ORDER BY date DESC
		LIMIT 1`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	b, err := scanDailyBalance(rows)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) DailyInRange(ctx context.Context, key costing.GroupKey, from, to costing.Date) ([]costing.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := append(groupArgs(key), from.String(), to.String())
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, account, custodian_id, instrument_id, date, quantity, value
		FROM daily_balances
		WHERE `+groupWhereSQL+` AND date >= ? AND date <= ?
		ORDER BY date ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []costing.DailyBalance
	for rows.Next() {
		b, err := scanDailyBalance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) UpsertDailyBalance(ctx context.Context, b costing.DailyBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_balances
			(company_id, account, custodian_id, instrument_id, date, quantity, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, account, custodian_id, instrument_id, date) DO UPDATE SET
			quantity = excluded.quantity,
			value = excluded.value`,
		b.Group.CompanyID, b.Group.Account, b.Group.CustodianID, b.Group.InstrumentID,
		b.Date.String(), b.Quantity.String(), b.Value.String())
	return err
}

// =============================================================================
// TRACE STORE
// =============================================================================

func (s *Store) InsertTrace(ctx context.Context, t costing.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_traces
			(company_id, account, custodian_id, instrument_id,
			 inflow_tx_id, outflow_tx_id, quantity_used, cost_consumed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Group.CompanyID, t.Group.Account, t.Group.CustodianID, t.Group.InstrumentID,
		t.InflowTxID, t.OutflowTxID, t.QuantityUsed.String(), t.CostConsumed.String())
	return err
}

func (s *Store) TracesByOutflow(ctx context.Context, outflowTxID int64) ([]costing.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, account, custodian_id, instrument_id,
		       inflow_tx_id, outflow_tx_id, quantity_used, cost_consumed
		FROM cost_traces
		WHERE outflow_tx_id = ?
		ORDER BY id ASC`, outflowTxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []costing.Trace
	for rows.Next() {
		var (
			t        costing.Trace
			qty, cst string
		)
		if err := rows.Scan(&t.ID, &t.Group.CompanyID, &t.Group.Account, &t.Group.CustodianID, &t.Group.InstrumentID,
			&t.InflowTxID, &t.OutflowTxID, &qty, &cst); err != nil {
			return nil, err
		}
		if t.QuantityUsed, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if t.CostConsumed, err = decimal.NewFromString(cst); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) DeleteTracesByGroup(ctx context.Context, key costing.GroupKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cost_traces WHERE `+groupWhereSQL, groupArgs(key)...)
	return err
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]costing.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []costing.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanTransaction(rows *sql.Rows) (costing.Transaction, error) {
	var (
		tx                  costing.Transaction
		date, kind          string
		qty, price          string
		memo                sql.NullString
		costed, forRevision int
	)
	err := rows.Scan(&tx.ID, &tx.Group.CompanyID, &tx.Group.Account, &tx.Group.CustodianID, &tx.Group.InstrumentID,
		&date, &kind, &qty, &price, &memo, &tx.AdjustmentFor, &costed, &forRevision)
	if err != nil {
		return costing.Transaction{}, err
	}

	if tx.Date, err = costing.ParseDate(date); err != nil {
		return costing.Transaction{}, err
	}
	tx.Kind = costing.MovementKind(kind)
	if tx.Quantity, err = decimal.NewFromString(qty); err != nil {
		return costing.Transaction{}, err
	}
	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return costing.Transaction{}, err
	}
	tx.Memo = memo.String
	tx.Costed = costed != 0
	tx.ForRevision = forRevision != 0
	return tx, nil
}

func scanEntry(rows *sql.Rows) (costing.Entry, error) {
	var (
		e                         costing.Entry
		date, kind                string
		qty, unitCost, totalCost  string
		balQty, balVal, available string
	)
	err := rows.Scan(&e.ID, &e.TransactionID, &e.Group.CompanyID, &e.Group.Account, &e.Group.CustodianID, &e.Group.InstrumentID,
		&date, &kind, &qty, &unitCost, &totalCost, &balQty, &balVal, &available)
	if err != nil {
		return costing.Entry{}, err
	}

	if e.Date, err = costing.ParseDate(date); err != nil {
		return costing.Entry{}, err
	}
	e.Kind = costing.MovementKind(kind)
	if e.Quantity, err = decimal.NewFromString(qty); err != nil {
		return costing.Entry{}, err
	}
	if e.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
		return costing.Entry{}, err
	}
	if e.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
		return costing.Entry{}, err
	}
	if e.BalanceQuantity, err = decimal.NewFromString(balQty); err != nil {
		return costing.Entry{}, err
	}
	if e.BalanceValue, err = decimal.NewFromString(balVal); err != nil {
		return costing.Entry{}, err
	}
	if e.Available, err = decimal.NewFromString(available); err != nil {
		return costing.Entry{}, err
	}
	return e, nil
}

func scanDailyBalance(rows *sql.Rows) (costing.DailyBalance, error) {
	var (
		b        costing.DailyBalance
		date     string
		qty, val string
	)
	err := rows.Scan(&b.Group.CompanyID, &b.Group.Account, &b.Group.CustodianID, &b.Group.InstrumentID,
		&date, &qty, &val)
	if err != nil {
		return costing.DailyBalance{}, err
	}
	if b.Date, err = costing.ParseDate(date); err != nil {
		return costing.DailyBalance{}, err
	}
	if b.Quantity, err = decimal.NewFromString(qty); err != nil {
		return costing.DailyBalance{}, err
	}
	if b.Value, err = decimal.NewFromString(val); err != nil {
		return costing.DailyBalance{}, err
	}
	return b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
