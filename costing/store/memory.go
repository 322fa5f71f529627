// Package store provides an in-memory costing.Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/costing-engine/costing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	transactions map[int64]costing.Transaction
	entries      map[int64]costing.Entry
	running      map[costing.GroupKey]costing.RunningBalance
	daily        map[dailyKey]costing.DailyBalance
	traces       []costing.Trace

	nextTxID    int64
	nextEntryID int64
	nextTraceID int64
}

type dailyKey struct {
	Group costing.GroupKey
	Date  costing.Date
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[int64]costing.Transaction),
		entries:      make(map[int64]costing.Entry),
		running:      make(map[costing.GroupKey]costing.RunningBalance),
		daily:        make(map[dailyKey]costing.DailyBalance),
	}
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (m *Memory) PendingTransactions(_ context.Context) ([]costing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []costing.Transaction
	for _, tx := range m.transactions {
		if tx.Kind == costing.KindExcluded || tx.Costed || tx.ForRevision {
			continue
		}
		pending = append(pending, tx)
	}
	sortReplayOrder(pending)
	return pending, nil
}

// sortReplayOrder applies the global costing order: date ascending,
// opening-balance rows first, inflows before outflows, id ascending.
func sortReplayOrder(txs []costing.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		return a.ID < b.ID
	})
}

func (m *Memory) InsertTransaction(_ context.Context, tx costing.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTxID++
	tx.ID = m.nextTxID
	m.transactions[tx.ID] = tx
	return tx.ID, nil
}

func (m *Memory) GetTransaction(_ context.Context, id int64) (*costing.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) MarkCosted(_ context.Context, id int64) error {
	return m.setFlags(id, true, false)
}

func (m *Memory) MarkForRevision(_ context.Context, id int64) error {
	return m.setFlags(id, false, true)
}

func (m *Memory) ClearRevisionFlag(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil
	}
	tx.ForRevision = false
	m.transactions[id] = tx
	return nil
}

func (m *Memory) setFlags(id int64, costed, forRevision bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil
	}
	tx.Costed = costed
	tx.ForRevision = forRevision
	m.transactions[id] = tx
	return nil
}

func (m *Memory) ResetFlags(_ context.Context, key costing.GroupKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, tx := range m.transactions {
		if tx.Group == key {
			tx.Costed = false
			tx.ForRevision = false
			m.transactions[id] = tx
		}
	}
	return nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) InsertEntry(_ context.Context, e costing.Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEntryID++
	e.ID = m.nextEntryID
	m.entries[e.ID] = e
	return e.ID, nil
}

func (m *Memory) LastEntryBefore(_ context.Context, key costing.GroupKey, before costing.Date) (*costing.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *costing.Entry
	for id := range m.entries {
		e := m.entries[id]
		if e.Group != key || !e.Date.Before(before) {
			continue
		}
		if last == nil || e.Date.After(last.Date) || (e.Date.Equal(last.Date) && e.ID > last.ID) {
			last = &e
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (m *Memory) OpenLotsBefore(_ context.Context, key costing.GroupKey, before costing.Date) ([]costing.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var open []costing.Entry
	for _, e := range m.entries {
		if e.Group != key || e.Kind != costing.KindInflow {
			continue
		}
		if !e.Date.Before(before) || !e.Available.IsPositive() {
			continue
		}
		open = append(open, e)
	}
	sortEntries(open)
	return open, nil
}

func (m *Memory) EntriesInRange(_ context.Context, key costing.GroupKey, from, to costing.Date) ([]costing.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []costing.Entry
	for _, e := range m.entries {
		if e.Group != key {
			continue
		}
		if e.Date.AfterOrEqual(from) && e.Date.BeforeOrEqual(to) {
			result = append(result, e)
		}
	}
	sortEntries(result)
	return result, nil
}

func sortEntries(entries []costing.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}

func (m *Memory) UpdateAvailable(_ context.Context, entryID int64, remaining decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID]
	if !ok {
		return nil
	}
	e.Available = remaining
	m.entries[entryID] = e
	return nil
}

func (m *Memory) DeleteEntriesByGroup(_ context.Context, key costing.GroupKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if e.Group == key {
			delete(m.entries, id)
		}
	}
	return nil
}

func (m *Memory) ListGroups(_ context.Context) ([]costing.GroupKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[costing.GroupKey]bool)
	var keys []costing.GroupKey
	for _, e := range m.entries {
		if !seen[e.Group] {
			seen[e.Group] = true
			keys = append(keys, e.Group)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (m *Memory) RunningBalance(_ context.Context, key costing.GroupKey) (*costing.RunningBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.running[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) UpsertRunningBalance(_ context.Context, b costing.RunningBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running[b.Group] = b
	return nil
}

func (m *Memory) DeleteRunningBalance(_ context.Context, key costing.GroupKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.running, key)
	return nil
}

func (m *Memory) LastDailyBefore(_ context.Context, key costing.GroupKey, before costing.Date) (*costing.DailyBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *costing.DailyBalance
	for dk := range m.daily {
		b := m.daily[dk]
		if b.Group != key || !b.Date.Before(before) {
			continue
		}
		if last == nil || b.Date.After(last.Date) {
			last = &b
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (m *Memory) DailyInRange(_ context.Context, key costing.GroupKey, from, to costing.Date) ([]costing.DailyBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []costing.DailyBalance
	for _, b := range m.daily {
		if b.Group != key {
			continue
		}
		if b.Date.AfterOrEqual(from) && b.Date.BeforeOrEqual(to) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) UpsertDailyBalance(_ context.Context, b costing.DailyBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.daily[dailyKey{Group: b.Group, Date: b.Date}] = b
	return nil
}

// =============================================================================
// TRACE STORE
// =============================================================================

func (m *Memory) InsertTrace(_ context.Context, t costing.Trace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTraceID++
	t.ID = m.nextTraceID
	m.traces = append(m.traces, t)
	return nil
}

func (m *Memory) TracesByOutflow(_ context.Context, outflowTxID int64) ([]costing.Trace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []costing.Trace
	for _, t := range m.traces {
		if t.OutflowTxID == outflowTxID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *Memory) DeleteTracesByGroup(_ context.Context, key costing.GroupKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.traces[:0]
	for _, t := range m.traces {
		if t.Group != key {
			kept = append(kept, t)
		}
	}
	m.traces = kept
	return nil
}
