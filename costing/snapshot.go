package costing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAILY BALANCE RECOMPUTATION
// =============================================================================

// recomputeDailyBalances rewrites a group's daily closing balances across
// [from, to]. For each calendar day: if the ledger has rows that day, the
// close is taken from the day's last row (highest id); otherwise the prior
// day's close carries forward. Every day in the range is upserted.
func recomputeDailyBalances(ctx context.Context, store Store, key GroupKey, from, to Date) error {
	// Starting point: the last daily close strictly before the range.
	carryQty, carryVal := decimal.Zero, decimal.Zero
	prev, err := store.LastDailyBefore(ctx, key, from)
	if err != nil {
		return err
	}
	if prev != nil {
		carryQty, carryVal = prev.Quantity, prev.Value
	}

	entries, err := store.EntriesInRange(ctx, key, from, to)
	if err != nil {
		return err
	}

	// Group the ledger rows by day, keeping the row with the highest id
	// per day. EntriesInRange is ordered by date then id, so the last row
	// seen for a day wins.
	lastOfDay := make(map[Date]Entry, len(entries))
	for _, e := range entries {
		lastOfDay[e.Date] = e
	}

	for day := from; day.BeforeOrEqual(to); day = day.AddDays(1) {
		if e, ok := lastOfDay[day]; ok {
			carryQty, carryVal = e.BalanceQuantity, e.BalanceValue
		}
		err := store.UpsertDailyBalance(ctx, DailyBalance{
			Group:    key,
			Date:     day,
			Quantity: carryQty,
			Value:    carryVal,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
