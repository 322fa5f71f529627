package costing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/costing-engine/costing"
	"github.com/warp/costing-engine/costing/store"
)

func TestPropose_InflowForShortedOutflow(t *testing.T) {
	// GIVEN: An outflow flagged because it exceeds the 10 units available
	// WHEN: Proposing an inflow adjustment for it
	// THEN: The proposal covers the missing quantity at the prior average cost

	ctx := context.Background()
	s := store.NewMemory()
	key := testGroup()
	seedTx(t, s, key, march(1), costing.KindInflow, "10", "10")
	outflow := seedTx(t, s, key, march(2), costing.KindOutflow, "50", "0")
	runEngine(t, s) // aborts, flags the outflow

	adjuster := &costing.Adjuster{Store: s}
	proposal, err := adjuster.Propose(ctx, outflow, costing.AdjustInflow)
	require.NoError(t, err)

	assert.Equal(t, outflow, proposal.ReferenceTxID)
	assert.True(t, proposal.Quantity.Equal(dec("40")), "50 requested - 10 prior = 40")
	assert.True(t, proposal.Price.Equal(dec("10")), "prior value / prior quantity")
	assert.True(t, proposal.PriorQuantity.Equal(dec("10")))
	assert.True(t, proposal.PriorValue.Equal(dec("100")))
	assert.True(t, proposal.Date.Equal(march(2)))
}

func TestPropose_UnknownTransaction(t *testing.T) {
	// GIVEN: A transaction id that does not exist
	// WHEN: Proposing an adjustment for it
	// THEN: A validation error is returned

	s := store.NewMemory()
	adjuster := &costing.Adjuster{Store: s}

	_, err := adjuster.Propose(context.Background(), 999, costing.AdjustInflow)
	assert.ErrorIs(t, err, costing.ErrValidation)
}

func TestCreate_AdjustmentUnblocksFlaggedOutflow(t *testing.T) {
	// GIVEN: A flagged outflow and a manual inflow adjustment covering its shortfall
	// WHEN: Creating the adjustment and running costing again
	// THEN: The group completes and the balance nets to zero

	ctx := context.Background()
	s := store.NewMemory()
	key := testGroup()
	seedTx(t, s, key, march(1), costing.KindInflow, "10", "10")
	outflow := seedTx(t, s, key, march(2), costing.KindOutflow, "50", "0")
	runEngine(t, s)

	adjuster := &costing.Adjuster{Store: s}
	adjID, err := adjuster.Create(ctx, outflow, costing.AdjustInflow, dec("40"), dec("10"))
	require.NoError(t, err)

	// The reference transaction is back in play.
	ref, err := s.GetTransaction(ctx, outflow)
	require.NoError(t, err)
	assert.False(t, ref.ForRevision, "revision flag cleared on adjustment creation")

	adj, err := s.GetTransaction(ctx, adjID)
	require.NoError(t, err)
	assert.Equal(t, costing.KindInflow, adj.Kind)
	assert.Equal(t, outflow, adj.AdjustmentFor)
	assert.False(t, adj.Costed, "manual adjustments wait for the next run")

	report := runEngine(t, s)
	require.Equal(t, costing.StateComplete, report.Groups[0].State)

	balance, err := s.RunningBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.Equal(dec("0")), "10 + 40 - 50 = 0, got %s", balance.Quantity)
}

func TestCreate_RejectsNonPositiveQuantity(t *testing.T) {
	// GIVEN: An existing reference transaction
	// WHEN: Creating an adjustment with zero quantity
	// THEN: A validation error is returned and nothing is inserted

	ctx := context.Background()
	s := store.NewMemory()
	key := testGroup()
	ref := seedTx(t, s, key, march(1), costing.KindInflow, "10", "10")

	adjuster := &costing.Adjuster{Store: s}
	_, err := adjuster.Create(ctx, ref, costing.AdjustInflow, dec("0"), dec("10"))
	assert.ErrorIs(t, err, costing.ErrValidation)

	none, err := s.GetTransaction(ctx, ref+1)
	require.NoError(t, err)
	assert.Nil(t, none)
}
