package service

import (
	"context"
	"testing"
	"time"

	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFixture struct {
	events      *mockEventStore
	assets      *mockAssetStore
	liabilities *mockLiabilityStore
	incomes     *mockIncomeStore
	expenses    *mockExpenseStore
	cashSavings *mockCashSavingsStore
	checker     *ConsistencyChecker
}

func newCheckerFixture() *checkerFixture {
	f := &checkerFixture{
		events:      &mockEventStore{},
		assets:      newMockAssetStore(),
		liabilities: newMockLiabilityStore(),
		incomes:     newMockIncomeStore(),
		expenses:    newMockExpenseStore(),
		cashSavings: newMockCashSavingsStore(),
	}
	f.checker = NewConsistencyChecker(
		f.events, f.assets, f.liabilities, f.incomes, f.expenses, f.cashSavings,
		testLogger(),
	)
	return f
}

func TestCheckUserConsistent(t *testing.T) {
	f := newCheckerFixture()
	ctx := context.Background()
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	appendEvent(t, f.events, "u1", ts, types.ActionCreate, types.EntityAsset, "a1", nil, assetPayload("House", 300000))
	f.assets.rows["a1"] = &models.Asset{
		ID: "a1", UserID: "u1", Name: "House", Value: decimal.NewFromInt(300000),
	}

	result, err := f.checker.CheckUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Empty(t, result.Divergences)
	assert.Equal(t, 1, result.EventCount)
}

func TestCheckUserDetectsValueDivergence(t *testing.T) {
	f := newCheckerFixture()
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	appendEvent(t, f.events, "u1", ts, types.ActionCreate, types.EntityAsset, "a1", nil, assetPayload("House", 300000))
	// Table row drifted from the log
	f.assets.rows["a1"] = &models.Asset{
		ID: "a1", UserID: "u1", Name: "House", Value: decimal.NewFromInt(999),
	}

	result, err := f.checker.CheckUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.Len(t, result.Divergences, 1)
}

func TestCheckUserDetectsOrphanRowAndMissingRow(t *testing.T) {
	f := newCheckerFixture()
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// Event with no row, row with no event
	appendEvent(t, f.events, "u1", ts, types.ActionCreate, types.EntityExpense, "e1", nil,
		ledger.ExpensePayload{Name: "Rent", Amount: decimal.NewFromInt(1500)})
	f.liabilities.rows["l1"] = &models.Liability{
		ID: "l1", UserID: "u1", Name: "Phantom", Value: decimal.NewFromInt(100),
	}

	result, err := f.checker.CheckUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.Len(t, result.Divergences, 2)
}

func TestCheckUserCashSavingsDefaultsToZero(t *testing.T) {
	f := newCheckerFixture()

	result, err := f.checker.CheckUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
}
