package ledger

import (
	"testing"

	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testState() *FinancialState {
	quadrant := "I"
	s := EmptyState()
	s.Assets["a1"] = AssetRecord{ID: "a1", Name: "House", Value: money("300000")}
	s.Assets["a2"] = AssetRecord{ID: "a2", Name: "Index fund", Value: money("50000")}
	s.Liabilities["l1"] = LiabilityRecord{ID: "l1", Name: "Mortgage", Value: money("250000")}
	s.Incomes["i1"] = IncomeRecord{ID: "i1", Name: "Job", Amount: money("4000"), Type: types.IncomeEarned}
	s.Incomes["i2"] = IncomeRecord{ID: "i2", Name: "Dividends", Amount: money("300"), Type: types.IncomePortfolio, Quadrant: &quadrant}
	s.Incomes["i3"] = IncomeRecord{ID: "i3", Name: "Royalties", Amount: money("200"), Type: types.IncomePassive}
	s.Expenses["e1"] = ExpenseRecord{ID: "e1", Name: "Rent", Amount: money("1500")}
	s.CashSavings = money("10000")
	return s
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(testState())

	assert.True(t, m.TotalAssets.Equal(money("360000")), "totalAssets = %s", m.TotalAssets)
	assert.True(t, m.TotalLiabilities.Equal(money("250000")))
	assert.True(t, m.NetWorth.Equal(money("110000")))
	assert.True(t, m.TotalIncome.Equal(money("4500")))
	assert.True(t, m.TotalExpenses.Equal(money("1500")))
	assert.True(t, m.PassiveIncome.Equal(money("500")), "passive+portfolio income")
	assert.True(t, m.Cashflow.Equal(money("3000")))
	assert.True(t, m.FreedomGap.Equal(money("1000")))

	require.NotNil(t, m.SolvencyRatio)
	assert.True(t, m.SolvencyRatio.Equal(money("1.44")), "solvencyRatio = %s", m.SolvencyRatio)

	require.NotNil(t, m.PassiveCoverage)
	assert.True(t, m.PassiveCoverage.Equal(money("0.333333")), "passiveCoverage = %s", m.PassiveCoverage)

	require.NotNil(t, m.AssetEfficiency)
	assert.True(t, m.AssetEfficiency.Equal(money("0.001389")), "assetEfficiency = %s", m.AssetEfficiency)
}

func TestComputeMetrics_ZeroLiabilitiesSolvencyIsNull(t *testing.T) {
	s := testState()
	s.Liabilities = map[string]LiabilityRecord{}

	m := ComputeMetrics(s)
	assert.Nil(t, m.SolvencyRatio, "solvency ratio must be reported as null, not infinity")
	assert.True(t, m.NetWorth.Equal(money("360000")))
}

func TestComputeMetrics_EmptyState(t *testing.T) {
	m := ComputeMetrics(EmptyState())
	assert.True(t, m.NetWorth.IsZero())
	assert.Nil(t, m.SolvencyRatio)
	assert.Nil(t, m.PassiveCoverage)
	assert.Nil(t, m.AssetEfficiency)
}
