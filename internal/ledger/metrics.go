package ledger

import (
	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// ratioPrecision is the number of decimal places ratio metrics are computed
// to. A fixed precision keeps replays of the same state bit-identical.
const ratioPrecision = 6

// Metrics holds the derived figures computed from a reconstructed state.
// Ratio fields are nil when their denominator is zero; they serialize as
// JSON null rather than reporting an infinity or dividing by zero.
type Metrics struct {
	TotalAssets      decimal.Decimal  `json:"totalAssets"`
	TotalLiabilities decimal.Decimal  `json:"totalLiabilities"`
	TotalIncome      decimal.Decimal  `json:"totalIncome"`
	TotalExpenses    decimal.Decimal  `json:"totalExpenses"`
	PassiveIncome    decimal.Decimal  `json:"passiveIncome"`
	NetWorth         decimal.Decimal  `json:"netWorth"`
	Cashflow         decimal.Decimal  `json:"cashflow"`
	FreedomGap       decimal.Decimal  `json:"freedomGap"`
	AssetEfficiency  *decimal.Decimal `json:"assetEfficiency"`
	PassiveCoverage  *decimal.Decimal `json:"passiveCoverageRatio"`
	SolvencyRatio    *decimal.Decimal `json:"solvencyRatio"`
}

// ComputeMetrics derives the dashboard metrics from a financial state.
//
// Definitions:
//   - totalAssets includes cash savings alongside tracked assets
//   - passiveIncome is Passive plus Portfolio income
//   - netWorth = totalAssets - totalLiabilities
//   - cashflow = totalIncome - totalExpenses
//   - freedomGap = totalExpenses - passiveIncome
//   - assetEfficiency = passiveIncome / totalAssets
//   - passiveCoverageRatio = passiveIncome / totalExpenses
//   - solvencyRatio = totalAssets / totalLiabilities
func ComputeMetrics(s *FinancialState) *Metrics {
	m := &Metrics{
		TotalAssets:      s.CashSavings,
		TotalLiabilities: decimal.Zero,
		TotalIncome:      decimal.Zero,
		TotalExpenses:    decimal.Zero,
		PassiveIncome:    decimal.Zero,
	}

	for _, a := range s.Assets {
		m.TotalAssets = m.TotalAssets.Add(a.Value)
	}
	for _, l := range s.Liabilities {
		m.TotalLiabilities = m.TotalLiabilities.Add(l.Value)
	}
	for _, in := range s.Incomes {
		m.TotalIncome = m.TotalIncome.Add(in.Amount)
		if in.Type == types.IncomePassive || in.Type == types.IncomePortfolio {
			m.PassiveIncome = m.PassiveIncome.Add(in.Amount)
		}
	}
	for _, e := range s.Expenses {
		m.TotalExpenses = m.TotalExpenses.Add(e.Amount)
	}

	m.NetWorth = m.TotalAssets.Sub(m.TotalLiabilities)
	m.Cashflow = m.TotalIncome.Sub(m.TotalExpenses)
	m.FreedomGap = m.TotalExpenses.Sub(m.PassiveIncome)
	m.AssetEfficiency = ratio(m.PassiveIncome, m.TotalAssets)
	m.PassiveCoverage = ratio(m.PassiveIncome, m.TotalExpenses)
	m.SolvencyRatio = ratio(m.TotalAssets, m.TotalLiabilities)

	return m
}

func ratio(numerator, denominator decimal.Decimal) *decimal.Decimal {
	if denominator.IsZero() {
		return nil
	}
	r := numerator.DivRound(denominator, ratioPrecision)
	return &r
}
