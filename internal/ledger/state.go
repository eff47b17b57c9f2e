package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// AssetRecord is the in-state representation of one asset
type AssetRecord struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// LiabilityRecord is the in-state representation of one liability
type LiabilityRecord struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// IncomeRecord is the in-state representation of one income line
type IncomeRecord struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Amount   decimal.Decimal  `json:"amount"`
	Type     types.IncomeType `json:"type"`
	Quadrant *string          `json:"quadrant,omitempty"`
}

// ExpenseRecord is the in-state representation of one expense
type ExpenseRecord struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// FinancialState is the value type reducers fold events into. It is created
// empty and mutated only by applying events through the root reducer; equal
// event sequences always produce equal states.
type FinancialState struct {
	Assets      map[string]AssetRecord     `json:"assets"`
	Liabilities map[string]LiabilityRecord `json:"liabilities"`
	Incomes     map[string]IncomeRecord    `json:"incomes"`
	Expenses    map[string]ExpenseRecord   `json:"expenses"`
	CashSavings decimal.Decimal            `json:"cashSavings"`
	CurrencyID  string                     `json:"currency,omitempty"`
}

// EmptyState returns the state a user's history starts from.
func EmptyState() *FinancialState {
	return &FinancialState{
		Assets:      make(map[string]AssetRecord),
		Liabilities: make(map[string]LiabilityRecord),
		Incomes:     make(map[string]IncomeRecord),
		Expenses:    make(map[string]ExpenseRecord),
		CashSavings: decimal.Zero,
	}
}

// Clone returns a deep copy of the state. Records hold only value types, so
// copying the maps is enough.
func (s *FinancialState) Clone() *FinancialState {
	c := &FinancialState{
		Assets:      make(map[string]AssetRecord, len(s.Assets)),
		Liabilities: make(map[string]LiabilityRecord, len(s.Liabilities)),
		Incomes:     make(map[string]IncomeRecord, len(s.Incomes)),
		Expenses:    make(map[string]ExpenseRecord, len(s.Expenses)),
		CashSavings: s.CashSavings,
		CurrencyID:  s.CurrencyID,
	}
	for k, v := range s.Assets {
		c.Assets[k] = v
	}
	for k, v := range s.Liabilities {
		c.Liabilities[k] = v
	}
	for k, v := range s.Incomes {
		if v.Quadrant != nil {
			q := *v.Quadrant
			v.Quadrant = &q
		}
		c.Incomes[k] = v
	}
	for k, v := range s.Expenses {
		c.Expenses[k] = v
	}
	return c
}

// Equal reports whether two states represent the same financial position.
// Decimal fields compare by numeric value, not representation.
func (s *FinancialState) Equal(o *FinancialState) bool {
	if s == nil || o == nil {
		return s == o
	}
	if !s.CashSavings.Equal(o.CashSavings) || s.CurrencyID != o.CurrencyID {
		return false
	}
	if len(s.Assets) != len(o.Assets) || len(s.Liabilities) != len(o.Liabilities) ||
		len(s.Incomes) != len(o.Incomes) || len(s.Expenses) != len(o.Expenses) {
		return false
	}
	for k, a := range s.Assets {
		b, ok := o.Assets[k]
		if !ok || a.ID != b.ID || a.Name != b.Name || !a.Value.Equal(b.Value) {
			return false
		}
	}
	for k, a := range s.Liabilities {
		b, ok := o.Liabilities[k]
		if !ok || a.ID != b.ID || a.Name != b.Name || !a.Value.Equal(b.Value) {
			return false
		}
	}
	for k, a := range s.Incomes {
		b, ok := o.Incomes[k]
		if !ok || a.ID != b.ID || a.Name != b.Name || !a.Amount.Equal(b.Amount) || a.Type != b.Type {
			return false
		}
		if (a.Quadrant == nil) != (b.Quadrant == nil) {
			return false
		}
		if a.Quadrant != nil && *a.Quadrant != *b.Quadrant {
			return false
		}
	}
	for k, a := range s.Expenses {
		b, ok := o.Expenses[k]
		if !ok || a.ID != b.ID || a.Name != b.Name || !a.Amount.Equal(b.Amount) {
			return false
		}
	}
	return true
}

// MarshalState serializes a state for snapshot storage. encoding/json writes
// map keys in sorted order, so equal states serialize identically.
func MarshalState(s *FinancialState) (json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal financial state: %w", err)
	}
	return data, nil
}

// UnmarshalState deserializes a snapshot's stored state.
func UnmarshalState(data json.RawMessage) (*FinancialState, error) {
	s := EmptyState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal financial state: %w", err)
	}
	if s.Assets == nil {
		s.Assets = make(map[string]AssetRecord)
	}
	if s.Liabilities == nil {
		s.Liabilities = make(map[string]LiabilityRecord)
	}
	if s.Incomes == nil {
		s.Incomes = make(map[string]IncomeRecord)
	}
	if s.Expenses == nil {
		s.Expenses = make(map[string]ExpenseRecord)
	}
	return s, nil
}
