package models

import (
	"time"

	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// The entity rows below form the read model: current-state tables kept in
// sync with the event log (same transaction as the event append) for fast
// list views. The event log remains the source of truth.

// Asset represents an owned asset row
type Asset struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Value     decimal.Decimal `json:"value" db:"value"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Liability represents an owed liability row
type Liability struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Value     decimal.Decimal `json:"value" db:"value"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// IncomeLine represents a recurring income row
type IncomeLine struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"userId" db:"user_id"`
	Name      string           `json:"name" db:"name"`
	Amount    decimal.Decimal  `json:"amount" db:"amount"`
	Type      types.IncomeType `json:"type" db:"income_type"`
	Quadrant  *string          `json:"quadrant,omitempty" db:"quadrant"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time        `json:"updatedAt" db:"updated_at"`
}

// Expense represents a recurring expense row
type Expense struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// CashSavings represents a user's cash savings balance row.
// Each user has at most one; the row id still identifies the entity in events.
type CashSavings struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}
