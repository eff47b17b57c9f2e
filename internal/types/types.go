// Package types provides common type definitions for the finance ledger system.
package types

// ActionType represents the kind of state-changing action an event records
type ActionType string

const (
	// ActionCreate represents the creation of a tracked entity
	ActionCreate ActionType = "CREATE"
	// ActionUpdate represents the modification of a tracked entity
	ActionUpdate ActionType = "UPDATE"
	// ActionDelete represents the removal of a tracked entity
	ActionDelete ActionType = "DELETE"
)

// Valid reports whether the action type is one of the known constants
func (a ActionType) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// EntityType represents the kind of financial entity an event refers to
type EntityType string

const (
	// EntityIncome represents a recurring income line
	EntityIncome EntityType = "INCOME"
	// EntityExpense represents a recurring expense
	EntityExpense EntityType = "EXPENSE"
	// EntityAsset represents an owned asset
	EntityAsset EntityType = "ASSET"
	// EntityLiability represents an owed liability
	EntityLiability EntityType = "LIABILITY"
	// EntityCashSavings represents the user's cash savings balance
	EntityCashSavings EntityType = "CASH_SAVINGS"
	// EntityUser represents the user's own preference record
	EntityUser EntityType = "USER"
)

// Valid reports whether the entity type is one of the known constants
func (e EntityType) Valid() bool {
	switch e {
	case EntityIncome, EntityExpense, EntityAsset, EntityLiability, EntityCashSavings, EntityUser:
		return true
	}
	return false
}

// IncomeType classifies how an income line is earned
type IncomeType string

const (
	// IncomeEarned represents income from active work
	IncomeEarned IncomeType = "Earned"
	// IncomePortfolio represents income from invested capital
	IncomePortfolio IncomeType = "Portfolio"
	// IncomePassive represents income that requires no active work
	IncomePassive IncomeType = "Passive"
)

// Interval represents the sampling granularity of a trajectory request
type Interval string

const (
	// IntervalDaily samples the trajectory once per day
	IntervalDaily Interval = "daily"
	// IntervalWeekly samples the trajectory once per week
	IntervalWeekly Interval = "weekly"
	// IntervalMonthly samples the trajectory once per calendar month
	IntervalMonthly Interval = "monthly"
)

// Valid reports whether the interval is one of the known constants
func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// UserTier represents the service tier level used for API rate limiting
type UserTier string

const (
	// TierFree represents the free service tier with limited request rates
	TierFree UserTier = "free"
	// TierPaid represents the paid service tier with higher request rates
	TierPaid UserTier = "paid"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
