package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ConsistencyChecker verifies that the read-model tables agree with a full
// replay of the event log. The log is the source of truth; a divergence
// means a write bypassed the transaction that pairs row and event.
type ConsistencyChecker struct {
	events      EventStore
	assets      AssetStore
	liabilities LiabilityStore
	incomes     IncomeStore
	expenses    ExpenseStore
	cashSavings CashSavingsStore
	logger      *logging.Logger
}

// NewConsistencyChecker creates a new consistency checker
func NewConsistencyChecker(
	events EventStore,
	assets AssetStore,
	liabilities LiabilityStore,
	incomes IncomeStore,
	expenses ExpenseStore,
	cashSavings CashSavingsStore,
	logger *logging.Logger,
) *ConsistencyChecker {
	return &ConsistencyChecker{
		events:      events,
		assets:      assets,
		liabilities: liabilities,
		incomes:     incomes,
		expenses:    expenses,
		cashSavings: cashSavings,
		logger:      logger,
	}
}

// ConsistencyCheckResult reports one user's read-model vs replay comparison
type ConsistencyCheckResult struct {
	UserID      string    `json:"userId"`
	Consistent  bool      `json:"consistent"`
	EventCount  int       `json:"eventCount"`
	Divergences []string  `json:"divergences,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// CheckUser replays the user's full event log and compares the resulting
// state against the entity tables.
func (cc *ConsistencyChecker) CheckUser(ctx context.Context, userID string) (*ConsistencyCheckResult, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}

	result := &ConsistencyCheckResult{
		UserID:    userID,
		CheckedAt: time.Now().UTC(),
	}

	events, err := cc.events.Query(ctx, userID, &storage.EventFilters{})
	if err != nil {
		return nil, errors.NewPersistenceError("query events", err)
	}
	result.EventCount = len(events)

	state, err := ledger.Replay(ledger.EmptyState(), events)
	if err != nil {
		return nil, errors.NewIntegrityError(userID, err)
	}

	if err := cc.compareAssets(ctx, userID, state, result); err != nil {
		return nil, err
	}
	if err := cc.compareLiabilities(ctx, userID, state, result); err != nil {
		return nil, err
	}
	if err := cc.compareIncomes(ctx, userID, state, result); err != nil {
		return nil, err
	}
	if err := cc.compareExpenses(ctx, userID, state, result); err != nil {
		return nil, err
	}
	if err := cc.compareCashSavings(ctx, userID, state, result); err != nil {
		return nil, err
	}

	result.Consistent = len(result.Divergences) == 0
	if !result.Consistent {
		cc.logger.WithFields(map[string]interface{}{
			"userId":      userID,
			"divergences": len(result.Divergences),
		}).Error("read model diverges from event log replay")
	}
	return result, nil
}

func (cc *ConsistencyChecker) compareAssets(ctx context.Context, userID string, state *ledger.FinancialState, result *ConsistencyCheckResult) error {
	rows, err := cc.assets.ListByUser(ctx, userID)
	if err != nil {
		return errors.NewPersistenceError("list assets", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		rec, ok := state.Assets[row.ID]
		if !ok {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("asset %s present in table but absent from replay", row.ID))
			continue
		}
		if rec.Name != row.Name || !rec.Value.Equal(row.Value) {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("asset %s differs: table (%s, %s) vs replay (%s, %s)",
					row.ID, row.Name, row.Value, rec.Name, rec.Value))
		}
	}
	for id := range state.Assets {
		if !seen[id] {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("asset %s present in replay but absent from table", id))
		}
	}
	return nil
}

func (cc *ConsistencyChecker) compareLiabilities(ctx context.Context, userID string, state *ledger.FinancialState, result *ConsistencyCheckResult) error {
	rows, err := cc.liabilities.ListByUser(ctx, userID)
	if err != nil {
		return errors.NewPersistenceError("list liabilities", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		rec, ok := state.Liabilities[row.ID]
		if !ok {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("liability %s present in table but absent from replay", row.ID))
			continue
		}
		if rec.Name != row.Name || !rec.Value.Equal(row.Value) {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("liability %s differs: table (%s, %s) vs replay (%s, %s)",
					row.ID, row.Name, row.Value, rec.Name, rec.Value))
		}
	}
	for id := range state.Liabilities {
		if !seen[id] {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("liability %s present in replay but absent from table", id))
		}
	}
	return nil
}

func (cc *ConsistencyChecker) compareIncomes(ctx context.Context, userID string, state *ledger.FinancialState, result *ConsistencyCheckResult) error {
	rows, err := cc.incomes.ListByUser(ctx, userID)
	if err != nil {
		return errors.NewPersistenceError("list incomes", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		rec, ok := state.Incomes[row.ID]
		if !ok {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("income %s present in table but absent from replay", row.ID))
			continue
		}
		if rec.Name != row.Name || !rec.Amount.Equal(row.Amount) || rec.Type != row.Type {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("income %s differs: table (%s, %s, %s) vs replay (%s, %s, %s)",
					row.ID, row.Name, row.Amount, row.Type, rec.Name, rec.Amount, rec.Type))
		}
	}
	for id := range state.Incomes {
		if !seen[id] {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("income %s present in replay but absent from table", id))
		}
	}
	return nil
}

func (cc *ConsistencyChecker) compareExpenses(ctx context.Context, userID string, state *ledger.FinancialState, result *ConsistencyCheckResult) error {
	rows, err := cc.expenses.ListByUser(ctx, userID)
	if err != nil {
		return errors.NewPersistenceError("list expenses", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		rec, ok := state.Expenses[row.ID]
		if !ok {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("expense %s present in table but absent from replay", row.ID))
			continue
		}
		if rec.Name != row.Name || !rec.Amount.Equal(row.Amount) {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("expense %s differs: table (%s, %s) vs replay (%s, %s)",
					row.ID, row.Name, row.Amount, rec.Name, rec.Amount))
		}
	}
	for id := range state.Expenses {
		if !seen[id] {
			result.Divergences = append(result.Divergences,
				fmt.Sprintf("expense %s present in replay but absent from table", id))
		}
	}
	return nil
}

func (cc *ConsistencyChecker) compareCashSavings(ctx context.Context, userID string, state *ledger.FinancialState, result *ConsistencyCheckResult) error {
	row, err := cc.cashSavings.GetByUser(ctx, userID)
	if err != nil && err != pgx.ErrNoRows {
		return errors.NewPersistenceError("get cash savings", err)
	}

	tableAmount := decimal.Zero
	if row != nil {
		tableAmount = row.Amount
	}
	if !tableAmount.Equal(state.CashSavings) {
		result.Divergences = append(result.Divergences,
			fmt.Sprintf("cash savings differs: table %s vs replay %s", tableAmount, state.CashSavings))
	}
	return nil
}
