package ledger

import (
	"fmt"

	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// ReplayCorruptionError reports an event that cannot be folded into state:
// a CREATE for an entity that already exists or an UPDATE for one that does
// not. Either means the event log and the read model have diverged, which is
// a data-integrity alarm, never something to paper over.
type ReplayCorruptionError struct {
	EventID    int64
	EntityType types.EntityType
	EntityID   string
	Reason     string
}

func (e *ReplayCorruptionError) Error() string {
	return fmt.Sprintf("replay corruption at event %d (%s %s): %s", e.EventID, e.EntityType, e.EntityID, e.Reason)
}

// Apply folds one event into state and returns the resulting state. The input
// state is never modified; reducers read nothing outside (state, event).
func Apply(state *FinancialState, ev *models.Event) (*FinancialState, error) {
	next := state.Clone()
	if err := applyInPlace(next, ev); err != nil {
		return nil, err
	}
	return next, nil
}

// Replay folds an ordered event sequence into a copy of start. The caller is
// responsible for ordering events by (timestamp, id) ascending.
func Replay(start *FinancialState, events []*models.Event) (*FinancialState, error) {
	state := start.Clone()
	for _, ev := range events {
		if err := applyInPlace(state, ev); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// applyInPlace is the root reducer: it decodes the event's payloads and
// dispatches on entity type. It mutates state, which must be a private copy.
func applyInPlace(s *FinancialState, ev *models.Event) error {
	before, after, err := ValidateEventPayloads(ev.ActionType, ev.EntityType, ev.BeforeValue, ev.AfterValue)
	if err != nil {
		return &ReplayCorruptionError{
			EventID:    ev.ID,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Reason:     fmt.Sprintf("stored payload failed validation: %v", err),
		}
	}

	switch ev.EntityType {
	case types.EntityAsset:
		return reduceAsset(s, ev, after)
	case types.EntityLiability:
		return reduceLiability(s, ev, after)
	case types.EntityIncome:
		return reduceIncome(s, ev, after)
	case types.EntityExpense:
		return reduceExpense(s, ev, after)
	case types.EntityCashSavings:
		return reduceCashSavings(s, ev, after)
	case types.EntityUser:
		return reduceUser(s, ev, before, after)
	default:
		// The validator rejects unknown entity types before append, so this
		// is a programming error, not a runtime case.
		panic(fmt.Sprintf("ledger: unknown entity type %q in event %d", ev.EntityType, ev.ID))
	}
}

func reduceAsset(s *FinancialState, ev *models.Event, after EntityPayload) error {
	switch ev.ActionType {
	case types.ActionCreate:
		if _, exists := s.Assets[ev.EntityID]; exists {
			return createOnExisting(ev)
		}
		p := after.(AssetPayload)
		s.Assets[ev.EntityID] = AssetRecord{ID: ev.EntityID, Name: p.Name, Value: p.Value}
	case types.ActionUpdate:
		if _, exists := s.Assets[ev.EntityID]; !exists {
			return updateOnMissing(ev)
		}
		p := after.(AssetPayload)
		s.Assets[ev.EntityID] = AssetRecord{ID: ev.EntityID, Name: p.Name, Value: p.Value}
	case types.ActionDelete:
		// Absent key is a no-op: delete is idempotent.
		delete(s.Assets, ev.EntityID)
	}
	return nil
}

func reduceLiability(s *FinancialState, ev *models.Event, after EntityPayload) error {
	switch ev.ActionType {
	case types.ActionCreate:
		if _, exists := s.Liabilities[ev.EntityID]; exists {
			return createOnExisting(ev)
		}
		p := after.(LiabilityPayload)
		s.Liabilities[ev.EntityID] = LiabilityRecord{ID: ev.EntityID, Name: p.Name, Value: p.Value}
	case types.ActionUpdate:
		if _, exists := s.Liabilities[ev.EntityID]; !exists {
			return updateOnMissing(ev)
		}
		p := after.(LiabilityPayload)
		s.Liabilities[ev.EntityID] = LiabilityRecord{ID: ev.EntityID, Name: p.Name, Value: p.Value}
	case types.ActionDelete:
		delete(s.Liabilities, ev.EntityID)
	}
	return nil
}

func reduceIncome(s *FinancialState, ev *models.Event, after EntityPayload) error {
	switch ev.ActionType {
	case types.ActionCreate:
		if _, exists := s.Incomes[ev.EntityID]; exists {
			return createOnExisting(ev)
		}
		p := after.(IncomePayload)
		s.Incomes[ev.EntityID] = IncomeRecord{ID: ev.EntityID, Name: p.Name, Amount: p.Amount, Type: p.Type, Quadrant: p.Quadrant}
	case types.ActionUpdate:
		if _, exists := s.Incomes[ev.EntityID]; !exists {
			return updateOnMissing(ev)
		}
		p := after.(IncomePayload)
		s.Incomes[ev.EntityID] = IncomeRecord{ID: ev.EntityID, Name: p.Name, Amount: p.Amount, Type: p.Type, Quadrant: p.Quadrant}
	case types.ActionDelete:
		delete(s.Incomes, ev.EntityID)
	}
	return nil
}

func reduceExpense(s *FinancialState, ev *models.Event, after EntityPayload) error {
	switch ev.ActionType {
	case types.ActionCreate:
		if _, exists := s.Expenses[ev.EntityID]; exists {
			return createOnExisting(ev)
		}
		p := after.(ExpensePayload)
		s.Expenses[ev.EntityID] = ExpenseRecord{ID: ev.EntityID, Name: p.Name, Amount: p.Amount}
	case types.ActionUpdate:
		if _, exists := s.Expenses[ev.EntityID]; !exists {
			return updateOnMissing(ev)
		}
		p := after.(ExpensePayload)
		s.Expenses[ev.EntityID] = ExpenseRecord{ID: ev.EntityID, Name: p.Name, Amount: p.Amount}
	case types.ActionDelete:
		delete(s.Expenses, ev.EntityID)
	}
	return nil
}

// reduceCashSavings folds the scalar cash balance. There is no keyed
// container, so create/update both set the balance and delete zeroes it.
func reduceCashSavings(s *FinancialState, ev *models.Event, after EntityPayload) error {
	switch ev.ActionType {
	case types.ActionCreate, types.ActionUpdate:
		p := after.(CashSavingsPayload)
		s.CashSavings = p.Amount
	case types.ActionDelete:
		s.CashSavings = decimal.Zero
	}
	return nil
}

// reduceUser folds preference changes. Only the preferred currency reference
// is part of financial state; other preference fields do not affect it.
func reduceUser(s *FinancialState, ev *models.Event, before, after EntityPayload) error {
	switch ev.ActionType {
	case types.ActionCreate, types.ActionUpdate:
		p := after.(UserPayload)
		if p.PreferredCurrencyID != nil {
			s.CurrencyID = *p.PreferredCurrencyID
		}
	case types.ActionDelete:
		s.CurrencyID = ""
	}
	return nil
}

func createOnExisting(ev *models.Event) error {
	return &ReplayCorruptionError{
		EventID:    ev.ID,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Reason:     "CREATE for an entity that already exists in state",
	}
}

func updateOnMissing(ev *models.Event) error {
	return &ReplayCorruptionError{
		EventID:    ev.ID,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Reason:     "UPDATE for an entity that is not present in state",
	}
}
