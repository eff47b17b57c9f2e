package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/storage"
	"github.com/finance-ledger/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner opens the database transaction that scopes one write operation.
// The entity-table write and the event append always share one transaction
// so neither can be observed without the other.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EventStore interface for event log operations
type EventStore interface {
	AppendTx(ctx context.Context, tx pgx.Tx, ev *models.Event) (*models.Event, error)
	Query(ctx context.Context, userID string, filters *storage.EventFilters) ([]*models.Event, error)
	EarliestTimestamp(ctx context.Context, userID string) (*time.Time, error)
	CountByUser(ctx context.Context, userID string, filters *storage.EventFilters) (int64, error)
}

// AssetStore interface for asset read-model operations
type AssetStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, asset *models.Asset) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Asset, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, asset *models.Asset) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error
	GetByID(ctx context.Context, id, userID string) (*models.Asset, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Asset, error)
}

// LiabilityStore interface for liability read-model operations
type LiabilityStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, liability *models.Liability) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Liability, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, liability *models.Liability) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error
	GetByID(ctx context.Context, id, userID string) (*models.Liability, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Liability, error)
}

// IncomeStore interface for income read-model operations
type IncomeStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, income *models.IncomeLine) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.IncomeLine, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, income *models.IncomeLine) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error
	GetByID(ctx context.Context, id, userID string) (*models.IncomeLine, error)
	ListByUser(ctx context.Context, userID string) ([]*models.IncomeLine, error)
}

// ExpenseStore interface for expense read-model operations
type ExpenseStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, expense *models.Expense) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Expense, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, expense *models.Expense) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error
	GetByID(ctx context.Context, id, userID string) (*models.Expense, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Expense, error)
}

// CashSavingsStore interface for the cash savings read-model row
type CashSavingsStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, cash *models.CashSavings) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (*models.CashSavings, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, cash *models.CashSavings) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error
	GetByUser(ctx context.Context, userID string) (*models.CashSavings, error)
}

// UserStore interface for user preference rows
type UserStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*models.User, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AnalysisCache invalidates and serves cached analysis results
type AnalysisCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	InvalidateUser(ctx context.Context, userID string) error
	GenerateAnalysisKey(userID string) string
	GenerateTrajectoryKey(userID, interval string, start, end time.Time) string
}

// SnapshotPruner removes checkpoints a write has falsified. Pruning runs in
// the write transaction so a backdated event and the stale checkpoints it
// invalidates can never be observed together.
type SnapshotPruner interface {
	DeleteFromTx(ctx context.Context, tx pgx.Tx, userID string, from time.Time) error
}

// FinanceService is the write side of the ledger. Every create, update and
// delete of a tracked entity writes the read-model row and appends the
// matching event in one transaction.
type FinanceService struct {
	db          TxBeginner
	events      EventStore
	assets      AssetStore
	liabilities LiabilityStore
	incomes     IncomeStore
	expenses    ExpenseStore
	cashSavings CashSavingsStore
	users       UserStore
	snapshots   SnapshotPruner
	cache       AnalysisCache
	logger      *logging.Logger
}

// NewFinanceService creates a new finance service. cache may be nil when
// Redis is not configured.
func NewFinanceService(
	db TxBeginner,
	events EventStore,
	assets AssetStore,
	liabilities LiabilityStore,
	incomes IncomeStore,
	expenses ExpenseStore,
	cashSavings CashSavingsStore,
	users UserStore,
	snapshots SnapshotPruner,
	cache AnalysisCache,
	logger *logging.Logger,
) *FinanceService {
	return &FinanceService{
		db:          db,
		events:      events,
		assets:      assets,
		liabilities: liabilities,
		incomes:     incomes,
		expenses:    expenses,
		cashSavings: cashSavings,
		users:       users,
		snapshots:   snapshots,
		cache:       cache,
		logger:      logger,
	}
}

// CreateEntityInput describes a create request for any tracked entity type
type CreateEntityInput struct {
	UserID     string
	EntityType types.EntityType
	Payload    json.RawMessage
	Timestamp  *time.Time
}

// UpdateEntityInput describes an update request for an existing entity
type UpdateEntityInput struct {
	UserID     string
	EntityType types.EntityType
	EntityID   string
	Payload    json.RawMessage
	Timestamp  *time.Time
}

// DeleteEntityInput describes a delete request for an existing entity
type DeleteEntityInput struct {
	UserID     string
	EntityType types.EntityType
	EntityID   string
	Timestamp  *time.Time
}

// MutationResult is the committed outcome of a write: the entity row as
// stored plus the event that records the change.
type MutationResult struct {
	Event  *models.Event `json:"event"`
	Entity interface{}   `json:"entity,omitempty"`
}

// CreateEntity validates the payload, inserts the read-model row and appends
// the CREATE event in one transaction.
func (s *FinanceService) CreateEntity(ctx context.Context, input *CreateEntityInput) (*MutationResult, error) {
	if input.UserID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}
	if !input.EntityType.Valid() {
		return nil, errors.NewInvalidParameterError("entityType", fmt.Sprintf("unknown entity type %q", input.EntityType))
	}

	payload, err := ledger.Validate(input.EntityType, input.Payload)
	if err != nil {
		return nil, err
	}
	afterValue, err := ledger.Encode(payload)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode payload", err)
	}

	now := s.eventTime(input.Timestamp)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.NewPersistenceError("begin transaction", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	entity, entityID, subtype, err := s.createRow(ctx, tx, input.UserID, payload, now)
	if err != nil {
		return nil, err
	}

	stored, err := s.events.AppendTx(ctx, tx, &models.Event{
		Timestamp:     now,
		ActionType:    types.ActionCreate,
		EntityType:    input.EntityType,
		EntitySubtype: subtype,
		AfterValue:    afterValue,
		UserID:        input.UserID,
		EntityID:      entityID,
	})
	if err != nil {
		return nil, errors.NewPersistenceError("append event", err)
	}

	if err := s.pruneSnapshots(ctx, tx, input.UserID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.NewPersistenceError("commit transaction", err)
	}
	tx = nil

	s.invalidateCache(ctx, input.UserID)
	s.logger.WithFields(map[string]interface{}{
		"userId":     input.UserID,
		"entityType": input.EntityType,
		"entityId":   entityID,
		"eventId":    stored.ID,
	}).Info("entity created")

	return &MutationResult{Event: stored, Entity: entity}, nil
}

// UpdateEntity locks the current row, captures its prior state, applies the
// new payload and appends the UPDATE event in one transaction.
func (s *FinanceService) UpdateEntity(ctx context.Context, input *UpdateEntityInput) (*MutationResult, error) {
	if input.UserID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}
	if input.EntityID == "" {
		return nil, errors.NewValidationError("entityId", "must be non-empty")
	}
	if !input.EntityType.Valid() {
		return nil, errors.NewInvalidParameterError("entityType", fmt.Sprintf("unknown entity type %q", input.EntityType))
	}

	payload, err := ledger.Validate(input.EntityType, input.Payload)
	if err != nil {
		return nil, err
	}
	afterValue, err := ledger.Encode(payload)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode payload", err)
	}

	now := s.eventTime(input.Timestamp)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.NewPersistenceError("begin transaction", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	entity, beforeValue, subtype, err := s.updateRow(ctx, tx, input, payload, now)
	if err != nil {
		return nil, err
	}

	stored, err := s.events.AppendTx(ctx, tx, &models.Event{
		Timestamp:     now,
		ActionType:    types.ActionUpdate,
		EntityType:    input.EntityType,
		EntitySubtype: subtype,
		BeforeValue:   beforeValue,
		AfterValue:    afterValue,
		UserID:        input.UserID,
		EntityID:      input.EntityID,
	})
	if err != nil {
		return nil, errors.NewPersistenceError("append event", err)
	}

	if err := s.pruneSnapshots(ctx, tx, input.UserID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.NewPersistenceError("commit transaction", err)
	}
	tx = nil

	s.invalidateCache(ctx, input.UserID)
	s.logger.WithFields(map[string]interface{}{
		"userId":     input.UserID,
		"entityType": input.EntityType,
		"entityId":   input.EntityID,
		"eventId":    stored.ID,
	}).Info("entity updated")

	return &MutationResult{Event: stored, Entity: entity}, nil
}

// DeleteEntity locks the current row, captures its prior state, removes the
// row and appends the DELETE event in one transaction.
func (s *FinanceService) DeleteEntity(ctx context.Context, input *DeleteEntityInput) (*MutationResult, error) {
	if input.UserID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}
	if input.EntityID == "" {
		return nil, errors.NewValidationError("entityId", "must be non-empty")
	}
	if !input.EntityType.Valid() {
		return nil, errors.NewInvalidParameterError("entityType", fmt.Sprintf("unknown entity type %q", input.EntityType))
	}
	if input.EntityType == types.EntityUser {
		return nil, errors.NewInvalidParameterError("entityType", "USER entities cannot be deleted")
	}

	now := s.eventTime(input.Timestamp)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.NewPersistenceError("begin transaction", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	beforeValue, subtype, err := s.deleteRow(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	stored, err := s.events.AppendTx(ctx, tx, &models.Event{
		Timestamp:     now,
		ActionType:    types.ActionDelete,
		EntityType:    input.EntityType,
		EntitySubtype: subtype,
		BeforeValue:   beforeValue,
		UserID:        input.UserID,
		EntityID:      input.EntityID,
	})
	if err != nil {
		return nil, errors.NewPersistenceError("append event", err)
	}

	if err := s.pruneSnapshots(ctx, tx, input.UserID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.NewPersistenceError("commit transaction", err)
	}
	tx = nil

	s.invalidateCache(ctx, input.UserID)
	s.logger.WithFields(map[string]interface{}{
		"userId":     input.UserID,
		"entityType": input.EntityType,
		"entityId":   input.EntityID,
		"eventId":    stored.ID,
	}).Info("entity deleted")

	return &MutationResult{Event: stored}, nil
}

// createRow inserts the read-model row for a validated payload and returns
// the stored entity, its id and the event subtype.
func (s *FinanceService) createRow(ctx context.Context, tx pgx.Tx, userID string, payload ledger.EntityPayload, now time.Time) (interface{}, string, *string, error) {
	switch p := payload.(type) {
	case ledger.AssetPayload:
		asset := &models.Asset{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      p.Name,
			Value:     p.Value,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.assets.CreateTx(ctx, tx, asset); err != nil {
			return nil, "", nil, errors.NewPersistenceError("create asset", err)
		}
		return asset, asset.ID, nil, nil

	case ledger.LiabilityPayload:
		liability := &models.Liability{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      p.Name,
			Value:     p.Value,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.liabilities.CreateTx(ctx, tx, liability); err != nil {
			return nil, "", nil, errors.NewPersistenceError("create liability", err)
		}
		return liability, liability.ID, nil, nil

	case ledger.IncomePayload:
		income := &models.IncomeLine{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      p.Name,
			Amount:    p.Amount,
			Type:      p.Type,
			Quadrant:  p.Quadrant,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.incomes.CreateTx(ctx, tx, income); err != nil {
			return nil, "", nil, errors.NewPersistenceError("create income", err)
		}
		subtype := string(p.Type)
		return income, income.ID, &subtype, nil

	case ledger.ExpensePayload:
		expense := &models.Expense{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      p.Name,
			Amount:    p.Amount,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.expenses.CreateTx(ctx, tx, expense); err != nil {
			return nil, "", nil, errors.NewPersistenceError("create expense", err)
		}
		return expense, expense.ID, nil, nil

	case ledger.CashSavingsPayload:
		existing, err := s.cashSavings.GetForUpdateTx(ctx, tx, userID)
		if err != nil && err != pgx.ErrNoRows {
			return nil, "", nil, errors.NewPersistenceError("check cash savings", err)
		}
		if existing != nil {
			return nil, "", nil, errors.NewInvalidParameterError("cashSavings", "already tracked for user, update it instead")
		}
		cash := &models.CashSavings{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    p.Amount,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.cashSavings.CreateTx(ctx, tx, cash); err != nil {
			return nil, "", nil, errors.NewPersistenceError("create cash savings", err)
		}
		return cash, cash.ID, nil, nil

	case ledger.UserPayload:
		user := &models.User{
			ID:                  userID,
			Name:                p.Name,
			Email:               p.Email,
			PreferredCurrencyID: p.PreferredCurrencyID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.users.CreateTx(ctx, tx, user); err != nil {
			return nil, "", nil, errors.NewPersistenceError("create user", err)
		}
		return user, user.ID, nil, nil
	}
	return nil, "", nil, errors.NewInternalError(fmt.Sprintf("unhandled payload type %T", payload), nil)
}

// updateRow locks and rewrites the read-model row, returning the stored
// entity, the encoded prior state and the event subtype.
func (s *FinanceService) updateRow(ctx context.Context, tx pgx.Tx, input *UpdateEntityInput, payload ledger.EntityPayload, now time.Time) (interface{}, json.RawMessage, *string, error) {
	switch p := payload.(type) {
	case ledger.AssetPayload:
		current, err := s.assets.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, nil, s.rowError("asset", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.AssetPayload{Name: current.Name, Value: current.Value})
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		current.Name = p.Name
		current.Value = p.Value
		current.UpdatedAt = now
		if err := s.assets.UpdateTx(ctx, tx, current); err != nil {
			return nil, nil, nil, errors.NewPersistenceError("update asset", err)
		}
		return current, beforeValue, nil, nil

	case ledger.LiabilityPayload:
		current, err := s.liabilities.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, nil, s.rowError("liability", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.LiabilityPayload{Name: current.Name, Value: current.Value})
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		current.Name = p.Name
		current.Value = p.Value
		current.UpdatedAt = now
		if err := s.liabilities.UpdateTx(ctx, tx, current); err != nil {
			return nil, nil, nil, errors.NewPersistenceError("update liability", err)
		}
		return current, beforeValue, nil, nil

	case ledger.IncomePayload:
		current, err := s.incomes.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, nil, s.rowError("income", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.IncomePayload{
			Name:     current.Name,
			Amount:   current.Amount,
			Type:     current.Type,
			Quadrant: current.Quadrant,
		})
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		current.Name = p.Name
		current.Amount = p.Amount
		current.Type = p.Type
		current.Quadrant = p.Quadrant
		current.UpdatedAt = now
		if err := s.incomes.UpdateTx(ctx, tx, current); err != nil {
			return nil, nil, nil, errors.NewPersistenceError("update income", err)
		}
		subtype := string(p.Type)
		return current, beforeValue, &subtype, nil

	case ledger.ExpensePayload:
		current, err := s.expenses.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, nil, s.rowError("expense", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.ExpensePayload{Name: current.Name, Amount: current.Amount})
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		current.Name = p.Name
		current.Amount = p.Amount
		current.UpdatedAt = now
		if err := s.expenses.UpdateTx(ctx, tx, current); err != nil {
			return nil, nil, nil, errors.NewPersistenceError("update expense", err)
		}
		return current, beforeValue, nil, nil

	case ledger.CashSavingsPayload:
		current, err := s.cashSavings.GetForUpdateTx(ctx, tx, input.UserID)
		if err != nil {
			return nil, nil, nil, s.rowError("cash savings", input.EntityID, err)
		}
		if current.ID != input.EntityID {
			return nil, nil, nil, errors.NewNotFoundError("cash savings", input.EntityID)
		}
		beforeValue, err := ledger.Encode(ledger.CashSavingsPayload{Amount: current.Amount})
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		current.Amount = p.Amount
		current.UpdatedAt = now
		if err := s.cashSavings.UpdateTx(ctx, tx, current); err != nil {
			return nil, nil, nil, errors.NewPersistenceError("update cash savings", err)
		}
		return current, beforeValue, nil, nil

	case ledger.UserPayload:
		current, err := s.users.GetForUpdateTx(ctx, tx, input.UserID)
		if err != nil {
			return nil, nil, nil, s.rowError("user", input.UserID, err)
		}
		beforeValue, err := ledger.Encode(ledger.UserPayload{
			Name:                current.Name,
			Email:               current.Email,
			PreferredCurrencyID: current.PreferredCurrencyID,
		})
		if err != nil {
			return nil, nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		current.Name = p.Name
		current.Email = p.Email
		current.PreferredCurrencyID = p.PreferredCurrencyID
		current.UpdatedAt = now
		if err := s.users.UpdateTx(ctx, tx, current); err != nil {
			return nil, nil, nil, errors.NewPersistenceError("update user", err)
		}
		return current, beforeValue, nil, nil
	}
	return nil, nil, nil, errors.NewInternalError(fmt.Sprintf("unhandled payload type %T", payload), nil)
}

// deleteRow locks, encodes and removes the read-model row, returning the
// encoded prior state and the event subtype.
func (s *FinanceService) deleteRow(ctx context.Context, tx pgx.Tx, input *DeleteEntityInput) (json.RawMessage, *string, error) {
	switch input.EntityType {
	case types.EntityAsset:
		current, err := s.assets.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, s.rowError("asset", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.AssetPayload{Name: current.Name, Value: current.Value})
		if err != nil {
			return nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		if err := s.assets.DeleteTx(ctx, tx, input.EntityID, input.UserID); err != nil {
			return nil, nil, errors.NewPersistenceError("delete asset", err)
		}
		return beforeValue, nil, nil

	case types.EntityLiability:
		current, err := s.liabilities.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, s.rowError("liability", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.LiabilityPayload{Name: current.Name, Value: current.Value})
		if err != nil {
			return nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		if err := s.liabilities.DeleteTx(ctx, tx, input.EntityID, input.UserID); err != nil {
			return nil, nil, errors.NewPersistenceError("delete liability", err)
		}
		return beforeValue, nil, nil

	case types.EntityIncome:
		current, err := s.incomes.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, s.rowError("income", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.IncomePayload{
			Name:     current.Name,
			Amount:   current.Amount,
			Type:     current.Type,
			Quadrant: current.Quadrant,
		})
		if err != nil {
			return nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		if err := s.incomes.DeleteTx(ctx, tx, input.EntityID, input.UserID); err != nil {
			return nil, nil, errors.NewPersistenceError("delete income", err)
		}
		subtype := string(current.Type)
		return beforeValue, &subtype, nil

	case types.EntityExpense:
		current, err := s.expenses.GetForUpdateTx(ctx, tx, input.EntityID, input.UserID)
		if err != nil {
			return nil, nil, s.rowError("expense", input.EntityID, err)
		}
		beforeValue, err := ledger.Encode(ledger.ExpensePayload{Name: current.Name, Amount: current.Amount})
		if err != nil {
			return nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		if err := s.expenses.DeleteTx(ctx, tx, input.EntityID, input.UserID); err != nil {
			return nil, nil, errors.NewPersistenceError("delete expense", err)
		}
		return beforeValue, nil, nil

	case types.EntityCashSavings:
		current, err := s.cashSavings.GetForUpdateTx(ctx, tx, input.UserID)
		if err != nil {
			return nil, nil, s.rowError("cash savings", input.EntityID, err)
		}
		if current.ID != input.EntityID {
			return nil, nil, errors.NewNotFoundError("cash savings", input.EntityID)
		}
		beforeValue, err := ledger.Encode(ledger.CashSavingsPayload{Amount: current.Amount})
		if err != nil {
			return nil, nil, errors.NewInternalError("failed to encode prior state", err)
		}
		if err := s.cashSavings.DeleteTx(ctx, tx, input.EntityID, input.UserID); err != nil {
			return nil, nil, errors.NewPersistenceError("delete cash savings", err)
		}
		return beforeValue, nil, nil
	}
	return nil, nil, errors.NewInternalError(fmt.Sprintf("unhandled entity type %q", input.EntityType), nil)
}

// Read-model passthroughs for list views. These read committed rows only;
// point-in-time questions go through the analysis engine instead.

// ListAssets returns the user's current assets
func (s *FinanceService) ListAssets(ctx context.Context, userID string) ([]*models.Asset, error) {
	return s.assets.ListByUser(ctx, userID)
}

// ListLiabilities returns the user's current liabilities
func (s *FinanceService) ListLiabilities(ctx context.Context, userID string) ([]*models.Liability, error) {
	return s.liabilities.ListByUser(ctx, userID)
}

// ListIncomes returns the user's current income lines
func (s *FinanceService) ListIncomes(ctx context.Context, userID string) ([]*models.IncomeLine, error) {
	return s.incomes.ListByUser(ctx, userID)
}

// ListExpenses returns the user's current expenses
func (s *FinanceService) ListExpenses(ctx context.Context, userID string) ([]*models.Expense, error) {
	return s.expenses.ListByUser(ctx, userID)
}

// GetCashSavings returns the user's cash savings row, nil when none exists
func (s *FinanceService) GetCashSavings(ctx context.Context, userID string) (*models.CashSavings, error) {
	cash, err := s.cashSavings.GetByUser(ctx, userID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return cash, err
}

// GetUser returns the user's preference row
func (s *FinanceService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err == pgx.ErrNoRows {
		return nil, errors.NewNotFoundError("user", userID)
	}
	return user, err
}

// pruneSnapshots drops checkpoints dated at or after the event timestamp.
// For a current-time write this deletes nothing; for a backdated write it
// removes every checkpoint whose covered range the new event falls into, so
// the next analysis rebuilds them from the amended log.
func (s *FinanceService) pruneSnapshots(ctx context.Context, tx pgx.Tx, userID string, ts time.Time) error {
	if err := s.snapshots.DeleteFromTx(ctx, tx, userID, ts); err != nil {
		return errors.NewPersistenceError("prune snapshots", err)
	}
	return nil
}

func (s *FinanceService) eventTime(ts *time.Time) time.Time {
	if ts != nil {
		return ts.UTC()
	}
	return time.Now().UTC()
}

func (s *FinanceService) rowError(resource, id string, err error) error {
	if err == pgx.ErrNoRows {
		return errors.NewNotFoundError(resource, id)
	}
	return errors.NewPersistenceError("get "+resource, err)
}

// invalidateCache drops cached analysis after a committed write. Failure is
// logged, not propagated: the cache self-heals via TTL.
func (s *FinanceService) invalidateCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("failed to invalidate analysis cache")
	}
}
