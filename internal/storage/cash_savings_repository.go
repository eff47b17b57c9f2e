package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CashSavingsRepository handles the single cash-savings row each user may
// have. The unique index on user_id enforces at-most-one.
type CashSavingsRepository struct {
	db *PostgresDB
}

// NewCashSavingsRepository creates a new cash savings repository
func NewCashSavingsRepository(db *PostgresDB) *CashSavingsRepository {
	return &CashSavingsRepository{db: db}
}

// CreateTx inserts the cash savings row inside the caller's transaction
func (r *CashSavingsRepository) CreateTx(ctx context.Context, tx pgx.Tx, cash *models.CashSavings) error {
	if cash.ID == "" {
		cash.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	cash.CreatedAt = now
	cash.UpdatedAt = now

	query := `
		INSERT INTO cash_savings (id, user_id, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query, cash.ID, cash.UserID, cash.Amount, cash.CreatedAt, cash.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cash savings: %w", err)
	}
	return nil
}

// GetForUpdateTx loads the user's cash savings row with a row lock
func (r *CashSavingsRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (*models.CashSavings, error) {
	query := `
		SELECT id, user_id, amount::text, created_at, updated_at
		FROM cash_savings
		WHERE user_id = $1
		FOR UPDATE
	`
	return scanCashSavings(tx.QueryRow(ctx, query, userID))
}

// UpdateTx replaces the cash amount inside the caller's transaction
func (r *CashSavingsRepository) UpdateTx(ctx context.Context, tx pgx.Tx, cash *models.CashSavings) error {
	cash.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE cash_savings
		SET amount = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
	`
	tag, err := tx.Exec(ctx, query, cash.Amount, cash.UpdatedAt, cash.ID, cash.UserID)
	if err != nil {
		return fmt.Errorf("failed to update cash savings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTx removes the cash savings row inside the caller's transaction
func (r *CashSavingsRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM cash_savings WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cash savings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByUser retrieves the user's cash savings row
func (r *CashSavingsRepository) GetByUser(ctx context.Context, userID string) (*models.CashSavings, error) {
	query := `
		SELECT id, user_id, amount::text, created_at, updated_at
		FROM cash_savings
		WHERE user_id = $1
	`
	return scanCashSavings(r.db.Pool().QueryRow(ctx, query, userID))
}

func scanCashSavings(row pgx.Row) (*models.CashSavings, error) {
	var c models.CashSavings
	var amount string
	err := row.Scan(&c.ID, &c.UserID, &amount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cash savings: %w", err)
	}
	c.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cash amount: %w", err)
	}
	return &c, nil
}
