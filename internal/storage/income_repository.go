package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// IncomeRepository handles the income-line read-model rows
type IncomeRepository struct {
	db *PostgresDB
}

// NewIncomeRepository creates a new income repository
func NewIncomeRepository(db *PostgresDB) *IncomeRepository {
	return &IncomeRepository{db: db}
}

// CreateTx inserts an income row inside the caller's transaction
func (r *IncomeRepository) CreateTx(ctx context.Context, tx pgx.Tx, income *models.IncomeLine) error {
	if income.ID == "" {
		income.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	income.CreatedAt = now
	income.UpdatedAt = now

	query := `
		INSERT INTO income_lines (id, user_id, name, amount, income_type, quadrant, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		income.ID, income.UserID, income.Name, income.Amount,
		string(income.Type), income.Quadrant, income.CreatedAt, income.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create income line: %w", err)
	}
	return nil
}

// GetForUpdateTx loads an income row with a row lock
func (r *IncomeRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.IncomeLine, error) {
	query := `
		SELECT id, user_id, name, amount::text, income_type, quadrant, created_at, updated_at
		FROM income_lines
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	return scanIncome(tx.QueryRow(ctx, query, id, userID))
}

// UpdateTx replaces an income row's mutable fields inside the caller's transaction
func (r *IncomeRepository) UpdateTx(ctx context.Context, tx pgx.Tx, income *models.IncomeLine) error {
	income.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE income_lines
		SET name = $1, amount = $2, income_type = $3, quadrant = $4, updated_at = $5
		WHERE id = $6 AND user_id = $7
	`
	tag, err := tx.Exec(ctx, query,
		income.Name, income.Amount, string(income.Type), income.Quadrant,
		income.UpdatedAt, income.ID, income.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update income line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTx removes an income row inside the caller's transaction
func (r *IncomeRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM income_lines WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete income line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID retrieves an income row
func (r *IncomeRepository) GetByID(ctx context.Context, id, userID string) (*models.IncomeLine, error) {
	query := `
		SELECT id, user_id, name, amount::text, income_type, quadrant, created_at, updated_at
		FROM income_lines
		WHERE id = $1 AND user_id = $2
	`
	return scanIncome(r.db.Pool().QueryRow(ctx, query, id, userID))
}

// ListByUser returns a user's income rows ordered by name
func (r *IncomeRepository) ListByUser(ctx context.Context, userID string) ([]*models.IncomeLine, error) {
	query := `
		SELECT id, user_id, name, amount::text, income_type, quadrant, created_at, updated_at
		FROM income_lines
		WHERE user_id = $1
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list income lines: %w", err)
	}
	defer rows.Close()

	var incomes []*models.IncomeLine
	for rows.Next() {
		income, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		incomes = append(incomes, income)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read income lines: %w", err)
	}
	return incomes, nil
}

func scanIncome(row pgx.Row) (*models.IncomeLine, error) {
	var in models.IncomeLine
	var amount, incomeType string
	err := row.Scan(&in.ID, &in.UserID, &in.Name, &amount, &incomeType, &in.Quadrant, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan income line: %w", err)
	}
	in.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse income amount: %w", err)
	}
	in.Type = types.IncomeType(incomeType)
	return &in, nil
}
