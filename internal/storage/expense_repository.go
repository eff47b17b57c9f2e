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

// ExpenseRepository handles the expense read-model rows
type ExpenseRepository struct {
	db *PostgresDB
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *PostgresDB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// CreateTx inserts an expense row inside the caller's transaction
func (r *ExpenseRepository) CreateTx(ctx context.Context, tx pgx.Tx, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	query := `
		INSERT INTO expenses (id, user_id, name, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query, expense.ID, expense.UserID, expense.Name, expense.Amount, expense.CreatedAt, expense.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetForUpdateTx loads an expense row with a row lock
func (r *ExpenseRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Expense, error) {
	query := `
		SELECT id, user_id, name, amount::text, created_at, updated_at
		FROM expenses
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	return scanExpense(tx.QueryRow(ctx, query, id, userID))
}

// UpdateTx replaces an expense row's mutable fields inside the caller's transaction
func (r *ExpenseRepository) UpdateTx(ctx context.Context, tx pgx.Tx, expense *models.Expense) error {
	expense.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE expenses
		SET name = $1, amount = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`
	tag, err := tx.Exec(ctx, query, expense.Name, expense.Amount, expense.UpdatedAt, expense.ID, expense.UserID)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTx removes an expense row inside the caller's transaction
func (r *ExpenseRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID retrieves an expense row
func (r *ExpenseRepository) GetByID(ctx context.Context, id, userID string) (*models.Expense, error) {
	query := `
		SELECT id, user_id, name, amount::text, created_at, updated_at
		FROM expenses
		WHERE id = $1 AND user_id = $2
	`
	return scanExpense(r.db.Pool().QueryRow(ctx, query, id, userID))
}

// ListByUser returns a user's expense rows ordered by name
func (r *ExpenseRepository) ListByUser(ctx context.Context, userID string) ([]*models.Expense, error) {
	query := `
		SELECT id, user_id, name, amount::text, created_at, updated_at
		FROM expenses
		WHERE user_id = $1
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expenses: %w", err)
	}
	return expenses, nil
}

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var e models.Expense
	var amount string
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &amount, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expense amount: %w", err)
	}
	return &e, nil
}
