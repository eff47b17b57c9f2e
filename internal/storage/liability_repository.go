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

// LiabilityRepository handles the liability read-model rows
type LiabilityRepository struct {
	db *PostgresDB
}

// NewLiabilityRepository creates a new liability repository
func NewLiabilityRepository(db *PostgresDB) *LiabilityRepository {
	return &LiabilityRepository{db: db}
}

// CreateTx inserts a liability row inside the caller's transaction
func (r *LiabilityRepository) CreateTx(ctx context.Context, tx pgx.Tx, liability *models.Liability) error {
	if liability.ID == "" {
		liability.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	liability.CreatedAt = now
	liability.UpdatedAt = now

	query := `
		INSERT INTO liabilities (id, user_id, name, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query, liability.ID, liability.UserID, liability.Name, liability.Value, liability.CreatedAt, liability.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create liability: %w", err)
	}
	return nil
}

// GetForUpdateTx loads a liability row with a row lock
func (r *LiabilityRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Liability, error) {
	query := `
		SELECT id, user_id, name, value::text, created_at, updated_at
		FROM liabilities
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	return scanLiability(tx.QueryRow(ctx, query, id, userID))
}

// UpdateTx replaces a liability row's mutable fields inside the caller's transaction
func (r *LiabilityRepository) UpdateTx(ctx context.Context, tx pgx.Tx, liability *models.Liability) error {
	liability.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE liabilities
		SET name = $1, value = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`
	tag, err := tx.Exec(ctx, query, liability.Name, liability.Value, liability.UpdatedAt, liability.ID, liability.UserID)
	if err != nil {
		return fmt.Errorf("failed to update liability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTx removes a liability row inside the caller's transaction
func (r *LiabilityRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM liabilities WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete liability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID retrieves a liability row
func (r *LiabilityRepository) GetByID(ctx context.Context, id, userID string) (*models.Liability, error) {
	query := `
		SELECT id, user_id, name, value::text, created_at, updated_at
		FROM liabilities
		WHERE id = $1 AND user_id = $2
	`
	return scanLiability(r.db.Pool().QueryRow(ctx, query, id, userID))
}

// ListByUser returns a user's liability rows ordered by name
func (r *LiabilityRepository) ListByUser(ctx context.Context, userID string) ([]*models.Liability, error) {
	query := `
		SELECT id, user_id, name, value::text, created_at, updated_at
		FROM liabilities
		WHERE user_id = $1
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list liabilities: %w", err)
	}
	defer rows.Close()

	var liabilities []*models.Liability
	for rows.Next() {
		liability, err := scanLiability(rows)
		if err != nil {
			return nil, err
		}
		liabilities = append(liabilities, liability)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read liabilities: %w", err)
	}
	return liabilities, nil
}

func scanLiability(row pgx.Row) (*models.Liability, error) {
	var l models.Liability
	var value string
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &value, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan liability: %w", err)
	}
	l.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse liability value: %w", err)
	}
	return &l, nil
}
