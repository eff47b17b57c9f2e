package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository handles user preference rows
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateTx inserts a user row inside the caller's transaction
func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, name, email, preferred_currency_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query, user.ID, user.Name, user.Email, user.PreferredCurrencyID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetForUpdateTx loads a user row with a row lock
func (r *UserRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*models.User, error) {
	query := `
		SELECT id, name, email, preferred_currency_id, created_at, updated_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`
	return scanUser(tx.QueryRow(ctx, query, id))
}

// UpdateTx replaces a user row's preference fields inside the caller's transaction
func (r *UserRepository) UpdateTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, email = $2, preferred_currency_id = $3, updated_at = $4
		WHERE id = $5
	`
	tag, err := tx.Exec(ctx, query, user.Name, user.Email, user.PreferredCurrencyID, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID retrieves a user row
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, email, preferred_currency_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(r.db.Pool().QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PreferredCurrencyID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
