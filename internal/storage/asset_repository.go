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

// AssetRepository handles the asset read-model rows. The ...Tx methods take
// the caller's transaction so entity writes commit atomically with their
// event append.
type AssetRepository struct {
	db *PostgresDB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *PostgresDB) *AssetRepository {
	return &AssetRepository{db: db}
}

// CreateTx inserts an asset row inside the caller's transaction
func (r *AssetRepository) CreateTx(ctx context.Context, tx pgx.Tx, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	query := `
		INSERT INTO assets (id, user_id, name, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query, asset.ID, asset.UserID, asset.Name, asset.Value, asset.CreatedAt, asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// GetForUpdateTx loads an asset row with a row lock, serializing concurrent
// writers on the same entity within their transactions.
func (r *AssetRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id, userID string) (*models.Asset, error) {
	query := `
		SELECT id, user_id, name, value::text, created_at, updated_at
		FROM assets
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	return scanAsset(tx.QueryRow(ctx, query, id, userID))
}

// UpdateTx replaces an asset row's mutable fields inside the caller's transaction
func (r *AssetRepository) UpdateTx(ctx context.Context, tx pgx.Tx, asset *models.Asset) error {
	asset.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE assets
		SET name = $1, value = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`
	tag, err := tx.Exec(ctx, query, asset.Name, asset.Value, asset.UpdatedAt, asset.ID, asset.UserID)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteTx removes an asset row inside the caller's transaction
func (r *AssetRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id, userID string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM assets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID retrieves an asset row
func (r *AssetRepository) GetByID(ctx context.Context, id, userID string) (*models.Asset, error) {
	query := `
		SELECT id, user_id, name, value::text, created_at, updated_at
		FROM assets
		WHERE id = $1 AND user_id = $2
	`
	return scanAsset(r.db.Pool().QueryRow(ctx, query, id, userID))
}

// ListByUser returns a user's asset rows ordered by name
func (r *AssetRepository) ListByUser(ctx context.Context, userID string) ([]*models.Asset, error) {
	query := `
		SELECT id, user_id, name, value::text, created_at, updated_at
		FROM assets
		WHERE user_id = $1
		ORDER BY name ASC, id ASC
	`
	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assets: %w", err)
	}
	return assets, nil
}

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var a models.Asset
	var value string
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &value, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse asset value: %w", err)
	}
	return &a, nil
}
