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

// SnapshotRepository handles financial snapshot storage. Snapshots are
// derived cache data: losing one only costs replay time, never correctness.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create stores a snapshot. The (user_id, snapshot_date) upsert makes
// checkpoint creation idempotent: re-computing an existing month replaces it
// with an identical value.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.FinancialSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO financial_snapshots (id, user_id, snapshot_date, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, snapshot_date)
		DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.Date,
		[]byte(snapshot.Data),
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	return nil
}

// FindLatestBefore returns the most recent snapshot with date <= asOf, or
// nil if none exists (replay then starts from the empty state).
func (r *SnapshotRepository) FindLatestBefore(ctx context.Context, userID string, asOf time.Time) (*models.FinancialSnapshot, error) {
	query := `
		SELECT id, user_id, snapshot_date, data, created_at
		FROM financial_snapshots
		WHERE user_id = $1 AND snapshot_date <= $2
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var s models.FinancialSnapshot
	err := r.db.Pool().QueryRow(ctx, query, userID, asOf).Scan(
		&s.ID, &s.UserID, &s.Date, &s.Data, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot: %w", err)
	}
	return &s, nil
}

// ListDates returns the snapshot dates a user already has, ascending. Used
// by checkpoint maintenance to find missing months.
func (r *SnapshotRepository) ListDates(ctx context.Context, userID string) ([]time.Time, error) {
	query := `
		SELECT snapshot_date
		FROM financial_snapshots
		WHERE user_id = $1
		ORDER BY snapshot_date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot dates: %w", err)
	}
	return dates, nil
}

// DeleteFromTx removes every snapshot dated at or after the given timestamp,
// inside the caller's write transaction. A backdated event falsifies any
// checkpoint whose date covers it, so the prune must commit with the event.
func (r *SnapshotRepository) DeleteFromTx(ctx context.Context, tx pgx.Tx, userID string, from time.Time) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM financial_snapshots WHERE user_id = $1 AND snapshot_date >= $2`,
		userID, from)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

// DeleteByUser removes all of a user's snapshots, for full rebuilds. Safe at
// any time: snapshots regenerate from the event log.
func (r *SnapshotRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM financial_snapshots WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}

// ListActiveUsers returns the ids of users that have at least one event,
// for the checkpoint backfill utility.
func (r *SnapshotRepository) ListActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT DISTINCT user_id FROM events ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user ids: %w", err)
	}
	return userIDs, nil
}
