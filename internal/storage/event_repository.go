package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/types"
	"github.com/jackc/pgx/v5"
)

// EventRepository is the append-only event store. There is deliberately no
// update or delete operation on this type: history is immutable by
// construction, not by runtime check.
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

// EventFilters narrows an event query. A nil field means "no constraint".
type EventFilters struct {
	EntityType *types.EntityType
	EntityID   *string
	After      *time.Time // exclusive lower bound
	UpTo       *time.Time // inclusive upper bound
	Limit      int
	Offset     int
}

// AppendTx appends an event inside the caller's transaction. The caller has
// already validated the payloads; this only enforces the non-null contract
// and assigns the commit timestamp default.
func (r *EventRepository) AppendTx(ctx context.Context, tx pgx.Tx, ev *models.Event) (*models.Event, error) {
	if ev.UserID == "" || ev.EntityID == "" {
		return nil, fmt.Errorf("event requires userId and entityId")
	}
	if !ev.ActionType.Valid() {
		return nil, fmt.Errorf("event has invalid action type %q", ev.ActionType)
	}
	if !ev.EntityType.Valid() {
		return nil, fmt.Errorf("event has invalid entity type %q", ev.EntityType)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO events (
			timestamp, action_type, entity_type, entity_subtype,
			before_value, after_value, user_id, entity_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		ev.Timestamp,
		string(ev.ActionType),
		string(ev.EntityType),
		ev.EntitySubtype,
		nullableJSON(ev.BeforeValue),
		nullableJSON(ev.AfterValue),
		ev.UserID,
		ev.EntityID,
	).Scan(&ev.ID)

	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	return ev, nil
}

// Query returns a user's events ordered by (timestamp, id) ascending. The
// sequential id breaks ties between events committed in the same millisecond,
// so replay order is stable and consistent with commit order.
func (r *EventRepository) Query(ctx context.Context, userID string, filters *EventFilters) ([]*models.Event, error) {
	if filters == nil {
		filters = &EventFilters{}
	}

	query := `
		SELECT id, timestamp, action_type, entity_type, entity_subtype,
		       before_value, after_value, user_id, entity_id
		FROM events
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if filters.EntityType != nil {
		args = append(args, string(*filters.EntityType))
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filters.EntityID != nil {
		args = append(args, *filters.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filters.After != nil {
		args = append(args, *filters.After)
		query += fmt.Sprintf(" AND timestamp > $%d", len(args))
	}
	if filters.UpTo != nil {
		args = append(args, *filters.UpTo)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}

	query += " ORDER BY timestamp ASC, id ASC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EarliestTimestamp returns the timestamp of a user's first event, or nil if
// the user has no events yet.
func (r *EventRepository) EarliestTimestamp(ctx context.Context, userID string) (*time.Time, error) {
	query := `SELECT MIN(timestamp) FROM events WHERE user_id = $1`

	var earliest *time.Time
	if err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&earliest); err != nil {
		return nil, fmt.Errorf("failed to query earliest event: %w", err)
	}
	return earliest, nil
}

// CountByUser returns the total number of events for a user, for feed
// pagination metadata.
func (r *EventRepository) CountByUser(ctx context.Context, userID string, filters *EventFilters) (int64, error) {
	if filters == nil {
		filters = &EventFilters{}
	}

	query := `SELECT COUNT(*) FROM events WHERE user_id = $1`
	args := []interface{}{userID}

	if filters.EntityType != nil {
		args = append(args, string(*filters.EntityType))
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filters.EntityID != nil {
		args = append(args, *filters.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filters.After != nil {
		args = append(args, *filters.After)
		query += fmt.Sprintf(" AND timestamp > $%d", len(args))
	}
	if filters.UpTo != nil {
		args = append(args, *filters.UpTo)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}

	var count int64
	if err := r.db.Pool().QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func scanEvents(rows pgx.Rows) ([]*models.Event, error) {
	var events []*models.Event
	for rows.Next() {
		var ev models.Event
		var actionType, entityType string
		err := rows.Scan(
			&ev.ID,
			&ev.Timestamp,
			&actionType,
			&entityType,
			&ev.EntitySubtype,
			&ev.BeforeValue,
			&ev.AfterValue,
			&ev.UserID,
			&ev.EntityID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.ActionType = types.ActionType(actionType)
		ev.EntityType = types.EntityType(entityType)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// nullableJSON maps an absent payload to SQL NULL instead of an empty string.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
