package service

import (
	"context"
	"time"

	"github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/storage"
	"github.com/google/uuid"
)

// SnapshotStore interface for snapshot persistence
type SnapshotStore interface {
	Create(ctx context.Context, snapshot *models.FinancialSnapshot) error
	FindLatestBefore(ctx context.Context, userID string, asOf time.Time) (*models.FinancialSnapshot, error)
	ListDates(ctx context.Context, userID string) ([]time.Time, error)
}

// CheckpointService maintains monthly state snapshots so replay cost stays
// bounded as a user's history grows. Snapshots are pure derived data: a
// missing or failed snapshot never affects correctness, only latency.
type CheckpointService struct {
	events    EventStore
	snapshots SnapshotStore
	maxMonths int
	logger    *logging.Logger
}

// NewCheckpointService creates a new checkpoint service. maxMonths caps how
// many missing checkpoints one call will backfill so an old account cannot
// stall a request.
func NewCheckpointService(events EventStore, snapshots SnapshotStore, maxMonths int, logger *logging.Logger) *CheckpointService {
	return &CheckpointService{
		events:    events,
		snapshots: snapshots,
		maxMonths: maxMonths,
		logger:    logger,
	}
}

// FindLatestSnapshot returns the most recent snapshot dated at or before
// asOf, or nil when none exists yet.
func (s *CheckpointService) FindLatestSnapshot(ctx context.Context, userID string, asOf time.Time) (*models.FinancialSnapshot, error) {
	snapshot, err := s.snapshots.FindLatestBefore(ctx, userID, asOf)
	if err != nil {
		return nil, errors.NewPersistenceError("find latest snapshot", err)
	}
	return snapshot, nil
}

// EnsureMonthlyCheckpoints creates a snapshot at every month boundary between
// the user's earliest event and now that lacks one. A snapshot dated D holds
// the state after replaying all events with timestamp <= D, where D is
// midnight UTC on the first of a month.
//
// The walk replays forward incrementally from the snapshot preceding the
// first missing boundary, so one call costs at most one pass over the delta
// events. Re-running when all boundaries exist writes nothing.
func (s *CheckpointService) EnsureMonthlyCheckpoints(ctx context.Context, userID string) error {
	earliest, err := s.events.EarliestTimestamp(ctx, userID)
	if err != nil {
		return errors.NewPersistenceError("find earliest event", err)
	}
	if earliest == nil {
		return nil
	}

	existing, err := s.snapshots.ListDates(ctx, userID)
	if err != nil {
		return errors.NewPersistenceError("list snapshot dates", err)
	}
	have := make(map[time.Time]bool, len(existing))
	for _, d := range existing {
		have[d.UTC()] = true
	}

	now := time.Now().UTC()
	boundaries := monthBoundaries(*earliest, now)

	firstMissing := -1
	for i, b := range boundaries {
		if !have[b] {
			firstMissing = i
			break
		}
	}
	if firstMissing < 0 {
		return nil
	}

	base, err := s.snapshots.FindLatestBefore(ctx, userID, boundaries[firstMissing])
	if err != nil {
		return errors.NewPersistenceError("find base snapshot", err)
	}

	state := ledger.EmptyState()
	var after *time.Time
	if base != nil {
		state, err = ledger.UnmarshalState(base.Data)
		if err != nil {
			return errors.NewIntegrityError(userID, err)
		}
		baseDate := base.Date.UTC()
		after = &baseDate
	}

	created := 0
	for _, boundary := range boundaries[firstMissing:] {
		if created >= s.maxMonths {
			break
		}

		upTo := boundary
		delta, err := s.events.Query(ctx, userID, &storage.EventFilters{After: after, UpTo: &upTo})
		if err != nil {
			return errors.NewPersistenceError("query delta events", err)
		}
		state, err = ledger.Replay(state, delta)
		if err != nil {
			return errors.NewIntegrityError(userID, err)
		}
		b := boundary
		after = &b

		if have[boundary] {
			continue
		}

		data, err := ledger.MarshalState(state)
		if err != nil {
			return errors.NewInternalError("failed to marshal state", err)
		}
		snapshot := &models.FinancialSnapshot{
			ID:        uuid.NewString(),
			UserID:    userID,
			Date:      boundary,
			Data:      data,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.snapshots.Create(ctx, snapshot); err != nil {
			// Derived data: callers fall back to a longer replay
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"userId": userID,
				"date":   boundary.Format("2006-01-02"),
			}).Warn("failed to persist checkpoint")
			continue
		}
		created++
	}

	if created > 0 {
		s.logger.WithFields(map[string]interface{}{
			"userId":  userID,
			"created": created,
		}).Info("monthly checkpoints created")
	}
	return nil
}

// monthBoundaries returns every first-of-month midnight UTC strictly after
// from and at or before until, ascending.
func monthBoundaries(from, until time.Time) []time.Time {
	from = from.UTC()
	until = until.UTC()

	b := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	var boundaries []time.Time
	for !b.After(until) {
		boundaries = append(boundaries, b)
		b = b.AddDate(0, 1, 0)
	}
	return boundaries
}
