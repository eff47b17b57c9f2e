package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/logging"
	"github.com/finance-ledger/internal/storage"
	"github.com/finance-ledger/internal/types"
)

// maxTrajectoryPoints bounds one trajectory request
const maxTrajectoryPoints = 1000

// FinancialAnalysis is a reconstructed state with its derived metrics
type FinancialAnalysis struct {
	AsOf    time.Time              `json:"asOf"`
	State   *ledger.FinancialState `json:"state"`
	Metrics *ledger.Metrics        `json:"metrics"`
}

// TrajectoryPoint is one sample of a financial trajectory
type TrajectoryPoint struct {
	Date    time.Time              `json:"date"`
	State   *ledger.FinancialState `json:"state"`
	Metrics *ledger.Metrics        `json:"metrics"`
}

// AnalysisService answers "what was the financial state as of time T". It is
// strictly read-only on entity tables: state comes from snapshot plus delta
// replay over the event log.
type AnalysisService struct {
	events      EventStore
	checkpoints *CheckpointService
	cache       AnalysisCache
	logger      *logging.Logger
}

// NewAnalysisService creates a new analysis service. cache may be nil.
func NewAnalysisService(events EventStore, checkpoints *CheckpointService, cache AnalysisCache, logger *logging.Logger) *AnalysisService {
	return &AnalysisService{
		events:      events,
		checkpoints: checkpoints,
		cache:       cache,
		logger:      logger,
	}
}

// GetFinancialSnapshot reconstructs the user's state as of asOf (now when
// nil) and computes derived metrics. Only "as of now" requests hit the
// result cache; historical questions always replay.
func (s *AnalysisService) GetFinancialSnapshot(ctx context.Context, userID string, asOf *time.Time) (*FinancialAnalysis, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}

	useCache := asOf == nil && s.cache != nil
	asOfTime := time.Now().UTC()
	if asOf != nil {
		asOfTime = asOf.UTC()
	}

	if useCache {
		var cached FinancialAnalysis
		hit, err := s.cache.Get(ctx, s.cache.GenerateAnalysisKey(userID), &cached)
		if err != nil {
			s.logger.WithError(err).WithField("userId", userID).Warn("analysis cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	// Opportunistic: a failed checkpoint run only means a longer replay
	if err := s.checkpoints.EnsureMonthlyCheckpoints(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("checkpoint maintenance failed")
	}

	state, _, err := s.stateAsOf(ctx, userID, asOfTime)
	if err != nil {
		return nil, err
	}

	analysis := &FinancialAnalysis{
		AsOf:    asOfTime,
		State:   state,
		Metrics: ledger.ComputeMetrics(state),
	}

	if useCache {
		if err := s.cache.Set(ctx, s.cache.GenerateAnalysisKey(userID), analysis); err != nil {
			s.logger.WithError(err).WithField("userId", userID).Warn("analysis cache write failed")
		}
	}
	return analysis, nil
}

// GetFinancialTrajectory samples the user's state at each interval boundary
// between startDate and endDate, ascending. Adjacent points share one
// forward replay instead of reconstructing each point from scratch.
// Results are cached per (user, interval, range); every committed write
// invalidates the user's trajectory keys, so a hit is always current.
func (s *AnalysisService) GetFinancialTrajectory(ctx context.Context, userID string, startDate, endDate time.Time, interval types.Interval) ([]*TrajectoryPoint, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}
	if !interval.Valid() {
		return nil, errors.NewInvalidParameterError("interval", fmt.Sprintf("unknown interval %q", interval))
	}
	startDate = startDate.UTC()
	endDate = endDate.UTC()
	if endDate.Before(startDate) {
		return nil, errors.NewInvalidParameterError("endDate", "must not be before startDate")
	}

	var dates []time.Time
	for d := startDate; !d.After(endDate); d = nextBoundary(d, interval) {
		dates = append(dates, d)
		if len(dates) > maxTrajectoryPoints {
			return nil, errors.NewInvalidParameterError("interval", "too many points requested, widen the interval or narrow the range")
		}
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateTrajectoryKey(userID, string(interval), startDate, endDate)
		var cached []*TrajectoryPoint
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("userId", userID).Warn("trajectory cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	if err := s.checkpoints.EnsureMonthlyCheckpoints(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("checkpoint maintenance failed")
	}

	state, after, err := s.stateAsOf(ctx, userID, dates[0])
	if err != nil {
		return nil, err
	}

	points := make([]*TrajectoryPoint, 0, len(dates))
	points = append(points, &TrajectoryPoint{
		Date:    dates[0],
		State:   state.Clone(),
		Metrics: ledger.ComputeMetrics(state),
	})

	for _, d := range dates[1:] {
		upTo := d
		delta, err := s.events.Query(ctx, userID, &storage.EventFilters{After: after, UpTo: &upTo})
		if err != nil {
			return nil, errors.NewPersistenceError("query delta events", err)
		}
		state, err = ledger.Replay(state, delta)
		if err != nil {
			return nil, errors.NewIntegrityError(userID, err)
		}
		b := d
		after = &b

		points = append(points, &TrajectoryPoint{
			Date:    d,
			State:   state.Clone(),
			Metrics: ledger.ComputeMetrics(state),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, points); err != nil {
			s.logger.WithError(err).WithField("userId", userID).Warn("trajectory cache write failed")
		}
	}
	return points, nil
}

// stateAsOf reconstructs state at asOf from the nearest earlier snapshot
// plus delta replay. The returned time is the exclusive lower bound already
// folded into the state, for callers that keep replaying forward.
func (s *AnalysisService) stateAsOf(ctx context.Context, userID string, asOf time.Time) (*ledger.FinancialState, *time.Time, error) {
	base, err := s.checkpoints.FindLatestSnapshot(ctx, userID, asOf)
	if err != nil {
		return nil, nil, err
	}

	state := ledger.EmptyState()
	var after *time.Time
	if base != nil {
		state, err = ledger.UnmarshalState(base.Data)
		if err != nil {
			return nil, nil, errors.NewIntegrityError(userID, err)
		}
		baseDate := base.Date.UTC()
		after = &baseDate
	}

	upTo := asOf
	delta, err := s.events.Query(ctx, userID, &storage.EventFilters{After: after, UpTo: &upTo})
	if err != nil {
		return nil, nil, errors.NewPersistenceError("query delta events", err)
	}
	state, err = ledger.Replay(state, delta)
	if err != nil {
		return nil, nil, errors.NewIntegrityError(userID, err)
	}

	bound := asOf
	return state, &bound, nil
}

// nextBoundary advances a trajectory date by one interval step
func nextBoundary(d time.Time, interval types.Interval) time.Time {
	switch interval {
	case types.IntervalDaily:
		return d.AddDate(0, 0, 1)
	case types.IntervalWeekly:
		return d.AddDate(0, 0, 7)
	default:
		return d.AddDate(0, 1, 0)
	}
}
