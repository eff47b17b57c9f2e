package service

import (
	"context"
	"fmt"

	"github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/models"
	"github.com/finance-ledger/internal/storage"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

// ActivityFeed is one page of a user's event history
type ActivityFeed struct {
	Events []*models.Event `json:"events"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ActivityService serves the read-only event feed. Events come back in the
// stable (timestamp, id) order replay uses, so the feed always matches the
// history the reducers see.
type ActivityService struct {
	events EventStore
}

// NewActivityService creates a new activity service
func NewActivityService(events EventStore) *ActivityService {
	return &ActivityService{events: events}
}

// GetActivityFeed returns a page of the user's events with the total count
// for pagination.
func (s *ActivityService) GetActivityFeed(ctx context.Context, userID string, filters *storage.EventFilters) (*ActivityFeed, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "must be non-empty")
	}
	if filters == nil {
		filters = &storage.EventFilters{}
	}
	if filters.EntityType != nil && !filters.EntityType.Valid() {
		return nil, errors.NewInvalidParameterError("entityType", fmt.Sprintf("unknown entity type %q", *filters.EntityType))
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultFeedLimit
	}
	if filters.Limit > maxFeedLimit {
		filters.Limit = maxFeedLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	events, err := s.events.Query(ctx, userID, filters)
	if err != nil {
		return nil, errors.NewPersistenceError("query events", err)
	}

	total, err := s.events.CountByUser(ctx, userID, filters)
	if err != nil {
		return nil, errors.NewPersistenceError("count events", err)
	}

	return &ActivityFeed{
		Events: events,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}
