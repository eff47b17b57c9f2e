package service

import (
	"context"
	"testing"
	"time"

	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/storage"
	"github.com/finance-ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityFeedPaginationAndOrder(t *testing.T) {
	events := &mockEventStore{}
	svc := NewActivityService(events)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		appendEvent(t, events, "u1", base.Add(time.Duration(i)*time.Hour),
			types.ActionCreate, types.EntityExpense, string(rune('a'+i)), nil,
			ledger.ExpensePayload{Name: "Rent", Amount: decimal.NewFromInt(int64(100 + i))})
	}

	feed, err := svc.GetActivityFeed(ctx, "u1", &storage.EventFilters{Limit: 2, Offset: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(5), feed.Total)
	require.Len(t, feed.Events, 2)
	assert.True(t, feed.Events[0].Timestamp.Before(feed.Events[1].Timestamp))
	assert.Equal(t, "b", feed.Events[0].EntityID)
}

func TestActivityFeedEntityTypeFilter(t *testing.T) {
	events := &mockEventStore{}
	svc := NewActivityService(events)
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	appendEvent(t, events, "u1", ts, types.ActionCreate, types.EntityAsset, "a1", nil, assetPayload("House", 1))
	appendEvent(t, events, "u1", ts.Add(time.Hour), types.ActionCreate, types.EntityExpense, "e1", nil,
		ledger.ExpensePayload{Name: "Rent", Amount: decimal.NewFromInt(1500)})

	entityType := types.EntityAsset
	feed, err := svc.GetActivityFeed(ctx, "u1", &storage.EventFilters{EntityType: &entityType})
	require.NoError(t, err)
	require.Len(t, feed.Events, 1)
	assert.Equal(t, "a1", feed.Events[0].EntityID)
	assert.Equal(t, int64(1), feed.Total)

	bad := types.EntityType("BOGUS")
	_, err = svc.GetActivityFeed(ctx, "u1", &storage.EventFilters{EntityType: &bad})
	assert.Error(t, err)
}

func TestActivityFeedDefaultsLimit(t *testing.T) {
	svc := NewActivityService(&mockEventStore{})

	feed, err := svc.GetActivityFeed(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultFeedLimit, feed.Limit)
	assert.Empty(t, feed.Events)
}
