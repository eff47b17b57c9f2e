package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/finance-ledger/internal/storage"
	"github.com/finance-ledger/internal/types"
)

// handleGetEvents handles GET /api/events - the activity feed.
// Query parameters: entityType, entityId, from, upTo (RFC 3339), limit, offset.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	filters := &storage.EventFilters{}
	q := r.URL.Query()

	if v := q.Get("entityType"); v != "" {
		entityType := types.EntityType(v)
		filters.EntityType = &entityType
	}
	if v := q.Get("entityId"); v != "" {
		filters.EntityID = &v
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'from' timestamp, expected RFC 3339", nil)
			return
		}
		filters.After = &ts
	}
	if v := q.Get("upTo"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'upTo' timestamp, expected RFC 3339", nil)
			return
		}
		filters.UpTo = &ts
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'limit' parameter", nil)
			return
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'offset' parameter", nil)
			return
		}
		filters.Offset = offset
	}

	feed, err := s.activityService.GetActivityFeed(r.Context(), userID, filters)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, feed)
}
