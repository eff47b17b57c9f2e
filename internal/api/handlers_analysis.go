package api

import (
	"net/http"
	"time"

	"github.com/finance-ledger/internal/types"
)

// handleGetSnapshot handles GET /api/analysis/snapshot - reconstructed state
// and derived metrics as of an optional point in time.
// Query parameters: asOf (RFC 3339, defaults to now).
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var asOf *time.Time
	if v := r.URL.Query().Get("asOf"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'asOf' timestamp, expected RFC 3339", nil)
			return
		}
		asOf = &ts
	}

	analysis, err := s.analysisService.GetFinancialSnapshot(r.Context(), userID, asOf)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

// handleGetTrajectory handles GET /api/analysis/trajectory - a time series of
// reconstructed states for wealth velocity charts.
// Query parameters: startDate, endDate (RFC 3339), interval (daily|weekly|monthly).
func (s *Server) handleGetTrajectory(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	q := r.URL.Query()

	startDate, err := time.Parse(time.RFC3339, q.Get("startDate"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'startDate' timestamp, expected RFC 3339", nil)
		return
	}
	endDate, err := time.Parse(time.RFC3339, q.Get("endDate"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid 'endDate' timestamp, expected RFC 3339", nil)
		return
	}

	interval := types.Interval(q.Get("interval"))
	if interval == "" {
		interval = types.IntervalMonthly
	}

	points, err := s.analysisService.GetFinancialTrajectory(r.Context(), userID, startDate, endDate, interval)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, points)
}

// handleCheckConsistency handles GET /api/analysis/consistency - compares the
// read-model tables against a full event log replay.
func (s *Server) handleCheckConsistency(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	result, err := s.consistencyService.CheckUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
