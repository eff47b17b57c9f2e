package api

import (
	"net/http"

	"github.com/finance-ledger/internal/service"
	"github.com/finance-ledger/internal/types"
)

// handleCreateUser handles POST /api/users/me - start tracking preferences.
// Like every other write, this appends a USER event alongside the row.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	result, err := s.financeService.CreateEntity(r.Context(), &service.CreateEntityInput{
		UserID:     userID,
		EntityType: types.EntityUser,
		Payload:    payload,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleGetUser handles GET /api/users/me
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	user, err := s.financeService.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleUpdateUser handles PUT /api/users/me
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	result, err := s.financeService.UpdateEntity(r.Context(), &service.UpdateEntityInput{
		UserID:     userID,
		EntityType: types.EntityUser,
		EntityID:   userID,
		Payload:    payload,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
