package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/finance-ledger/internal/service"
	"github.com/finance-ledger/internal/types"
	"github.com/gorilla/mux"
)

// The tracked entity endpoints share one shape: the request body is the
// entity payload, validated and normalized by the write side before the row
// and its event are committed together.

const maxPayloadBytes = 1 << 20

// requireUserID extracts the authenticated user id or writes a 401
func requireUserID(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
	}
	return userID
}

// readPayload reads the raw JSON payload from the request body
func readPayload(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil || len(body) == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return nil, false
	}
	return body, true
}

func (s *Server) createEntity(w http.ResponseWriter, r *http.Request, entityType types.EntityType) {
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
		EntityType: entityType,
		Payload:    payload,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) updateEntity(w http.ResponseWriter, r *http.Request, entityType types.EntityType) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	entityID := mux.Vars(r)["id"]
	if entityID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Entity ID required", nil)
		return
	}

	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	result, err := s.financeService.UpdateEntity(r.Context(), &service.UpdateEntityInput{
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) deleteEntity(w http.ResponseWriter, r *http.Request, entityType types.EntityType) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	entityID := mux.Vars(r)["id"]
	if entityID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Entity ID required", nil)
		return
	}

	result, err := s.financeService.DeleteEntity(r.Context(), &service.DeleteEntityInput{
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleCreateAsset handles POST /api/assets
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	s.createEntity(w, r, types.EntityAsset)
}

// handleListAssets handles GET /api/assets
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	assets, err := s.financeService.ListAssets(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assets)
}

// handleUpdateAsset handles PUT /api/assets/:id
func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	s.updateEntity(w, r, types.EntityAsset)
}

// handleDeleteAsset handles DELETE /api/assets/:id
func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, types.EntityAsset)
}

// handleCreateLiability handles POST /api/liabilities
func (s *Server) handleCreateLiability(w http.ResponseWriter, r *http.Request) {
	s.createEntity(w, r, types.EntityLiability)
}

// handleListLiabilities handles GET /api/liabilities
func (s *Server) handleListLiabilities(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	liabilities, err := s.financeService.ListLiabilities(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, liabilities)
}

// handleUpdateLiability handles PUT /api/liabilities/:id
func (s *Server) handleUpdateLiability(w http.ResponseWriter, r *http.Request) {
	s.updateEntity(w, r, types.EntityLiability)
}

// handleDeleteLiability handles DELETE /api/liabilities/:id
func (s *Server) handleDeleteLiability(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, types.EntityLiability)
}

// handleCreateIncome handles POST /api/incomes
func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	s.createEntity(w, r, types.EntityIncome)
}

// handleListIncomes handles GET /api/incomes
func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	incomes, err := s.financeService.ListIncomes(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, incomes)
}

// handleUpdateIncome handles PUT /api/incomes/:id
func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	s.updateEntity(w, r, types.EntityIncome)
}

// handleDeleteIncome handles DELETE /api/incomes/:id
func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, types.EntityIncome)
}

// handleCreateExpense handles POST /api/expenses
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	s.createEntity(w, r, types.EntityExpense)
}

// handleListExpenses handles GET /api/expenses
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	expenses, err := s.financeService.ListExpenses(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, expenses)
}

// handleUpdateExpense handles PUT /api/expenses/:id
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	s.updateEntity(w, r, types.EntityExpense)
}

// handleDeleteExpense handles DELETE /api/expenses/:id
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, types.EntityExpense)
}

// handleCreateCashSavings handles POST /api/cash-savings
func (s *Server) handleCreateCashSavings(w http.ResponseWriter, r *http.Request) {
	s.createEntity(w, r, types.EntityCashSavings)
}

// handleGetCashSavings handles GET /api/cash-savings
func (s *Server) handleGetCashSavings(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	cash, err := s.financeService.GetCashSavings(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if cash == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No cash savings tracked", nil)
		return
	}
	respondJSON(w, http.StatusOK, cash)
}

// handleUpdateCashSavings handles PUT /api/cash-savings/:id
func (s *Server) handleUpdateCashSavings(w http.ResponseWriter, r *http.Request) {
	s.updateEntity(w, r, types.EntityCashSavings)
}

// handleDeleteCashSavings handles DELETE /api/cash-savings/:id
func (s *Server) handleDeleteCashSavings(w http.ResponseWriter, r *http.Request) {
	s.deleteEntity(w, r, types.EntityCashSavings)
}
