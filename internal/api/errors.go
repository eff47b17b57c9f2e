package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/finance-ledger/internal/errors"
	"github.com/finance-ledger/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError categorizes a service error and writes the mapped
// HTTP response. Internal details are not leaked for 5xx responses.
func respondServiceError(w http.ResponseWriter, err error) {
	ce := apperrors.Categorize(err)

	message := ce.Message
	details := ce.Details
	if ce.StatusCode >= http.StatusInternalServerError {
		message = "An internal error occurred"
		details = nil
	}

	respondError(w, ce.StatusCode, ce.Code, message, details)
}
