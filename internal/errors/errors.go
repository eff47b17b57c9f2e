// Package errors categorizes service errors and maps them to HTTP semantics.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/finance-ledger/internal/ledger"
	"github.com/finance-ledger/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents payload/parameter validation errors (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryPersistence represents storage/transaction errors (5xx)
	CategoryPersistence ErrorCategory = "persistence"
	// CategoryIntegrity represents event-log/read-model divergence; these are
	// operator alarms, never silently swallowed
	CategoryIntegrity ErrorCategory = "integrity"
	// CategorySystem represents other system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates a payload validation error (rejected before any
// persistence, surfaced as 400)
func NewValidationError(field, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewInvalidParameterError creates an invalid request parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// NewPersistenceError creates a storage error. The write-side transaction has
// already rolled back by the time this surfaces; no retry happens in-core.
func NewPersistenceError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPersistence,
		StatusCode: http.StatusInternalServerError,
		Code:       "PERSISTENCE_ERROR",
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewIntegrityError wraps a replay corruption: the event log and the entity
// read model have diverged for this user.
func NewIntegrityError(userID string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryIntegrity,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATA_INTEGRITY_ERROR",
		Message:    "event history is inconsistent; operator attention required",
		Cause:      cause,
		Details: map[string]interface{}{
			"userId": userID,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var vErr *ledger.ValidationError
	if stderrors.As(err, &vErr) {
		return NewValidationError(vErr.Field, vErr.Message)
	}

	var rErr *ledger.ReplayCorruptionError
	if stderrors.As(err, &rErr) {
		return &CategorizedError{
			Category:   CategoryIntegrity,
			StatusCode: http.StatusInternalServerError,
			Code:       "DATA_INTEGRITY_ERROR",
			Message:    rErr.Error(),
			Cause:      rErr,
		}
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	status := http.StatusInternalServerError
	category := CategorySystem
	switch err.Code {
	case "VALIDATION_ERROR", "INVALID_PARAMETER":
		status, category = http.StatusBadRequest, CategoryValidation
	case "NOT_FOUND", "USER_NOT_FOUND", "ENTITY_NOT_FOUND":
		status, category = http.StatusNotFound, CategoryNotFound
	case "UNAUTHORIZED":
		status, category = http.StatusUnauthorized, CategoryAuthorization
	case "RATE_LIMIT_EXCEEDED":
		status, category = http.StatusTooManyRequests, CategoryRateLimit
	case "PERSISTENCE_ERROR":
		category = CategoryPersistence
	case "DATA_INTEGRITY_ERROR":
		category = CategoryIntegrity
	}
	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
