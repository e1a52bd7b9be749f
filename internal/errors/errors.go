package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized = "UNAUTHORIZED"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeInvalidInput = "INVALID_INPUT"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Service errors
	ErrCodeDownstream         = "DOWNSTREAM_FAILURE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error kinds. Every error produced by the engine wraps exactly one of these,
// so callers branch with errors.Is.
var (
	ErrValidation  = stderrors.New("validation error")
	ErrNotFound    = stderrors.New("not found")
	ErrConflict    = stderrors.New("conflict")
	ErrPermission  = stderrors.New("permission denied")
	ErrDownstream  = stderrors.New("downstream failure")
	ErrPersistence = stderrors.New("persistence failure")
	ErrCanceled    = stderrors.New("canceled")
)

// Validation reports malformed input.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// NotFound reports a missing task or user.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict reports a failed status precondition.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// Permission reports a role-hierarchy violation.
func Permission(format string, args ...any) error {
	return wrap(ErrPermission, format, args...)
}

// Downstream wraps a notification gateway failure.
func Downstream(err error) error {
	return fmt.Errorf("%w: %v", ErrDownstream, err)
}

// Persistence wraps a store failure.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// Canceled wraps a context error that stopped a batch run. Both the kind and
// the context error stay matchable.
func Canceled(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCanceled, op, err)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// APIError represents a standardized API error response
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// NewAPIErrorWithDetails creates a new APIError with details
func NewAPIErrorWithDetails(code, message string, details interface{}) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	c.JSON(statusCode, err)
}

// StatusFor maps an engine error to its HTTP status and API error code.
func StatusFor(err error) (int, string) {
	switch {
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest, ErrCodeInvalidInput
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	case stderrors.Is(err, ErrPermission):
		return http.StatusForbidden, ErrCodeForbidden
	case stderrors.Is(err, ErrDownstream):
		return http.StatusBadGateway, ErrCodeDownstream
	case stderrors.Is(err, ErrCanceled):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// RespondError maps an engine error onto the API error body. Internal
// failures are not echoed to the client.
func RespondError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	RespondWithError(c, status, NewAPIError(code, message))
}

// Helper functions for common error responses

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeInvalidInput, message))
}

// BadRequestWithDetails sends a 400 response with details
func BadRequestWithDetails(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, NewAPIErrorWithDetails(ErrCodeInvalidInput, message, details))
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	RespondWithError(c, http.StatusServiceUnavailable, NewAPIError(ErrCodeServiceUnavailable, message))
}
