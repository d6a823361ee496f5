package errors

import (
	"fmt"
)

// APIError is the error body returned by the HTTP layer.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an error with an arbitrary code and message.
func New(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: code.StatusCode()}
}

func newAPIError(code ErrorCode, message string) *APIError {
	return New(code, message)
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return newAPIError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *APIError {
	return newAPIError(ErrForbidden, message)
}

// Conflict creates a CONFLICT error with a caller-supplied message, e.g. "already reacted".
func Conflict(message string) *APIError {
	return newAPIError(ErrConflict, message)
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(field, message string) *APIError {
	e := newAPIError(ErrValidation, message)
	e.Field = field
	return e
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return newAPIError(ErrBadRequest, message)
}

// InternalError creates an INTERNAL_ERROR. The message is shown to clients, so it
// should never carry the underlying cause.
func InternalError(message string) *APIError {
	return newAPIError(ErrInternalError, message)
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return newAPIError(ErrRateLimited, message)
}
