package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	TypeInternal       = "internal_error"
	TypeNotFound       = "not_found"
	TypeInvalidRequest = "invalid_request"
)

// Error is a classified failure carrying an HTTP-like status and a
// user-facing message. Engine entry points wrap every unclassified failure
// into one of these; already-classified errors pass through unchanged.
type Error struct {
	Status  int    `json:"status"`
	Type    string `json:"error_type"`
	Message string `json:"message"`

	// Cause is the underlying error, kept for logging. Not serialized.
	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// NotFound builds a 404 error with the given message.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Type:    TypeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internal builds a 500 error wrapping cause.
func Internal(cause error, format string, args ...interface{}) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Type:    TypeInternal,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// InvalidRequest builds a 400 error with the given message.
func InvalidRequest(format string, args ...interface{}) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Type:    TypeInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// Classify re-raises an already classified error verbatim and wraps
// everything else as an internal error with the fallback message.
func Classify(err error, fallback string) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return Internal(err, "%s", fallback)
}

// ErrorResponse is the JSON error body returned by the HTTP layer.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
