package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code so wrapped clones compare equal to the predefined errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden        = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized     = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict         = New("CONFLICT", http.StatusConflict, "booking conflicts detected")
	ErrCapacityExceeded = New("CAPACITY_EXCEEDED", http.StatusConflict, "capacity exceeded")
	ErrClosedPeriod     = New("PERIOD_CLOSED", http.StatusConflict, "facility is closed for the requested period")
	ErrRackUnavailable  = New("RACK_UNAVAILABLE", http.StatusConflict, "rack is not available in this period")
	ErrCutoffPassed     = New("CUTOFF_PASSED", http.StatusForbidden, "booking cutoff has passed")
	ErrLocked           = New("LOCKED", http.StatusForbidden, "booking is locked")
	ErrStoreUnavailable = &Error{Code: "STORE_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "booking store unavailable, please retry", Retryable: true}
	ErrValidation       = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss        = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Store wraps a row store failure as a retryable error.
func Store(err error, message string) *Error {
	wrapped := Wrap(err, ErrStoreUnavailable.Code, ErrStoreUnavailable.Status, message)
	wrapped.Retryable = true
	return wrapped
}
