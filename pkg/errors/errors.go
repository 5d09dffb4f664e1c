package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors forming the closed auth taxonomy. ErrAuthFailure carries a
// deliberately generic message: unknown email, wrong password, inactive
// account and stale sessions must be indistinguishable to callers.
var (
	ErrAuthFailure   = New("AUTH_FAILURE", http.StatusUnauthorized, "authentication failed")
	ErrConflict      = New("CONFLICT", http.StatusConflict, "conflict")
	ErrBadRequest    = New("BAD_REQUEST", http.StatusBadRequest, "bad request")
	ErrValidation    = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrExternalAuth  = New("EXTERNAL_AUTH", http.StatusUnauthorized, "authentication failed")
	ErrInvalidToken  = New("INVALID_TOKEN", http.StatusUnauthorized, "invalid token")
	ErrExpiredToken  = New("EXPIRED_TOKEN", http.StatusUnauthorized, "token expired")
	ErrStore         = New("STORE_ERROR", http.StatusInternalServerError, "storage failure")
	ErrKeyGeneration = New("KEY_GENERATION", http.StatusInternalServerError, "key generation failure")
	ErrInternal      = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss     = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")
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

// Is reports whether err carries the same code as target. Propagation logic
// switches on codes, never on message text.
func Is(err error, target *Error) bool {
	e := FromError(err)
	return e != nil && target != nil && e.Code == target.Code
}
