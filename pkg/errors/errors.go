// Package errors holds the typed errors every layer returns and the handlers
// render. Codes are part of the API contract.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is a coded failure with the HTTP status it maps to. Fields names the
// offending request fields for validation failures.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap gives err a code and status; the cause stays reachable through Unwrap.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Codes are stable strings clients branch on.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInactiveAccount    = "ACCOUNT_INACTIVE"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeConflict           = "CONFLICT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeConsentRequired    = "CONSENT_REQUIRED"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
	CodeCacheMiss          = "CACHE_MISS"
)

// Sentinels. Services return clones of these with a specific message;
// errors.Is still matches on the code.
var (
	ErrInvalidCredentials = New(CodeInvalidCredentials, http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New(CodeInactiveAccount, http.StatusForbidden, "account is inactive")
	ErrNotFound           = New(CodeNotFound, http.StatusNotFound, "resource not found")
	ErrForbidden          = New(CodeForbidden, http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New(CodeUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrSessionExpired     = New(CodeSessionExpired, http.StatusUnauthorized, "session expired")
	ErrConflict           = New(CodeConflict, http.StatusConflict, "conflict")
	ErrValidation         = New(CodeValidation, http.StatusBadRequest, "validation failed")
	ErrConsentRequired    = New(CodeConsentRequired, http.StatusForbidden, "media consent required")
	ErrUnavailable        = New(CodeUnavailable, http.StatusServiceUnavailable, "remote store unavailable")
	ErrInternal           = New(CodeInternal, http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New(CodeCacheMiss, http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error. Deadlines surface as
// UNAVAILABLE since they almost always mean the backing store is slow.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrUnavailable.Code, ErrUnavailable.Status, "request timed out")
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// WithFields returns a copy of err carrying per-field reasons.
func WithFields(err *Error, fields map[string]string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Fields = fields
	return &clone
}

// Clone copies a sentinel, replacing its message when one is given.
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

// Internal wraps err as an internal error unless it already carries a typed code.
func Internal(err error, message string) *Error {
	var e *Error
	if errors.As(err, &e) && e.Code != ErrInternal.Code {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
