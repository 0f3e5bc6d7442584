package client

import (
	"errors"
	"fmt"
	"net/http"

	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// Failure categories. Every error returned by Client wraps exactly one of them.
var (
	// ErrTransport means the server could not be reached or failed (5xx).
	ErrTransport = errors.New("transport failure")
	// ErrSessionExpired means the access token was refused and could not be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrRejected means the server understood and refused the request (4xx).
	ErrRejected = errors.New("request rejected")
)

// APIError is a non-2xx response decoded from the API error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status onto a failure category.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized && e.Code != appErrors.CodeInvalidCredentials:
		// a refused login is not a lost session
		return ErrSessionExpired
	case e.Status >= http.StatusInternalServerError:
		return ErrTransport
	default:
		return ErrRejected
	}
}

// Code returns the API error code carried by err, or "".
func Code(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
