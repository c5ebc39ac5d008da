package authclient

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBaseURL is returned when constructing a client without a base URL.
	ErrEmptyBaseURL = errors.New("empty auth service base URL")
	// ErrRequestFailed wraps transport-level failures (DNS, timeout, connection).
	ErrRequestFailed = errors.New("auth service request failed")
	// ErrUnauthorized is returned when the auth service rejects the bearer token.
	ErrUnauthorized = errors.New("token is invalid or expired")
)

// APIError carries a non-2xx auth service response. Message holds the
// server-provided error text verbatim so the UI can display it unmodified.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth service returned status %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap maps 401 responses onto ErrUnauthorized so callers can branch with
// errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrUnauthorized
	}
	return nil
}
