package api

import (
	"errors"
	"fmt"
)

var (
	// ErrCSRFRejected is returned when the backend rejects the CSRF token
	// twice in a row. The pipeline refreshes the token and retries once;
	// a second rejection is surfaced to the caller unretried.
	ErrCSRFRejected = errors.New("csrf token rejected")

	// ErrSessionExpired is returned when the backend answers 401 on any
	// request other than the session-verification probe. The configured
	// session-expired handler has already run by the time callers see it.
	ErrSessionExpired = errors.New("session expired")
)

// Error is a non-2xx backend response passed through to the caller.
type Error struct {
	Status           int    // HTTP status code
	Message          string // Message extracted from the response body, if any
	Body             []byte // Raw response body
	IsLocked         bool   // Login lockout flag from the backend
	SecondsRemaining int    // Lockout countdown seed, valid when IsLocked
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}
