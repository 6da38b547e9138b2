package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyRequests    = errors.New("too many failed attempts, please try again later")
	ErrPopupCancelled     = errors.New("sign-in cancelled")
	ErrAccountExists      = errors.New("account already exists")
	ErrEmailInUse         = errors.New("email already registered, please login instead")
	ErrWeakPassword       = errors.New("password is too weak, please use at least 6 characters")
	ErrInvalidEmail       = errors.New("please enter a valid email address")
	ErrNotConfigured      = errors.New("federated sign-in not available")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// LockedError rejects a login attempt while the account lockout is active.
// It is produced locally when the countdown is still running and from the
// backend's lockout response, which also seeds the countdown.
type LockedError struct {
	SecondsRemaining int
	Message          string
}

func (e *LockedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("account locked, try again in %d seconds", e.SecondsRemaining)
}
