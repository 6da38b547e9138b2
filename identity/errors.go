package identity

import "errors"

var (
	ErrNotConfigured     = errors.New("identity provider not configured")
	ErrNoIdentity        = errors.New("no federated identity held")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrTooManyRequests   = errors.New("too many attempts")
	ErrPopupClosed       = errors.New("sign-in cancelled")
	ErrEmailInUse        = errors.New("email already registered")
	ErrWeakPassword      = errors.New("password too weak")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidEmail      = errors.New("invalid email address")
)
