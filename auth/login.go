package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/exman-app/exman-go/api"
	"github.com/exman-app/exman-go/identity"
	"github.com/exman-app/exman-go/sessions"
)

// Login authenticates with email and password. With a federated provider
// configured it signs in at the provider and exchanges the ID token for a
// backend session; otherwise it uses the legacy credential endpoint. A
// running lockout rejects the attempt locally: no network call is made
// while the countdown is nonzero.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if remaining := e.lockout.Remaining(); remaining > 0 {
		return nil, &LockedError{SecondsRemaining: remaining, Message: e.LockoutMessage()}
	}

	if !e.configured {
		return e.legacyLogin(ctx, email, password)
	}

	// No coordination flag here: the password flow has no popup race, and
	// the identity event it fires only triggers a re-probe that agrees
	// with the exchange below.
	if _, err := e.provider.SignInWithPassword(ctx, email, password); err != nil {
		return nil, e.normalizeIdentityError(err)
	}
	token, err := e.provider.CurrentToken(ctx)
	if err != nil {
		return nil, e.normalizeIdentityError(err)
	}
	return e.exchangeToken(ctx, token, "")
}

// LoginWithGoogle runs the interactive federated sign-in and exchanges the
// resulting token for a backend session. The coordination flag is held for
// the whole call and cleared unconditionally, so the identity-change event
// the sign-in fires cannot race the exchange.
func (e *Engine) LoginWithGoogle(ctx context.Context) (*LoginResult, error) {
	if !e.configured {
		return nil, ErrNotConfigured
	}

	e.setLoggingIn(true)
	defer e.setLoggingIn(false)

	if _, err := e.provider.SignInInteractive(ctx); err != nil {
		return nil, e.normalizeIdentityError(err)
	}
	token, err := e.provider.CurrentToken(ctx)
	if err != nil {
		return nil, e.normalizeIdentityError(err)
	}
	return e.exchangeToken(ctx, token, "")
}

func (e *Engine) legacyLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp struct {
		User *sessions.Session `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := e.api.Post(ctx, loginPath, body, &resp); err != nil {
		err = e.normalizeAPIError(err)
		if errors.Is(err, api.ErrSessionExpired) {
			// A 401 from the login endpoint is a failed credential
			// check, not a lost session.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrInvalidCredentials
	}

	e.setSession(resp.User)
	return &LoginResult{User: e.Session()}, nil
}

// exchangeToken trades a federated ID token for a backend session via the
// /firebase-login endpoint. Three outcomes: a session (success), a
// needs-profile routing signal (the identity has no backend profile yet), or
// an error. mode "signup" asks the backend to reject existing accounts.
func (e *Engine) exchangeToken(ctx context.Context, idToken, mode string) (*LoginResult, error) {
	body := map[string]string{"id_token": idToken}
	if mode != "" {
		body["mode"] = mode
	}

	var resp struct {
		Success      bool              `json:"success"`
		User         *sessions.Session `json:"user"`
		NeedsProfile bool              `json:"needs_profile"`
		Email        string            `json:"email"`
		Name         string            `json:"name"`
		Message      string            `json:"message"`
	}
	if err := e.api.Post(ctx, firebaseLoginPath, body, &resp); err != nil {
		err = e.normalizeAPIError(err)
		var apiErr *api.Error
		if mode == "signup" && errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	switch {
	case resp.Success && resp.User != nil:
		e.setSession(resp.User)
		return &LoginResult{User: e.Session()}, nil
	case resp.NeedsProfile:
		return &LoginResult{NeedsProfile: true, Email: resp.Email, Name: resp.Name}, nil
	}
	return nil, errors.New(orDefault(resp.Message, "login failed"))
}

// normalizeIdentityError folds provider errors into the engine taxonomy so
// callers never see raw provider error shapes.
func (e *Engine) normalizeIdentityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredential):
		return ErrInvalidCredentials
	case errors.Is(err, identity.ErrTooManyRequests):
		return ErrTooManyRequests
	case errors.Is(err, identity.ErrPopupClosed):
		return ErrPopupCancelled
	case errors.Is(err, identity.ErrEmailInUse):
		return ErrEmailInUse
	case errors.Is(err, identity.ErrWeakPassword):
		return ErrWeakPassword
	case errors.Is(err, identity.ErrInvalidEmail):
		return ErrInvalidEmail
	case errors.Is(err, identity.ErrNotConfigured):
		return ErrNotConfigured
	}
	return err
}
