package auth

import (
	"context"
	"errors"

	"github.com/exman-app/exman-go/identity"
	"github.com/exman-app/exman-go/sessions"
)

// Signup registers a new account. On the federated path an already-held
// identity (the needs-profile continuation after a federated login) has its
// profile completed; otherwise a fresh federated account is created first.
// The legacy path creates a backend account without logging in; the caller
// logs in separately.
func (e *Engine) Signup(ctx context.Context, data SignupData) (*SignupResult, error) {
	if !e.configured {
		return e.legacySignup(ctx, data)
	}

	token, err := e.provider.CurrentToken(ctx)
	switch {
	case err == nil && token != "":
		return e.completeProfile(ctx, token, data)
	case err != nil && !errors.Is(err, identity.ErrNoIdentity):
		return nil, e.normalizeIdentityError(err)
	}

	// Fresh federated account. The coordination flag covers the
	// identity-change event account creation fires.
	e.setLoggingIn(true)
	defer e.setLoggingIn(false)

	if _, err := e.provider.CreateAccount(ctx, data.Email, data.Password); err != nil {
		return nil, e.normalizeIdentityError(err)
	}
	token, err = e.provider.CurrentToken(ctx)
	if err != nil {
		return nil, e.normalizeIdentityError(err)
	}
	return e.completeProfile(ctx, token, data)
}

// SignupWithGoogle runs the interactive flow in signup mode: the backend
// rejects accounts that already exist instead of silently logging them in.
func (e *Engine) SignupWithGoogle(ctx context.Context) (*LoginResult, error) {
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
	return e.exchangeToken(ctx, token, "signup")
}

// completeProfile exchanges the held identity token plus profile fields for
// a new backend session via /firebase-signup.
func (e *Engine) completeProfile(ctx context.Context, idToken string, data SignupData) (*SignupResult, error) {
	body := struct {
		IDToken       string  `json:"id_token"`
		FirstName     string  `json:"first_name"`
		LastName      string  `json:"last_name"`
		Position      string  `json:"position"`
		MonthlySalary float64 `json:"monthly_salary"`
		WorkingHours  float64 `json:"working_hours"`
	}{
		IDToken:       idToken,
		FirstName:     data.FirstName,
		LastName:      data.LastName,
		Position:      data.Position,
		MonthlySalary: data.MonthlySalary,
		WorkingHours:  data.WorkingHours,
	}

	var resp struct {
		Success bool              `json:"success"`
		User    *sessions.Session `json:"user"`
		Message string            `json:"message"`
	}
	if err := e.api.Post(ctx, firebaseSignupPath, body, &resp); err != nil {
		return nil, e.normalizeAPIError(err)
	}
	if !resp.Success || resp.User == nil {
		return nil, errors.New(orDefault(resp.Message, "signup failed"))
	}

	e.setSession(resp.User)
	return &SignupResult{User: e.Session()}, nil
}

func (e *Engine) legacySignup(ctx context.Context, data SignupData) (*SignupResult, error) {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := e.api.Post(ctx, signupPath, data, &resp); err != nil {
		return nil, e.normalizeAPIError(err)
	}
	if !resp.Success {
		return nil, errors.New(orDefault(resp.Message, "signup failed"))
	}
	// Legacy signup does not establish a session.
	return &SignupResult{}, nil
}
