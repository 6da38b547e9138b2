package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exman-app/exman-go/api"
	"github.com/exman-app/exman-go/auth"
	"github.com/exman-app/exman-go/identity"
	"github.com/exman-app/exman-go/sessions"
)

// heldTokenProvider models the state right after an interactive Google login
// that needs a profile: a federated credential is held in memory, no backend
// session exists yet.
type heldTokenProvider struct {
	token string
}

func (p *heldTokenProvider) SignInWithPassword(context.Context, string, string) (*identity.Handle, error) {
	return nil, identity.ErrInvalidCredential
}

func (p *heldTokenProvider) CreateAccount(context.Context, string, string) (*identity.Handle, error) {
	return nil, identity.ErrEmailInUse
}

func (p *heldTokenProvider) SignInInteractive(context.Context) (*identity.Handle, error) {
	return nil, identity.ErrPopupClosed
}

func (p *heldTokenProvider) CurrentToken(context.Context) (string, error) {
	return p.token, nil
}

func (p *heldTokenProvider) SendPasswordReset(context.Context, string) error { return nil }

func (p *heldTokenProvider) SignOut(context.Context) error { return nil }

func (p *heldTokenProvider) Subscribe(fn func(*identity.Handle)) identity.Unsubscribe {
	fn(nil)
	return func() {}
}

func TestFinishProfileCompletesInSameInvocation(t *testing.T) {
	user := &sessions.Session{ID: 1, Email: "john.doe@example.com", FirstName: "John", LastName: "Doe"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /csrf-token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "csrf-1"})
	})
	mux.HandleFunc("GET /auth/verify-session", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
	})
	exchangedToken := ""
	mux.HandleFunc("POST /firebase-signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		exchangedToken, _ = body["id_token"].(string)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "user": user})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	apiClient, err := api.New(server.URL)
	require.NoError(t, err)
	engine, err := auth.New(apiClient, &heldTokenProvider{token: "held-google-token"})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	require.NoError(t, engine.Start(context.Background()))
	<-engine.Ready()

	// All fields supplied, so no prompting: the continuation must exchange
	// the held token and leave the engine authenticated before returning.
	err = finishProfile(context.Background(), engine, auth.SignupData{
		Email:         "john.doe@example.com",
		FirstName:     "John",
		LastName:      "Doe",
		Position:      "Engineer",
		MonthlySalary: 4200,
		WorkingHours:  40,
	})
	require.NoError(t, err)
	require.Equal(t, "held-google-token", exchangedToken)
	require.Equal(t, auth.StateAuthenticated, engine.State())
	require.Equal(t, user.Email, engine.Session().Email)
}
