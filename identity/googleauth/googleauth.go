// Package googleauth implements the interactive sign-in capability for
// terminal hosts: a Google OIDC authorization-code flow using a loopback
// redirect listener in place of a browser popup. The resulting Google ID
// token is handed to the firebase adapter for exchange.
package googleauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/exman-app/exman-go/identity"
)

const (
	// ProviderID is the Firebase providerId for Google credentials.
	ProviderID = "google.com"

	defaultIssuer  = "https://accounts.google.com"
	defaultTimeout = 3 * time.Minute
)

// Flow runs the loopback-redirect sign-in. It is stateless between
// Authenticate calls; each call gets fresh state, nonce, and PKCE material.
type Flow struct {
	clientID     string
	clientSecret string
	issuer       string
	timeout      time.Duration
	log          zerolog.Logger
	openBrowser  func(url string) error
}

// Option configures a Flow.
type Option func(*Flow)

// WithIssuer overrides the OIDC issuer (tests point this at a local fake).
func WithIssuer(issuer string) Option {
	return func(f *Flow) { f.issuer = issuer }
}

// WithTimeout bounds how long Authenticate waits for the user to complete
// the flow before reporting cancellation.
func WithTimeout(d time.Duration) Option {
	return func(f *Flow) { f.timeout = d }
}

// WithLogger sets the flow logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) { f.log = l }
}

// WithBrowserOpener replaces how the authorization URL is presented to the
// user (tests drive the flow programmatically).
func WithBrowserOpener(fn func(url string) error) Option {
	return func(f *Flow) { f.openBrowser = fn }
}

// New creates a Google sign-in flow for the given OAuth client.
func New(clientID, clientSecret string, opts ...Option) (*Flow, error) {
	if clientID == "" {
		return nil, errors.New("[googleauth.New] clientID is required")
	}

	f := &Flow{
		clientID:     clientID,
		clientSecret: clientSecret,
		issuer:       defaultIssuer,
		timeout:      defaultTimeout,
		log:          zerolog.Nop(),
		openBrowser:  openSystemBrowser,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type callbackResult struct {
	code string
	err  error
}

// Authenticate runs the full authorization-code flow: loopback listener,
// browser hand-off, code exchange, and ID-token verification (signature,
// audience, nonce). User dismissal or timeout maps to identity.ErrPopupClosed.
func (f *Flow) Authenticate(ctx context.Context) (string, string, error) {
	provider, err := oidc.NewProvider(ctx, f.issuer)
	if err != nil {
		return "", "", fmt.Errorf("[googleauth] discover issuer: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", "", fmt.Errorf("[googleauth] loopback listener: %w", err)
	}
	defer listener.Close()

	oauthConfig := &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  fmt.Sprintf("http://%s/callback", listener.Addr().String()),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	state := generateRandomString(32)
	nonce := generateRandomString(32)
	codeVerifier := generateRandomString(32)

	results := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(state, results)}
	go server.Serve(listener)
	defer server.Close()

	authURL := oauthConfig.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	if err := f.openBrowser(authURL); err != nil {
		return "", "", fmt.Errorf("[googleauth] open browser: %w", err)
	}
	f.log.Debug().Str("redirect", oauthConfig.RedirectURL).Msg("waiting for Google sign-in callback")

	var code string
	select {
	case result := <-results:
		if result.err != nil {
			return "", "", result.err
		}
		code = result.code
	case <-time.After(f.timeout):
		return "", "", identity.ErrPopupClosed
	case <-ctx.Done():
		return "", "", identity.ErrPopupClosed
	}

	oauth2Token, err := oauthConfig.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return "", "", fmt.Errorf("[googleauth] token exchange: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", "", errors.New("[googleauth] no ID token in response")
	}

	idToken, err := provider.Verifier(&oidc.Config{ClientID: f.clientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return "", "", fmt.Errorf("[googleauth] ID token verification: %w", err)
	}

	var claims struct {
		Nonce string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", "", fmt.Errorf("[googleauth] extract claims: %w", err)
	}
	if claims.Nonce != nonce {
		return "", "", errors.New("[googleauth] invalid nonce")
	}

	return ProviderID, rawIDToken, nil
}

func callbackHandler(expectedState string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			if errParam == "access_denied" {
				deliver(results, callbackResult{err: identity.ErrPopupClosed})
			} else {
				deliver(results, callbackResult{err: fmt.Errorf("[googleauth] authorization failed: %s", errParam)})
			}
			fmt.Fprint(w, "Sign-in failed. You can close this window.")
			return
		}

		if r.URL.Query().Get("state") != expectedState {
			deliver(results, callbackResult{err: errors.New("[googleauth] invalid state parameter")})
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			deliver(results, callbackResult{err: errors.New("[googleauth] missing code parameter")})
			http.Error(w, "Missing code parameter", http.StatusBadRequest)
			return
		}

		deliver(results, callbackResult{code: code})
		fmt.Fprint(w, "Signed in. You can close this window and return to the terminal.")
	})
}

// deliver is non-blocking; only the first callback result counts.
func deliver(results chan<- callbackResult, r callbackResult) {
	select {
	case results <- r:
	default:
	}
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func openSystemBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
