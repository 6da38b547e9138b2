// Package firebase implements the identity.Provider boundary against the
// Firebase Auth REST API (identitytoolkit + securetoken). It holds the
// federated credential in memory and notifies subscribers on every identity
// change; it knows nothing about the ExMan backend session.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/exman-app/exman-go/identity"
)

const (
	defaultIdentityURL    = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL = "https://securetoken.googleapis.com/v1"

	// Refresh the cached ID token when it is this close to expiry.
	tokenExpiryLeeway = time.Minute
)

// Authenticator runs an interactive federated sign-in against an upstream
// IdP and returns the credential to exchange at Firebase. A web host backs
// it with a popup; the CLI backs it with a loopback-redirect flow. User
// abandonment surfaces as identity.ErrPopupClosed.
type Authenticator interface {
	Authenticate(ctx context.Context) (providerID, idToken string, err error)
}

// credential is the signed-in Firebase principal plus its token material.
type credential struct {
	handle       identity.Handle
	idToken      string
	refreshToken string
	expiry       time.Time
}

// Client is the Firebase-backed identity.Provider.
type Client struct {
	apiKey         string
	identityURL    string
	secureTokenURL string
	httpClient     *http.Client
	authenticator  Authenticator
	log            zerolog.Logger
	nowTime        func() time.Time

	mu           sync.Mutex
	current      *credential
	listeners    map[int]func(*identity.Handle)
	nextListener int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for Firebase calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithAuthenticator installs the interactive sign-in capability.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) { c.authenticator = a }
}

// WithEndpoints overrides the Firebase endpoints (tests point these at a
// local fake).
func WithEndpoints(identityURL, secureTokenURL string) Option {
	return func(c *Client) {
		c.identityURL = identityURL
		c.secureTokenURL = secureTokenURL
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) { c.nowTime = nowFunc }
}

// New creates a Firebase identity adapter for the given Web API key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("[firebase.New] apiKey is required")
	}

	c := &Client{
		apiKey:         apiKey,
		identityURL:    defaultIdentityURL,
		secureTokenURL: defaultSecureTokenURL,
		log:            zerolog.Nop(),
		nowTime:        time.Now,
		listeners:      map[int]func(*identity.Handle){},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c, nil
}

var _ identity.Provider = (*Client)(nil)

// SignInWithPassword exchanges email/password credentials at
// accounts:signInWithPassword.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Handle, error) {
	resp, err := c.accountsCall(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return c.adopt(resp), nil
}

// CreateAccount registers a new Firebase account via accounts:signUp.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*identity.Handle, error) {
	resp, err := c.accountsCall(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return c.adopt(resp), nil
}

// SignInInteractive runs the injected Authenticator and exchanges its
// credential at accounts:signInWithIdp.
func (c *Client) SignInInteractive(ctx context.Context) (*identity.Handle, error) {
	if c.authenticator == nil {
		return nil, fmt.Errorf("[firebase.SignInInteractive] no authenticator: %w", identity.ErrNotConfigured)
	}

	providerID, idToken, err := c.authenticator.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	postBody := url.Values{}
	postBody.Set("id_token", idToken)
	postBody.Set("providerId", providerID)

	resp, err := c.accountsCall(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":          postBody.Encode(),
		"requestUri":        "http://localhost",
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return c.adopt(resp), nil
}

// CurrentToken returns a fresh ID token for the held identity, refreshing it
// through securetoken when the cached one is near expiry. The credential
// fields are snapshotted under the lock; refresh mutates them under the same
// lock, so concurrent callers never observe a half-written credential.
func (c *Client) CurrentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	cred := c.current
	if cred == nil {
		c.mu.Unlock()
		return "", identity.ErrNoIdentity
	}
	idToken := cred.idToken
	refreshToken := cred.refreshToken
	expiry := cred.expiry
	c.mu.Unlock()

	if c.nowTime().Add(tokenExpiryLeeway).Before(expiry) {
		return idToken, nil
	}
	return c.refresh(ctx, cred, refreshToken)
}

// SendPasswordReset dispatches a PASSWORD_RESET email via
// accounts:sendOobCode. An unknown address surfaces as ErrUserNotFound;
// collapsing that into a neutral message is the caller's responsibility.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	_, err := c.accountsCall(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	// sendOobCode reports unknown addresses as EMAIL_NOT_FOUND, which the
	// shared mapper reads as a credential failure. In this context it means
	// the account does not exist.
	if errors.Is(err, identity.ErrInvalidCredential) {
		return identity.ErrUserNotFound
	}
	return err
}

// SignOut discards the held identity and notifies subscribers.
func (c *Client) SignOut(context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.notify(nil)
	return nil
}

// Subscribe registers an identity-change callback. It fires once immediately
// with the current state and again on every change until unsubscribed.
func (c *Client) Subscribe(fn func(*identity.Handle)) identity.Unsubscribe {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	current := c.currentHandleLocked()
	c.mu.Unlock()

	fn(current)
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// adopt stores the credential from a successful sign-in response and
// notifies subscribers.
func (c *Client) adopt(resp *accountsResponse) *identity.Handle {
	cred := &credential{
		handle: identity.Handle{
			UID:         resp.LocalID,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
		},
		idToken:      resp.IDToken,
		refreshToken: resp.RefreshToken,
		expiry:       c.tokenExpiry(resp.IDToken, resp.ExpiresIn),
	}

	c.mu.Lock()
	c.current = cred
	c.mu.Unlock()

	handle := cred.handle
	c.notify(&handle)
	return &handle
}

func (c *Client) refresh(ctx context.Context, cred *credential, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	endpoint := fmt.Sprintf("%s/token?key=%s", c.secureTokenURL, url.QueryEscape(c.apiKey))
	if err := c.postForm(ctx, endpoint, form, &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.current == cred {
		cred.idToken = resp.IDToken
		if resp.RefreshToken != "" {
			cred.refreshToken = resp.RefreshToken
		}
		cred.expiry = c.tokenExpiry(resp.IDToken, resp.ExpiresIn)
	}
	c.mu.Unlock()

	c.log.Debug().Msg("refreshed federated ID token")
	return resp.IDToken, nil
}

func (c *Client) currentHandleLocked() *identity.Handle {
	if c.current == nil {
		return nil
	}
	handle := c.current.handle
	return &handle
}

func (c *Client) notify(handle *identity.Handle) {
	c.mu.Lock()
	fns := make([]func(*identity.Handle), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(handle)
	}
}

func (c *Client) tokenExpiry(idToken, expiresIn string) time.Time {
	if exp, ok := jwtExpiry(idToken); ok {
		return exp
	}
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return c.nowTime().Add(time.Duration(seconds) * time.Second)
}
