// Package auth implements the session-reconciliation engine: the state
// machine that keeps a single coherent logged-in identity in the presence of
// two independent sources, the federated-identity provider and the ExMan
// backend session. The backend's session-verification probe is the single
// source of truth for the Authenticated/Anonymous boundary; the federated
// listener only ever triggers a re-probe, it never sets the Session itself.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/exman-app/exman-go/api"
	"github.com/exman-app/exman-go/identity"
	"github.com/exman-app/exman-go/sessions"
)

const (
	verifySessionPath  = "/auth/verify-session"
	loginPath          = "/login"
	firebaseLoginPath  = "/firebase-login"
	firebaseSignupPath = "/firebase-signup"
	signupPath         = "/signup"
	forgotPasswordPath = "/forgot-password"
	resetPasswordPath  = "/reset-password"
	logoutPath         = "/logout"
	profileUpdatePath  = "/profile/update"
)

// Engine owns the authoritative Session and mediates between the federated
// identity adapter's asynchronous notifications and explicit login/signup
// calls. All probes run on a single consumer goroutine so no two transitions
// interleave; the CSRF token and the coordination flag that were ambient
// globals in a browser host are owned state here, behind mutexes.
type Engine struct {
	api        *api.Client
	provider   identity.Provider
	configured bool
	log        zerolog.Logger

	mu             sync.Mutex
	state          State
	session        *sessions.Session
	loggingIn      bool // coordination flag, see Login/Signup with federated flows
	lockoutMessage string

	lockout         *LockoutTimer
	lockoutInterval time.Duration

	probeQueue  chan struct{}
	unsubscribe identity.Unsubscribe
	ready       chan struct{}
	readyOnce   sync.Once
	done        chan struct{}
	closeOnce   sync.Once
	started     bool
}

// Option defines a function type to modify the Engine instance.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithLockoutInterval sets the lockout countdown granularity (primarily for
// testing; the default is one second).
func WithLockoutInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.lockoutInterval = d
	}
}

// New initializes an Engine over the backend client and an optional
// federated-identity provider. Passing a nil provider disables every
// federated flow; the engine then uses the legacy credential endpoints.
func New(apiClient *api.Client, provider identity.Provider, options ...Option) (*Engine, error) {
	if apiClient == nil {
		return nil, errors.New("[auth.New] api client is required")
	}

	engine := &Engine{
		api:             apiClient,
		provider:        provider,
		configured:      provider != nil,
		log:             zerolog.Nop(),
		state:           StateInitializing,
		lockoutInterval: time.Second,
		probeQueue:      make(chan struct{}, 1),
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
	}
	if engine.provider == nil {
		engine.provider = identity.Disabled()
	}

	for _, opt := range options {
		opt(engine)
	}

	engine.lockout = NewLockoutTimer(engine.lockoutInterval, engine.clearLockoutMessage)
	return engine, nil
}

// Start subscribes to identity-state changes (when a provider is configured)
// and issues the initial session-verification probe. It does not block;
// Ready reports when Initializing has resolved.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("[auth.Start] engine already started")
	}
	e.started = true
	e.mu.Unlock()

	go e.consumeProbes(ctx)

	if e.configured {
		// The subscription fires immediately with the current identity,
		// which enqueues the startup probe. Identity changes triggered by
		// an in-flight explicit login are dropped here: the login call
		// itself settles the state, and reacting to its own event would
		// race it.
		e.unsubscribe = e.provider.Subscribe(func(handle *identity.Handle) {
			if e.isLoggingIn() {
				e.log.Debug().Msg("identity change ignored during explicit login")
				return
			}
			e.requestProbe()
		})
	}
	e.requestProbe()
	return nil
}

// Ready is closed once the first probe settles and the engine has left
// StateInitializing.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Close tears down the identity subscription, the probe consumer, and the
// lockout timer.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
		e.lockout.Stop()
	})
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a copy of the authenticated session, or nil.
func (e *Engine) Session() *sessions.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	copied := *e.session
	return &copied
}

// Lockout exposes the login lockout countdown.
func (e *Engine) Lockout() *LockoutTimer {
	return e.lockout
}

// LockoutMessage returns the lockout error text, empty once the countdown
// has expired.
func (e *Engine) LockoutMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockoutMessage
}

// requestProbe enqueues a session re-verification. The queue holds one
// pending probe at most: re-probing is idempotent, so a queued probe already
// covers any further notifications.
func (e *Engine) requestProbe() {
	select {
	case e.probeQueue <- struct{}{}:
	default:
	}
}

func (e *Engine) consumeProbes(ctx context.Context) {
	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case <-e.probeQueue:
			e.checkAuth(ctx)
		}
	}
}

// checkAuth runs the session-verification probe and applies its result. The
// probe's answer is authoritative regardless of what the federated provider
// believes.
func (e *Engine) checkAuth(ctx context.Context) {
	var resp struct {
		Authenticated bool              `json:"authenticated"`
		User          *sessions.Session `json:"user"`
	}
	err := e.api.Get(ctx, verifySessionPath, &resp)

	e.mu.Lock()
	switch {
	case err != nil || !resp.Authenticated || resp.User == nil:
		e.state = StateAnonymous
		e.session = nil
	default:
		e.state = StateAuthenticated
		e.session = resp.User
	}
	state := e.state
	e.mu.Unlock()

	e.log.Debug().Str("state", string(state)).Msg("session probe settled")
	e.readyOnce.Do(func() { close(e.ready) })
}

// Logout signs out of the federated identity and the backend, best effort on
// both: failures are logged, never block, and the engine unconditionally
// ends up Anonymous.
func (e *Engine) Logout(ctx context.Context) {
	// Provider sign-out fires an identity-change notification. Holding the
	// coordination flag keeps it from enqueueing a probe that could race
	// the transition below and land Authenticated after it.
	e.setLoggingIn(true)
	defer e.setLoggingIn(false)

	if e.configured {
		if err := e.provider.SignOut(ctx); err != nil {
			e.log.Warn().Err(err).Msg("federated sign-out failed")
		}
	}
	if err := e.api.Post(ctx, logoutPath, nil, nil); err != nil && !errors.Is(err, api.ErrSessionExpired) {
		e.log.Warn().Err(err).Msg("backend logout failed")
	}

	e.mu.Lock()
	e.state = StateAnonymous
	e.session = nil
	e.mu.Unlock()
	e.api.ClearCSRFToken()
}

// UpdateProfile replaces the held Session's fields with the
// server-confirmed record. It requires an authenticated session and never
// changes the engine's state shape.
func (e *Engine) UpdateProfile(ctx context.Context, update ProfileUpdate) (*sessions.Session, error) {
	if e.State() != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}

	var resp struct {
		Success bool              `json:"success"`
		User    *sessions.Session `json:"user"`
		Message string            `json:"message"`
	}
	if err := e.api.Post(ctx, profileUpdatePath, update, &resp); err != nil {
		return nil, e.normalizeAPIError(err)
	}
	if !resp.Success || resp.User == nil {
		return nil, errors.New(orDefault(resp.Message, "profile update failed"))
	}

	e.mu.Lock()
	e.session = resp.User
	e.mu.Unlock()

	updated := *resp.User
	return &updated, nil
}

func (e *Engine) isLoggingIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loggingIn
}

func (e *Engine) setLoggingIn(v bool) {
	e.mu.Lock()
	e.loggingIn = v
	e.mu.Unlock()
}

func (e *Engine) setSession(user *sessions.Session) {
	e.mu.Lock()
	e.state = StateAuthenticated
	e.session = user
	e.mu.Unlock()
}

func (e *Engine) clearLockoutMessage() {
	e.mu.Lock()
	e.lockoutMessage = ""
	e.mu.Unlock()
}

// normalizeAPIError folds pipeline errors into the engine taxonomy: a lost
// session clears local state; a backend lockout seeds the countdown.
func (e *Engine) normalizeAPIError(err error) error {
	if errors.Is(err, api.ErrSessionExpired) {
		e.mu.Lock()
		e.state = StateAnonymous
		e.session = nil
		e.mu.Unlock()
		return err
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.IsLocked {
		e.lockout.Set(apiErr.SecondsRemaining)
		e.mu.Lock()
		e.lockoutMessage = apiErr.Message
		e.mu.Unlock()
		return &LockedError{SecondsRemaining: apiErr.SecondsRemaining, Message: apiErr.Message}
	}
	return err
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
