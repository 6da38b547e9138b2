// Package identity defines the boundary to the federated-identity provider.
// A Provider hands out opaque Handles and bearer tokens; it never talks to
// the ExMan backend and the backend session never lives here. Reconciling
// the two is the auth.Engine's job.
package identity

import "context"

// Handle is an opaque reference to a federated-identity principal. Holding a
// Handle does not imply a backend session exists: a freshly signed-in
// federated user may still need to complete an ExMan profile.
type Handle struct {
	UID         string // Provider-assigned stable identifier
	Email       string // Verified email, when the provider shares it
	DisplayName string // Human-readable name, may be empty
}

// Unsubscribe detaches a Subscribe callback.
type Unsubscribe func()

// Provider is the federated-identity adapter. Every method is safe to call
// when the provider is unconfigured; all of them then fail fast with
// ErrNotConfigured (and Subscribe reports a nil Handle once).
type Provider interface {
	// SignInWithPassword exchanges email/password credentials for a Handle.
	SignInWithPassword(ctx context.Context, email, password string) (*Handle, error)

	// CreateAccount registers a new federated account and signs it in.
	CreateAccount(ctx context.Context, email, password string) (*Handle, error)

	// SignInInteractive runs the provider-controlled interactive flow (a
	// browser popup in a web host, a loopback-redirect flow here). It
	// blocks until the flow completes or the user abandons it.
	SignInInteractive(ctx context.Context) (*Handle, error)

	// CurrentToken returns a fresh bearer token for the held identity, or
	// ErrNoIdentity when nothing is signed in.
	CurrentToken(ctx context.Context) (string, error)

	// SendPasswordReset dispatches a reset email for the given address.
	SendPasswordReset(ctx context.Context, email string) error

	// SignOut discards the held identity.
	SignOut(ctx context.Context) error

	// Subscribe registers a callback invoked once immediately with the
	// current Handle (nil when signed out) and again on every subsequent
	// identity change, until unsubscribed.
	Subscribe(fn func(*Handle)) Unsubscribe
}
