package identity

import "context"

// Disabled returns the Provider used when no federated identity is
// configured: every operation fails fast with ErrNotConfigured and Subscribe
// reports a nil Handle exactly once.
func Disabled() Provider {
	return disabledProvider{}
}

type disabledProvider struct{}

func (disabledProvider) SignInWithPassword(context.Context, string, string) (*Handle, error) {
	return nil, ErrNotConfigured
}

func (disabledProvider) CreateAccount(context.Context, string, string) (*Handle, error) {
	return nil, ErrNotConfigured
}

func (disabledProvider) SignInInteractive(context.Context) (*Handle, error) {
	return nil, ErrNotConfigured
}

func (disabledProvider) CurrentToken(context.Context) (string, error) {
	return "", ErrNotConfigured
}

func (disabledProvider) SendPasswordReset(context.Context, string) error {
	return ErrNotConfigured
}

func (disabledProvider) SignOut(context.Context) error {
	return ErrNotConfigured
}

func (disabledProvider) Subscribe(fn func(*Handle)) Unsubscribe {
	fn(nil)
	return func() {}
}
