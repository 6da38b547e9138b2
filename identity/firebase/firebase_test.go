package firebase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/exman-app/exman-go/identity"
	"github.com/exman-app/exman-go/identity/firebase"
)

// idp fakes the identitytoolkit and securetoken endpoints.
type idp struct {
	mu             sync.Mutex
	errorCode      string // when set, every accounts call fails with this code
	idToken        string
	refreshCalls   int
	refreshedToken string
}

func (f *idp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/token" {
		f.refreshCalls++
		json.NewEncoder(w).Encode(map[string]string{
			"id_token":   f.refreshedToken,
			"expires_in": "3600",
		})
		return
	}

	if f.errorCode != "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": f.errorCode},
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"localId":      "uid-1",
		"email":        "john.doe@example.com",
		"displayName":  "John Doe",
		"idToken":      f.idToken,
		"refreshToken": "refresh-1",
		"expiresIn":    "3600",
	})
}

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "uid-1",
		"exp": expiry.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newClient(t *testing.T, f *idp, opts ...firebase.Option) *firebase.Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	opts = append(opts, firebase.WithEndpoints(server.URL, server.URL))
	client, err := firebase.New("test-api-key", opts...)
	require.NoError(t, err)
	return client
}

func TestSignInWithPassword(t *testing.T) {
	f := &idp{idToken: signedToken(t, time.Now().Add(time.Hour))}
	client := newClient(t, f)

	handle, err := client.SignInWithPassword(context.Background(), "john.doe@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, "uid-1", handle.UID)
	require.Equal(t, "john.doe@example.com", handle.Email)
	require.Equal(t, "John Doe", handle.DisplayName)

	token, err := client.CurrentToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.idToken, token)
}

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"EMAIL_NOT_FOUND", identity.ErrInvalidCredential},
		{"INVALID_PASSWORD", identity.ErrInvalidCredential},
		{"INVALID_LOGIN_CREDENTIALS", identity.ErrInvalidCredential},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", identity.ErrTooManyRequests},
		{"EMAIL_EXISTS", identity.ErrEmailInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", identity.ErrWeakPassword},
		{"INVALID_EMAIL", identity.ErrInvalidEmail},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			f := &idp{errorCode: tc.code}
			client := newClient(t, f)

			_, err := client.SignInWithPassword(context.Background(), "a@b.com", "pw")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSendPasswordResetUnknownUser(t *testing.T) {
	f := &idp{errorCode: "EMAIL_NOT_FOUND"}
	client := newClient(t, f)

	err := client.SendPasswordReset(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestCurrentTokenWithoutIdentity(t *testing.T) {
	client := newClient(t, &idp{})
	_, err := client.CurrentToken(context.Background())
	require.ErrorIs(t, err, identity.ErrNoIdentity)
}

func TestCurrentTokenRefreshesNearExpiry(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Minute))
	fresh := signedToken(t, time.Now().Add(time.Hour))
	f := &idp{idToken: expired, refreshedToken: fresh}
	client := newClient(t, f)

	_, err := client.SignInWithPassword(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	token, err := client.CurrentToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, token)
	require.Equal(t, 1, f.refreshCalls)

	// The refreshed token is cached; no second round-trip.
	token, err = client.CurrentToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, token)
	require.Equal(t, 1, f.refreshCalls)
}

func TestConcurrentCurrentTokenNearExpiry(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Minute))
	fresh := signedToken(t, time.Now().Add(time.Hour))
	f := &idp{idToken: expired, refreshedToken: fresh}
	client := newClient(t, f)

	_, err := client.SignInWithPassword(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	const callers = 4
	errs := make(chan error, callers)
	tokens := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := client.CurrentToken(context.Background())
			errs <- err
			tokens <- token
		}()
	}
	wg.Wait()
	close(errs)
	close(tokens)

	for err := range errs {
		require.NoError(t, err)
	}
	for token := range tokens {
		require.Equal(t, fresh, token)
	}
}

func TestSubscribeFiresImmediatelyAndOnChanges(t *testing.T) {
	f := &idp{idToken: signedToken(t, time.Now().Add(time.Hour))}
	client := newClient(t, f)

	var mu sync.Mutex
	var seen []*identity.Handle
	unsubscribe := client.Subscribe(func(h *identity.Handle) {
		mu.Lock()
		seen = append(seen, h)
		mu.Unlock()
	})
	defer unsubscribe()

	mu.Lock()
	require.Len(t, seen, 1)
	require.Nil(t, seen[0])
	mu.Unlock()

	_, err := client.SignInWithPassword(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	mu.Lock()
	require.Len(t, seen, 2)
	require.Equal(t, "uid-1", seen[1].UID)
	mu.Unlock()

	require.NoError(t, client.SignOut(context.Background()))
	mu.Lock()
	require.Len(t, seen, 3)
	require.Nil(t, seen[2])
	mu.Unlock()
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	f := &idp{idToken: signedToken(t, time.Now().Add(time.Hour))}
	client := newClient(t, f)

	calls := 0
	unsubscribe := client.Subscribe(func(*identity.Handle) { calls++ })
	unsubscribe()

	_, err := client.SignInWithPassword(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.Equal(t, 1, calls) // only the immediate callback
}

func TestSignInInteractiveWithoutAuthenticator(t *testing.T) {
	client := newClient(t, &idp{})
	_, err := client.SignInInteractive(context.Background())
	require.ErrorIs(t, err, identity.ErrNotConfigured)
}
