package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exman-app/exman-go/api"
)

// backend is a scriptable fake of the ExMan server's CSRF behavior.
type backend struct {
	mu            sync.Mutex
	tokensIssued  int
	requests      []string
	rejectCSRF    int // reject this many state-changing requests with a CSRF 403
	acceptedToken string
}

func (b *backend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)

		switch {
		case r.URL.Path == "/csrf-token":
			b.tokensIssued++
			b.acceptedToken = "token-" + string(rune('0'+b.tokensIssued))
			json.NewEncoder(w).Encode(map[string]string{"token": b.acceptedToken})

		case b.rejectCSRF > 0 && r.Method != http.MethodGet:
			b.rejectCSRF--
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"message": "CSRF token invalid"})

		case r.URL.Path == "/ok":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "csrf": r.Header.Get("X-CSRF-Token")})

		case r.URL.Path == "/unauthorized":
			w.WriteHeader(http.StatusUnauthorized)

		case r.URL.Path == "/auth/verify-session":
			w.WriteHeader(http.StatusUnauthorized)

		case r.URL.Path == "/locked":
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"isLocked":         true,
				"secondsRemaining": 42,
				"message":          "Too many failed attempts",
			})

		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
		}
	})
}

func (b *backend) requestCount(methodAndPath string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, r := range b.requests {
		if r == methodAndPath {
			count++
		}
	}
	return count
}

func newClient(t *testing.T, b *backend, opts ...api.Option) *api.Client {
	t.Helper()
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)

	client, err := api.New(server.URL, opts...)
	require.NoError(t, err)
	return client
}

func TestGetSkipsCSRFToken(t *testing.T) {
	b := &backend{}
	client := newClient(t, b)

	var out map[string]any
	require.NoError(t, client.Get(context.Background(), "/ok", &out))
	require.Equal(t, 0, b.requestCount("GET /csrf-token"))
	require.Empty(t, out["csrf"])
}

func TestPostAttachesCSRFToken(t *testing.T) {
	b := &backend{}
	client := newClient(t, b)

	var out map[string]any
	require.NoError(t, client.Post(context.Background(), "/ok", map[string]string{"a": "b"}, &out))
	require.Equal(t, 1, b.tokensIssued)
	require.Equal(t, b.acceptedToken, out["csrf"])

	// A second request reuses the cached token.
	require.NoError(t, client.Post(context.Background(), "/ok", nil, nil))
	require.Equal(t, 1, b.tokensIssued)
}

func TestCSRFRejectionRetriesOnce(t *testing.T) {
	b := &backend{rejectCSRF: 1}
	client := newClient(t, b)

	var out map[string]any
	require.NoError(t, client.Post(context.Background(), "/ok", nil, &out))
	require.Equal(t, 2, b.tokensIssued)
	require.Equal(t, 2, b.requestCount("POST /ok"))
	require.Equal(t, b.acceptedToken, out["csrf"])
}

func TestSecondCSRFRejectionSurfacesError(t *testing.T) {
	b := &backend{rejectCSRF: 2}
	client := newClient(t, b)

	err := client.Post(context.Background(), "/ok", nil, nil)
	require.ErrorIs(t, err, api.ErrCSRFRejected)
	// Exactly one retry: the original attempt plus one replay, no loop.
	require.Equal(t, 2, b.requestCount("POST /ok"))
}

func TestUnauthorizedTriggersSessionExpiredPolicy(t *testing.T) {
	b := &backend{}
	expired := false
	client := newClient(t, b, api.WithSessionExpiredHandler(func() { expired = true }))

	err := client.Get(context.Background(), "/unauthorized", nil)
	require.ErrorIs(t, err, api.ErrSessionExpired)
	require.True(t, expired)
}

func TestUnauthorizedVerifySessionPassesThrough(t *testing.T) {
	b := &backend{}
	expired := false
	client := newClient(t, b, api.WithSessionExpiredHandler(func() { expired = true }))

	err := client.Get(context.Background(), "/auth/verify-session", nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, api.ErrSessionExpired)
	require.False(t, expired)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestErrorCarriesLockoutFields(t *testing.T) {
	b := &backend{}
	client := newClient(t, b)

	err := client.Post(context.Background(), "/locked", nil, nil)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.IsLocked)
	require.Equal(t, 42, apiErr.SecondsRemaining)
	require.Equal(t, "Too many failed attempts", apiErr.Message)
}

func TestErrorPassesThroughStatusAndMessage(t *testing.T) {
	b := &backend{}
	client := newClient(t, b)

	err := client.Get(context.Background(), "/missing", nil)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "not found", apiErr.Message)
}
