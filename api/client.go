// Package api implements the request pipeline for the ExMan backend: a JSON
// HTTP client that owns CSRF-token acquisition and retry, the session-expired
// redirect policy, and the session cookie jar.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	csrfHeader      = "X-CSRF-Token"
	requestIDHeader = "X-Request-ID"

	csrfTokenPath     = "/csrf-token"
	verifySessionPath = "/auth/verify-session"

	defaultTimeout = 30 * time.Second
)

// Client talks to the ExMan backend. All state-changing requests carry a CSRF
// token fetched lazily from the backend; the cached token lives inside the
// Client behind a mutex, never in package-level state.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	log              zerolog.Logger
	onSessionExpired func()

	mu        sync.Mutex
	csrfToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The caller is
// responsible for attaching a cookie jar if session cookies should stick.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithSessionExpiredHandler installs the hook invoked on a 401 outside the
// session-verification probe. In the CLI this clears local state and tells
// the user to log in again; an embedding UI would navigate to its login
// entry point.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[api.New] baseURL is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("[api.New] cookie jar: %w", err)
		}
		c.httpClient = &http.Client{Timeout: defaultTimeout, Jar: jar}
	}

	return c, nil
}

// Get issues a GET request and decodes the JSON response into out (when out
// is non-nil). GET requests never carry a CSRF token.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// GetRaw issues a GET request and returns the raw response body. Used for
// binary downloads such as PDF reports.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[api.GetRaw] read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, c.sessionExpired(path)
		}
		return nil, newError(resp.StatusCode, body)
	}
	return body, nil
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

// ClearCSRFToken drops the cached CSRF token. Called on session teardown.
func (c *Client) ClearCSRFToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrfToken = ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("[api] marshal request body: %w", err)
		}
	}

	token := ""
	if stateChanging(method) {
		var err error
		token, err = c.ensureCSRFToken(ctx)
		if err != nil {
			return err
		}
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}
	respBody, err := drain(resp)
	if err != nil {
		return err
	}

	// A CSRF rejection means the cached token went stale server-side.
	// Refresh it and replay the request exactly once; a second rejection
	// is a hard error, never another retry.
	if isCSRFRejection(resp.StatusCode, respBody) {
		c.log.Warn().Str("method", method).Str("path", path).Msg("CSRF token rejected, refetching and retrying")
		c.ClearCSRFToken()
		token, err = c.ensureCSRFToken(ctx)
		if err != nil {
			return err
		}

		resp, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return err
		}
		respBody, err = drain(resp)
		if err != nil {
			return err
		}
		if isCSRFRejection(resp.StatusCode, respBody) {
			return fmt.Errorf("[api] %s %s: %w", method, path, ErrCSRFRejected)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && path != verifySessionPath {
		return c.sessionExpired(path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("[api] decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, csrfToken string) (*http.Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("[api] create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if csrfToken != "" {
		req.Header.Set(csrfHeader, csrfToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[api] %s %s: %w", method, path, err)
	}
	return resp, nil
}

// ensureCSRFToken returns the cached token, fetching one from the backend
// when none is held.
func (c *Client) ensureCSRFToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.csrfToken != "" {
		return c.csrfToken, nil
	}

	resp, err := c.send(ctx, http.MethodGet, csrfTokenPath, nil, "")
	if err != nil {
		return "", err
	}
	body, err := drain(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError(resp.StatusCode, body)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("[api] decode csrf token: %w", err)
	}

	c.csrfToken = payload.Token
	c.log.Debug().Msg("fetched CSRF token")
	return c.csrfToken, nil
}

// sessionExpired runs the global session-loss policy: drop the CSRF token,
// notify the embedder, and surface the sentinel. Callers treat everything
// past this point as unreachable.
func (c *Client) sessionExpired(path string) error {
	c.log.Warn().Str("path", path).Msg("session expired, clearing local auth state")
	c.ClearCSRFToken()
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	return ErrSessionExpired
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func isCSRFRejection(status int, body []byte) bool {
	return status == http.StatusForbidden && strings.Contains(extractMessage(body), "CSRF")
}

func drain(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[api] read response body: %w", err)
	}
	return body, nil
}

func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func newError(status int, body []byte) *Error {
	apiErr := &Error{
		Status:  status,
		Message: extractMessage(body),
		Body:    body,
	}

	var lock struct {
		IsLocked         bool `json:"isLocked"`
		SecondsRemaining int  `json:"secondsRemaining"`
	}
	if err := json.Unmarshal(body, &lock); err == nil && lock.IsLocked {
		apiErr.IsLocked = true
		apiErr.SecondsRemaining = lock.SecondsRemaining
	}
	return apiErr
}
