package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/exman-app/exman-go/identity"
)

// accountsResponse is the common shape of identitytoolkit accounts:* replies.
type accountsResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) accountsCall(ctx context.Context, endpoint string, body map[string]any) (*accountsResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("[firebase] marshal request: %w", err)
	}

	target := fmt.Sprintf("%s/%s?key=%s", c.identityURL, endpoint, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("[firebase] create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[firebase] %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[firebase] read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapAPIError(respBody)
	}

	var out accountsResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("[firebase] decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[firebase] create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("[firebase] token refresh: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("[firebase] read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapAPIError(respBody)
	}
	return json.Unmarshal(respBody, out)
}

// mapAPIError normalizes Firebase error codes into the identity taxonomy so
// callers never see raw provider error shapes.
func mapAPIError(body []byte) error {
	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return fmt.Errorf("[firebase] unexpected error response: %s", string(body))
	}

	// WEAK_PASSWORD arrives with a trailing explanation, e.g.
	// "WEAK_PASSWORD : Password should be at least 6 characters".
	code := payload.Error.Message
	if i := strings.IndexAny(code, " :"); i > 0 {
		code = code[:i]
	}

	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return identity.ErrInvalidCredential
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return identity.ErrTooManyRequests
	case "EMAIL_EXISTS":
		return identity.ErrEmailInUse
	case "WEAK_PASSWORD":
		return identity.ErrWeakPassword
	case "USER_NOT_FOUND":
		return identity.ErrUserNotFound
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return identity.ErrInvalidEmail
	}
	return fmt.Errorf("firebase: %s", payload.Error.Message)
}

// jwtExpiry reads the exp claim of the ID token without verifying the
// signature. Verification is the backend's job; the adapter only needs the
// expiry to schedule refreshes.
func jwtExpiry(idToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return time.Time{}, false
	}
	expires, err := claims.GetExpirationTime()
	if err != nil || expires == nil {
		return time.Time{}, false
	}
	return expires.Time, true
}
