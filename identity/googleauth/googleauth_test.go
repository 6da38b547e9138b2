package googleauth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exman-app/exman-go/identity"
)

func TestCallbackDeliversCode(t *testing.T) {
	results := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", results)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/callback?state=expected-state&code=auth-code-1", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	result := <-results
	require.NoError(t, result.err)
	require.Equal(t, "auth-code-1", result.code)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	results := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", results)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/callback?state=forged&code=auth-code-1", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
	result := <-results
	require.Error(t, result.err)
	require.Empty(t, result.code)
}

func TestCallbackRejectsMissingCode(t *testing.T) {
	results := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", results)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/callback?state=expected-state", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
	require.Error(t, (<-results).err)
}

func TestCallbackUserDenialMapsToPopupClosed(t *testing.T) {
	results := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", results)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/callback?error=access_denied", nil)
	handler.ServeHTTP(rec, req)

	require.ErrorIs(t, (<-results).err, identity.ErrPopupClosed)
}

func TestCallbackIgnoresOtherPaths(t *testing.T) {
	results := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", results)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/favicon.ico", nil)
	handler.ServeHTTP(rec, req)

	require.Equal(t, 404, rec.Code)
	require.Empty(t, results)
}

func TestOnlyFirstCallbackCounts(t *testing.T) {
	results := make(chan callbackResult, 1)
	handler := callbackHandler("expected-state", results)

	for _, code := range []string{"first", "second"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/callback?state=expected-state&code="+code, nil)
		handler.ServeHTTP(rec, req)
	}

	require.Equal(t, "first", (<-results).code)
	require.Empty(t, results)
}

func TestCodeChallengeIsS256OfVerifier(t *testing.T) {
	// RFC 7636 appendix B test vector.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", generateCodeChallenge(verifier))
}

func TestNewRequiresClientID(t *testing.T) {
	_, err := New("", "secret")
	require.Error(t, err)
}
