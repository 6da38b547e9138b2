package cookiejar_test

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exman-app/exman-go/internal/cookiejar"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func sessionCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     "session",
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(time.Hour),
		HttpOnly: true,
	}
}

func TestCookiesSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	origin := mustParse(t, "http://localhost:5000")

	jar, err := cookiejar.New(path)
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{sessionCookie("abc123")})

	reloaded, err := cookiejar.New(path)
	require.NoError(t, err)
	cookies := reloaded.Cookies(origin)
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Equal(t, "abc123", cookies[0].Value)
}

func TestSealedJarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.bin")
	origin := mustParse(t, "http://localhost:5000")

	jar, err := cookiejar.New(path, cookiejar.WithPassphrase("hunter2"))
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{sessionCookie("abc123")})

	// The file on disk must not contain the cookie value in the clear.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "abc123")

	reloaded, err := cookiejar.New(path, cookiejar.WithPassphrase("hunter2"))
	require.NoError(t, err)
	cookies := reloaded.Cookies(origin)
	require.Len(t, cookies, 1)
	require.Equal(t, "abc123", cookies[0].Value)
}

func TestWrongPassphraseStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.bin")
	origin := mustParse(t, "http://localhost:5000")

	jar, err := cookiejar.New(path, cookiejar.WithPassphrase("hunter2"))
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{sessionCookie("abc123")})

	reloaded, err := cookiejar.New(path, cookiejar.WithPassphrase("wrong"))
	require.NoError(t, err)
	require.Empty(t, reloaded.Cookies(origin))
}

func TestExpiredCookiesAreDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	origin := mustParse(t, "http://localhost:5000")

	jar, err := cookiejar.New(path)
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{sessionCookie("abc123")})

	expired := sessionCookie("")
	expired.Expires = time.Now().Add(-time.Hour)
	jar.SetCookies(origin, []*http.Cookie{expired})

	reloaded, err := cookiejar.New(path)
	require.NoError(t, err)
	require.Empty(t, reloaded.Cookies(origin))
}

func TestClearRemovesFileAndCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	origin := mustParse(t, "http://localhost:5000")

	jar, err := cookiejar.New(path)
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{sessionCookie("abc123")})

	require.NoError(t, jar.Clear())
	require.Empty(t, jar.Cookies(origin))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Clearing twice is not an error.
	require.NoError(t, jar.Clear())
}

func TestMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	jar, err := cookiejar.New(path)
	require.NoError(t, err)
	require.Empty(t, jar.Cookies(mustParse(t, "http://localhost:5000")))
}
