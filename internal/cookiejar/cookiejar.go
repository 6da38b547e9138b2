// Package cookiejar provides a disk-backed http.CookieJar so the backend
// session cookie survives CLI restarts. The file can optionally be sealed
// with a passphrase-derived key.
package cookiejar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storedCookie is the serializable subset of http.Cookie the jar persists.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// Jar wraps the standard in-memory jar and mirrors every SetCookies call to
// disk, replaying the stored cookies on load.
type Jar struct {
	path   string
	sealer *sealer

	mu    sync.Mutex
	inner http.CookieJar
	store map[string]map[string]storedCookie // origin -> cookie name -> cookie
}

// Option configures a Jar.
type Option func(*Jar)

// WithPassphrase seals the on-disk file with a key derived from the given
// passphrase. Without it the file is plaintext JSON with 0600 permissions.
func WithPassphrase(passphrase string) Option {
	return func(j *Jar) {
		j.sealer = newSealer(passphrase)
	}
}

// New creates a jar persisted at path, loading any previously stored
// cookies. A missing or unreadable file starts the jar empty.
func New(path string, opts ...Option) (*Jar, error) {
	if path == "" {
		return nil, errors.New("[cookiejar.New] path is required")
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("[cookiejar.New] inner jar: %w", err)
	}

	j := &Jar{
		path:  path,
		inner: inner,
		store: map[string]map[string]storedCookie{},
	}
	for _, opt := range opts {
		opt(j)
	}

	j.load()
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	origin := u.Scheme + "://" + u.Host
	byName := j.store[origin]
	if byName == nil {
		byName = map[string]storedCookie{}
		j.store[origin] = byName
	}
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(byName, c.Name)
			continue
		}
		byName[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
	}

	j.saveLocked()
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Clear drops all cookies and removes the persisted file.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("[cookiejar.Clear] inner jar: %w", err)
	}
	j.inner = inner
	j.store = map[string]map[string]storedCookie{}

	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[cookiejar.Clear] remove %s: %w", j.path, err)
	}
	return nil
}

func (j *Jar) load() {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return
	}
	if j.sealer != nil {
		data, err = j.sealer.open(data)
		if err != nil {
			return
		}
	}

	var store map[string]map[string]storedCookie
	if err := json.Unmarshal(data, &store); err != nil {
		return
	}
	j.store = store

	now := time.Now()
	for origin, byName := range store {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		cookies := make([]*http.Cookie, 0, len(byName))
		for _, c := range byName {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			cookies = append(cookies, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				Domain:   c.Domain,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		j.inner.SetCookies(u, cookies)
	}
}

func (j *Jar) saveLocked() {
	data, err := json.Marshal(j.store)
	if err != nil {
		return
	}
	if j.sealer != nil {
		data, err = j.sealer.seal(data)
		if err != nil {
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(j.path, data, 0o600)
}
