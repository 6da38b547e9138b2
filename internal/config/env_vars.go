package config

import (
	"os"
	"path/filepath"
)

const (
	apiURLVar     = "EXMAN_API_URL"
	timeoutVar    = "EXMAN_REQUEST_TIMEOUT"
	cookieFileVar = "EXMAN_COOKIE_FILE"

	defaultAPIURL  = "http://localhost:5000"
	defaultTimeout = "30s"
)

type EnvVars struct{}

var _ APIConfig = EnvVars{}

func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiURLVar, defaultAPIURL)
}

func (EnvVars) GetRequestTimeout() string {
	return GetEnv(timeoutVar, defaultTimeout)
}

// GetCookieFile returns where the CLI persists the backend session cookie.
func (EnvVars) GetCookieFile() string {
	if file := os.Getenv(cookieFileVar); file != "" {
		return file
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".exman-cookies.json"
	}
	return filepath.Join(home, ".exman", "cookies.json")
}

type Firebase struct{}

var _ FirebaseConfig = Firebase{}

func (Firebase) GetFirebaseAPIKey() string {
	return GetEnv("EXMAN_FIREBASE_API_KEY", "")
}

func (Firebase) GetFirebaseProjectID() string {
	return GetEnv("EXMAN_FIREBASE_PROJECT_ID", "")
}

// IsFirebaseConfigured mirrors the provider gate: federated flows are only
// offered when both the API key and the project are set.
func (f Firebase) IsFirebaseConfigured() bool {
	return f.GetFirebaseAPIKey() != "" && f.GetFirebaseProjectID() != ""
}

type Google struct{}

var _ GoogleConfig = Google{}

func (Google) GetGoogleClientID() string {
	return GetEnv("EXMAN_GOOGLE_CLIENT_ID", "")
}

func (Google) GetGoogleClientSecret() string {
	return GetEnv("EXMAN_GOOGLE_CLIENT_SECRET", "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
