package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileValues is the on-disk shape of the CLI config file.
type fileValues struct {
	APIURL         string `yaml:"api_url"`
	RequestTimeout string `yaml:"request_timeout"`
	CookieFile     string `yaml:"cookie_file"`
	Firebase       struct {
		APIKey    string `yaml:"api_key"`
		ProjectID string `yaml:"project_id"`
	} `yaml:"firebase"`
	Google struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"google"`
}

type fileConfig struct {
	EnvVars
	Firebase
	Google
	values fileValues
}

// DefaultConfigFile is where Load looks when no path is given.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".exman.yaml"
	}
	return filepath.Join(home, ".exman", "config.yaml")
}

// Load reads the YAML config file at path and returns a Config where
// environment variables win over file values, and file values win over
// built-in defaults. A missing file is not an error; env and defaults
// still apply.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile()
	}

	var values fileValues
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fall through with empty file values.
	case err != nil:
		return nil, fmt.Errorf("[config.Load] read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("[config.Load] parse %s: %w", path, err)
		}
	}

	return fileConfig{values: values}, nil
}

func (c fileConfig) GetAPIBaseURL() string {
	return firstNonEmpty(os.Getenv(apiURLVar), c.values.APIURL, defaultAPIURL)
}

func (c fileConfig) GetRequestTimeout() string {
	return firstNonEmpty(os.Getenv(timeoutVar), c.values.RequestTimeout, defaultTimeout)
}

func (c fileConfig) GetCookieFile() string {
	if v := firstNonEmpty(os.Getenv(cookieFileVar), c.values.CookieFile); v != "" {
		return v
	}
	return EnvVars{}.GetCookieFile()
}

func (c fileConfig) GetFirebaseAPIKey() string {
	return firstNonEmpty(os.Getenv("EXMAN_FIREBASE_API_KEY"), c.values.Firebase.APIKey)
}

func (c fileConfig) GetFirebaseProjectID() string {
	return firstNonEmpty(os.Getenv("EXMAN_FIREBASE_PROJECT_ID"), c.values.Firebase.ProjectID)
}

func (c fileConfig) IsFirebaseConfigured() bool {
	return c.GetFirebaseAPIKey() != "" && c.GetFirebaseProjectID() != ""
}

func (c fileConfig) GetGoogleClientID() string {
	return firstNonEmpty(os.Getenv("EXMAN_GOOGLE_CLIENT_ID"), c.values.Google.ClientID)
}

func (c fileConfig) GetGoogleClientSecret() string {
	return firstNonEmpty(os.Getenv("EXMAN_GOOGLE_CLIENT_SECRET"), c.values.Google.ClientSecret)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
