package config

type Config interface {
	APIConfig
	FirebaseConfig
	GoogleConfig
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() string
	GetCookieFile() string
}

type FirebaseConfig interface {
	GetFirebaseAPIKey() string
	GetFirebaseProjectID() string
	IsFirebaseConfigured() bool
}

type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
}

type mainConfig struct {
	EnvVars
	Firebase
	Google
}

func New() Config {
	return mainConfig{}
}
