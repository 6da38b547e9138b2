package auth

import "github.com/exman-app/exman-go/sessions"

// State is the engine's position in the login lifecycle.
type State string

const (
	// StateInitializing holds until the first session-verification probe
	// settles. It is the only initial state.
	StateInitializing  State = "initializing"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// LoginResult is the outcome of a successful or needs-profile login. Login
// failures are reported as errors; NeedsProfile is a routing signal, not a
// failure: the federated identity exists but the backend has no matching
// profile yet, and the caller should route to signup completion.
type LoginResult struct {
	User         *sessions.Session // Set when a backend session was established
	NeedsProfile bool
	Email        string // Prefill for the signup-completion form
	Name         string
}

// SignupData carries the profile fields for account creation.
type SignupData struct {
	Email         string  `json:"email"`
	Password      string  `json:"password,omitempty"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Position      string  `json:"position"`
	MonthlySalary float64 `json:"monthly_salary"`
	WorkingHours  float64 `json:"working_hours"`
}

// SignupResult is the outcome of a successful signup. User is nil on the
// legacy path, which requires a separate login.
type SignupResult struct {
	User *sessions.Session
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Position      string  `json:"position"`
	MonthlySalary float64 `json:"monthly_salary"`
	WorkingHours  float64 `json:"working_hours"`
}
