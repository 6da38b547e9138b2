package sessions

// Session is the authoritative identity of the current actor as known to the
// ExMan backend. Exactly one Session (or none) exists at a time; it is owned
// by the auth.Engine and mutated only through server round-trips; callers
// read it, they never write it.
type Session struct {
	ID            int     `json:"id"`             // Backend user ID
	Email         string  `json:"email"`          // Login email
	FirstName     string  `json:"first_name"`     // Profile first name
	LastName      string  `json:"last_name"`      // Profile last name
	Position      string  `json:"position"`       // Job title
	MonthlySalary float64 `json:"monthly_salary"` // Gross monthly salary
	WorkingHours  float64 `json:"working_hours"`  // Contracted hours per week
}

// DisplayName returns the best human-readable name for the session holder.
func (s *Session) DisplayName() string {
	switch {
	case s == nil:
		return ""
	case s.FirstName == "" && s.LastName == "":
		return s.Email
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}
