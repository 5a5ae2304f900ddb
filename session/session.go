package session

import (
	"time"
)

// Role represents an application-level role carried inside a session.
type Role string

const (
	RoleEmployee   Role = "EMPLOYEE"
	RoleHRAdmin    Role = "HR_ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole maps a backend role string onto a known Role. Unknown values
// fall back to RoleEmployee so a misconfigured backend can never grant
// elevated access by accident.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleHRAdmin:
		return RoleHRAdmin
	case RoleSuperAdmin:
		return RoleSuperAdmin
	default:
		return RoleEmployee
	}
}

// Session is the authenticated identity and token bundle for the current
// user on this client. It is owned by the SessionController; everything
// else reads snapshots.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	EmployeeID   string    `json:"employeeId,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"` // zero when expiry is untracked
}

// Authenticated reports whether the session holds an access token. Callers
// must still check IsExpired before trusting the token.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// IsExpired reports whether the access token has expired at the given time.
// A zero ExpiresAt means expiry is not tracked and the token is trusted
// until a protected request rejects it. Pure, no I/O.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// WithTokens returns a copy with replaced token fields and expiry. Identity
// fields are never touched, which is what keeps a refresh from changing who
// the user is.
func (s Session) WithTokens(accessToken, refreshToken string, expiresAt time.Time) Session {
	s.AccessToken = accessToken
	s.RefreshToken = refreshToken
	s.ExpiresAt = expiresAt
	return s
}
