package authapi

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/workforcehub/go-session/session"
)

// TokenBundle mirrors the backend auth response body. Login, refresh and
// the OAuth token-info endpoint all return this shape.
type TokenBundle struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	EmployeeID   string `json:"employeeId,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"` // seconds, optional
}

// Session maps the bundle onto a session. When the backend omits expiresIn,
// the expiry is backfilled from the access token's exp claim; the parse is
// deliberately unverified because signature verification belongs to the
// backend, not its clients.
func (tb *TokenBundle) Session(now time.Time) session.Session {
	expiresAt := time.Time{}
	if tb.ExpiresIn > 0 {
		expiresAt = now.Add(time.Duration(tb.ExpiresIn) * time.Second)
	} else {
		expiresAt = expiryFromToken(tb.Token)
	}

	return session.Session{
		AccessToken:  tb.Token,
		RefreshToken: tb.RefreshToken,
		UserID:       tb.UserID,
		Email:        tb.Email,
		Role:         session.ParseRole(tb.Role),
		EmployeeID:   tb.EmployeeID,
		FirstName:    tb.FirstName,
		LastName:     tb.LastName,
		ExpiresAt:    expiresAt,
	}
}

func expiryFromToken(rawToken string) time.Time {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
