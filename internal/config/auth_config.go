package config

import "time"

type AuthConfig interface {
	GetRequestTimeout() time.Duration
	GetSignInPath() string
	GetRedirectPath() string
	GetTrustedOrigin() string
	GetCloseThreshold() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetRequestTimeout bounds every backend call. On timeout the caller sees a
// network failure, never a silent wait.
func (Auth) GetRequestTimeout() time.Duration {
	return 30 * time.Second
}

func (Auth) GetSignInPath() string {
	return GetEnv("SIGNIN_PATH", "/login")
}

// GetRedirectPath is the exact path the identity provider redirects back to.
// Matching against it is exact, never substring.
func (Auth) GetRedirectPath() string {
	return GetEnv("OAUTH_REDIRECT_PATH", "/oauth2/redirect")
}

// GetTrustedOrigin is the scheme+host of the application itself; redirects
// arriving on any other origin are ignored.
func (Auth) GetTrustedOrigin() string {
	return GetEnv("TRUSTED_ORIGIN", "http://localhost:8080")
}

// GetCloseThreshold separates a reload from a real tab close: an unload
// signal arriving sooner than this after page load is judged a reload.
func (Auth) GetCloseThreshold() time.Duration {
	return 100 * time.Millisecond
}
