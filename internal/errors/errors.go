package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session lifecycle. The SessionController converts
// every remote or storage failure into one of these before it reaches a
// caller; raw transport errors never escape the controller.
var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Transport errors
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")

	// Token errors
	ErrTokenExpired  = errors.New("token expired")
	ErrRefreshFailed = errors.New("refresh failed")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")

	// OAuth flow errors
	ErrOAuthCancelled    = errors.New("oauth cancelled")
	ErrMalformedRedirect = errors.New("malformed redirect")

	// Lifecycle errors
	ErrBusy      = errors.New("operation in flight")
	ErrNoSession = errors.New("no session")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
