// Package provider abstracts the identity provider behind a single-shot
// call-and-result API. The session controller only ever needs the verified
// account email out of a provider; everything else about provider tokens
// stays inside this package.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrNoCachedAccount is the one signal that makes a silent sign-in fall
	// back to an interactive one. Any other silent failure is surfaced
	// as-is to avoid interactive-prompt loops.
	ErrNoCachedAccount = errors.New("no cached account")

	// ErrCancelled means the user dismissed the provider UI.
	ErrCancelled = errors.New("authentication cancelled")
)

// Provider performs interactive or silent authentication and yields the
// account identifier (an email) used as the backend exchange key.
type Provider interface {
	// SilentSignIn reauthenticates without UI using whatever account the
	// provider has cached. Returns ErrNoCachedAccount when there is none.
	SilentSignIn(ctx context.Context) (string, error)

	// InteractiveSignIn runs the provider's interactive flow. Cancelling
	// ctx or dismissing the provider UI returns ErrCancelled.
	InteractiveSignIn(ctx context.Context) (string, error)

	// ClearCache drops the provider-level cached account, so the next
	// sign-in is interactive again.
	ClearCache(ctx context.Context) error
}
