package session

// Store is the single durable backing for the session. The SessionController
// is the sole writer; all other components read through it.
//
// A backing-medium fault surfaces as errors.ErrStorageUnavailable (wrapped).
// Callers treat that the same as "no session": fail closed and force a
// re-login rather than crash.
type Store interface {
	// Save persists the whole session. Atomic from a reader's perspective:
	// a concurrent Load never observes a new access token paired with an
	// old refresh token.
	Save(s *Session) error

	// Load returns the last saved session, or (nil, nil) when none exists.
	Load() (*Session, error)

	// Clear removes the persisted session. Idempotent: clearing an empty
	// store is a no-op, not an error.
	Clear() error
}
