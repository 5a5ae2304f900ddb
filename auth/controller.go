// Package auth owns the session lifecycle: login with password or OAuth,
// refresh, logout, and the current-session snapshot the rest of the
// application reads. All mutable session state lives inside the
// SessionController instance; nothing is ambient.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/workforcehub/go-session/authapi"
	autherrors "github.com/workforcehub/go-session/internal/errors"
	"github.com/workforcehub/go-session/provider"
	"github.com/workforcehub/go-session/redirect"
	"github.com/workforcehub/go-session/session"
)

// Backend is the slice of the WorkforceHub API the controller needs.
// *authapi.Client satisfies it.
type Backend interface {
	Login(ctx context.Context, email, password string) (*authapi.TokenBundle, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authapi.TokenBundle, error)
	Logout(ctx context.Context, userID string) error
	OAuthTokenInfo(ctx context.Context, email string) (*authapi.TokenBundle, error)
}

// SessionController orchestrates the session state machine
// {SignedOut, Authenticating, SignedIn, Refreshing}. The four mutating
// operations are mutually exclusive; a second call while one is in flight
// is rejected with ErrBusy, except concurrent Refresh calls which collapse
// into the in-flight refresh and share its outcome.
type SessionController struct {
	store    session.Store
	backend  Backend
	idp      provider.Provider
	nowTime  func() time.Time // nowTime function (injectable for testing)
	onChange func(State)

	logoutTimeout time.Duration

	opLock       sync.Mutex // serializes mutating operations
	refreshGroup singleflight.Group

	stateLock sync.RWMutex
	state     State
	current   *session.Session
}

// Option defines a function type to modify the SessionController instance.
type Option func(*SessionController)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(sc *SessionController) {
		sc.nowTime = nowFunc
	}
}

// WithOnChange installs a state-change callback so hosts can re-render when
// the session changes. The callback runs while the originating operation is
// still in flight, so it must not call back into the controller's mutating
// operations; those would be rejected with ErrBusy.
func WithOnChange(fn func(State)) Option {
	return func(sc *SessionController) {
		sc.onChange = fn
	}
}

// WithLogoutTimeout bounds the fire-and-forget backend notify on logout.
func WithLogoutTimeout(d time.Duration) Option {
	return func(sc *SessionController) {
		sc.logoutTimeout = d
	}
}

// New initializes a SessionController and primes the in-memory session from
// the store. An unavailable store or an expired stored session is treated
// as no session: the user signs in again rather than the app crashing or
// trusting a stale token.
func New(store session.Store, backend Backend, idp provider.Provider, options ...Option) (*SessionController, error) {
	if store == nil {
		return nil, errors.New("[auth.New] store is required")
	}
	if backend == nil {
		return nil, errors.New("[auth.New] backend is required")
	}
	if idp == nil {
		return nil, errors.New("[auth.New] identity provider is required")
	}

	controller := &SessionController{
		store:         store,
		backend:       backend,
		idp:           idp,
		nowTime:       time.Now,
		logoutTimeout: 5 * time.Second,
		state:         StateSignedOut,
	}

	for _, opt := range options {
		opt(controller)
	}

	stored, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("session store unavailable at startup, starting signed out")
		stored = nil
	}
	if stored.Authenticated() && !stored.IsExpired(controller.nowTime()) {
		controller.current = stored
		controller.state = StateSignedIn
	}

	return controller, nil
}

// CurrentSession returns a snapshot of the in-memory session, or nil when
// signed out. Never performs I/O.
func (sc *SessionController) CurrentSession() *session.Session {
	sc.stateLock.RLock()
	defer sc.stateLock.RUnlock()

	if sc.current == nil {
		return nil
	}
	copied := *sc.current
	return &copied
}

// State returns the current lifecycle state.
func (sc *SessionController) State() State {
	sc.stateLock.RLock()
	defer sc.stateLock.RUnlock()
	return sc.state
}

// LoginWithPassword performs a credential login. User-initiated, so a
// failure is reported once and never retried automatically.
func (sc *SessionController) LoginWithPassword(ctx context.Context, email, password string) error {
	if !sc.opLock.TryLock() {
		return autherrors.ErrBusy
	}
	defer sc.opLock.Unlock()

	sc.setState(StateAuthenticating, sc.CurrentSession())

	bundle, err := sc.backend.Login(ctx, email, password)
	if err != nil {
		sc.setState(StateSignedOut, nil)
		return errors.Wrap(err, "[SessionController.LoginWithPassword] backend login")
	}

	if err := sc.adopt(bundle); err != nil {
		return errors.Wrap(err, "[SessionController.LoginWithPassword] adopt session")
	}
	return nil
}

// LoginWithOAuth signs in through the identity provider. Silent
// reauthentication is attempted first; the interactive flow only runs on
// the provider's explicit no-cached-credential signal, never on a generic
// failure, to avoid prompt loops.
func (sc *SessionController) LoginWithOAuth(ctx context.Context) error {
	if !sc.opLock.TryLock() {
		return autherrors.ErrBusy
	}
	defer sc.opLock.Unlock()

	sc.setState(StateAuthenticating, sc.CurrentSession())

	email, err := sc.idp.SilentSignIn(ctx)
	if errors.Is(err, provider.ErrNoCachedAccount) {
		email, err = sc.idp.InteractiveSignIn(ctx)
	}
	if err != nil {
		sc.setState(StateSignedOut, nil)
		if errors.Is(err, provider.ErrCancelled) || ctx.Err() != nil {
			return errors.Wrapf(autherrors.ErrOAuthCancelled, "[SessionController.LoginWithOAuth] %v", err)
		}
		return errors.Wrapf(autherrors.ErrServer, "[SessionController.LoginWithOAuth] provider: %v", err)
	}

	bundle, err := sc.backend.OAuthTokenInfo(ctx, email)
	if err != nil {
		sc.setState(StateSignedOut, nil)
		return errors.Wrap(err, "[SessionController.LoginWithOAuth] token exchange")
	}

	if err := sc.adopt(bundle); err != nil {
		return errors.Wrap(err, "[SessionController.LoginWithOAuth] adopt session")
	}
	return nil
}

// CompleteOAuthRedirect applies an intercepted provider redirect: an
// exchange key is traded for the token bundle, an inline bundle is adopted
// directly. A malformed redirect fails silently back to signed out, with no
// token applied.
func (sc *SessionController) CompleteOAuthRedirect(ctx context.Context, result redirect.Result) error {
	if !result.Matched {
		return errors.Wrap(autherrors.ErrMalformedRedirect, "[SessionController.CompleteOAuthRedirect] unmatched redirect")
	}
	if result.Err != nil {
		// No token applied; whoever was signed in stays signed in.
		return result.Err
	}

	if !sc.opLock.TryLock() {
		return autherrors.ErrBusy
	}
	defer sc.opLock.Unlock()

	sc.setState(StateAuthenticating, sc.CurrentSession())

	bundle := result.Artifact.Bundle
	if bundle == nil {
		var err error
		bundle, err = sc.backend.OAuthTokenInfo(ctx, result.Artifact.ExchangeEmail)
		if err != nil {
			sc.setState(StateSignedOut, nil)
			return errors.Wrap(err, "[SessionController.CompleteOAuthRedirect] token exchange")
		}
	}

	if err := sc.adopt(bundle); err != nil {
		return errors.Wrap(err, "[SessionController.CompleteOAuthRedirect] adopt session")
	}
	return nil
}

// Refresh exchanges the stored refresh token for new tokens. Identity
// fields never change; only tokens and expiry do. Any failure clears the
// session — an invalid refresh token cannot become valid by retrying.
// Concurrent callers share a single backend call.
func (sc *SessionController) Refresh(ctx context.Context) error {
	_, err, _ := sc.refreshGroup.Do("refresh", func() (any, error) {
		return nil, sc.refresh(ctx)
	})
	return err
}

func (sc *SessionController) refresh(ctx context.Context) error {
	if !sc.opLock.TryLock() {
		return autherrors.ErrBusy
	}
	defer sc.opLock.Unlock()

	current := sc.CurrentSession()
	if current == nil || current.RefreshToken == "" {
		return autherrors.ErrNoSession
	}

	sc.setState(StateRefreshing, current)

	bundle, err := sc.backend.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		sc.forceSignOut()
		return errors.Wrapf(autherrors.ErrRefreshFailed, "[SessionController.Refresh] %v", err)
	}

	// Token fields only; who the user is does not change on refresh.
	fresh := bundle.Session(sc.nowTime())
	updated := current.WithTokens(fresh.AccessToken, fresh.RefreshToken, fresh.ExpiresAt)

	if err := sc.store.Save(&updated); err != nil {
		sc.forceSignOut()
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[SessionController.Refresh] save: %v", err)
	}

	sc.setState(StateSignedIn, &updated)
	return nil
}

// Logout notifies the backend best-effort and always ends the local
// session, whether or not the notify lands.
func (sc *SessionController) Logout(ctx context.Context) error {
	if !sc.opLock.TryLock() {
		return autherrors.ErrBusy
	}
	defer sc.opLock.Unlock()

	current := sc.CurrentSession()

	if current != nil && current.UserID != "" {
		userID := current.UserID
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sc.logoutTimeout)
		go func() {
			defer cancel()
			if err := sc.backend.Logout(notifyCtx, userID); err != nil {
				log.Debug().Err(err).Msg("logout notify failed")
			}
		}()
	}

	if err := sc.store.Clear(); err != nil {
		log.Warn().Err(err).Msg("session store clear failed on logout")
	}
	if err := sc.idp.ClearCache(ctx); err != nil {
		log.Debug().Err(err).Msg("provider cache clear failed on logout")
	}

	sc.setState(StateSignedOut, nil)
	return nil
}

// adopt saves the bundle's session and only then publishes it, so a
// completed operation is visible to the next CurrentSession call.
func (sc *SessionController) adopt(bundle *authapi.TokenBundle) error {
	s := bundle.Session(sc.nowTime())

	if err := sc.store.Save(&s); err != nil {
		sc.setState(StateSignedOut, nil)
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "save: %v", err)
	}

	sc.setState(StateSignedIn, &s)
	return nil
}

func (sc *SessionController) forceSignOut() {
	if err := sc.store.Clear(); err != nil {
		log.Warn().Err(err).Msg("session store clear failed")
	}
	sc.setState(StateSignedOut, nil)
}

func (sc *SessionController) setState(state State, current *session.Session) {
	sc.stateLock.Lock()
	sc.state = state
	sc.current = current
	sc.stateLock.Unlock()

	if sc.onChange != nil {
		sc.onChange(state)
	}
}
