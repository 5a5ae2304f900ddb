package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workforcehub/go-session/auth"
	"github.com/workforcehub/go-session/authapi"
	autherrors "github.com/workforcehub/go-session/internal/errors"
	"github.com/workforcehub/go-session/provider"
	"github.com/workforcehub/go-session/provider/providerfake"
	"github.com/workforcehub/go-session/redirect"
	"github.com/workforcehub/go-session/session"
	"github.com/workforcehub/go-session/session/storefake"
)

const (
	testEmail    = "a@b.com"
	testPassword = "pw"
	testUserID   = "u1"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testBundle() *authapi.TokenBundle {
	return &authapi.TokenBundle{
		Token:        "T1",
		RefreshToken: "R1",
		UserID:       testUserID,
		Email:        testEmail,
		Role:         "EMPLOYEE",
		EmployeeID:   "e1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		ExpiresIn:    3600,
	}
}

// fakeBackend is a scriptable auth.Backend. The block channels, when set,
// let tests hold an operation in flight.
type fakeBackend struct {
	loginBundle *authapi.TokenBundle
	loginErr    error
	loginHold   chan struct{}

	refreshBundle *authapi.TokenBundle
	refreshErr    error
	refreshDelay  time.Duration

	logoutErr error

	tokenInfoBundle *authapi.TokenBundle
	tokenInfoErr    error

	lock         sync.Mutex
	loginCalls   int
	refreshCalls int
	logoutCalls  int
	tokenInfoFor []string
	loginStarted chan struct{}
}

func (fb *fakeBackend) Login(_ context.Context, _, _ string) (*authapi.TokenBundle, error) {
	fb.lock.Lock()
	fb.loginCalls++
	started := fb.loginStarted
	fb.lock.Unlock()

	if started != nil {
		close(started)
		fb.lock.Lock()
		fb.loginStarted = nil
		fb.lock.Unlock()
	}
	if fb.loginHold != nil {
		<-fb.loginHold
	}
	if fb.loginErr != nil {
		return nil, fb.loginErr
	}
	return fb.loginBundle, nil
}

func (fb *fakeBackend) RefreshToken(_ context.Context, _ string) (*authapi.TokenBundle, error) {
	fb.lock.Lock()
	fb.refreshCalls++
	fb.lock.Unlock()

	if fb.refreshDelay > 0 {
		time.Sleep(fb.refreshDelay)
	}
	if fb.refreshErr != nil {
		return nil, fb.refreshErr
	}
	return fb.refreshBundle, nil
}

func (fb *fakeBackend) Logout(_ context.Context, _ string) error {
	fb.lock.Lock()
	fb.logoutCalls++
	fb.lock.Unlock()
	return fb.logoutErr
}

func (fb *fakeBackend) OAuthTokenInfo(_ context.Context, email string) (*authapi.TokenBundle, error) {
	fb.lock.Lock()
	fb.tokenInfoFor = append(fb.tokenInfoFor, email)
	fb.lock.Unlock()

	if fb.tokenInfoErr != nil {
		return nil, fb.tokenInfoErr
	}
	return fb.tokenInfoBundle, nil
}

func (fb *fakeBackend) counts() (login, refresh, logout int) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	return fb.loginCalls, fb.refreshCalls, fb.logoutCalls
}

type testFixture struct {
	store      *storefake.FakeStore
	backend    *fakeBackend
	idp        *providerfake.FakeProvider
	controller *auth.SessionController
}

func setupTestFixture(t *testing.T, options ...auth.Option) *testFixture {
	t.Helper()

	store := storefake.NewFakeStore()
	backend := &fakeBackend{}
	idp := providerfake.NewFakeProvider()

	options = append([]auth.Option{auth.WithNowTime(func() time.Time { return testNow })}, options...)
	controller, err := auth.New(store, backend, idp, options...)
	require.NoError(t, err)

	return &testFixture{store: store, backend: backend, idp: idp, controller: controller}
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := auth.New(nil, &fakeBackend{}, providerfake.NewFakeProvider())
	require.Error(t, err)

	_, err = auth.New(storefake.NewFakeStore(), nil, providerfake.NewFakeProvider())
	require.Error(t, err)

	_, err = auth.New(storefake.NewFakeStore(), &fakeBackend{}, nil)
	require.Error(t, err)
}

func TestLoginWithPasswordMapsResponse(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()

	require.NoError(t, f.controller.LoginWithPassword(context.Background(), testEmail, testPassword))
	require.Equal(t, auth.StateSignedIn, f.controller.State())

	s := f.controller.CurrentSession()
	require.NotNil(t, s)
	require.Equal(t, "T1", s.AccessToken)
	require.Equal(t, "R1", s.RefreshToken)
	require.Equal(t, testUserID, s.UserID)
	require.Equal(t, testEmail, s.Email)
	require.Equal(t, session.RoleEmployee, s.Role)
	require.Equal(t, "e1", s.EmployeeID)
	require.Equal(t, "Ada", s.FirstName)
	require.Equal(t, "Lovelace", s.LastName)
	require.Equal(t, testNow.Add(time.Hour), s.ExpiresAt)

	// Saved before published
	stored, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, s, stored)
}

func TestLoginWithPasswordInvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginErr = autherrors.ErrInvalidCredentials

	err := f.controller.LoginWithPassword(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	require.Equal(t, auth.StateSignedOut, f.controller.State())
	require.Nil(t, f.controller.CurrentSession())

	// Not retried: user-initiated action fails once
	login, _, _ := f.backend.counts()
	require.Equal(t, 1, login)
}

func TestLoginFailsClosedWhenStoreUnavailable(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()
	f.store.SaveErr = errors.New("disk full")

	err := f.controller.LoginWithPassword(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, autherrors.ErrStorageUnavailable)
	require.Equal(t, auth.StateSignedOut, f.controller.State())
	require.Nil(t, f.controller.CurrentSession())
}

func TestRefreshPreservesIdentity(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()
	require.NoError(t, f.controller.LoginWithPassword(context.Background(), testEmail, testPassword))
	require.Equal(t, "T1", f.controller.CurrentSession().AccessToken)

	refreshed := testBundle()
	refreshed.Token = "T2"
	refreshed.RefreshToken = "R2"
	f.backend.refreshBundle = refreshed

	require.NoError(t, f.controller.Refresh(context.Background()))
	require.Equal(t, auth.StateSignedIn, f.controller.State())

	s := f.controller.CurrentSession()
	require.Equal(t, "T2", s.AccessToken)
	require.Equal(t, "R2", s.RefreshToken)
	require.Equal(t, testUserID, s.UserID)
	require.Equal(t, testEmail, s.Email)
	require.Equal(t, session.RoleEmployee, s.Role)
	require.Equal(t, "e1", s.EmployeeID)
}

func TestRefreshFailureClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()
	require.NoError(t, f.controller.LoginWithPassword(context.Background(), testEmail, testPassword))

	f.backend.refreshErr = autherrors.ErrRefreshFailed

	err := f.controller.Refresh(context.Background())
	require.ErrorIs(t, err, autherrors.ErrRefreshFailed)
	require.Equal(t, auth.StateSignedOut, f.controller.State())
	require.Nil(t, f.controller.CurrentSession())

	stored, loadErr := f.store.Load()
	require.NoError(t, loadErr)
	require.Nil(t, stored)

	// An invalid refresh token cannot become valid by retrying
	_, refresh, _ := f.backend.counts()
	require.Equal(t, 1, refresh)
}

func TestRefreshWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	err := f.controller.Refresh(context.Background())
	require.ErrorIs(t, err, autherrors.ErrNoSession)
}

func TestConcurrentRefreshSingleBackendCall(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()
	require.NoError(t, f.controller.LoginWithPassword(context.Background(), testEmail, testPassword))

	refreshed := testBundle()
	refreshed.Token = "T2"
	refreshed.RefreshToken = "R2"
	f.backend.refreshBundle = refreshed
	f.backend.refreshDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.controller.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	_, refresh, _ := f.backend.counts()
	require.Equal(t, 1, refresh)

	s := f.controller.CurrentSession()
	require.Equal(t, "T2", s.AccessToken)
	require.Equal(t, "R2", s.RefreshToken)
}

func TestConcurrentOperationsRejectedBusy(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()
	f.backend.loginHold = make(chan struct{})
	f.backend.loginStarted = make(chan struct{})
	started := f.backend.loginStarted

	done := make(chan error, 1)
	go func() {
		done <- f.controller.LoginWithPassword(context.Background(), testEmail, testPassword)
	}()

	<-started
	err := f.controller.LoginWithPassword(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, autherrors.ErrBusy)

	close(f.backend.loginHold)
	require.NoError(t, <-done)
}

func TestLogoutClearsEvenWhenBackendDown(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginBundle = testBundle()
	require.NoError(t, f.controller.LoginWithPassword(context.Background(), testEmail, testPassword))

	f.backend.logoutErr = autherrors.ErrNetwork

	require.NoError(t, f.controller.Logout(context.Background()))
	require.Equal(t, auth.StateSignedOut, f.controller.State())
	require.Nil(t, f.controller.CurrentSession())

	stored, err := f.store.Load()
	require.NoError(t, err)
	require.Nil(t, stored)

	require.Equal(t, 1, f.idp.ClearCalls())
}

func TestStartupLoadsStoredSession(t *testing.T) {
	store := storefake.NewFakeStore()
	require.NoError(t, store.Save(&session.Session{
		AccessToken: "T1", RefreshToken: "R1", UserID: testUserID, Email: testEmail, Role: session.RoleEmployee,
	}))

	controller, err := auth.New(store, &fakeBackend{}, providerfake.NewFakeProvider())
	require.NoError(t, err)

	require.Equal(t, auth.StateSignedIn, controller.State())
	require.Equal(t, "T1", controller.CurrentSession().AccessToken)
}

func TestStartupIgnoresExpiredStoredSession(t *testing.T) {
	store := storefake.NewFakeStore()
	require.NoError(t, store.Save(&session.Session{
		AccessToken: "T1", RefreshToken: "R1", UserID: testUserID, Email: testEmail,
		Role: session.RoleEmployee, ExpiresAt: testNow.Add(-time.Hour),
	}))

	controller, err := auth.New(store, &fakeBackend{}, providerfake.NewFakeProvider(),
		auth.WithNowTime(func() time.Time { return testNow }))
	require.NoError(t, err)

	require.Equal(t, auth.StateSignedOut, controller.State())
	require.Nil(t, controller.CurrentSession())
}

func TestStartupFailsClosedWhenStoreUnavailable(t *testing.T) {
	store := storefake.NewFakeStore()
	store.LoadErr = errors.New("keychain locked")

	controller, err := auth.New(store, &fakeBackend{}, providerfake.NewFakeProvider())
	require.NoError(t, err)

	require.Equal(t, auth.StateSignedOut, controller.State())
	require.Nil(t, controller.CurrentSession())
}

func TestOAuthSilentPreferred(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.SilentEmail = testEmail
	f.backend.tokenInfoBundle = testBundle()

	require.NoError(t, f.controller.LoginWithOAuth(context.Background()))

	require.Equal(t, 1, f.idp.SilentCalls())
	require.Equal(t, 0, f.idp.InteractiveCalls())
	require.Equal(t, "T1", f.controller.CurrentSession().AccessToken)
}

func TestOAuthInteractiveFallbackOnNoCachedAccount(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.SilentErr = provider.ErrNoCachedAccount
	f.idp.InteractiveEmail = testEmail
	f.backend.tokenInfoBundle = testBundle()

	require.NoError(t, f.controller.LoginWithOAuth(context.Background()))
	require.Equal(t, 1, f.idp.InteractiveCalls())
}

func TestOAuthNoFallbackOnGenericSilentFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.SilentErr = errors.New("provider outage")

	err := f.controller.LoginWithOAuth(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, f.idp.InteractiveCalls())
	require.Equal(t, auth.StateSignedOut, f.controller.State())
}

func TestOAuthCancelled(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.SilentErr = provider.ErrNoCachedAccount
	f.idp.InteractiveErr = provider.ErrCancelled

	err := f.controller.LoginWithOAuth(context.Background())
	require.ErrorIs(t, err, autherrors.ErrOAuthCancelled)
	require.Equal(t, auth.StateSignedOut, f.controller.State())
	require.Nil(t, f.controller.CurrentSession())

	stored, loadErr := f.store.Load()
	require.NoError(t, loadErr)
	require.Nil(t, stored)
}

func TestCompleteOAuthRedirectInlineBundle(t *testing.T) {
	f := setupTestFixture(t)

	err := f.controller.CompleteOAuthRedirect(context.Background(), redirect.Result{
		Matched:  true,
		Artifact: &redirect.Artifact{Bundle: testBundle()},
	})
	require.NoError(t, err)
	require.Equal(t, "T1", f.controller.CurrentSession().AccessToken)
	require.Equal(t, auth.StateSignedIn, f.controller.State())
}

func TestCompleteOAuthRedirectExchangeKey(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.tokenInfoBundle = testBundle()

	err := f.controller.CompleteOAuthRedirect(context.Background(), redirect.Result{
		Matched:  true,
		Artifact: &redirect.Artifact{ExchangeEmail: testEmail},
	})
	require.NoError(t, err)
	require.Equal(t, testUserID, f.controller.CurrentSession().UserID)
}

func TestCompleteOAuthRedirectMalformed(t *testing.T) {
	f := setupTestFixture(t)

	err := f.controller.CompleteOAuthRedirect(context.Background(), redirect.Result{
		Matched: true,
		Err:     autherrors.ErrMalformedRedirect,
	})
	require.ErrorIs(t, err, autherrors.ErrMalformedRedirect)
	require.Nil(t, f.controller.CurrentSession())

	stored, loadErr := f.store.Load()
	require.NoError(t, loadErr)
	require.Nil(t, stored)
}

func TestOnChangeSequence(t *testing.T) {
	var states []auth.State
	f := setupTestFixture(t, auth.WithOnChange(func(s auth.State) {
		states = append(states, s)
	}))
	f.backend.loginBundle = testBundle()

	require.NoError(t, f.controller.LoginWithPassword(context.Background(), testEmail, testPassword))
	require.Equal(t, []auth.State{auth.StateAuthenticating, auth.StateSignedIn}, states)
}
