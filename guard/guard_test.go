package guard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/workforcehub/go-session/guard"
	"github.com/workforcehub/go-session/session"
)

const signInPath = "/login"

var (
	testNow  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	landings = map[session.Role]string{
		session.RoleEmployee: "/app",
		session.RoleHRAdmin:  "/hr",
	}
	rules = []guard.Rule{
		{Prefix: "/app"},
		{Prefix: "/hr", Roles: []session.Role{session.RoleHRAdmin, session.RoleSuperAdmin}},
		{Prefix: "/hr/reports", Roles: []session.Role{session.RoleSuperAdmin}},
	}
)

func newGuard(t *testing.T) *guard.Guard {
	t.Helper()
	return guard.New(rules, signInPath, landings, guard.WithNowTime(func() time.Time { return testNow }))
}

func employeeSession() *session.Session {
	return &session.Session{
		AccessToken: "T1",
		UserID:      "u1",
		Role:        session.RoleEmployee,
		ExpiresAt:   testNow.Add(time.Hour),
	}
}

func hrAdminSession() *session.Session {
	s := employeeSession()
	s.Role = session.RoleHRAdmin
	return s
}

func TestEvaluateDeniesSignedOut(t *testing.T) {
	g := newGuard(t)

	decision := g.Evaluate(nil, "/app/profile")
	require.False(t, decision.Allow)
	require.Equal(t, signInPath, decision.RedirectTo)
}

func TestEvaluateRoleTable(t *testing.T) {
	g := newGuard(t)

	// HR-only path: employee denied, admin allowed
	decision := g.Evaluate(employeeSession(), "/hr/departments")
	require.False(t, decision.Allow)
	require.Equal(t, signInPath, decision.RedirectTo)

	decision = g.Evaluate(hrAdminSession(), "/hr/departments")
	require.True(t, decision.Allow)

	// Any-authenticated path
	decision = g.Evaluate(employeeSession(), "/app/attendance")
	require.True(t, decision.Allow)
}

func TestEvaluateLongestPrefixWins(t *testing.T) {
	g := newGuard(t)

	// /hr/reports narrows /hr to super admins only
	decision := g.Evaluate(hrAdminSession(), "/hr/reports/annual")
	require.False(t, decision.Allow)

	super := hrAdminSession()
	super.Role = session.RoleSuperAdmin
	decision = g.Evaluate(super, "/hr/reports/annual")
	require.True(t, decision.Allow)
}

func TestEvaluateExpiredSessionDenied(t *testing.T) {
	g := newGuard(t)

	expired := employeeSession()
	expired.ExpiresAt = testNow.Add(-time.Minute)
	require.NotEmpty(t, expired.AccessToken) // expired but still carrying a token

	decision := g.Evaluate(expired, "/app/attendance")
	require.False(t, decision.Allow)
	require.Equal(t, signInPath, decision.RedirectTo)
}

func TestEvaluateUnprotectedPathAllowed(t *testing.T) {
	g := newGuard(t)

	require.True(t, g.Evaluate(nil, "/about").Allow)
	require.True(t, g.Evaluate(employeeSession(), "/about").Allow)
}

func TestEvaluatePrefixBindsAtSegmentBoundary(t *testing.T) {
	g := newGuard(t)

	// /apple shares a string prefix with the /app rule but is a different
	// path entirely, so it stays public.
	require.True(t, g.Evaluate(nil, "/apple").Allow)
	require.True(t, g.Evaluate(nil, "/hrx/reports").Allow)

	// The rule still covers its own root and everything under it
	require.False(t, g.Evaluate(nil, "/app").Allow)
	require.False(t, g.Evaluate(nil, "/app/attendance").Allow)
}

func TestEvaluateSignInForwardsAuthenticated(t *testing.T) {
	g := newGuard(t)

	decision := g.Evaluate(employeeSession(), signInPath)
	require.False(t, decision.Allow)
	require.Equal(t, "/app", decision.RedirectTo)

	decision = g.Evaluate(hrAdminSession(), signInPath)
	require.False(t, decision.Allow)
	require.Equal(t, "/hr", decision.RedirectTo)

	// Signed out renders sign-in normally
	require.True(t, g.Evaluate(nil, signInPath).Allow)

	// An expired session is signed out for this purpose too
	expired := employeeSession()
	expired.ExpiresAt = testNow.Add(-time.Minute)
	require.True(t, g.Evaluate(expired, signInPath).Allow)
}

func TestEvaluateUnknownRoleLandsOnRoot(t *testing.T) {
	g := newGuard(t)

	super := employeeSession()
	super.Role = session.RoleSuperAdmin // no landing configured
	decision := g.Evaluate(super, signInPath)
	require.False(t, decision.Allow)
	require.Equal(t, "/", decision.RedirectTo)
}
