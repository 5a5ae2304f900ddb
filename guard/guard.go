// Package guard decides whether the current session may enter a requested
// destination. Evaluate is a pure function of (session, path) against a
// static rule table; it holds no state of its own.
package guard

import (
	"strings"
	"time"

	"github.com/workforcehub/go-session/session"
)

// Rule protects every path under Prefix. An empty Roles slice means any
// authenticated role is enough.
type Rule struct {
	Prefix string
	Roles  []session.Role
}

// Decision is the output of one evaluation. When Allow is false, RedirectTo
// names where to send the user instead.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Guard evaluates navigation against a fixed rule table.
type Guard struct {
	rules      []Rule
	signInPath string
	landings   map[session.Role]string
	nowTime    func() time.Time
}

// Option defines a function type to modify the Guard instance.
type Option func(*Guard)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Guard) {
		g.nowTime = nowFunc
	}
}

// New builds a guard. landings maps each role to its post-sign-in landing
// destination; paths not covered by any rule are public.
func New(rules []Rule, signInPath string, landings map[session.Role]string, options ...Option) *Guard {
	g := &Guard{
		rules:      rules,
		signInPath: signInPath,
		landings:   landings,
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(g)
	}

	return g
}

// Evaluate decides allow/redirect for the requested path. An expired
// session is denied even though it still carries an access token, and an
// unauthorized role is treated identically to being unauthenticated: both
// land on sign-in.
func (g *Guard) Evaluate(s *session.Session, path string) Decision {
	authenticated := s.Authenticated() && !s.IsExpired(g.nowTime())

	// Already signed in and asking for the sign-in page: forward to the
	// role's landing destination instead of rendering sign-in again.
	if path == g.signInPath {
		if authenticated {
			return Decision{Allow: false, RedirectTo: g.landing(s.Role)}
		}
		return Decision{Allow: true}
	}

	rule, protected := g.match(path)
	if !protected {
		return Decision{Allow: true}
	}

	if !authenticated {
		return Decision{Allow: false, RedirectTo: g.signInPath}
	}

	if len(rule.Roles) > 0 && !hasRole(rule.Roles, s.Role) {
		return Decision{Allow: false, RedirectTo: g.signInPath}
	}

	return Decision{Allow: true}
}

// match returns the longest-prefix rule covering path. Prefixes bind at
// path-segment boundaries, so a rule for /app does not capture /apple.
func (g *Guard) match(path string) (Rule, bool) {
	var best Rule
	found := false
	for _, rule := range g.rules {
		if path != rule.Prefix && !strings.HasPrefix(path, rule.Prefix+"/") {
			continue
		}
		if !found || len(rule.Prefix) > len(best.Prefix) {
			best = rule
			found = true
		}
	}
	return best, found
}

func (g *Guard) landing(role session.Role) string {
	if path, ok := g.landings[role]; ok {
		return path
	}
	return "/"
}

func hasRole(roles []session.Role, role session.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
