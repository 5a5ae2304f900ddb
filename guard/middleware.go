package guard

import (
	"context"
	"net/http"

	"github.com/workforcehub/go-session/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the session snapshot for allowed requests
const ContextKeySession ContextKey = "session"

// SessionLoader produces the current session for a request, or nil when
// signed out.
type SessionLoader func(r *http.Request) *session.Session

// Middleware applies the guard to every request. Denied requests are
// redirected; allowed ones carry the session snapshot in their context.
func (g *Guard) Middleware(loadSession SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := loadSession(r)

			decision := g.Evaluate(s, r.URL.Path)
			if !decision.Allow {
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}

			if s != nil {
				r = r.WithContext(context.WithValue(r.Context(), ContextKeySession, s))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the session snapshot the middleware attached,
// or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ContextKeySession).(*session.Session)
	return s
}
