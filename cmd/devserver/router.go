package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/workforcehub/go-session/auth"
	"github.com/workforcehub/go-session/authapi"
	"github.com/workforcehub/go-session/guard"
	"github.com/workforcehub/go-session/internal/config"
	"github.com/workforcehub/go-session/provider"
	"github.com/workforcehub/go-session/redirect"
	"github.com/workforcehub/go-session/session"
	"github.com/workforcehub/go-session/session/cookiestore"
	"github.com/workforcehub/go-session/sessionend"
)

var roleLandings = map[session.Role]string{
	session.RoleEmployee:   "/app",
	session.RoleHRAdmin:    "/hr",
	session.RoleSuperAdmin: "/hr",
}

var guardRules = []guard.Rule{
	{Prefix: "/app"},
	{Prefix: "/hr", Roles: []session.Role{session.RoleHRAdmin, session.RoleSuperAdmin}},
}

func newRouter(c config.Config) (http.Handler, error) {
	apiClient, err := authapi.New(c.GetBackendBaseURL(), authapi.WithTimeout(c.GetRequestTimeout()))
	if err != nil {
		return nil, err
	}

	idp, err := newProvider(c)
	if err != nil {
		return nil, err
	}

	interceptor, err := redirect.New(c.GetTrustedOrigin(), c.GetRedirectPath())
	if err != nil {
		return nil, err
	}

	routeGuard := guard.New(guardRules, c.GetSignInPath(), roleLandings)

	// One controller per request: on the web the cookie is the store, so
	// the controller's lifetime is the request's.
	controllerFor := func(w http.ResponseWriter, r *http.Request) (*auth.SessionController, error) {
		return auth.New(cookiestore.New(w, r), apiClient, idp)
	}

	loadSession := func(r *http.Request) *session.Session {
		s, err := cookiestore.New(nil, r).Load()
		if err != nil {
			log.Debug().Err(err).Msg("session cookie unreadable, treating as signed out")
			return nil
		}
		return s
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get(c.GetSignInPath(), signInPage(routeGuard, loadSession))
	r.Post(c.GetSignInPath(), signInSubmit(controllerFor))
	r.Post("/logout", logoutSubmit(controllerFor, c.GetSignInPath()))
	r.Post("/refresh", refreshSubmit(controllerFor, c.GetSignInPath()))

	// The callback completion needs the request's own cookie store, so the
	// handler builds a controller per request.
	r.Get(c.GetRedirectPath(), func(w http.ResponseWriter, r *http.Request) {
		interceptor.CallbackHandler(func(ctx context.Context, result redirect.Result) (string, error) {
			controller, err := controllerFor(w, r)
			if err != nil {
				return "", err
			}
			if err := controller.CompleteOAuthRedirect(ctx, result); err != nil {
				return "", err
			}
			return landingFor(controller.CurrentSession()), nil
		}, c.GetSignInPath())(w, r)
	})

	r.Post("/session-end", sessionend.BeaconHandler(func(userID string) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
			defer cancel()
			if err := apiClient.Logout(ctx, userID); err != nil {
				log.Debug().Err(err).Str("user_id", userID).Msg("beacon-driven logout notify failed")
			}
		}()
	}))

	r.Group(func(r chi.Router) {
		r.Use(routeGuard.Middleware(loadSession))
		r.Get("/app", landingPage("Employee home"))
		r.Get("/hr", landingPage("HR administration"))
	})

	return r, nil
}

// unconfiguredProvider stands in when no OIDC client ID is configured.
type unconfiguredProvider struct{}

func (unconfiguredProvider) SilentSignIn(context.Context) (string, error) {
	return "", provider.ErrNoCachedAccount
}

func (unconfiguredProvider) InteractiveSignIn(context.Context) (string, error) {
	return "", fmt.Errorf("single sign-on is not configured")
}

func (unconfiguredProvider) ClearCache(context.Context) error {
	return nil
}

func newProvider(c config.Config) (provider.Provider, error) {
	clientID := c.GetProviderClientID()
	if clientID == "" {
		log.Info().Msg("OIDC_CLIENT_ID not set, single sign-on disabled")
		return unconfiguredProvider{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
	defer cancel()

	return provider.NewOIDC(ctx, c.GetIssuerURL(), clientID, c.GetProviderRedirectURL(), c.GetProviderScopes(),
		func(_ context.Context, authURL string) error {
			log.Info().Str("url", authURL).Msg("open this URL to sign in")
			return nil
		})
}

func landingFor(s *session.Session) string {
	if s == nil {
		return "/"
	}
	if path, ok := roleLandings[s.Role]; ok {
		return path
	}
	return "/"
}

func signInPage(routeGuard *guard.Guard, loadSession func(*http.Request) *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d := routeGuard.Evaluate(loadSession(r), r.URL.Path); !d.Allow {
			http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<form method="post"><input name="email"><input name="password" type="password"><button>Sign in</button></form>`)
	}
}

func signInSubmit(controllerFor func(http.ResponseWriter, *http.Request) (*auth.SessionController, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller, err := controllerFor(w, r)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if err := controller.LoginWithPassword(r.Context(), r.FormValue("email"), r.FormValue("password")); err != nil {
			http.Redirect(w, r, r.URL.Path+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, landingFor(controller.CurrentSession()), http.StatusSeeOther)
	}
}

func logoutSubmit(controllerFor func(http.ResponseWriter, *http.Request) (*auth.SessionController, error), signInPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller, err := controllerFor(w, r)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		_ = controller.Logout(r.Context())
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
	}
}

func refreshSubmit(controllerFor func(http.ResponseWriter, *http.Request) (*auth.SessionController, error), signInPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller, err := controllerFor(w, r)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if err := controller.Refresh(r.Context()); err != nil {
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func landingPage(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := guard.SessionFromContext(r.Context())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>%s</h1><p>%s (%s)</p>", title, s.Email, s.Role)
	}
}
