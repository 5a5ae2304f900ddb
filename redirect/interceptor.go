// Package redirect detects the identity provider's redirect back to the
// application and extracts what it carries. On mobile the host feeds every
// navigation of the embedded browsing surface through Intercept; on web the
// CallbackHandler serves the dedicated callback route.
package redirect

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/workforcehub/go-session/authapi"
	autherrors "github.com/workforcehub/go-session/internal/errors"
)

// Artifact is what a matched redirect carried: either a short-lived
// exchange key (the provider-verified email) or the full token bundle
// passed inline as query parameters. Exactly one of the fields is set.
type Artifact struct {
	ExchangeEmail string
	Bundle        *authapi.TokenBundle
}

// Result is produced once per navigation and consumed immediately; it is
// never persisted.
type Result struct {
	RawURL   string
	Artifact *Artifact
	Matched  bool
	Err      error // set when the redirect matched but was unusable
}

// LoadObserver toggles the host's loading indicator around page loads in
// the embedded browsing surface. Either callback may be nil.
type LoadObserver struct {
	OnStart  func()
	OnFinish func()
}

// Interceptor matches navigations against the configured redirect target.
// Matching requires the full trusted origin plus the exact redirect path;
// substring and prefix matches are rejected, so a hostile URL that merely
// embeds the redirect path somewhere inside it never extracts a token.
type Interceptor struct {
	scheme       string
	host         string
	redirectPath string
	observer     LoadObserver
}

// Option defines a function type to modify the Interceptor instance.
type Option func(*Interceptor)

// WithLoadObserver installs the loading-indicator callbacks.
func WithLoadObserver(observer LoadObserver) Option {
	return func(i *Interceptor) {
		i.observer = observer
	}
}

// New builds an interceptor for the given trusted origin (scheme+host) and
// exact redirect path.
func New(trustedOrigin, redirectPath string, options ...Option) (*Interceptor, error) {
	origin, err := url.Parse(trustedOrigin)
	if err != nil {
		return nil, errors.Wrap(err, "[redirect.New] trusted origin")
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, errors.New("[redirect.New] trusted origin must include scheme and host")
	}
	if redirectPath == "" || !strings.HasPrefix(redirectPath, "/") {
		return nil, errors.New("[redirect.New] redirect path must be absolute")
	}

	interceptor := &Interceptor{
		scheme:       strings.ToLower(origin.Scheme),
		host:         strings.ToLower(origin.Host),
		redirectPath: redirectPath,
	}

	for _, opt := range options {
		opt(interceptor)
	}

	return interceptor, nil
}

// Intercept decides whether the navigated-to URL is the provider's redirect
// back to the application. A Matched result tells the host not to render
// the target page; an unmatched one lets navigation continue.
func (i *Interceptor) Intercept(rawURL string) Result {
	result := Result{RawURL: rawURL}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return result
	}
	if !strings.EqualFold(parsed.Scheme, i.scheme) || !strings.EqualFold(parsed.Host, i.host) {
		return result
	}
	if parsed.Path != i.redirectPath {
		return result
	}

	result.Matched = true
	result.Artifact, result.Err = extract(parsed.Query())
	return result
}

// PageStarted reports a page-load start inside the embedded surface. Called
// for every navigation, matched or not.
func (i *Interceptor) PageStarted() {
	if i.observer.OnStart != nil {
		i.observer.OnStart()
	}
}

// PageFinished reports a page-load finish inside the embedded surface.
func (i *Interceptor) PageFinished() {
	if i.observer.OnFinish != nil {
		i.observer.OnFinish()
	}
}

// extract pulls the artifact out of the redirect's query parameters.
func extract(q url.Values) (*Artifact, error) {
	if errParam := q.Get("error"); errParam != "" {
		if errParam == "access_denied" {
			return nil, errors.Wrap(autherrors.ErrOAuthCancelled, "[redirect.extract] provider denied")
		}
		return nil, errors.Wrapf(autherrors.ErrMalformedRedirect, "[redirect.extract] provider error %q", errParam)
	}

	// Inline bundle variant: the backend passed the whole token bundle as
	// individual query parameters.
	if token := q.Get("token"); token != "" {
		if q.Get("userId") == "" || q.Get("email") == "" {
			return nil, errors.Wrap(autherrors.ErrMalformedRedirect, "[redirect.extract] bundle missing identity fields")
		}
		return &Artifact{
			Bundle: &authapi.TokenBundle{
				Token:        token,
				RefreshToken: q.Get("refreshToken"),
				UserID:       q.Get("userId"),
				Email:        q.Get("email"),
				Role:         q.Get("role"),
				EmployeeID:   q.Get("employeeId"),
				FirstName:    q.Get("firstName"),
				LastName:     q.Get("lastName"),
			},
		}, nil
	}

	// Exchange-key variant: only the provider-verified email comes back and
	// the client trades it for tokens at the backend.
	if email := q.Get("email"); email != "" {
		return &Artifact{ExchangeEmail: email}, nil
	}

	return nil, errors.Wrap(autherrors.ErrMalformedRedirect, "[redirect.extract] no artifact present")
}
