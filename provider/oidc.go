package provider

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// LaunchFunc opens the authorization URL in whatever browsing surface the
// host platform has (embedded WebView on mobile, window.location on web).
// It must return promptly; the flow completes later via
// CompleteAuthorization.
type LaunchFunc func(ctx context.Context, authURL string) error

var _ Provider = (*OIDCProvider)(nil)

// OIDCProvider implements Provider against any OIDC issuer (in production,
// the Microsoft identity platform) using the authorization code flow with
// PKCE.
type OIDCProvider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	launch      LaunchFunc

	lock    sync.Mutex
	pending *pendingFlow
	cached  *cachedAccount
}

type pendingFlow struct {
	state        string
	nonce        string
	codeVerifier string
	result       chan flowResult
}

type flowResult struct {
	code string
	err  error
}

type cachedAccount struct {
	email string
	token *oauth2.Token
}

// NewOIDC discovers the issuer's endpoints and returns a provider. launch
// is invoked with the authorization URL when an interactive sign-in starts.
func NewOIDC(ctx context.Context, issuerURL, clientID, redirectURL string, scopes []string, launch LaunchFunc) (*OIDCProvider, error) {
	if clientID == "" {
		return nil, errors.New("[provider.NewOIDC] clientID is required")
	}
	if launch == nil {
		return nil, errors.New("[provider.NewOIDC] launch func is required")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[provider.NewOIDC] issuer discovery")
	}

	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	return &OIDCProvider{
		oauthConfig: &oauth2.Config{
			ClientID:    clientID,
			Endpoint:    oidcProvider.Endpoint(),
			RedirectURL: redirectURL,
			Scopes:      scopes,
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
		launch:   launch,
	}, nil
}

// SilentSignIn refreshes the cached provider token without UI.
func (p *OIDCProvider) SilentSignIn(ctx context.Context) (string, error) {
	p.lock.Lock()
	cached := p.cached
	p.lock.Unlock()

	if cached == nil {
		return "", ErrNoCachedAccount
	}

	// TokenSource refreshes only when the cached token has expired.
	refreshed, err := p.oauthConfig.TokenSource(ctx, cached.token).Token()
	if err != nil {
		return "", errors.Wrap(err, "[OIDCProvider.SilentSignIn] token refresh")
	}

	p.lock.Lock()
	p.cached = &cachedAccount{email: cached.email, token: refreshed}
	p.lock.Unlock()

	return cached.email, nil
}

// InteractiveSignIn launches the provider UI and blocks until the redirect
// delivers an authorization code, the user dismisses the surface, or ctx is
// cancelled.
func (p *OIDCProvider) InteractiveSignIn(ctx context.Context) (string, error) {
	flow := &pendingFlow{
		state:        generateRandomString(32),
		nonce:        generateRandomString(32),
		codeVerifier: generateRandomString(32),
		result:       make(chan flowResult, 1),
	}

	p.lock.Lock()
	if p.pending != nil {
		p.lock.Unlock()
		return "", errors.New("[OIDCProvider.InteractiveSignIn] flow already in progress")
	}
	p.pending = flow
	p.lock.Unlock()

	defer func() {
		p.lock.Lock()
		p.pending = nil
		p.lock.Unlock()
	}()

	authURL := p.oauthConfig.AuthCodeURL(flow.state,
		oauth2.SetAuthURLParam("nonce", flow.nonce),
		oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(flow.codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	if err := p.launch(ctx, authURL); err != nil {
		return "", errors.Wrap(err, "[OIDCProvider.InteractiveSignIn] launch")
	}

	select {
	case <-ctx.Done():
		return "", ErrCancelled
	case res := <-flow.result:
		if res.err != nil {
			return "", res.err
		}
		return p.completeExchange(ctx, flow, res.code)
	}
}

// CompleteAuthorization delivers the provider's redirect back into the
// in-flight interactive flow. The host's redirect interceptor calls this
// with the extracted code and state.
func (p *OIDCProvider) CompleteAuthorization(code, state string) error {
	p.lock.Lock()
	flow := p.pending
	p.lock.Unlock()

	if flow == nil {
		return errors.New("[OIDCProvider.CompleteAuthorization] no flow in progress")
	}
	if state != flow.state {
		flow.result <- flowResult{err: errors.New("[OIDCProvider.CompleteAuthorization] state mismatch")}
		return errors.New("[OIDCProvider.CompleteAuthorization] state mismatch")
	}

	flow.result <- flowResult{code: code}
	return nil
}

// Dismiss signals that the user closed the provider UI without completing
// authentication.
func (p *OIDCProvider) Dismiss() {
	p.lock.Lock()
	flow := p.pending
	p.lock.Unlock()

	if flow != nil {
		flow.result <- flowResult{err: ErrCancelled}
	}
}

// ClearCache drops the cached account.
func (p *OIDCProvider) ClearCache(_ context.Context) error {
	p.lock.Lock()
	p.cached = nil
	p.lock.Unlock()
	return nil
}

func (p *OIDCProvider) completeExchange(ctx context.Context, flow *pendingFlow, code string) (string, error) {
	oauth2Token, err := p.oauthConfig.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", flow.codeVerifier),
	)
	if err != nil {
		return "", errors.Wrap(err, "[OIDCProvider] code exchange")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", errors.New("[OIDCProvider] no ID token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", errors.Wrap(err, "[OIDCProvider] ID token verification")
	}

	var claims struct {
		Nonce string `json:"nonce"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", errors.Wrap(err, "[OIDCProvider] extract claims")
	}

	// Nonce check prevents replay of a captured redirect
	if claims.Nonce != flow.nonce {
		return "", errors.New("[OIDCProvider] nonce mismatch")
	}
	if claims.Email == "" {
		return "", errors.New("[OIDCProvider] ID token has no email claim")
	}

	p.lock.Lock()
	p.cached = &cachedAccount{email: claims.Email, token: oauth2Token}
	p.lock.Unlock()

	return claims.Email, nil
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
