// Package authapi wraps the WorkforceHub backend auth endpoints. It is the
// one place transport failures are turned into the session error taxonomy;
// callers never see a raw *url.Error.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	autherrors "github.com/workforcehub/go-session/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Client calls the backend auth endpoints with bounded timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing
// and for hosts that need custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request. On timeout the caller sees ErrNetwork,
// never a silent wait.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a backend auth client rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[authapi.New] baseURL is required")
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token bundle. A 4xx rejection maps to
// ErrInvalidCredentials, any other non-2xx to ErrServer, transport faults
// to ErrNetwork.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenBundle, error) {
	var bundle TokenBundle
	status, err := c.postJSON(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &bundle)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrNetwork, "[Client.Login] %v", err)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest:
		return nil, errors.Wrapf(autherrors.ErrInvalidCredentials, "[Client.Login] status %d", status)
	case status < 200 || status > 299:
		return nil, errors.Wrapf(autherrors.ErrServer, "[Client.Login] status %d", status)
	}
	return &bundle, nil
}

// RefreshToken exchanges the refresh token for a new bundle. Any rejection
// maps to ErrRefreshFailed: an invalid refresh token cannot become valid by
// retrying, so callers are expected to clear the session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	var bundle TokenBundle
	status, err := c.postJSON(ctx, "/auth/refresh-token", refreshRequest{RefreshToken: refreshToken}, &bundle)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrNetwork, "[Client.RefreshToken] %v", err)
	}
	if status < 200 || status > 299 {
		return nil, errors.Wrapf(autherrors.ErrRefreshFailed, "[Client.RefreshToken] status %d", status)
	}
	return &bundle, nil
}

// Logout notifies the backend that the session ended. Best effort: callers
// ignore the result beyond logging.
func (c *Client) Logout(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("/auth/logout?userId=%s", url.QueryEscape(userID))
	status, err := c.postJSON(ctx, endpoint, nil, nil)
	if err != nil {
		return errors.Wrapf(autherrors.ErrNetwork, "[Client.Logout] %v", err)
	}
	if status < 200 || status > 299 {
		return errors.Wrapf(autherrors.ErrServer, "[Client.Logout] status %d", status)
	}
	return nil
}

// OAuthTokenInfo exchanges a provider-verified email for the application's
// own token bundle.
func (c *Client) OAuthTokenInfo(ctx context.Context, email string) (*TokenBundle, error) {
	endpoint := fmt.Sprintf("/auth/oauth2/token-info/%s", url.PathEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.OAuthTokenInfo] build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrNetwork, "[Client.OAuthTokenInfo] %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(autherrors.ErrServer, "[Client.OAuthTokenInfo] status %d", resp.StatusCode)
	}

	var bundle TokenBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, errors.Wrapf(autherrors.ErrServer, "[Client.OAuthTokenInfo] decode: %v", err)
	}
	return &bundle, nil
}

// postJSON sends body as JSON and decodes a 2xx response into out when out
// is non-nil. Returns the HTTP status; a transport failure returns err.
func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, errors.Wrap(err, "decode response")
		}
	} else {
		// Drain so the connection can be reused
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			log.Debug().Err(err).Str("endpoint", endpoint).Msg("drain response body")
		}
	}

	return resp.StatusCode, nil
}
