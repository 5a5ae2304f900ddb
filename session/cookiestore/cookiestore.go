// Package cookiestore backs the session Store with an HttpOnly cookie,
// which is the strongest storage a web client has available: the token
// bundle never becomes readable by page script.
package cookiestore

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	autherrors "github.com/workforcehub/go-session/internal/errors"
	"github.com/workforcehub/go-session/session"
)

var _ session.Store = (*CookieStore)(nil)

const cookieName = "wfh_session"

// CookieStore is bound to a single request/response pair and lives for one
// request. Construct a fresh one per request.
type CookieStore struct {
	w http.ResponseWriter
	r *http.Request
}

func New(w http.ResponseWriter, r *http.Request) *CookieStore {
	return &CookieStore{w: w, r: r}
}

// Save writes the whole session as one cookie value, so a reader always
// sees a complete token bundle or none at all.
func (cs *CookieStore) Save(s *session.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return errors.Wrapf(autherrors.ErrStorageUnavailable, "[CookieStore.Save] marshal: %v", err)
	}

	maxAge := 0 // session cookie when expiry is untracked
	if !s.ExpiresAt.IsZero() {
		maxAge = int(time.Until(s.ExpiresAt).Seconds())
	}

	http.SetCookie(cs.w, &http.Cookie{
		Name:     cookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   cs.r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	return nil
}

// Load returns (nil, nil) when the cookie is absent. A cookie that cannot
// be decoded counts as an unavailable backing medium, not as a session.
func (cs *CookieStore) Load() (*session.Session, error) {
	cookie, err := cs.r.Cookie(cookieName)
	if err != nil {
		return nil, nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, errors.Wrapf(autherrors.ErrStorageUnavailable, "[CookieStore.Load] decode: %v", err)
	}

	var s session.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, errors.Wrapf(autherrors.ErrStorageUnavailable, "[CookieStore.Load] unmarshal: %v", err)
	}
	return &s, nil
}

// Clear expires the cookie. Clearing when no cookie exists is a no-op.
func (cs *CookieStore) Clear() error {
	http.SetCookie(cs.w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   cs.r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}
