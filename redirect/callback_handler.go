package redirect

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// CompleteFunc consumes the artifact of a matched redirect and returns the
// path to land the user on. Returning an error sends the user back to
// sign-in with no token applied.
type CompleteFunc func(ctx context.Context, result Result) (string, error)

// CallbackHandler serves the web client's dedicated callback route. The
// route itself is the origin/path check: the host framework only mounts it
// at the configured redirect path, so extraction runs directly on the
// incoming query string.
func (i *Interceptor) CallbackHandler(complete CompleteFunc, signInPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := Result{RawURL: r.URL.String(), Matched: true}
		result.Artifact, result.Err = extract(r.URL.Query())

		landing, err := complete(r.Context(), result)
		if err != nil {
			// Cancelled and malformed redirects fail silently to sign-in
			log.Debug().Err(err).Msg("oauth redirect not applied")
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, landing, http.StatusSeeOther)
	}
}
