package sessionend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/workforcehub/go-session/session"
)

const beaconTimeout = 2 * time.Second

// Notifier fires the unordered, fire-and-forget logout beacon when a real
// close is judged, then clears local token storage. Delivery is explicitly
// not guaranteed; failure is logged at debug and never user-visible.
type Notifier struct {
	endpoint   string
	store      session.Store
	httpClient *http.Client
}

// NewNotifier builds a notifier posting to endpoint (the backend logout
// URL) and clearing store afterwards.
func NewNotifier(endpoint string, store session.Store) (*Notifier, error) {
	if endpoint == "" {
		return nil, errors.New("[sessionend.NewNotifier] endpoint is required")
	}
	if store == nil {
		return nil, errors.New("[sessionend.NewNotifier] store is required")
	}

	return &Notifier{
		endpoint: endpoint,
		store:    store,
		httpClient: &http.Client{
			Timeout: beaconTimeout,
		},
	}, nil
}

// SessionEnded sends the beacon and clears the store. It returns before the
// beacon completes; teardown is never blocked on delivery.
func (n *Notifier) SessionEnded(userID string) {
	beaconID := uuid.New().String()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()

		target := fmt.Sprintf("%s?userId=%s", n.endpoint, url.QueryEscape(userID))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
		if err != nil {
			log.Debug().Err(err).Msg("session-end beacon build failed")
			return
		}
		req.Header.Set("X-Beacon-ID", beaconID)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			log.Debug().Err(err).Str("beacon_id", beaconID).Msg("session-end beacon send failed")
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if err := n.store.Clear(); err != nil {
		log.Debug().Err(err).Msg("session-end store clear failed")
	}
}
