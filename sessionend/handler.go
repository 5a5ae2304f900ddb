package sessionend

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// BeaconHandler receives session-end beacons on the server side. Beacon
// transports cannot read responses, so it acknowledges with 204 no matter
// what and invalidation runs through the supplied callback.
func BeaconHandler(invalidate func(userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID != "" && invalidate != nil {
			invalidate(userID)
		}
		log.Debug().Str("user_id", userID).Str("beacon_id", r.Header.Get("X-Beacon-ID")).Msg("session-end beacon received")
		w.WriteHeader(http.StatusNoContent)
	}
}
