package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tvguide/pkg/authsdk"
	"github.com/aussiebroadwan/tvguide/pkg/httpx"
)

// LivezHandler answers as long as the guide process can serve at all. It
// never touches the directory; /readyz covers that.
//
//	@Summary		Guide process liveness
//	@Description	Returns 200 with uptime and build version whenever the tvguide process is serving, even while its directory is down.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(started time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(started).Round(time.Second).String(),
			Version: version,
		})
	}
}
