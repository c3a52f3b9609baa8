package http

import (
	"net/http"
	"time"

	"github.com/tunegate/tunegate/internal/gateway/store"
	"github.com/tunegate/tunegate/pkg/httpx"
	"github.com/tunegate/tunegate/pkg/jwtx"
)

// ReadyzHandler is the readiness probe. It checks the credential store
// connection and the session signer before reporting ready.
func ReadyzHandler(startTime time.Time, version string, st store.Store, codec *jwtx.Codec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if !codec.Ready() {
			checks.Signer = "error: no signing secret loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
