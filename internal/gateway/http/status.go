package http

import (
	"net/http"
	"time"

	"github.com/tunegate/tunegate/internal/gateway/service"
	"github.com/tunegate/tunegate/pkg/httpx"
)

// StatusHandler reports whether the session's identity holds live provider
// credentials. It is a pure probe: no refresh happens here.
type StatusHandler struct {
	Tokens *service.TokenService
}

type statusResponse struct {
	Authenticated bool       `json:"authenticated"`
	TokenFresh    bool       `json:"token_fresh"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	spotifyID := httpx.SpotifyIDFromCtx(r.Context())
	if spotifyID == "" {
		httpx.ErrUnauthenticated.WriteError(w)
		return
	}

	status, err := h.Tokens.Status(r.Context(), spotifyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := statusResponse{
		Authenticated: status.Authenticated,
		TokenFresh:    status.Fresh,
	}
	if status.Authenticated {
		expiresAt := status.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
