package http

import (
	"net/http"
	"time"

	"github.com/tunegate/tunegate/internal/gateway/service"
	"github.com/tunegate/tunegate/pkg/httpx"
)

// RefreshHandler forces a provider refresh for the session's identity and
// returns the new access token. Clients that talk to Spotify directly use
// this to re-arm before a burst of calls.
type RefreshHandler struct {
	Tokens *service.TokenService
}

type refreshResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	spotifyID := httpx.SpotifyIDFromCtx(r.Context())
	if spotifyID == "" {
		httpx.ErrUnauthenticated.WriteError(w)
		return
	}

	res, err := h.Tokens.ForceRefresh(r.Context(), spotifyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
	})
}
