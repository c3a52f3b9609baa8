package http

import (
	"net/http"
	"strconv"

	"github.com/tunegate/tunegate/internal/gateway/service"
	"github.com/tunegate/tunegate/pkg/httpx"
)

// ProxyHandler serves the authenticated Spotify pass-through endpoints.
// Each request resolves a usable access token first, refreshing behind the
// scenes when needed, then forwards to the Web API.
type ProxyHandler struct {
	Provider Provider
	Tokens   *service.TokenService
}

func (h *ProxyHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolve(w, r)
	if !ok {
		return
	}

	user, err := h.Provider.Profile(r.Context(), res.AccessToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *ProxyHandler) HandlePlaylists(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolve(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	page, err := h.Provider.Playlists(r.Context(), res.AccessToken, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, page)
}

func (h *ProxyHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	// Validate input before spending a token resolution on it.
	query := r.URL.Query().Get("q")
	if query == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	res, ok := h.resolve(w, r)
	if !ok {
		return
	}

	result, err := h.Provider.Search(r.Context(), res.AccessToken, query, queryInt(r, "limit", 20))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *ProxyHandler) resolve(w http.ResponseWriter, r *http.Request) (service.Resolution, bool) {
	spotifyID := httpx.SpotifyIDFromCtx(r.Context())
	if spotifyID == "" {
		httpx.ErrUnauthenticated.WriteError(w)
		return service.Resolution{}, false
	}

	res, err := h.Tokens.Resolve(r.Context(), spotifyID)
	if err != nil {
		writeServiceError(w, r, err)
		return service.Resolution{}, false
	}
	return res, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
