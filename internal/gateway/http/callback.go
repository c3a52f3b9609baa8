package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/tunegate/tunegate/internal/gateway/domain"
	"github.com/tunegate/tunegate/internal/gateway/service"
	"github.com/tunegate/tunegate/pkg/httpx"
	"github.com/tunegate/tunegate/pkg/jwtx"
	"github.com/tunegate/tunegate/pkg/slogx"
)

// CallbackHandler finishes the authorization-code flow: it validates the
// returned state against the login cookie, exchanges the code, materializes
// the Spotify identity, persists the credential, and hands back a session
// token.
type CallbackHandler struct {
	Provider Provider
	Tokens   *service.TokenService
	Codec    *jwtx.Codec
}

type callbackUser struct {
	SpotifyID   string `json:"spotify_id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

type callbackResponse struct {
	Message string       `json:"message"`
	JWT     string       `json:"jwt"`
	User    callbackUser `json:"user"`
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		clearStateCookie(w)
		log.Warn("authorization denied by provider", "error", errCode)
		httpx.NewError(http.StatusBadRequest, httpx.ErrorCodeInvalidRequest,
			"authorization was denied: "+errCode).WriteError(w)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		clearStateCookie(w)
		httpx.NewError(http.StatusBadRequest, httpx.ErrorCodeInvalidRequest,
			"state mismatch, restart the login flow").WriteError(w)
		return
	}
	clearStateCookie(w)

	code := q.Get("code")
	if code == "" {
		httpx.NewError(http.StatusBadRequest, httpx.ErrorCodeInvalidRequest,
			"missing authorization code").WriteError(w)
		return
	}

	res, err := h.Provider.Exchange(r.Context(), code)
	if err != nil {
		log.Error("code exchange failed", "error", err)
		writeServiceError(w, r, err)
		return
	}

	user, err := h.Provider.Profile(r.Context(), res.AccessToken)
	if err != nil {
		log.Error("profile fetch failed", "error", err)
		writeServiceError(w, r, err)
		return
	}

	err = h.Tokens.Save(r.Context(), domain.ProviderCredential{
		SpotifyID:    user.ID,
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.Codec.MintFor(user.ID, user.DisplayName, time.Now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("session established", "spotify_id", user.ID)

	httpx.WriteJSON(w, http.StatusOK, callbackResponse{
		Message: "authentication successful",
		JWT:     token,
		User: callbackUser{
			SpotifyID:   user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		},
	})
}
