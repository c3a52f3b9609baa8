package http

import (
	"net/http"
	"time"

	"github.com/tunegate/tunegate/pkg/cryptox"
	"github.com/tunegate/tunegate/pkg/httpx"
	"github.com/tunegate/tunegate/pkg/slogx"
)

// stateCookieName carries the anti-forgery state between /login and
// /callback. Scoped to /callback so it never rides along other requests.
const (
	stateCookieName = "tunegate_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// LoginHandler starts the authorization-code flow: it generates a one-shot
// state value, pins it in a cookie, and redirects the browser to the
// provider's consent page.
type LoginHandler struct {
	Provider Provider
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		slogx.FromContext(r.Context()).Error("generating oauth state", "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/callback",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	httpx.NoCache(w)
	http.Redirect(w, r, h.Provider.AuthorizationURL(state), http.StatusFound)
}

// clearStateCookie expires the state cookie once the flow completes, in
// either direction.
func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/callback",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
