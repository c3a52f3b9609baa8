package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tunegate/tunegate/internal/gateway/service"
	"github.com/tunegate/tunegate/internal/gateway/spotify"
	"github.com/tunegate/tunegate/internal/gateway/store"
	"github.com/tunegate/tunegate/pkg/httpx"
	"github.com/tunegate/tunegate/pkg/jwtx"
	"github.com/tunegate/tunegate/pkg/slogx"
)

// Provider is the slice of the Spotify client the handlers depend on.
type Provider interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (spotify.TokenResult, error)
	Profile(ctx context.Context, accessToken string) (*spotify.User, error)
	Playlists(ctx context.Context, accessToken string, limit, offset int) (*spotify.PlaylistPage, error)
	Search(ctx context.Context, accessToken, query string, limit int) (*spotify.SearchResult, error)
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	provider     Provider
	tokens       *service.TokenService
	store        store.Store
	logger       *slog.Logger
	buildVersion string
	startTime    time.Time
}

func NewRouter(
	codec *jwtx.Codec,
	provider Provider,
	tokens *service.TokenService,
	st store.Store,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		provider:     provider,
		tokens:       tokens,
		store:        st,
		logger:       logger,
		buildVersion: buildVersion,
		startTime:    time.Now(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSession()
	r.registerSpotify()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{Provider: r.provider}
	callbackHandler := &CallbackHandler{
		Provider: r.provider,
		Tokens:   r.tokens,
		Codec:    r.codec,
	}

	// Both endpoints are unauthenticated entry points, so limit hard by IP.
	r.Mux.Handle("GET /login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /callback",
		httpx.Chain(callbackHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSession() {
	statusHandler := &StatusHandler{Tokens: r.tokens}
	refreshHandler := &RefreshHandler{Tokens: r.tokens}

	r.Mux.Handle("GET /auth/status",
		httpx.Chain(statusHandler,
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIdentity(httpx.LenientLimit),
		),
	)

	// Forced refreshes burn provider quota, so keep this one tight.
	r.Mux.Handle("POST /refresh_token",
		httpx.Chain(refreshHandler,
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIdentity(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSpotify() {
	proxy := &ProxyHandler{Provider: r.provider, Tokens: r.tokens}

	r.Mux.Handle("GET /spotify/me",
		httpx.Chain(http.HandlerFunc(proxy.HandleMe),
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIdentity(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /spotify/playlists",
		httpx.Chain(http.HandlerFunc(proxy.HandlePlaylists),
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIdentity(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /spotify/search",
		httpx.Chain(http.HandlerFunc(proxy.HandleSearch),
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByIdentity(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.codec))
}
