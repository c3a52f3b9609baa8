package http

import (
	"errors"
	"net/http"

	"github.com/tunegate/tunegate/internal/gateway/service"
	"github.com/tunegate/tunegate/internal/gateway/spotify"
	"github.com/tunegate/tunegate/pkg/httpx"
	"github.com/tunegate/tunegate/pkg/slogx"
)

// writeServiceError translates lifecycle and provider errors into the wire
// taxonomy. Anything unrecognized is an internal error; the detail goes to
// the log, never to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.ErrUnauthenticated.WriteError(w)
	case errors.Is(err, service.ErrReauthorizationRequired):
		httpx.ErrReauthorizationRequired.WriteError(w)
	case errors.Is(err, spotify.ErrInvalidGrant):
		httpx.ErrReauthorizationRequired.WriteError(w)
	case errors.Is(err, spotify.ErrRefreshFailed),
		errors.Is(err, spotify.ErrExchangeFailed),
		errors.Is(err, spotify.ErrProviderRequest):
		httpx.ErrProviderError.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("internal error", "error", err)
		httpx.ErrServerError.WriteError(w)
	}
}
