package httpx

import "context"

type ctxKey string

const (
	// CtxKeySpotifyID carries the authenticated Spotify user ID (token subject).
	CtxKeySpotifyID ctxKey = "spotify_id"
	// CtxKeyClaims carries the full verified session claims.
	CtxKeyClaims ctxKey = "claims"
)

// SpotifyIDFromCtx returns the authenticated identity, or "" when the request
// did not pass through AuthnMiddleware.
func SpotifyIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySpotifyID).(string); ok {
		return v
	}
	return ""
}
