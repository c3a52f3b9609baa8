package domain

import "time"

// RefreshBuffer is the lead time before the provider access token's expiry at
// which it is treated as stale. Refreshing a minute early keeps in-flight
// Spotify calls from racing the real expiry.
const RefreshBuffer = 60 * time.Second

// ProviderCredential is the Spotify token material tracked per external
// identity. One record per Spotify user; every successful exchange or refresh
// rewrites the record in place.
type ProviderCredential struct {
	SpotifyID    string
	DisplayName  string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fresh reports whether the access token still has useful lifetime left
// beyond the buffer. A credential expiring exactly at now+buffer is stale.
func (c ProviderCredential) Fresh(now time.Time, buffer time.Duration) bool {
	return now.Add(buffer).Before(c.ExpiresAt)
}
