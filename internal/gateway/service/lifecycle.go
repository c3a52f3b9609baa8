package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tunegate/tunegate/internal/gateway/domain"
	"github.com/tunegate/tunegate/internal/gateway/spotify"
	"github.com/tunegate/tunegate/internal/gateway/store"
	"github.com/tunegate/tunegate/pkg/slogx"
)

var (
	// ErrUnauthenticated means no credential exists for the identity. The
	// user has never completed the authorization flow (or the record was
	// removed).
	ErrUnauthenticated = errors.New("service: no stored credential")

	// ErrReauthorizationRequired means the stored refresh token was rejected
	// by the provider. Only a fresh authorization-code flow can recover.
	ErrReauthorizationRequired = errors.New("service: reauthorization required")
)

// Refresher is the slice of the provider client the lifecycle needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (spotify.TokenResult, error)
}

// Resolution is a usable access token for an identity, plus enough metadata
// for callers to report what happened.
type Resolution struct {
	SpotifyID   string
	AccessToken string
	ExpiresAt   time.Time
	Refreshed   bool
}

// Status reports whether an identity currently holds a working credential.
type Status struct {
	Authenticated bool
	ExpiresAt     time.Time
	Fresh         bool
}

// TokenService owns the credential lifecycle: it hands out access tokens
// that are fresh enough to survive a downstream call, refreshing through
// the provider when they are not.
type TokenService struct {
	Store    store.Store
	Provider Refresher

	// RefreshBuffer is the minimum remaining validity an access token must
	// have to be handed out without a refresh.
	RefreshBuffer time.Duration

	group singleflight.Group
	now   func() time.Time
}

func NewTokenService(st store.Store, provider Refresher, buffer time.Duration) *TokenService {
	if buffer <= 0 {
		buffer = domain.RefreshBuffer
	}
	return &TokenService{
		Store:         st,
		Provider:      provider,
		RefreshBuffer: buffer,
		now:           time.Now,
	}
}

// Resolve returns an access token for spotifyID, refreshing it first if it
// is within RefreshBuffer of expiry. At most one refresh attempt is made;
// a transient provider failure propagates to the caller rather than being
// retried here.
func (s *TokenService) Resolve(ctx context.Context, spotifyID string) (Resolution, error) {
	cred, err := s.Store.Credentials().GetBySpotifyID(ctx, spotifyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{}, ErrUnauthenticated
		}
		return Resolution{}, fmt.Errorf("loading credential: %w", err)
	}

	if cred.Fresh(s.now(), s.RefreshBuffer) {
		return Resolution{
			SpotifyID:   cred.SpotifyID,
			AccessToken: cred.AccessToken,
			ExpiresAt:   cred.ExpiresAt,
		}, nil
	}

	return s.refresh(ctx, spotifyID, false)
}

// ForceRefresh refreshes the credential regardless of freshness. Concurrent
// callers for the same identity share one provider call.
func (s *TokenService) ForceRefresh(ctx context.Context, spotifyID string) (Resolution, error) {
	if _, err := s.Store.Credentials().GetBySpotifyID(ctx, spotifyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{}, ErrUnauthenticated
		}
		return Resolution{}, fmt.Errorf("loading credential: %w", err)
	}
	return s.refresh(ctx, spotifyID, true)
}

// refresh coalesces concurrent refreshes per identity. On the Resolve path
// the winner re-reads the credential inside the flight: a caller that queued
// behind a completed refresh gets the stored result instead of burning a
// second provider call. Forced refreshes skip that short-circuit and always
// hit the provider.
func (s *TokenService) refresh(ctx context.Context, spotifyID string, force bool) (Resolution, error) {
	v, err, _ := s.group.Do(spotifyID, func() (any, error) {
		return s.doRefresh(ctx, spotifyID, force)
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

func (s *TokenService) doRefresh(ctx context.Context, spotifyID string, force bool) (Resolution, error) {
	log := slogx.FromContext(ctx)

	cred, err := s.Store.Credentials().GetBySpotifyID(ctx, spotifyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{}, ErrUnauthenticated
		}
		return Resolution{}, fmt.Errorf("loading credential: %w", err)
	}

	// Another flight may have landed between our first read and joining
	// this one. A forced refresh must not take this exit.
	if !force && cred.Fresh(s.now(), s.RefreshBuffer) {
		return Resolution{
			SpotifyID:   cred.SpotifyID,
			AccessToken: cred.AccessToken,
			ExpiresAt:   cred.ExpiresAt,
		}, nil
	}

	res, err := s.Provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, spotify.ErrInvalidGrant) {
			// The stored credential stays put: a later retry hits the same
			// terminal answer cheaply, and the row still records who the
			// identity was.
			log.Warn("refresh token rejected", "spotify_id", spotifyID)
			return Resolution{}, ErrReauthorizationRequired
		}
		log.Error("token refresh failed", "spotify_id", spotifyID, "error", err)
		return Resolution{}, fmt.Errorf("refreshing token: %w", err)
	}

	cred.AccessToken = res.AccessToken
	cred.ExpiresAt = res.ExpiresAt
	if res.RefreshToken != "" {
		cred.RefreshToken = res.RefreshToken
	}

	if err := s.Store.Credentials().Upsert(ctx, cred); err != nil {
		return Resolution{}, fmt.Errorf("persisting refreshed credential: %w", err)
	}

	log.Info("access token refreshed", "spotify_id", spotifyID, "expires_at", res.ExpiresAt)

	return Resolution{
		SpotifyID:   cred.SpotifyID,
		AccessToken: cred.AccessToken,
		ExpiresAt:   cred.ExpiresAt,
		Refreshed:   true,
	}, nil
}

// Status reports credential presence and freshness without touching the
// provider.
func (s *TokenService) Status(ctx context.Context, spotifyID string) (Status, error) {
	cred, err := s.Store.Credentials().GetBySpotifyID(ctx, spotifyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("loading credential: %w", err)
	}

	return Status{
		Authenticated: true,
		ExpiresAt:     cred.ExpiresAt,
		Fresh:         cred.Fresh(s.now(), s.RefreshBuffer),
	}, nil
}

// Save stores the credential produced by a completed authorization-code
// exchange, replacing any prior record for the identity. The store owns the
// created_at/updated_at stamps.
func (s *TokenService) Save(ctx context.Context, cred domain.ProviderCredential) error {
	return s.Store.Credentials().Upsert(ctx, cred)
}
