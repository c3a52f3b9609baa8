package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tunegate/tunegate/internal/gateway/domain"
	"github.com/tunegate/tunegate/internal/gateway/spotify"
	"github.com/tunegate/tunegate/internal/gateway/store"
	"github.com/tunegate/tunegate/internal/gateway/store/drivers/sqlite"
)

type fakeRefresher struct {
	mu sync.Mutex

	calls  atomic.Int64
	result spotify.TokenResult
	err    error

	// block, when set, holds every Refresh call until released. Used to
	// prove concurrent resolves coalesce into one provider call.
	block chan struct{}
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (spotify.TokenResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return spotify.TokenResult{}, f.err
	}
	return f.result, nil
}

func newTestService(t *testing.T, provider *fakeRefresher, now time.Time) (*TokenService, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	svc := NewTokenService(st, provider, domain.RefreshBuffer)
	svc.now = func() time.Time { return now }
	return svc, st
}

func seedCredential(t *testing.T, st store.Store, expiresAt time.Time) domain.ProviderCredential {
	t.Helper()

	cred := domain.ProviderCredential{
		SpotifyID:    "user-1",
		DisplayName:  "User One",
		Email:        "one@example.com",
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    expiresAt.UTC(),
		CreatedAt:    expiresAt.Add(-time.Hour).UTC(),
		UpdatedAt:    expiresAt.Add(-time.Hour).UTC(),
	}
	require.NoError(t, st.Credentials().Upsert(context.Background(), cred))
	return cred
}

func TestResolveFreshToken(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{}
	svc, st := newTestService(t, provider, now)

	seedCredential(t, st, now.Add(30*time.Minute))

	res, err := svc.Resolve(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "access-old", res.AccessToken)
	require.False(t, res.Refreshed)
	require.Equal(t, int64(0), provider.calls.Load(), "fresh token must not hit the provider")
}

func TestResolveUnknownIdentity(t *testing.T) {
	now := time.Now().UTC()
	provider := &fakeRefresher{}
	svc, _ := newTestService(t, provider, now)

	_, err := svc.Resolve(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Equal(t, int64(0), provider.calls.Load())
}

func TestResolveRefreshesStaleToken(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{
		result: spotify.TokenResult{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    now.Add(time.Hour),
		},
	}
	svc, st := newTestService(t, provider, now)

	// 30s of validity left: inside the buffer, so stale.
	seedCredential(t, st, now.Add(30*time.Second))

	res, err := svc.Resolve(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "access-new", res.AccessToken)
	require.True(t, res.Refreshed)
	require.Equal(t, int64(1), provider.calls.Load())

	stored, err := st.Credentials().GetBySpotifyID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "access-new", stored.AccessToken)
	require.Equal(t, "refresh-new", stored.RefreshToken)
	require.WithinDuration(t, now.Add(time.Hour), stored.ExpiresAt, time.Second)
}

func TestResolveRetainsRefreshTokenWhenOmitted(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{
		result: spotify.TokenResult{
			AccessToken: "access-new",
			ExpiresAt:   now.Add(time.Hour),
		},
	}
	svc, st := newTestService(t, provider, now)

	seedCredential(t, st, now.Add(-time.Minute))

	_, err := svc.Resolve(context.Background(), "user-1")
	require.NoError(t, err)

	stored, err := st.Credentials().GetBySpotifyID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "refresh-old", stored.RefreshToken)
}

func TestResolveInvalidGrantLeavesStoreUntouched(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{err: spotify.ErrInvalidGrant}
	svc, st := newTestService(t, provider, now)

	seeded := seedCredential(t, st, now.Add(-time.Minute))

	_, err := svc.Resolve(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrReauthorizationRequired)

	stored, err := st.Credentials().GetBySpotifyID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, seeded.AccessToken, stored.AccessToken)
	require.Equal(t, seeded.RefreshToken, stored.RefreshToken)
	require.WithinDuration(t, seeded.ExpiresAt, stored.ExpiresAt, time.Second)
}

func TestResolveTransientFailurePropagates(t *testing.T) {
	now := time.Now().UTC()
	provider := &fakeRefresher{err: spotify.ErrRefreshFailed}
	svc, st := newTestService(t, provider, now)

	seedCredential(t, st, now.Add(-time.Minute))

	_, err := svc.Resolve(context.Background(), "user-1")
	require.ErrorIs(t, err, spotify.ErrRefreshFailed)
	require.NotErrorIs(t, err, ErrReauthorizationRequired)
	require.Equal(t, int64(1), provider.calls.Load(), "exactly one refresh attempt")
}

func TestResolveCoalescesConcurrentRefreshes(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{
		result: spotify.TokenResult{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    now.Add(time.Hour),
		},
		block: make(chan struct{}),
	}
	svc, st := newTestService(t, provider, now)

	seedCredential(t, st, now.Add(-time.Minute))

	const workers = 8

	var wg sync.WaitGroup
	results := make([]Resolution, workers)
	errs := make([]error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(context.Background(), "user-1")
		}()
	}

	// Let the goroutines pile up behind the in-flight refresh, then release.
	time.Sleep(50 * time.Millisecond)
	close(provider.block)
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		require.Equal(t, "access-new", results[i].AccessToken)
	}
	require.Equal(t, int64(1), provider.calls.Load(), "concurrent resolves share one provider call")
}

func TestForceRefresh(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{
		result: spotify.TokenResult{
			AccessToken:  "access-new",
			RefreshToken: "refresh-new",
			ExpiresAt:    now.Add(time.Hour),
		},
	}
	svc, st := newTestService(t, provider, now)

	t.Run("unknown identity", func(t *testing.T) {
		_, err := svc.ForceRefresh(context.Background(), "nobody")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("refreshes even when fresh", func(t *testing.T) {
		seedCredential(t, st, now.Add(30*time.Minute))

		res, err := svc.ForceRefresh(context.Background(), "user-1")
		require.NoError(t, err)
		require.True(t, res.Refreshed)
		require.Equal(t, "access-new", res.AccessToken)
		require.Equal(t, int64(1), provider.calls.Load(),
			"forced refresh must hit the provider even for a fresh credential")

		stored, err := st.Credentials().GetBySpotifyID(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, "access-new", stored.AccessToken)
	})
}

func TestStatus(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{}
	svc, st := newTestService(t, provider, now)

	t.Run("no credential", func(t *testing.T) {
		status, err := svc.Status(context.Background(), "nobody")
		require.NoError(t, err)
		require.False(t, status.Authenticated)
	})

	t.Run("fresh credential", func(t *testing.T) {
		seedCredential(t, st, now.Add(30*time.Minute))

		status, err := svc.Status(context.Background(), "user-1")
		require.NoError(t, err)
		require.True(t, status.Authenticated)
		require.True(t, status.Fresh)
		require.Equal(t, now.Add(30*time.Minute), status.ExpiresAt)
		require.Equal(t, int64(0), provider.calls.Load(), "status never hits the provider")
	})

	t.Run("stale credential", func(t *testing.T) {
		seedCredential(t, st, now.Add(10*time.Second))

		status, err := svc.Status(context.Background(), "user-1")
		require.NoError(t, err)
		require.True(t, status.Authenticated)
		require.False(t, status.Fresh)
	})
}

func TestSavePersistsCredential(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc, st := newTestService(t, &fakeRefresher{}, now)

	err := svc.Save(context.Background(), domain.ProviderCredential{
		SpotifyID:    "user-2",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    now.Add(time.Hour),
	})
	require.NoError(t, err)

	stored, err := st.Credentials().GetBySpotifyID(context.Background(), "user-2")
	require.NoError(t, err)
	require.Equal(t, "access", stored.AccessToken)
	require.Equal(t, "refresh", stored.RefreshToken)
	require.WithinDuration(t, time.Now(), stored.CreatedAt, 5*time.Second)
	require.WithinDuration(t, time.Now(), stored.UpdatedAt, 5*time.Second)
}

func TestResolveDoubleCheckInsideFlight(t *testing.T) {
	// A refresh landing between a caller's staleness check and its flight
	// must short-circuit: the closure re-reads before calling the provider.
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeRefresher{}
	svc, st := newTestService(t, provider, now)

	seedCredential(t, st, now.Add(10*time.Second))

	// Simulate the winner having already persisted a fresh credential.
	fresh := domain.ProviderCredential{
		SpotifyID:    "user-1",
		AccessToken:  "access-new",
		RefreshToken: "refresh-new",
		ExpiresAt:    now.Add(time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Credentials().Upsert(context.Background(), fresh))

	res, err := svc.refresh(context.Background(), "user-1", false)
	require.NoError(t, err)
	require.Equal(t, "access-new", res.AccessToken)
	require.False(t, res.Refreshed)
	require.Equal(t, int64(0), provider.calls.Load())
}

func TestResolveStoreErrorWraps(t *testing.T) {
	now := time.Now().UTC()
	svc, st := newTestService(t, &fakeRefresher{}, now)
	require.NoError(t, st.Close())

	_, err := svc.Resolve(context.Background(), "user-1")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnauthenticated))
}
