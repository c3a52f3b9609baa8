package store

import (
	"context"
	"errors"

	"github.com/tunegate/tunegate/internal/gateway/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and testable.
//
// Every operation is a single atomic statement; the credential lifecycle
// never needs a transaction spanning multiple statements, so no Tx surface
// is exposed.
type Store interface {
	Credentials() Credentials

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Credentials interface {
	// Upsert inserts or replaces the credential record keyed by its
	// SpotifyID. The full record is written as one unit; concurrent upserts
	// for the same identity resolve last-writer-wins without interleaving
	// fields. CreatedAt is preserved on update, UpdatedAt is bumped.
	Upsert(ctx context.Context, cred domain.ProviderCredential) error

	// GetBySpotifyID returns the credential for an identity, or ErrNotFound.
	GetBySpotifyID(ctx context.Context, spotifyID string) (domain.ProviderCredential, error)
}
