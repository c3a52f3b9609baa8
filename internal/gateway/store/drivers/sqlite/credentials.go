package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tunegate/tunegate/internal/gateway/domain"
)

type credentialsRepo struct {
	db *sql.DB
}

// Upsert writes the full credential record in one statement. ON CONFLICT
// keeps created_at from the original row and bumps updated_at.
func (r *credentialsRepo) Upsert(ctx context.Context, cred domain.ProviderCredential) error {
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (
			spotify_id, display_name, email,
			access_token, refresh_token, expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			display_name  = excluded.display_name,
			email         = excluded.email,
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at    = excluded.expires_at,
			updated_at    = excluded.updated_at
	`,
		cred.SpotifyID,
		mapStringNull(cred.DisplayName),
		mapStringNull(cred.Email),
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresAt.UTC(),
		now,
		now,
	)
	return err
}

func (r *credentialsRepo) GetBySpotifyID(ctx context.Context, spotifyID string) (domain.ProviderCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT spotify_id, display_name, email,
		       access_token, refresh_token, expires_at,
		       created_at, updated_at
		FROM credentials
		WHERE spotify_id = ?
	`, spotifyID)

	var (
		cred        domain.ProviderCredential
		displayName sql.NullString
		email       sql.NullString
	)

	err := row.Scan(
		&cred.SpotifyID,
		&displayName,
		&email,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.ExpiresAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		return domain.ProviderCredential{}, mapNotFound(err)
	}

	cred.DisplayName = mapNullString(displayName)
	cred.Email = mapNullString(email)
	cred.ExpiresAt = cred.ExpiresAt.UTC()

	return cred, nil
}
