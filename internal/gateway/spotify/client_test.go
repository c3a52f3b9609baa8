package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeProvider imitates the accounts + api hosts well enough to drive the
// client. Handlers are swapped per test.
type fakeProvider struct {
	mux    *http.ServeMux
	server *httptest.Server

	tokenCalls int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{mux: http.NewServeMux()}
	fp.server = httptest.NewServer(fp.mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) client(t *testing.T) *Client {
	t.Helper()

	c, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/callback",
		AuthURL:      fp.server.URL + "/authorize",
		TokenURL:     fp.server.URL + "/api/token",
		APIURL:       fp.server.URL + "/v1",
	})
	require.NoError(t, err)
	return c
}

func (fp *fakeProvider) tokenJSON(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{ClientSecret: "x"})
	require.Error(t, err)

	_, err = New(Config{ClientID: "x"})
	require.Error(t, err)
}

func TestAuthorizationURL(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client(t)

	raw := c.AuthorizationURL("state-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "http://localhost:8080/callback", q.Get("redirect_uri"))
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, "user-read-email user-read-private", q.Get("scope"))
}

func TestExchange(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "the-code", r.PostForm.Get("code"))

		fp.tokenJSON(w, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	c := fp.client(t)

	res, err := c.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	require.Equal(t, "access-1", res.AccessToken)
	require.Equal(t, "refresh-1", res.RefreshToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 10*time.Second)
}

func TestExchangeFailure(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_request",
			"error_description": "bad code",
		})
	})

	c := fp.client(t)

	_, err := c.Exchange(context.Background(), "bogus")
	require.ErrorIs(t, err, ErrExchangeFailed)
	require.Contains(t, err.Error(), "invalid_request")
}

func TestRefresh(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-old", r.PostForm.Get("refresh_token"))

		fp.tokenJSON(w, map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-new",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	c := fp.client(t)

	res, err := c.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)
	require.Equal(t, "access-2", res.AccessToken)
	require.Equal(t, "refresh-new", res.RefreshToken)
}

func TestRefreshRetainsTokenWhenOmitted(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenJSON(w, map[string]any{
			"access_token": "access-2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	c := fp.client(t)

	res, err := c.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)
	require.Equal(t, "refresh-old", res.RefreshToken)
}

func TestRefreshInvalidGrant(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "Refresh token revoked",
		})
	})

	c := fp.client(t)

	_, err := c.Refresh(context.Background(), "revoked")
	require.ErrorIs(t, err, ErrInvalidGrant)
	require.NotErrorIs(t, err, ErrRefreshFailed)
}

func TestRefreshTransientFailure(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := fp.client(t)

	_, err := c.Refresh(context.Background(), "refresh-old")
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.NotErrorIs(t, err, ErrInvalidGrant)
}

func TestProfile(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		fp.tokenJSON(w, map[string]any{
			"id":           "spotify-user",
			"display_name": "Some User",
			"email":        "user@example.com",
		})
	})

	c := fp.client(t)

	user, err := c.Profile(context.Background(), "access-1")
	require.NoError(t, err)
	require.Equal(t, "spotify-user", user.ID)
	require.Equal(t, "Some User", user.DisplayName)
	require.Equal(t, "user@example.com", user.Email)
}

func TestProfileUnauthorized(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := fp.client(t)

	_, err := c.Profile(context.Background(), "stale")
	require.ErrorIs(t, err, ErrProviderRequest)
	require.Contains(t, err.Error(), "401")
}

func TestPlaylists(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "5", r.URL.Query().Get("offset"))

		fp.tokenJSON(w, map[string]any{
			"items": []map[string]any{
				{"id": "pl-1", "name": "Road Trip"},
			},
			"total":  1,
			"limit":  10,
			"offset": 5,
		})
	})

	c := fp.client(t)

	page, err := c.Playlists(context.Background(), "access-1", 10, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "Road Trip", page.Items[0].Name)
	require.Equal(t, 1, page.Total)
}

func TestPlaylistsClampsArguments(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		require.Equal(t, "0", r.URL.Query().Get("offset"))
		fp.tokenJSON(w, map[string]any{"items": []any{}})
	})

	c := fp.client(t)

	_, err := c.Playlists(context.Background(), "access-1", 500, -3)
	require.NoError(t, err)
}

func TestSearch(t *testing.T) {
	fp := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "daft punk", q.Get("q"))
		require.Equal(t, "album,artist,track,playlist", q.Get("type"))

		fp.tokenJSON(w, map[string]any{
			"artists": map[string]any{
				"items": []map[string]any{{"id": "ar-1", "name": "Daft Punk"}},
				"total": 1,
			},
		})
	})

	c := fp.client(t)

	res, err := c.Search(context.Background(), "access-1", "daft punk", 20)
	require.NoError(t, err)
	require.NotNil(t, res.Artists)
	require.Len(t, res.Artists.Items, 1)
	require.Equal(t, "Daft Punk", res.Artists.Items[0].Name)
	require.Nil(t, res.Tracks)
}
