package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL  = "https://accounts.spotify.com/authorize"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultAPIURL   = "https://api.spotify.com/v1"

	// DefaultTimeout bounds every outbound provider call. A hung provider
	// surfaces as a transient failure instead of a stuck request.
	DefaultTimeout = 10 * time.Second
)

// DefaultScopes are the scopes requested at authorization time.
var DefaultScopes = []string{"user-read-email", "user-read-private"}

var (
	ErrExchangeFailed = errors.New("spotify: code exchange failed")
	ErrRefreshFailed  = errors.New("spotify: token refresh failed")

	// ErrInvalidGrant means the refresh token itself is dead. Terminal: the
	// user must redo the authorization-code flow.
	ErrInvalidGrant = errors.New("spotify: refresh token rejected")

	// ErrProviderRequest covers non-success responses from the Web API
	// (profile, playlists, search).
	ErrProviderRequest = errors.New("spotify: api request failed")
)

// Config holds the provider app registration plus optional endpoint
// overrides used by tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	APIURL   string
	Timeout  time.Duration
}

// Client performs the provider-facing token operations (authorization URL,
// code exchange, refresh) and the pass-through Web API calls.
type Client struct {
	conf   *oauth2.Config
	http   *http.Client
	apiURL string
}

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("spotify: missing client id")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("spotify: missing client secret")
	}

	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}

	return &Client{
		conf:   conf,
		http:   &http.Client{Timeout: cfg.Timeout},
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
	}, nil
}

// TokenResult is the outcome of a code exchange or refresh. ExpiresAt is
// derived from the response's expires_in at receive time, never from
// provider wall-clock.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthorizationURL builds the provider consent URL for the given anti-forgery
// state. Deterministic for a fixed configuration modulo state.
func (c *Client) AuthorizationURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange redeems an authorization code for a token pair. One network call,
// no retries.
func (c *Client) Exchange(ctx context.Context, code string) (TokenResult, error) {
	tok, err := c.conf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return TokenResult{}, fmt.Errorf("%w: %s", ErrExchangeFailed, retrieveDetail(err))
	}
	return tokenResult(tok), nil
}

// Refresh redeems a refresh token for a new access token. The provider may
// omit a replacement refresh token; the result then carries the one passed
// in, so callers never lose a working refresh token. A rejected grant is
// reported as ErrInvalidGrant; anything else is transient.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenResult, error) {
	ts := c.conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return TokenResult{}, fmt.Errorf("%w: %s", ErrInvalidGrant, retrieveDetail(err))
		}
		return TokenResult{}, fmt.Errorf("%w: %s", ErrRefreshFailed, retrieveDetail(err))
	}

	res := tokenResult(tok)
	if res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}
	return res, nil
}

// Profile fetches the authenticated user's profile. Used to materialize the
// external identity right after a code exchange.
func (c *Client) Profile(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.doRequest(ctx, accessToken, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlists fetches one page of the user's playlists.
func (c *Client) Playlists(ctx context.Context, accessToken string, limit, offset int) (*PlaylistPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var page PlaylistPage
	if err := c.doRequest(ctx, accessToken, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Search runs a multi-type search across albums, artists, tracks and
// playlists.
func (c *Client) Search(ctx context.Context, accessToken, query string, limit int) (*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrProviderRequest)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=album,artist,track,playlist&limit=%d",
		url.QueryEscape(query), limit)

	var result SearchResult
	if err := c.doRequest(ctx, accessToken, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doRequest performs an authenticated GET against the Web API.
func (c *Client) doRequest(ctx context.Context, accessToken, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrProviderRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrProviderRequest, err)
		}
	}

	return nil
}

// withHTTPClient makes the oauth2 transport use our bounded-timeout client.
func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func tokenResult(tok *oauth2.Token) TokenResult {
	return TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
}

// retrieveDetail pulls the provider's error body out of an oauth2 error so
// failures carry the upstream detail instead of a bare status.
func retrieveDetail(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode != "" {
			if re.ErrorDescription != "" {
				return re.ErrorCode + ": " + re.ErrorDescription
			}
			return re.ErrorCode
		}
		return fmt.Sprintf("status %d", re.Response.StatusCode)
	}
	return err.Error()
}
