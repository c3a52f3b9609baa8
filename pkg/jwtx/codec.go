package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")

	// ErrWeakSecret is returned by NewCodec for secrets under 256 bits.
	ErrWeakSecret = errors.New("jwtx: signing secret must be at least 32 bytes")
)

// MinSecretLen is the minimum signing-secret length in bytes.
const MinSecretLen = 32

// Codec mints and verifies HS256 session tokens against a single symmetric
// secret. The secret is injected at construction; there is no ambient global.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewCodec builds a Codec. ttl <= 0 falls back to DefaultSessionTTL.
func NewCodec(secret []byte, issuer string, ttl time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Codec{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// TTL reports the configured validity window.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Ready reports whether the codec holds a usable secret.
func (c *Codec) Ready() bool { return len(c.secret) >= MinSecretLen }

// Mint signs claims with the codec secret and returns the compact token.
func (c *Codec) Mint(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// MintFor is the common path: mint a session token for an identity using the
// codec's issuer and TTL, stamped at now.
func (c *Codec) MintFor(spotifyID, displayName string, now time.Time) (string, error) {
	return c.Mint(NewSessionClaims(spotifyID, displayName, c.issuer, c.ttl, now))
}

// Verify checks the signature, then the registered claims (exp/nbf/iss).
// Tokens signed with another algorithm (including "none") or another secret
// are rejected regardless of their claim content.
func (c *Codec) Verify(raw string) (Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return Claims{}, mapParseError(err)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrIssuer
	}

	return claims, nil
}

// mapParseError folds golang-jwt's joined errors into our sentinel set so
// callers can switch on stable values.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// A flipped signature byte and a token signed with a foreign secret
		// land here, as does a token carrying a disallowed alg header.
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
