package jwtx

// Verifier validates a session token and gives you back the claims if it's
// legit. *Codec satisfies this; handlers and middleware should depend on the
// interface so tests can swap in fakes.
type Verifier interface {
	Verify(token string) (Claims, error)
}
