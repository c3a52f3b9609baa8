package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes surfaced on the wire. The client decides from the code whether
// to prompt a fresh login, restart the authorization flow, or retry.
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeUnauthenticated   = "unauthenticated"
	ErrorCodeReauthRequired    = "reauthorization_required"
	ErrorCodeProviderError     = "provider_error"
	ErrorCodeServerError       = "server_error"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
)

// Error is a JSON API error. It implements the error interface and knows how
// to write itself as an HTTP response body of the form
// {"error": ..., "error_description": ...}.
type Error struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this Error to an HTTP response writer.
func (e *Error) WriteError(w http.ResponseWriter) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest: missing or malformed input (absent code, absent q).
	ErrInvalidRequest = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrUnauthenticated: no, invalid, or expired session token, or no
	// credentials on file for the token's identity. The user must log in.
	ErrUnauthenticated = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthenticated,
		Description: "missing, invalid or expired session token",
	}

	// ErrReauthorizationRequired: the session token is fine but the stored
	// provider refresh token is dead. The user must redo the Spotify
	// authorization flow from /login.
	ErrReauthorizationRequired = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeReauthRequired,
		Description: "provider authorization has lapsed, restart the login flow",
	}

	// ErrProviderError: Spotify returned a non-success status or was
	// unreachable. Retryable by the client.
	ErrProviderError = &Error{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeProviderError,
		Description: "the music provider request failed",
	}

	// ErrServerError: unexpected internal failure.
	ErrServerError = &Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// NewError creates an Error with a custom description while keeping the
// standard response shape.
func NewError(statusCode int, code, description string) *Error {
	return &Error{StatusCode: statusCode, Code: code, Description: description}
}
