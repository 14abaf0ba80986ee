package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// HeaderName is the request header carrying the caller's API key.
const HeaderName = "x-api-key"

var (
	// ErrUnauthorized is the root of every authentication failure.
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingAPIKey = fmt.Errorf("%w: api key is required", ErrUnauthorized)
	ErrInvalidAPIKey = fmt.Errorf("%w: api key is invalid", ErrUnauthorized)
	ErrNotConfigured = fmt.Errorf("%w: no api key configured", ErrUnauthorized)
)

// APIKeyAuthenticator checks a supplied key against the single process-wide
// credential. It is immutable after construction.
type APIKeyAuthenticator struct {
	expected []byte
}

// NewAPIKeyAuthenticator returns an authenticator for the given key.
// An empty key rejects every request.
func NewAPIKeyAuthenticator(expected string) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{expected: []byte(expected)}
}

// Configured reports whether a non-empty credential was provided.
func (a *APIKeyAuthenticator) Configured() bool {
	return len(a.expected) > 0
}

// Verify returns nil when supplied exactly equals the configured key.
func (a *APIKeyAuthenticator) Verify(supplied string) error {
	if !a.Configured() {
		return ErrNotConfigured
	}
	if supplied == "" {
		return ErrMissingAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(supplied), a.expected) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}
