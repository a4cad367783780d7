// Package auth protects the HTTP API with a single shared bearer token.
// Only a bcrypt hash of the token is stored in configuration.
package auth

import "golang.org/x/crypto/bcrypt"

// ───────────────────────────────────────────────────────────────────────────────
// ERROR TYPES
// ───────────────────────────────────────────────────────────────────────────────

// AuthError represents an authentication-related error.
type AuthError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// Common auth errors
var (
	ErrMissingToken = &AuthError{Code: "MISSING_TOKEN", Message: "authorization token required"}
	ErrInvalidToken = &AuthError{Code: "INVALID_TOKEN", Message: "invalid token"}
	ErrInvalidHash  = &AuthError{Code: "INVALID_HASH", Message: "configured token hash is not a bcrypt hash"}
	ErrWeakToken    = &AuthError{Code: "WEAK_TOKEN", Message: "token must be at least 16 characters"}
)

// ───────────────────────────────────────────────────────────────────────────────
// CONFIG
// ───────────────────────────────────────────────────────────────────────────────

// MinTokenLength is the shortest token HashToken accepts.
const MinTokenLength = 16

// Config holds authentication configuration.
type Config struct {
	// BcryptCost is the cost factor for hashing new tokens.
	BcryptCost int

	// QueryParam names the URL parameter accepted in place of the
	// Authorization header, for WebSocket clients that cannot set headers.
	QueryParam string
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		BcryptCost: bcrypt.DefaultCost,
		QueryParam: "token",
	}
}
