package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ───────────────────────────────────────────────────────────────────────────────
// TOKEN HASHING
// ───────────────────────────────────────────────────────────────────────────────

// GenerateToken returns a random URL-safe token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the bcrypt hash to store in server.auth_token_hash.
func HashToken(token string, cost int) (string, error) {
	if len(token) < MinTokenLength {
		return "", ErrWeakToken
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// ───────────────────────────────────────────────────────────────────────────────
// VERIFIER
// ───────────────────────────────────────────────────────────────────────────────

// Verifier checks presented tokens against the configured hash. Tokens that
// verified once are remembered by digest so bcrypt runs once per token.
type Verifier struct {
	hash []byte

	mu       sync.RWMutex
	verified map[string]struct{}
}

// NewVerifier creates a verifier for a bcrypt hash.
func NewVerifier(hash string) (*Verifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, ErrInvalidHash
	}
	return &Verifier{
		hash:     []byte(hash),
		verified: make(map[string]struct{}),
	}, nil
}

// Verify returns nil when token matches the hash.
func (v *Verifier) Verify(token string) error {
	if token == "" {
		return ErrMissingToken
	}

	digest := hashToken(token)
	v.mu.RLock()
	_, ok := v.verified[digest]
	v.mu.RUnlock()
	if ok {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}

	v.mu.Lock()
	v.verified[digest] = struct{}{}
	v.mu.Unlock()
	return nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
