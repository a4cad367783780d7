package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware provides HTTP middleware for authentication.
type Middleware struct {
	verifier   *Verifier
	queryParam string
}

// NewMiddleware creates a new auth middleware. A nil verifier disables
// authentication.
func NewMiddleware(verifier *Verifier, config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}
	return &Middleware{verifier: verifier, queryParam: config.QueryParam}
}

// RequireAuth is middleware that requires a valid bearer token.
// Requests without valid auth will receive a 401 response.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	if m.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractToken(r)
		if err == nil {
			err = m.verifier.Verify(token)
		}
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken reads the token from the Authorization header, falling back
// to the query parameter.
func (m *Middleware) extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if m.queryParam != "" {
			if token := r.URL.Query().Get(m.queryParam); token != "" {
				return token, nil
			}
		}
		return "", ErrMissingToken
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrInvalidToken
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// ───────────────────────────────────────────────────────────────────────────────
// ERROR RESPONSE HELPER
// ───────────────────────────────────────────────────────────────────────────────

func writeAuthError(w http.ResponseWriter, err error) {
	authErr, ok := err.(*AuthError)
	if !ok {
		authErr = &AuthError{Code: "AUTH_ERROR", Message: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="switchboard"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(authErr)
}
