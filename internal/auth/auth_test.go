package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testToken = "correct-horse-battery-staple"

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	hash, err := HashToken(testToken, bcrypt.MinCost)
	require.NoError(t, err)
	v, err := NewVerifier(hash)
	require.NoError(t, err)
	return v
}

func TestHashToken(t *testing.T) {
	_, err := HashToken("short", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrWeakToken)

	hash, err := HashToken(testToken, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(testToken)))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), MinTokenLength)
}

func TestVerifier(t *testing.T) {
	_, err := NewVerifier("plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	v := testVerifier(t)
	assert.NoError(t, v.Verify(testToken))
	assert.NoError(t, v.Verify(testToken), "cached verification")
	assert.ErrorIs(t, v.Verify("wrong-token-wrong-token"), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(""), ErrMissingToken)
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testVerifier(t), nil).RequireAuth(ok)

	tests := []struct {
		name     string
		header   string
		target   string
		wantCode int
		wantErr  string
	}{
		{"valid header", "Bearer " + testToken, "/query", http.StatusNoContent, ""},
		{"valid query param", "", "/ws?token=" + testToken, http.StatusNoContent, ""},
		{"missing", "", "/query", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"wrong scheme", "Basic abc", "/query", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"empty bearer", "Bearer   ", "/query", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"wrong token", "Bearer nope-nope-nope-nope", "/query", http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				var body AuthError
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantErr, body.Code)
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireAuthDisabled(t *testing.T) {
	called := false
	handler := NewMiddleware(nil, nil).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
