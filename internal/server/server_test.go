package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/normanking/switchboard/internal/auth"
	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/knowledge"
	"github.com/normanking/switchboard/internal/memory"
	"github.com/normanking/switchboard/internal/router"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeResponder struct {
	mu    sync.Mutex
	calls []router.Result
	users []string
	err   error
}

func (f *fakeResponder) Respond(ctx context.Context, message, userID string) (router.Result, error) {
	if strings.TrimSpace(message) == "" {
		return router.Result{}, router.ErrEmptyMessage
	}
	if f.err != nil {
		return router.Result{}, f.err
	}
	res := router.Result{Route: router.RouteLocalSimple, Reason: router.ReasonShortMessage, Response: "echo: " + message}
	f.mu.Lock()
	f.calls = append(f.calls, res)
	f.users = append(f.users, userID)
	f.mu.Unlock()
	return res, nil
}

func (f *fakeResponder) Backends() map[string]bool {
	return map[string]bool{"local": true, "groq": false}
}

func (f *fakeResponder) Stats() router.Stats {
	return router.Stats{
		TotalRequests: 4,
		ByRoute:       map[router.Route]int64{router.RouteLocalSimple: 3, router.RouteGroq: 1},
		ByReason:      map[string]int64{},
	}
}

type fakeSearcher struct {
	results []knowledge.ChunkResult
	err     error
	topK    int
}

func (f *fakeSearcher) Query(ctx context.Context, text string, topK int) ([]knowledge.ChunkResult, error) {
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearcher) Count() int { return len(f.results) }

// ============================================================================
// Helpers
// ============================================================================

func newTestServer(t *testing.T, cfg Config, opts ...Option) (*Server, *fakeResponder) {
	t.Helper()
	resp := &fakeResponder{}
	s, err := New(cfg, resp, opts...)
	require.NoError(t, err)
	return s, resp
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func testMemory(t *testing.T) memory.Store {
	t.Helper()
	m, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.sqlite3"), 6)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// ============================================================================
// Tests
// ============================================================================

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig(), WithKnowledge(&fakeSearcher{results: make([]knowledge.ChunkResult, 2)}))

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]bool{"local": true, "groq": false}, body.Backends)
	assert.Equal(t, 2, body.KnowledgeChunks)
}

func TestQuery(t *testing.T) {
	s, resp := newTestServer(t, DefaultConfig())

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"ok", `{"message":"hi","user_id":"u1"}`, http.StatusOK, ""},
		{"empty message", `{"message":"   "}`, http.StatusBadRequest, "message is required"},
		{"missing body", "", http.StatusBadRequest, "request body is empty"},
		{"invalid json", `{"message":`, http.StatusBadRequest, "invalid JSON"},
		{"unknown field", `{"msg":"hi"}`, http.StatusBadRequest, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/query", tt.body)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Contains(t, decodeBody[ErrorResponse](t, rec).Error, tt.wantErr)
				return
			}
			res := decodeBody[router.Result](t, rec)
			assert.Equal(t, router.RouteLocalSimple, res.Route)
			assert.Equal(t, router.ReasonShortMessage, res.Reason)
			assert.Equal(t, "echo: hi", res.Response)
		})
	}
	assert.Equal(t, []string{"u1"}, resp.users)
}

func TestQueryBodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 32
	s, _ := newTestServer(t, cfg)

	rec := do(t, s.Handler(), http.MethodPost, "/query", `{"message":"`+strings.Repeat("x", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestQueryResponderError(t *testing.T) {
	s, resp := newTestServer(t, DefaultConfig())
	resp.err = errors.New("boom")

	rec := do(t, s.Handler(), http.MethodPost, "/query", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeBody[ErrorResponse](t, rec).Error)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	rec := do(t, s.Handler(), http.MethodGet, "/query", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHistory(t *testing.T) {
	mem := testMemory(t)
	ctx := context.Background()
	require.NoError(t, mem.AddTurn(ctx, "u1", memory.RoleUser, "hello"))
	require.NoError(t, mem.AddTurn(ctx, "u1", memory.RoleAssistant, "hi there"))

	s, _ := newTestServer(t, DefaultConfig(), WithMemory(mem))

	rec := do(t, s.Handler(), http.MethodGet, "/history/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[HistoryResponse](t, rec)
	assert.Equal(t, "u1", body.UserID)
	require.Len(t, body.Turns, 2)
	assert.Equal(t, "user", body.Turns[0].Role)
	assert.Equal(t, "hello", body.Turns[0].Content)
	assert.Equal(t, "assistant", body.Turns[1].Role)

	rec = do(t, s.Handler(), http.MethodDelete, "/history/u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/history/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[HistoryResponse](t, rec).Turns)

	rec = do(t, s.Handler(), http.MethodDelete, "/history/never-seen", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHistoryUnavailable(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/history/u1", "").Code)

	mem := testMemory(t)
	require.NoError(t, mem.Close())
	s, _ = newTestServer(t, DefaultConfig(), WithMemory(mem))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/history/u1", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodDelete, "/history/u1", "").Code)
}

func TestKnowledgeSearch(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.ChunkResult{
		{Chunk: knowledge.Chunk{Source: "kb:a.md", ChunkIndex: 1, Content: "alpha"}, Distance: 0.25},
	}}
	cfg := DefaultConfig()
	cfg.MaxTopK = 10
	s, _ := newTestServer(t, cfg, WithKnowledge(searcher))

	rec := do(t, s.Handler(), http.MethodPost, "/knowledge/search", `{"query":"alpha"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[SearchResponse](t, rec)
	assert.Equal(t, []SearchHit{{Source: "kb:a.md", ChunkIndex: 1, Content: "alpha", Distance: 0.25}}, body.Results)
	assert.Equal(t, 3, searcher.topK)

	do(t, s.Handler(), http.MethodPost, "/knowledge/search", `{"query":"alpha","top_k":500}`)
	assert.Equal(t, 10, searcher.topK)

	rec = do(t, s.Handler(), http.MethodPost, "/knowledge/search", `{"query":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	searcher.err = &knowledge.RetrievalError{Err: errors.New("embedder down")}
	rec = do(t, s.Handler(), http.MethodPost, "/knowledge/search", `{"query":"alpha"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestKnowledgeSearchUnconfigured(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	rec := do(t, s.Handler(), http.MethodPost, "/knowledge/search", `{"query":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	rec := do(t, s.Handler(), http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(4), body["total_requests"])
	assert.Equal(t, float64(75), body["local_ratio"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, DefaultConfig())
	do(t, s.Handler(), http.MethodGet, "/health", "")

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "switchboard_http_requests_total")
}

func TestAuth(t *testing.T) {
	token := "server-test-token-0123"
	hash, err := auth.HashToken(token, bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AuthTokenHash = hash
	s, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/health", "").Code, "health is public")
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/metrics", "").Code, "metrics are public")
	assert.Equal(t, http.StatusUnauthorized, do(t, s.Handler(), http.MethodPost, "/query", `{"message":"hi"}`).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(t, s.Handler(), http.MethodPost, "/query", `{"message":"hi"}`, "Authorization", "Bearer wrong-token-wrong").Code)
	assert.Equal(t, http.StatusOK,
		do(t, s.Handler(), http.MethodPost, "/query", `{"message":"hi"}`, "Authorization", "Bearer "+token).Code)
}

func TestNewRejectsInvalidHash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthTokenHash = "not-bcrypt"
	_, err := New(cfg, &fakeResponder{})
	assert.ErrorIs(t, err, auth.ErrInvalidHash)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.ServerConfig{Addr: ":9000", ReadTimeout: time.Second, AuthTokenHash: "h"})
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, DefaultConfig().WriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, "h", cfg.AuthTokenHash)
}

func TestWebSocketChat(t *testing.T) {
	s, resp := newTestServer(t, DefaultConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user_id=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "message", Content: "hello"}))
	var reply WSMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, WSMessage{Type: "response", Content: "echo: hello", Route: "local_simple", Reason: "short_message"}, reply)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "message", Content: "again", UserID: "bob"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "echo: again", reply.Content)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "message", Content: ""}))
	reply = WSMessage{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, WSMessage{Type: "error", Content: "message is required"}, reply)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "subscribe"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)

	resp.mu.Lock()
	assert.Equal(t, []string{"alice", "bob"}, resp.users)
	resp.mu.Unlock()
}

func TestWebSocketAuth(t *testing.T) {
	token := "websocket-token-0123"
	hash, err := auth.HashToken(token, bcrypt.MinCost)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.AuthTokenHash = hash
	s, _ := newTestServer(t, cfg)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, httpResp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, httpResp)
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShutdownTimeout = 2 * time.Second
	s, _ := newTestServer(t, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Post(url+"/query", "application/json", bytes.NewBufferString(`{"message":"hi"}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	wsConn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer wsConn.Close()
	require.NoError(t, wsConn.WriteJSON(WSMessage{Type: "message", Content: "ping"}))
	var reply WSMessage
	require.NoError(t, wsConn.ReadJSON(&reply))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, _, err = wsConn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
