package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/router"
)

// ═══════════════════════════════════════════════════════════════════════════════
// API TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string          `json:"status"`
	Uptime          string          `json:"uptime"`
	Backends        map[string]bool `json:"backends"`
	KnowledgeChunks int             `json:"knowledge_chunks"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// TurnResponse is one history entry.
type TurnResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is returned by GET /history/{user}.
type HistoryResponse struct {
	UserID string         `json:"user_id"`
	Turns  []TurnResponse `json:"turns"`
}

// SearchRequest is the body of POST /knowledge/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchHit is one search result.
type SearchHit struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

// SearchResponse is returned by POST /knowledge/search.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ═══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Backends: s.responder.Backends(),
	}
	if s.knowledge != nil {
		resp.KnowledgeChunks = s.knowledge.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.responder.Respond(r.Context(), req.Message, req.UserID)
	if errors.Is(err, router.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation memory is not configured")
		return
	}
	user := mux.Vars(r)["user"]

	turns, err := s.memory.GetHistory(r.Context(), user)
	if err != nil {
		logging.FromContext(r.Context()).Warn("history for %s: %v", user, err)
		writeError(w, http.StatusServiceUnavailable, "conversation memory unavailable")
		return
	}

	resp := HistoryResponse{UserID: user, Turns: make([]TurnResponse, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, TurnResponse{Role: string(t.Role), Content: t.Content, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation memory is not configured")
		return
	}
	user := mux.Vars(r)["user"]

	if err := s.memory.Clear(r.Context(), user); err != nil {
		logging.FromContext(r.Context()).Warn("clear history for %s: %v", user, err)
		writeError(w, http.StatusServiceUnavailable, "conversation memory unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusServiceUnavailable, "knowledge store is not configured")
		return
	}

	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	topK = min(topK, s.cfg.MaxTopK)

	results, err := s.knowledge.Query(r.Context(), req.Query, topK)
	if err != nil {
		logging.FromContext(r.Context()).Warn("search failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "knowledge search unavailable")
		return
	}

	resp := SearchResponse{Results: make([]SearchHit, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchHit{
			Source:     res.Source,
			ChunkIndex: res.ChunkIndex,
			Content:    res.Content,
			Distance:   res.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.responder.Stats()
	writeJSON(w, http.StatusOK, struct {
		router.Stats
		LocalRatio float64 `json:"local_ratio"`
	}{stats, stats.LocalRatio()})
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// decode reads a JSON body into v, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
