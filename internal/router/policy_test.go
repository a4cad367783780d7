package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/llm"
)

func TestDetectSignals(t *testing.T) {
	tests := []struct {
		msg  string
		want Signals
	}{
		{"hello", Signals{Length: 5}},
		{"Draft a ROADMAP", Signals{Planning: true, Length: 15}},
		{"weigh the pros and cons", Signals{Reasoning: true, Length: 23}},
		{"look up the docs", Signals{Retrieval: true, Length: 16}},
		{"plan and compare the documentation", Signals{Planning: true, Reasoning: true, Retrieval: true, Length: 34}},
		{"日本語", Signals{Length: 3}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSignals(tt.msg), tt.msg)
	}
}

func TestFastPathBoundaries(t *testing.T) {
	cfg := Config{ShortMessageThreshold: 5, LongContextThreshold: 10}

	route, reason, ok := fastPath(cfg, Signals{Length: 5})
	require.True(t, ok)
	assert.Equal(t, RouteLocalSimple, route)
	assert.Equal(t, ReasonShortMessage, reason)

	_, _, ok = fastPath(cfg, Signals{Length: 6})
	assert.False(t, ok)

	route, reason, ok = fastPath(cfg, Signals{Length: 10})
	require.True(t, ok)
	assert.Equal(t, RouteGemini, route)
	assert.Equal(t, ReasonLongContext, reason)

	route, _, ok = fastPath(cfg, Signals{Length: 3, Retrieval: true})
	require.True(t, ok)
	assert.Equal(t, RouteLocalSimple, route, "short messages ignore the retrieval signal")
}

func TestParseLabel(t *testing.T) {
	labels := DefaultClassifierLabels()
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"GROQ", "GROQ", true},
		{"groq", "GROQ", true},
		{" Gemini. ", "GEMINI", true},
		{"KIMI!\n", "KIMI", true},
		{"Answer: LOCAL", "", false},
		{"Answer: GROQ", "", false},
		{"local, obviously", "LOCAL", true},
		{"GROQ GEMINI", "GROQ", true},
		{"maybe KIMI", "", false},
		{"...GROQ", "", false},
		{"GROQY", "", false},
		{"", "", false},
		{"I'm not sure", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseLabel(tt.raw, labels)
		assert.Equal(t, tt.wantOK, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestClassifierErrors(t *testing.T) {
	c := NewClassifier(nil, nil)
	_, err := c.Classify(context.Background(), "anything")
	var ce *ClassificationError
	require.ErrorAs(t, err, &ce)

	backend := &MockBackend{name: "local", available: true, classify: "dunno"}
	c = NewClassifier(backend, nil)
	_, err = c.Classify(context.Background(), "anything")
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dunno", ce.Output)
	assert.Contains(t, err.Error(), `"dunno"`)

	backend.classifyErr = llm.ErrTimeout
	_, err = c.Classify(context.Background(), "anything")
	assert.ErrorIs(t, err, llm.ErrTimeout)
}

func TestBuildLocalPrompt(t *testing.T) {
	got := BuildLocalPrompt(PromptParts{
		System:    "SYS",
		History:   "HIST",
		Knowledge: "KB",
		Message:   "hello",
	})
	want := "<start_of_turn>system\nSYS\n" +
		"\nConversation history:\nHIST\n" +
		"\nRetrieved knowledge:\nKB\n" +
		"<end_of_turn>\n<start_of_turn>user\nhello<end_of_turn>\n<start_of_turn>model\n"
	assert.Equal(t, want, got)

	got = BuildLocalPrompt(PromptParts{System: "SYS", Message: "hello"})
	assert.Equal(t, "<start_of_turn>system\nSYS\n<end_of_turn>\n<start_of_turn>user\nhello<end_of_turn>\n<start_of_turn>model\n", got)
}

func TestBuildRemotePrompt(t *testing.T) {
	got := BuildRemotePrompt(PromptParts{
		System:    "SYS",
		History:   "HIST",
		Knowledge: "KB",
		Message:   "hello",
	})
	assert.Equal(t, "SYS\n\nHIST\n\n=== Retrieved Knowledge ===\nKB\n\nUser: hello\nAssistant:", got)

	got = BuildRemotePrompt(PromptParts{System: "SYS", Message: "hello"})
	assert.Equal(t, "SYS\n\nUser: hello\nAssistant:", got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo wörld", 5))
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
	assert.Equal(t, "", truncateRunes("", 4))
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RouterConfig{
		ShortMessageThreshold: 80,
		LongContextThreshold:  900,
		ClassifierEnabled:     false,
		ClassifierLabels:      map[string]string{"fast": "local_simple", "Deep": "groq"},
		FallbackStrategy:      "chain",
		TopK:                  5,
		MaxInputChars:         4000,
	})

	assert.Equal(t, 80, cfg.ShortMessageThreshold)
	assert.Equal(t, 900, cfg.LongContextThreshold)
	assert.False(t, cfg.ClassifierEnabled)
	assert.Equal(t, FallbackChain, cfg.FallbackStrategy)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 4000, cfg.MaxInputChars)
	assert.Equal(t, map[string]Route{"FAST": RouteLocalSimple, "DEEP": RouteGroq}, cfg.ClassifierLabels)

	cfg = ConfigFrom(config.RouterConfig{})
	assert.Equal(t, FallbackLocal, cfg.FallbackStrategy)
	assert.Equal(t, DefaultClassifierLabels(), cfg.ClassifierLabels)
}

func TestRouteKinds(t *testing.T) {
	for _, r := range []Route{RouteLocalSimple, RouteLocalRAG, RouteLocalFallback} {
		assert.True(t, r.IsLocal(), r)
		assert.False(t, r.IsRemote(), r)
	}
	for _, r := range RemoteChain {
		assert.True(t, r.IsRemote(), r)
		assert.False(t, r.IsLocal(), r)
	}
	assert.False(t, RouteError.IsLocal())
	assert.False(t, RouteError.IsRemote())
	assert.Equal(t, "kimi_unavailable", UnavailableReason(RouteKimi))
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("boom")

	err := error(&TotalOutageError{Attempts: []error{
		&TransientBackendError{Backend: RouteGroq, Err: cause},
		&ConfigurationError{Backend: "local", Err: llm.ErrNotConfigured},
	}})
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
	assert.True(t, strings.HasPrefix(err.Error(), "all backends failed: backend groq failed: boom; "))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, Route("local"), cfgErr.Backend)

	assert.Equal(t, "backend kimi not configured", (&ConfigurationError{Backend: RouteKimi}).Error())
}

func TestStatsLocalRatioEmpty(t *testing.T) {
	var s Stats
	assert.Zero(t, s.LocalRatio())
}
