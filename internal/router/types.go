// Package router picks the generation backend for each inbound message,
// enriches its prompt with retrieved knowledge and conversation history, and
// falls back until some backend answers.
package router

import (
	"context"
	"time"

	"github.com/normanking/switchboard/internal/config"
	"github.com/normanking/switchboard/internal/knowledge"
)

// Route identifies the path that produced a response.
type Route string

const (
	// RouteLocalSimple is a plain on-device answer.
	RouteLocalSimple Route = "local_simple"
	// RouteLocalRAG is an on-device answer for a knowledge-base lookup.
	RouteLocalRAG Route = "local_rag"
	// RouteLocalFallback is an on-device answer after a remote backend failed.
	RouteLocalFallback Route = "local_fallback"
	// RouteGroq is the reasoning backend.
	RouteGroq Route = "groq"
	// RouteGemini is the long-context backend.
	RouteGemini Route = "gemini"
	// RouteKimi is the planning backend.
	RouteKimi Route = "kimi"
	// RouteError means every attempted backend failed.
	RouteError Route = "error"
)

// String returns the string representation of a Route.
func (r Route) String() string {
	return string(r)
}

// IsLocal reports whether the route is served by the local backend.
func (r Route) IsLocal() bool {
	return r == RouteLocalSimple || r == RouteLocalRAG || r == RouteLocalFallback
}

// IsRemote reports whether the route names a remote backend.
func (r Route) IsRemote() bool {
	return r == RouteGroq || r == RouteGemini || r == RouteKimi
}

// RemoteChain is the fixed order remote backends are tried in by the
// "chain" fallback strategy.
var RemoteChain = []Route{RouteGroq, RouteGemini, RouteKimi}

// Reason codes name the policy tier or branch that produced a route.
const (
	ReasonShortMessage      = "short_message"
	ReasonPlanning          = "kw_planning"
	ReasonLongContext       = "kw_long_context"
	ReasonReasoning         = "kw_reasoning"
	ReasonRAG               = "kw_rag"
	ReasonClassifier        = "llm_classifier"
	ReasonClassifierLocal   = "llm_classifier_local"
	ReasonClassifierUnavail = "llm_classifier_unavailable"
	ReasonDefault           = "default"
	ReasonTotalOutage       = "total_outage"
	reasonUnavailableSuffix = "_unavailable"
)

// UnavailableReason is the reason code for a fallback away from backend.
func UnavailableReason(backend Route) string {
	return string(backend) + reasonUnavailableSuffix
}

// ApologyText is the only user-visible failure message.
const ApologyText = "Sorry, I couldn't generate a response right now. Please try again shortly."

// FallbackStrategy controls what happens after a remote backend fails.
type FallbackStrategy string

const (
	// FallbackLocal goes straight to the local backend.
	FallbackLocal FallbackStrategy = "local"
	// FallbackChain tries the remaining remotes in RemoteChain order, then local.
	FallbackChain FallbackStrategy = "chain"
)

// Result is the outcome of one message.
type Result struct {
	Route    Route  `json:"route"`
	Reason   string `json:"reason"`
	Response string `json:"response"`
}

// Decision is the output of the routing policy before dispatch.
type Decision struct {
	// Target is the preferred route.
	Target Route `json:"target"`

	// Reason identifies the tier that fired.
	Reason string `json:"reason"`

	// Signals are the keyword signals detected in the message.
	Signals Signals `json:"signals"`

	// Duration is how long the decision took, classifier call included.
	Duration time.Duration `json:"duration"`
}

// Retriever is the knowledge lookup the router consumes.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]knowledge.ChunkResult, error)
}

// Config holds the routing policy parameters.
type Config struct {
	// ShortMessageThreshold is the max length (runes) for the short-message tier.
	ShortMessageThreshold int

	// LongContextThreshold is the min length (runes) for the long-context tier.
	LongContextThreshold int

	// ClassifierEnabled enables the local classifier tier.
	ClassifierEnabled bool

	// ClassifierLabels maps classifier vocabulary to routes.
	ClassifierLabels map[string]Route

	// FallbackStrategy is FallbackLocal or FallbackChain.
	FallbackStrategy FallbackStrategy

	// TopK is the number of chunks retrieved per message.
	TopK int

	// MaxInputChars truncates longer messages before routing (0 = no limit).
	MaxInputChars int

	// MemoryTimeout bounds the post-dispatch history writes.
	MemoryTimeout time.Duration
}

// DefaultConfig returns the default routing policy.
func DefaultConfig() Config {
	return Config{
		ShortMessageThreshold: 150,
		LongContextThreshold:  1200,
		ClassifierEnabled:     true,
		ClassifierLabels:      DefaultClassifierLabels(),
		FallbackStrategy:      FallbackLocal,
		TopK:                  3,
		MaxInputChars:         8000,
		MemoryTimeout:         5 * time.Second,
	}
}

// DefaultClassifierLabels maps LOCAL/GROQ/GEMINI/KIMI to their routes.
func DefaultClassifierLabels() map[string]Route {
	return map[string]Route{
		"LOCAL":  RouteLocalSimple,
		"GROQ":   RouteGroq,
		"GEMINI": RouteGemini,
		"KIMI":   RouteKimi,
	}
}

// ConfigFrom converts the application's router section.
func ConfigFrom(c config.RouterConfig) Config {
	cfg := DefaultConfig()
	cfg.ShortMessageThreshold = c.ShortMessageThreshold
	cfg.LongContextThreshold = c.LongContextThreshold
	cfg.ClassifierEnabled = c.ClassifierEnabled
	cfg.TopK = c.TopK
	cfg.MaxInputChars = c.MaxInputChars
	if c.FallbackStrategy != "" {
		cfg.FallbackStrategy = FallbackStrategy(c.FallbackStrategy)
	}
	if len(c.ClassifierLabels) > 0 {
		cfg.ClassifierLabels = make(map[string]Route, len(c.ClassifierLabels))
		for label, route := range c.ClassifierLabels {
			cfg.ClassifierLabels[normalizeLabel(label)] = Route(route)
		}
	}
	return cfg
}

// Stats tracks routing outcomes for monitoring.
type Stats struct {
	// TotalRequests is the number of messages answered.
	TotalRequests int64 `json:"total_requests"`

	// Fallbacks counts results where the preferred backend was skipped.
	Fallbacks int64 `json:"fallbacks"`

	// Outages counts total-outage results.
	Outages int64 `json:"outages"`

	// ClassifierCalls counts messages that reached the classifier tier.
	ClassifierCalls int64 `json:"classifier_calls"`

	// ByRoute counts results per final route.
	ByRoute map[Route]int64 `json:"by_route"`

	// ByReason counts results per reason code.
	ByReason map[string]int64 `json:"by_reason"`
}

// LocalRatio returns the percentage of messages answered on-device.
func (s *Stats) LocalRatio() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	local := s.ByRoute[RouteLocalSimple] + s.ByRoute[RouteLocalRAG] + s.ByRoute[RouteLocalFallback]
	return float64(local) / float64(s.TotalRequests) * 100
}
