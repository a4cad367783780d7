package router

import (
	"strings"
	"unicode/utf8"
)

// Keyword lists for the fast path. Matching is case-insensitive substring.
var (
	retrievalKeywords = []string{
		"docs", "document", "documentation",
		"from file", "knowledge base", "retrieve", "retrieval",
		"look up", "find in", "according to the",
		"from the knowledge", "cite the source",
	}

	planningKeywords = []string{
		"plan", "roadmap", "strategy", "orchestrate", "workflow", "project steps",
	}

	reasoningKeywords = []string{
		"analyze", "analyse", "compare", "tradeoff", "reason", "justify",
		"deep dive", "pros and cons", "step by step", "root cause", "explain in detail",
	}
)

// Signals are the keyword signals found in a message.
type Signals struct {
	Planning  bool `json:"planning"`
	Reasoning bool `json:"reasoning"`
	Retrieval bool `json:"retrieval"`
	Length    int  `json:"length"`
}

// DetectSignals scans msg once for every signal category.
func DetectSignals(msg string) Signals {
	lower := strings.ToLower(msg)
	return Signals{
		Planning:  containsAny(lower, planningKeywords),
		Reasoning: containsAny(lower, reasoningKeywords),
		Retrieval: containsAny(lower, retrievalKeywords),
		Length:    utf8.RuneCountInString(msg),
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// fastPath applies the short-message and keyword tiers in priority order.
// ok is false when no tier matched.
func fastPath(cfg Config, s Signals) (target Route, reason string, ok bool) {
	if s.Length <= cfg.ShortMessageThreshold && !s.Reasoning && !s.Planning {
		return RouteLocalSimple, ReasonShortMessage, true
	}

	switch {
	case s.Planning:
		return RouteKimi, ReasonPlanning, true
	case s.Length >= cfg.LongContextThreshold:
		return RouteGemini, ReasonLongContext, true
	case s.Reasoning:
		return RouteGroq, ReasonReasoning, true
	case s.Retrieval:
		return RouteLocalRAG, ReasonRAG, true
	}
	return "", "", false
}

// truncateRunes cuts s to at most n runes. n <= 0 disables the limit.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
