package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/normanking/switchboard/internal/llm"
)

const (
	// classifierInputChars bounds the message excerpt sent to the classifier.
	classifierInputChars = 500

	// classifierMaxTokens bounds the classifier's answer.
	classifierMaxTokens = 16

	classifierPrompt = `<start_of_turn>user
Classify this request. Reply with exactly one word.

Categories:
- LOCAL  : short chat, simple question, quick fact
- GROQ   : analysis, comparison, step-by-step reasoning, deep explanation
- GEMINI : long text summary, large document processing
- KIMI   : planning, roadmap, strategy, workflow, project steps

Request: %s
<end_of_turn>
<start_of_turn>model
`
)

// Classifier asks the local backend which route a message needs.
type Classifier struct {
	backend llm.Backend
	labels  map[string]Route
}

// NewClassifier creates a classifier over backend with the given vocabulary.
func NewClassifier(backend llm.Backend, labels map[string]Route) *Classifier {
	if len(labels) == 0 {
		labels = DefaultClassifierLabels()
	}
	return &Classifier{backend: backend, labels: labels}
}

// Classify returns the route for msg. Any backend failure or unparseable
// answer is a *ClassificationError.
func (c *Classifier) Classify(ctx context.Context, msg string) (Route, error) {
	if c.backend == nil {
		return "", &ClassificationError{Err: fmt.Errorf("no classifier backend")}
	}

	prompt := fmt.Sprintf(classifierPrompt, truncateRunes(msg, classifierInputChars))
	raw, err := c.backend.Generate(ctx, prompt, llm.WithMaxTokens(classifierMaxTokens))
	if err != nil {
		return "", &ClassificationError{Err: err}
	}

	label, ok := ParseLabel(raw, c.labels)
	if !ok {
		return "", &ClassificationError{Output: raw}
	}
	return c.labels[label], nil
}

// ParseLabel accepts only the first whitespace-separated token of raw. It is
// uppercased, stripped of trailing ".,!?:" and must then be a key of labels.
func ParseLabel(raw string, labels map[string]Route) (string, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", false
	}
	candidate := normalizeLabel(fields[0])
	if _, ok := labels[candidate]; !ok {
		return "", false
	}
	return candidate, true
}

func normalizeLabel(s string) string {
	return strings.TrimRight(strings.ToUpper(strings.TrimSpace(s)), ".,!?:")
}
