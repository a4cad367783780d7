// Package llm provides the generation backends switchboard routes between:
// an on-device llama.cpp process and the Groq, Gemini and Kimi HTTP APIs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Security limits to prevent unbounded memory usage
const (
	// MaxErrorBodySize limits how much error response body we read (1MB)
	MaxErrorBodySize = 1 * 1024 * 1024

	// MaxResponseSize limits a decoded success body (8MB)
	MaxResponseSize = 8 * 1024 * 1024
)

// DefaultTemperature is used by every backend unless overridden.
const DefaultTemperature = 0.2

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

var (
	// ErrNotConfigured means the backend lacks credentials or binaries and
	// was never called.
	ErrNotConfigured = errors.New("backend not configured")

	// ErrTimeout means the backend did not answer within its deadline.
	ErrTimeout = errors.New("generation timed out")

	// ErrEmptyResponse means the backend answered with no text.
	ErrEmptyResponse = errors.New("empty response")
)

// StatusError is a non-2xx answer from a remote backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Backend, e.StatusCode, e.Body)
}

// Backend is a text generation capability.
type Backend interface {
	// Generate returns the completion for a fully assembled prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// Name returns the backend identifier.
	Name() string

	// Available reports whether the backend is configured to be called.
	Available() bool
}

// GenerateOption tweaks a single Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	maxTokens   int
	temperature float64
}

// WithMaxTokens caps the completion length for one call.
func WithMaxTokens(n int) GenerateOption {
	return func(o *generateOptions) { o.maxTokens = n }
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

func applyOptions(opts []GenerateOption) generateOptions {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ═══════════════════════════════════════════════════════════════════════════════
// CHAT MODEL
// ═══════════════════════════════════════════════════════════════════════════════

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	// Model to use (provider-specific).
	Model string `json:"model"`

	// Messages in the conversation.
	Messages []Message `json:"messages"`

	// MaxTokens limits response length (0 = provider default).
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse contains the LLM's response.
type ChatResponse struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Duration         time.Duration `json:"duration"`
	FinishReason     string        `json:"finish_reason,omitempty"`
}

// chatter is implemented by the HTTP providers.
type chatter interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ProviderConfig contains configuration for a remote provider.
type ProviderConfig struct {
	// Name identifies the provider (groq, gemini, kimi).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the default model to use.
	Model string

	// MaxTokens default for responses (0 = let the API decide).
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout for API calls.
	Timeout time.Duration

	// RequestsPerMinute throttles outbound calls (0 = unlimited).
	RequestsPerMinute int
}

// DefaultConfig returns defaults for a provider.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "groq":
		return &ProviderConfig{
			Name:              "groq",
			Endpoint:          "https://api.groq.com/openai/v1",
			Model:             "llama-3.1-8b-instant",
			Temperature:       DefaultTemperature,
			Timeout:           25 * time.Second,
			RequestsPerMinute: 30,
		}
	case "gemini":
		return &ProviderConfig{
			Name:              "gemini",
			Endpoint:          "https://generativelanguage.googleapis.com/v1beta",
			Model:             "gemini-1.5-flash",
			Temperature:       DefaultTemperature,
			Timeout:           25 * time.Second,
			RequestsPerMinute: 15,
		}
	case "kimi":
		return &ProviderConfig{
			Name:              "kimi",
			Endpoint:          "https://api.moonshot.ai/v1",
			Model:             "moonshot-v1-8k",
			Temperature:       DefaultTemperature,
			Timeout:           25 * time.Second,
			RequestsPerMinute: 20,
		}
	default:
		return &ProviderConfig{
			Name:        name,
			Temperature: DefaultTemperature,
			Timeout:     25 * time.Second,
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// BASE PROVIDER (shared by the HTTP providers)
// ═══════════════════════════════════════════════════════════════════════════════

type baseProvider struct {
	config  *ProviderConfig
	client  *http.Client
	limiter *RateLimiter
}

func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	defaults := DefaultConfig(providerName)
	if cfg == nil {
		cfg = defaults
	}

	c := *cfg
	if c.Endpoint == "" {
		c.Endpoint = defaults.Endpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Temperature == 0 {
		c.Temperature = defaults.Temperature
	}
	c.Name = providerName

	return baseProvider{
		config: &c,
		client: &http.Client{Timeout: c.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks if the API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}

// SetRateLimiter attaches a shared limiter; calls wait for a slot first.
func (b *baseProvider) SetRateLimiter(rl *RateLimiter) {
	b.limiter = rl
	if rl != nil {
		rl.SetLimits(b.config.Name, b.config.RequestsPerMinute)
	}
}

// generate sends prompt as a single user message through c.
func (b *baseProvider) generate(ctx context.Context, c chatter, prompt string, opts []GenerateOption) (string, error) {
	if !b.Available() {
		return "", fmt.Errorf("%s: %w", b.config.Name, ErrNotConfigured)
	}

	if b.limiter != nil {
		if err := b.limiter.Acquire(ctx, b.config.Name); err != nil {
			return "", err
		}
	}

	o := applyOptions(opts)
	resp, err := c.Chat(ctx, &ChatRequest{
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", wrapTransportError(b.config.Name, err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", b.config.Name, ErrEmptyResponse)
	}
	return text, nil
}

// wrapTransportError maps deadline failures onto ErrTimeout.
func wrapTransportError(name string, err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %v", name, ErrTimeout, err)
	}
	return err
}
