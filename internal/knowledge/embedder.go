package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/normanking/switchboard/internal/config"
)

// Embedder turns text into fixed-dimension vectors.
// It matches langchaingo's embeddings.Embedder.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var _ Embedder = (embeddings.Embedder)(nil)

// NewEmbedder builds an embedder from configuration.
// Provider "ollama" talks to a local Ollama server; "openai" talks to any
// OpenAI-compatible embeddings endpoint.
func NewEmbedder(cfg config.EmbedderConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.Endpoint != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Endpoint))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return newLangchainEmbedder(client)

	case "openai":
		opts := []openai.Option{
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return newLangchainEmbedder(client)

	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func newLangchainEmbedder(client embeddings.EmbedderClient) (Embedder, error) {
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return e, nil
}

// checkVectors verifies count and dimension of an embedder response.
func checkVectors(vectors [][]float32, want, dimension int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), dimension, ErrDimensionMismatch)
		}
	}
	return nil
}
