package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiProvider implements Backend for Google Gemini, the long-context route.
type GeminiProvider struct {
	baseProvider
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg *ProviderConfig) *GeminiProvider {
	return &GeminiProvider{
		baseProvider: newBaseProvider(cfg, "gemini"),
	}
}

var _ Backend = (*GeminiProvider)(nil)

// Generate implements Backend.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return p.generate(ctx, p, prompt, opts)
}

// Chat sends a chat request to Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	geminiReq := geminiGenerateRequest{
		Contents: []geminiContent{},
	}

	geminiReq.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if geminiReq.GenerationConfig.MaxOutputTokens == 0 {
		geminiReq.GenerationConfig.MaxOutputTokens = p.config.MaxTokens
	}
	geminiReq.GenerationConfig.Temperature = req.Temperature
	if geminiReq.GenerationConfig.Temperature == 0 {
		geminiReq.GenerationConfig.Temperature = p.config.Temperature
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			geminiReq.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: msg.Content}},
			}
			continue
		}
		role := msg.Role
		// Gemini uses "user" and "model" instead of "assistant"
		if role == "assistant" {
			role = "model"
		}
		geminiReq.Contents = append(geminiReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Key goes in a header, never the URL, so it stays out of logs
	url := fmt.Sprintf("%s/models/%s:generateContent", p.config.Endpoint, model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &StatusError{Backend: "Gemini", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var geminiResp geminiGenerateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var content strings.Builder
	candidate := geminiResp.Candidates[0]
	for _, part := range candidate.Content.Parts {
		content.WriteString(part.Text)
	}

	return &ChatResponse{
		Content:          content.String(),
		Model:            model,
		PromptTokens:     geminiResp.UsageMetadata.PromptTokenCount,
		CompletionTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
		Duration:         time.Since(start),
		FinishReason:     candidate.FinishReason,
	}, nil
}

// Gemini API types
type geminiGenerateRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
