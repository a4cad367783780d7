package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openAICompatProvider speaks the OpenAI /chat/completions dialect that both
// Groq and Moonshot (Kimi) expose.
type openAICompatProvider struct {
	baseProvider
	label string // human name used in error messages
}

// Chat sends a chat request to the /chat/completions endpoint.
func (p *openAICompatProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("%s API key not configured", p.label)
	}

	start := time.Now()

	chatReq := openAIChatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if chatReq.Model == "" {
		chatReq.Model = p.config.Model
	}
	if chatReq.MaxTokens == 0 {
		chatReq.MaxTokens = p.config.MaxTokens
	}
	if chatReq.Temperature == 0 {
		chatReq.Temperature = p.config.Temperature
	}
	for _, msg := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, openAIMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &StatusError{Backend: p.label, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := chatResp.Choices[0]
	return &ChatResponse{
		Content:          choice.Message.Content,
		Model:            chatResp.Model,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		Duration:         time.Since(start),
		FinishReason:     choice.FinishReason,
	}, nil
}

// Generate implements Backend.
func (p *openAICompatProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return p.generate(ctx, p, prompt, opts)
}

// OpenAI-compatible API types
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
