package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// maxStderrSnippet bounds how much llama.cpp stderr is carried in an error.
const maxStderrSnippet = 400

// LocalConfig configures the llama.cpp process backend.
type LocalConfig struct {
	Binary      string
	ModelPath   string
	Threads     int
	ContextSize int
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultLocalConfig returns the defaults for a small instruction-tuned model.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		Threads:     4,
		ContextSize: 2048,
		MaxTokens:   256,
		Temperature: DefaultTemperature,
		Timeout:     120 * time.Second,
	}
}

// LocalProvider runs a llama.cpp CLI binary once per Generate call.
type LocalProvider struct {
	config LocalConfig
}

// NewLocalProvider creates a llama.cpp backend. Zero fields take defaults.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	d := DefaultLocalConfig()
	if cfg.Threads <= 0 {
		cfg.Threads = d.Threads
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = d.ContextSize
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = d.Temperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &LocalProvider{config: cfg}
}

var _ Backend = (*LocalProvider)(nil)

// Name returns "local".
func (p *LocalProvider) Name() string {
	return "local"
}

// Available reports whether both the binary and the model file exist.
func (p *LocalProvider) Available() bool {
	return fileExists(p.config.Binary) && fileExists(p.config.ModelPath)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// buildArgs returns the llama.cpp command line for one prompt.
func (p *LocalProvider) buildArgs(prompt string, maxTokens int, temperature float64) []string {
	return []string{
		"-m", p.config.ModelPath,
		"-t", strconv.Itoa(p.config.Threads),
		"-c", strconv.Itoa(p.config.ContextSize),
		"-n", strconv.Itoa(maxTokens),
		"--temp", strconv.FormatFloat(temperature, 'f', -1, 64),
		"-p", prompt,
		"-ngl", "0",
		"--log-disable",
		"--no-display-prompt",
	}
}

// Generate runs llama.cpp and returns its stdout with any echoed prompt removed.
// The process is killed when the configured timeout elapses.
func (p *LocalProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	if !fileExists(p.config.Binary) {
		return "", fmt.Errorf("llama executable not found: %s: %w", p.config.Binary, ErrNotConfigured)
	}
	if !fileExists(p.config.ModelPath) {
		return "", fmt.Errorf("model file not found: %s: %w", p.config.ModelPath, ErrNotConfigured)
	}

	o := applyOptions(opts)
	maxTokens := p.config.MaxTokens
	if o.maxTokens > 0 {
		maxTokens = o.maxTokens
	}
	temperature := p.config.Temperature
	if o.temperature > 0 {
		temperature = o.temperature
	}

	runCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.config.Binary, p.buildArgs(prompt, maxTokens, temperature)...)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("llama.cpp inference timed out after %s: %w", p.config.Timeout, ErrTimeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("llama.cpp inference cancelled: %w", ctxErr)
	}
	if err != nil {
		snippet := stderr.String()
		if len(snippet) > maxStderrSnippet {
			snippet = snippet[:maxStderrSnippet]
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("llama.cpp exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(snippet))
		}
		return "", fmt.Errorf("run llama.cpp: %w", err)
	}

	output := strings.TrimSpace(stdout.String())

	// Older llama-cli builds ignore --no-display-prompt
	if strings.HasPrefix(output, prompt) {
		output = strings.TrimSpace(output[len(prompt):])
	}

	if output == "" {
		return "", fmt.Errorf("local: %w", ErrEmptyResponse)
	}
	return output, nil
}
