package llm

import (
	"github.com/normanking/switchboard/internal/config"
)

// NewRegistryFromConfig builds the local backend and the three remote
// providers from cfg. Every backend is wrapped in a MetricsBackend and the
// remotes share one RateLimiter. Backends without credentials are still
// registered; they report Available() == false.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	reg := NewRegistry()
	limiter := NewRateLimiter()

	reg.Register(NewMetricsBackend(NewLocalProvider(LocalConfig{
		Binary:      cfg.Local.Binary,
		ModelPath:   cfg.Local.ModelPath,
		Threads:     cfg.Local.Threads,
		ContextSize: cfg.Local.ContextSize,
		MaxTokens:   cfg.Local.MaxTokens,
		Temperature: cfg.Local.Temperature,
		Timeout:     cfg.Local.Timeout,
	})))

	groq := NewGroqProvider(providerConfig("groq", cfg.Providers.Groq))
	groq.SetRateLimiter(limiter)
	reg.Register(NewMetricsBackend(groq))

	gemini := NewGeminiProvider(providerConfig("gemini", cfg.Providers.Gemini))
	gemini.SetRateLimiter(limiter)
	reg.Register(NewMetricsBackend(gemini))

	kimi := NewKimiProvider(providerConfig("kimi", cfg.Providers.Kimi))
	kimi.SetRateLimiter(limiter)
	reg.Register(NewMetricsBackend(kimi))

	return reg
}

func providerConfig(name string, pc config.ProviderConfig) *ProviderConfig {
	return &ProviderConfig{
		Name:              name,
		Endpoint:          pc.Endpoint,
		APIKey:            pc.APIKey,
		Model:             pc.Model,
		Temperature:       DefaultTemperature,
		Timeout:           pc.Timeout,
		RequestsPerMinute: pc.RequestsPerMinute,
	}
}
