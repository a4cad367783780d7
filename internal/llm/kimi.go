package llm

// KimiProvider implements Backend for Moonshot's Kimi models, the planning route.
type KimiProvider struct {
	openAICompatProvider
}

// NewKimiProvider creates a new Kimi provider against the Moonshot
// OpenAI-compatible endpoint.
func NewKimiProvider(cfg *ProviderConfig) *KimiProvider {
	return &KimiProvider{
		openAICompatProvider: openAICompatProvider{
			baseProvider: newBaseProvider(cfg, "kimi"),
			label:        "Kimi",
		},
	}
}

var _ Backend = (*KimiProvider)(nil)
