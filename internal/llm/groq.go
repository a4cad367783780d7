package llm

// GroqProvider implements Backend for Groq.
// Groq provides fast inference and is the reasoning route.
type GroqProvider struct {
	openAICompatProvider
}

// NewGroqProvider creates a new Groq provider.
// Groq uses an OpenAI-compatible API at https://api.groq.com/openai/v1
func NewGroqProvider(cfg *ProviderConfig) *GroqProvider {
	return &GroqProvider{
		openAICompatProvider: openAICompatProvider{
			baseProvider: newBaseProvider(cfg, "groq"),
			label:        "Groq",
		},
	}
}

var _ Backend = (*GroqProvider)(nil)
