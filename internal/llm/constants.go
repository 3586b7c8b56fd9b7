package llm

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderGemini

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI = "openai"

	// ProviderOllama represents the Ollama provider
	ProviderOllama = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini = "gemini"

	// providerGoogleAlias is accepted in LLM_PROVIDER for compatibility with
	// older .env files and maps to ProviderGemini.
	providerGoogleAlias = "google"
)

// Embedding model constants
const (
	// DefaultOpenAIEmbeddingModel is the default embedding model for OpenAI
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"

	// DefaultOllamaEmbeddingModel is the default embedding model for Ollama
	DefaultOllamaEmbeddingModel = "nomic-embed-text"

	// DefaultGeminiEmbeddingModel is the default embedding model for Gemini
	DefaultGeminiEmbeddingModel = "text-embedding-004"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// Generation defaults applied when configuration leaves them unset.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// DefaultModelForProvider returns the default model ID for a given provider.
func DefaultModelForProvider(provider string) string {
	return GetDefaultModelID(provider)
}

// DefaultEmbeddingModelForProvider returns the embedding model used when
// llm.embeddingModel is not configured. Anthropic has no embedding API.
func DefaultEmbeddingModelForProvider(provider Provider) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIEmbeddingModel
	case ProviderOllama:
		return DefaultOllamaEmbeddingModel
	case ProviderGemini:
		return DefaultGeminiEmbeddingModel
	default:
		return ""
	}
}
