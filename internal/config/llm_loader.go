package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/josephgoksu/genesis/internal/llm"
)

// LoadLLMConfig builds the gateway configuration.
// Precedence: explicit config > environment > defaults.
func LoadLLMConfig() (llm.Config, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = llm.DefaultProvider
	}
	p, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	model := viper.GetString("llm.model")
	if model == "" {
		model = llm.DefaultModelForProvider(string(p))
	}

	baseURL := viper.GetString("llm.baseURL")
	if baseURL == "" && p == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	embeddingModel := viper.GetString("llm.embeddingModel")
	if embeddingModel == "" {
		embeddingModel = llm.DefaultEmbeddingModelForProvider(p)
	}

	maxTokens := viper.GetInt("llm.maxTokens")
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	temperature := llm.DefaultTemperature
	if viper.IsSet("llm.temperature") {
		temperature = viper.GetFloat64("llm.temperature")
	}

	return llm.Config{
		Provider:       p,
		Model:          model,
		EmbeddingModel: embeddingModel,
		APIKey:         ResolveAPIKey(p),
		BaseURL:        baseURL,
		MaxTokens:      maxTokens,
		Temperature:    float32(temperature),
		Timeout:        viper.GetDuration("llm.timeout"),
	}, nil
}

// LoadGatewayOptions returns the rate and retry limits for the chat gateway.
func LoadGatewayOptions() llm.GatewayOptions {
	return llm.GatewayOptions{
		Timeout:           viper.GetDuration("llm.timeout"),
		RequestsPerSecond: viper.GetFloat64("llm.requestsPerSecond"),
		MaxRetries:        viper.GetInt("llm.maxRetries"),
	}
}

// ResolveAPIKey returns the key for provider from llm.apiKeys.<provider>
// or the provider's conventional environment variable.
func ResolveAPIKey(provider llm.Provider) string {
	if key := strings.TrimSpace(viper.GetString(fmt.Sprintf("llm.apiKeys.%s", provider))); key != "" {
		return key
	}
	return providerEnvKey(provider)
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	default:
		return ""
	}
}
