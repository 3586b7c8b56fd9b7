package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Model is a catalogue entry: identity, context size and pricing.
type Model struct {
	ID            string   // Canonical model ID (e.g., "gpt-4o-mini")
	Provider      string   // Provider display name (e.g., "OpenAI")
	ProviderID    string   // Internal provider ID (e.g., "openai")
	Aliases       []string // Alternative IDs including dated versions
	ContextWindow int      // Maximum input tokens
	InputPer1M    float64  // $ per 1M input tokens
	OutputPer1M   float64  // $ per 1M output tokens
	IsDefault     bool     // Whether this is the default model for its provider
}

// DefaultContextWindow is used when a model is not in the catalogue.
const DefaultContextWindow = 32768

// ModelRegistry lists the models genesis knows how to price and select.
// Prices last updated: 2025-12
var ModelRegistry = []Model{
	// OpenAI
	{ID: "gpt-4o-mini", Provider: "OpenAI", ProviderID: ProviderOpenAI, Aliases: []string{"gpt-4o-mini-2024-07-18"}, ContextWindow: 128000, InputPer1M: 0.15, OutputPer1M: 0.60, IsDefault: true},
	{ID: "gpt-4o", Provider: "OpenAI", ProviderID: ProviderOpenAI, Aliases: []string{"gpt-4o-2024-08-06"}, ContextWindow: 128000, InputPer1M: 2.50, OutputPer1M: 10.00},
	{ID: "gpt-4.1-mini", Provider: "OpenAI", ProviderID: ProviderOpenAI, Aliases: []string{"gpt-4.1-mini-2025-04-14"}, ContextWindow: 1047576, InputPer1M: 0.40, OutputPer1M: 1.60},
	{ID: "gpt-4-turbo", Provider: "OpenAI", ProviderID: ProviderOpenAI, ContextWindow: 128000, InputPer1M: 10.00, OutputPer1M: 30.00},
	{ID: "gpt-3.5-turbo", Provider: "OpenAI", ProviderID: ProviderOpenAI, ContextWindow: 16385, InputPer1M: 0.50, OutputPer1M: 1.50},

	// Anthropic
	{ID: "claude-3-5-sonnet-latest", Provider: "Anthropic", ProviderID: ProviderAnthropic, Aliases: []string{"claude-3-5-sonnet-20241022"}, ContextWindow: 200000, InputPer1M: 3.00, OutputPer1M: 15.00, IsDefault: true},
	{ID: "claude-3-5-haiku-latest", Provider: "Anthropic", ProviderID: ProviderAnthropic, Aliases: []string{"claude-3-5-haiku-20241022"}, ContextWindow: 200000, InputPer1M: 0.80, OutputPer1M: 4.00},
	{ID: "claude-3-opus-latest", Provider: "Anthropic", ProviderID: ProviderAnthropic, Aliases: []string{"claude-3-opus-20240229"}, ContextWindow: 200000, InputPer1M: 15.00, OutputPer1M: 75.00},

	// Google
	{ID: "gemini-2.0-flash", Provider: "Google", ProviderID: ProviderGemini, ContextWindow: 1048576, InputPer1M: 0.10, OutputPer1M: 0.40, IsDefault: true},
	{ID: "gemini-2.0-flash-lite", Provider: "Google", ProviderID: ProviderGemini, ContextWindow: 1048576, InputPer1M: 0.075, OutputPer1M: 0.30},
	{ID: "gemini-2.5-flash", Provider: "Google", ProviderID: ProviderGemini, ContextWindow: 1048576, InputPer1M: 0.30, OutputPer1M: 2.50},
	{ID: "gemini-2.5-pro", Provider: "Google", ProviderID: ProviderGemini, ContextWindow: 1048576, InputPer1M: 1.25, OutputPer1M: 10.00},
	{ID: "gemini-1.5-pro", Provider: "Google", ProviderID: ProviderGemini, ContextWindow: 2097152, InputPer1M: 1.25, OutputPer1M: 5.00},

	// Ollama (local, no pricing)
	{ID: "llama3.2", Provider: "Ollama", ProviderID: ProviderOllama, ContextWindow: 131072, IsDefault: true},
}

// modelIndex is built at init time for fast lookups
var modelIndex map[string]*Model

func init() {
	buildModelIndex()
}

func buildModelIndex() {
	modelIndex = make(map[string]*Model)
	for i := range ModelRegistry {
		m := &ModelRegistry[i]
		modelIndex[m.ID] = m
		for _, alias := range m.Aliases {
			modelIndex[alias] = m
		}
	}
}

// GetModel returns the model definition for a given model ID or alias.
// Returns nil if the model is not found.
func GetModel(modelID string) *Model {
	return modelIndex[modelID]
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(providerID string) *Model {
	for i := range ModelRegistry {
		m := &ModelRegistry[i]
		if m.ProviderID == providerID && m.IsDefault {
			return m
		}
	}
	return nil
}

// GetDefaultModelID returns the default model ID for a provider.
func GetDefaultModelID(providerID string) string {
	if m := GetDefaultModel(providerID); m != nil {
		return m.ID
	}
	return ""
}

// ContextWindowFor returns the catalogue context window or DefaultContextWindow.
func ContextWindowFor(modelID string) int {
	if m := GetModel(modelID); m != nil && m.ContextWindow > 0 {
		return m.ContextWindow
	}
	return DefaultContextWindow
}

// InferProvider attempts to determine the provider from a model name.
func InferProvider(modelID string) (string, bool) {
	if m := GetModel(modelID); m != nil {
		return m.ProviderID, true
	}

	switch {
	case strings.HasPrefix(modelID, "gpt-"), strings.HasPrefix(modelID, "o1-"), strings.HasPrefix(modelID, "o3-"):
		return ProviderOpenAI, true
	case strings.HasPrefix(modelID, "claude-"):
		return ProviderAnthropic, true
	case strings.HasPrefix(modelID, "gemini-"):
		return ProviderGemini, true
	case strings.HasPrefix(modelID, "llama"), strings.HasPrefix(modelID, "mistral"), strings.HasPrefix(modelID, "phi"):
		return ProviderOllama, true
	}

	return "", false
}

// ModelOption is a catalogue row prepared for display.
type ModelOption struct {
	ID            string
	Provider      string
	ContextWindow int
	PriceInfo     string
	IsDefault     bool
}

// ModelsForProvider returns catalogue rows for a provider, or every row
// when providerID is empty. Defaults sort first, then by ID.
func ModelsForProvider(providerID string) []ModelOption {
	var options []ModelOption
	for _, m := range ModelRegistry {
		if providerID != "" && m.ProviderID != providerID {
			continue
		}
		options = append(options, ModelOption{
			ID:            m.ID,
			Provider:      m.ProviderID,
			ContextWindow: m.ContextWindow,
			PriceInfo:     formatPriceInfo(m.InputPer1M, m.OutputPer1M),
			IsDefault:     m.IsDefault,
		})
	}

	sort.Slice(options, func(i, j int) bool {
		if options[i].Provider != options[j].Provider {
			return options[i].Provider < options[j].Provider
		}
		if options[i].IsDefault != options[j].IsDefault {
			return options[i].IsDefault
		}
		return options[i].ID < options[j].ID
	})
	return options
}

func formatPriceInfo(input, output float64) string {
	if input == 0 && output == 0 {
		return "local/free"
	}
	return fmt.Sprintf("$%.2f/$%.2f per 1M tokens", input, output)
}

// CalculateCost calculates cost in USD for token usage.
// Unknown models cost zero.
func CalculateCost(modelID string, inputTokens, outputTokens int) float64 {
	m := GetModel(modelID)
	if m == nil {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * m.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * m.OutputPer1M
	return inputCost + outputCost
}
