package llm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		in     int
		out    int
		wantUS float64
	}{
		{"known model", "gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"alias resolves", "gpt-4o-mini-2024-07-18", 1_000_000, 0, 0.15},
		{"local model is free", "llama3.2", 5000, 5000, 0},
		{"unknown model is free", "mystery-model", 1000, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(tt.model, tt.in, tt.out)
			if math.Abs(got-tt.wantUS) > 1e-9 {
				t.Errorf("CalculateCost(%q) = %v, want %v", tt.model, got, tt.wantUS)
			}
		})
	}
}

func TestContextWindowFor(t *testing.T) {
	assert.Equal(t, 128000, ContextWindowFor("gpt-4o"))
	assert.Equal(t, DefaultContextWindow, ContextWindowFor("not-in-catalogue"))
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model        string
		wantProvider string
		wantOK       bool
	}{
		{"gpt-4-turbo", ProviderOpenAI, true},
		{"gpt-5", ProviderOpenAI, true},
		{"claude-3-opus-20240229", ProviderAnthropic, true},
		{"gemini-exp-1206", ProviderGemini, true},
		{"llama3.1:8b", ProviderOllama, true},
		{"something-else", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, ok := InferProvider(tt.model)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantProvider, got)
		})
	}
}

func TestModelsForProvider(t *testing.T) {
	gemini := ModelsForProvider(ProviderGemini)
	if assert.NotEmpty(t, gemini) {
		assert.True(t, gemini[0].IsDefault, "default model sorts first")
		assert.Equal(t, "gemini-2.0-flash", gemini[0].ID)
	}
	for _, m := range gemini {
		assert.Equal(t, ProviderGemini, m.Provider)
	}

	all := ModelsForProvider("")
	assert.Len(t, all, len(ModelRegistry))

	ollama := ModelsForProvider(ProviderOllama)
	if assert.Len(t, ollama, 1) {
		assert.Equal(t, "local/free", ollama[0].PriceInfo)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}
