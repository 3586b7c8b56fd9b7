package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/llm/llmtest"
)

const selectorMatch = "expert AI architect"

var analyst = agentspec.StructuredInstruction{
	AgentType:           "data_analyst",
	Capabilities:        []string{"sql", "statistics"},
	Constraints:         []string{"read_only"},
	EstimatedComplexity: agentspec.ComplexityHigh,
}

func TestSelector_WellFormed(t *testing.T) {
	gw := llmtest.New().OnJSON(selectorMatch, `{
		"model_name": "gemini-2.5-pro",
		"context_window": 1048576.0,
		"temperature": 0.2,
		"reasoning": "long context analytics",
		"estimated_cost_per_1k_tokens": 0.00125
	}`)
	trail := audit.NewTrail("r")
	ctx := audit.WithRecorder(context.Background(), trail)

	sel, err := NewSelector(gw, "gemini-2.0-flash").Select(ctx, analyst)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", sel.Model)
	assert.Equal(t, 1048576, sel.ContextWindow)
	assert.InDelta(t, 0.2, sel.Temperature, 1e-9)
	assert.Equal(t, "long context analytics", sel.Reasoning)
	assert.InDelta(t, 0.00125, sel.EstimatedCostPer1K, 1e-12)
	assert.False(t, sel.Fallback)
	assert.Equal(t, 10, sel.Usage.TotalTokens)
	assert.Empty(t, trail.Filter(audit.KindFallback))

	prompt := gw.Calls()[0].Prompt
	assert.Contains(t, prompt, "Agent Type: data_analyst")
	assert.Contains(t, prompt, "Complexity: high")
	assert.Contains(t, prompt, "Capabilities Required: sql, statistics")
	assert.Contains(t, prompt, "Constraints: read_only")
}

func TestSelector_Fallback(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing model", `{"context_window": 8000, "temperature": 0.5, "reasoning": "x"}`},
		{"string window", `{"model_name": "m", "context_window": "big", "temperature": 0.5}`},
		{"temperature out of range", `{"model_name": "m", "context_window": 8000, "temperature": 7}`},
		{"array", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New().OnJSON(selectorMatch, tt.body)
			trail := audit.NewTrail("r")
			ctx := audit.WithRecorder(context.Background(), trail)

			sel, err := NewSelector(gw, "gpt-4o-mini").Select(ctx, analyst)
			require.NoError(t, err)
			assert.Equal(t, "gpt-4o-mini", sel.Model)
			assert.Equal(t, 32768, sel.ContextWindow)
			assert.Equal(t, 0.7, sel.Temperature)
			assert.Equal(t, "fallback: configured default model", sel.Reasoning)
			assert.True(t, sel.Fallback)
			assert.Equal(t, 10, sel.Usage.TotalTokens)
			assert.Len(t, trail.Filter(audit.KindFallback), 1)
		})
	}
}

func TestSelector_TemperatureCapped(t *testing.T) {
	gw := llmtest.New().OnJSON(selectorMatch, `{"model_name": "m", "context_window": 8000, "temperature": 1.5}`)
	sel, err := NewSelector(gw, "d").Select(context.Background(), analyst)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sel.Temperature)
	assert.Empty(t, sel.Reasoning)
}

func TestSelector_GatewayFault(t *testing.T) {
	gw := llmtest.New().On(selectorMatch, llmtest.Fail(errors.New("quota exceeded")))
	_, err := NewSelector(gw, "d").Select(context.Background(), analyst)

	var fault *llm.GatewayFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, llm.FaultQuota, fault.Kind)
}

func TestSelection_ApplyTo(t *testing.T) {
	spec := agentspec.Build(analyst)
	sel := Selection{Model: "gpt-4o", ContextWindow: 128000, Temperature: 0.3, Reasoning: "r"}

	out := sel.ApplyTo(spec)
	assert.Equal(t, "gpt-4o", out.SelectedModel)
	assert.Equal(t, 128000, out.ModelContextWindow)
	assert.Equal(t, 0.3, out.ModelTemperature)
	assert.Equal(t, "r", out.SelectionReasoning)
	assert.Empty(t, spec.SelectedModel)
	assert.Equal(t, spec.AgentID, out.AgentID)
}
