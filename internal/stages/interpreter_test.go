package stages

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/llm/llmtest"
)

const interpreterMatch = "MDP-based agent configuration"

func TestInterpreter_WellFormed(t *testing.T) {
	gw := llmtest.New().OnJSON(interpreterMatch, `{
		"agent_type": "code_reviewer",
		"capabilities": ["python", " static_analysis ", ""],
		"constraints": ["must_use_python"],
		"success_criteria": "Find real bugs",
		"estimated_complexity": "High"
	}`)
	gw.CostPerCall = 0.002

	trail := audit.NewTrail("r")
	ctx := audit.WithRecorder(context.Background(), trail)
	si, err := NewInterpreter(gw).Interpret(ctx, "Review Python pull requests for security bugs")
	require.NoError(t, err)

	assert.Equal(t, agentspec.StructuredInstruction{
		AgentType:           "code_reviewer",
		Capabilities:        []string{"python", "static_analysis"},
		Constraints:         []string{"must_use_python"},
		SuccessCriteria:     "Find real bugs",
		EstimatedComplexity: agentspec.ComplexityHigh,
		Usage:               agentspec.Usage{TotalTokens: 10, CostUSD: 0.002, Model: llmtest.ModelName},
	}, si)
	assert.Empty(t, trail.Filter(audit.KindFallback))

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Instruction: Review Python pull requests for security bugs")
	assert.Equal(t, []string{"agent_type", "capabilities", "success_criteria"}, calls[0].Schema["required"])
}

func TestInterpreter_MissingCapabilitiesFallsBack(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	gw := llmtest.New().OnJSON(interpreterMatch, `{
		"agent_type": "researcher",
		"constraints": [],
		"success_criteria": "Accurate summary",
		"estimated_complexity": "low"
	}`)
	trail := audit.NewTrail("r")
	ctx := audit.WithRecorder(context.Background(), trail)

	si, err := NewInterpreter(gw).Interpret(ctx, "Summarize research papers on climate")
	require.NoError(t, err, "malformed output must not abort the pipeline")

	assert.Equal(t, "researcher", si.AgentType)
	assert.NotNil(t, si.Capabilities)
	assert.Empty(t, si.Capabilities)
	assert.True(t, si.Fallback)
	assert.Equal(t, agentspec.ComplexityLow, si.EstimatedComplexity)

	fallbacks := trail.Filter(audit.KindFallback)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, "interpreter", fallbacks[0].Stage)
	assert.Equal(t, []string{"capabilities"}, fallbacks[0].Data["fields"])
	assert.Contains(t, logs.String(), "fallback activated")
}

func TestInterpreter_FieldDefaults(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantType   string
		wantLevel  agentspec.Complexity
		wantFields []string
	}{
		{
			name:       "not an object",
			body:       `["x"]`,
			wantType:   DefaultAgentType,
			wantLevel:  agentspec.ComplexityMedium,
			wantFields: []string{"agent_type", "capabilities", "constraints", "success_criteria", "estimated_complexity"},
		},
		{
			name:       "blank type and bad complexity",
			body:       `{"agent_type": "  ", "capabilities": ["a"], "constraints": [], "success_criteria": "s", "estimated_complexity": "extreme"}`,
			wantType:   DefaultAgentType,
			wantLevel:  agentspec.ComplexityMedium,
			wantFields: []string{"agent_type", "estimated_complexity"},
		},
		{
			name:       "mistyped lists",
			body:       `{"agent_type": "t", "capabilities": "a, b", "constraints": [1, 2], "success_criteria": "s", "estimated_complexity": "high"}`,
			wantType:   "t",
			wantLevel:  agentspec.ComplexityHigh,
			wantFields: []string{"capabilities", "constraints"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New().OnJSON(interpreterMatch, tt.body)
			trail := audit.NewTrail("r")
			ctx := audit.WithRecorder(context.Background(), trail)

			si, err := NewInterpreter(gw).Interpret(ctx, "some instruction text")
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, si.AgentType)
			assert.Equal(t, tt.wantLevel, si.EstimatedComplexity)
			assert.NotNil(t, si.Capabilities)
			assert.NotNil(t, si.Constraints)

			fallbacks := trail.Filter(audit.KindFallback)
			require.Len(t, fallbacks, 1)
			assert.Equal(t, tt.wantFields, fallbacks[0].Data["fields"])
		})
	}
}

func TestInterpreter_GatewayFault(t *testing.T) {
	gw := llmtest.New().On(interpreterMatch, llmtest.Fail(errors.New("invalid api key")))
	_, err := NewInterpreter(gw).Interpret(context.Background(), "some instruction text")

	var fault *llm.GatewayFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, llm.FaultAuth, fault.Kind)
}

func TestInterpreter_UnparsableIsFault(t *testing.T) {
	gw := llmtest.New().OnJSON(interpreterMatch, "I'd rather not.")
	_, err := NewInterpreter(gw).Interpret(context.Background(), "some instruction text")

	var fault *llm.GatewayFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, llm.FaultUnparsable, fault.Kind)
}
