package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
)

// Fallback selection parameters.
const (
	FallbackContextWindow = llm.DefaultContextWindow
	FallbackTemperature   = 0.7
	FallbackReasoning     = "fallback: configured default model"
)

const selectorStage = "selector"

var selectorSchema = map[string]any{
	"type":     "object",
	"required": []string{"model_name", "context_window", "temperature", "reasoning"},
	"properties": map[string]any{
		"model_name":                   map[string]any{"type": "string"},
		"context_window":               map[string]any{"type": "integer"},
		"temperature":                  map[string]any{"type": "number"},
		"reasoning":                    map[string]any{"type": "string"},
		"estimated_cost_per_1k_tokens": map[string]any{"type": "number"},
	},
}

// Selection is the generation setup chosen for a specification.
type Selection struct {
	Model              string          `json:"model_name"`
	ContextWindow      int             `json:"context_window"`
	Temperature        float64         `json:"temperature"`
	Reasoning          string          `json:"reasoning"`
	EstimatedCostPer1K float64         `json:"estimated_cost_per_1k_tokens"`
	Fallback           bool            `json:"fallback,omitempty"`
	Usage              agentspec.Usage `json:"usage"`
}

// ApplyTo returns a copy of spec carrying the selected model parameters.
func (s Selection) ApplyTo(spec agentspec.Specification) agentspec.Specification {
	out := spec.Clone()
	out.SelectedModel = s.Model
	out.ModelContextWindow = s.ContextWindow
	out.ModelTemperature = s.Temperature
	out.SelectionReasoning = s.Reasoning
	return out
}

// Selector asks the gateway to pick model parameters.
type Selector struct {
	gw           llm.Gateway
	defaultModel string
}

// NewSelector returns a Selector that falls back to defaultModel.
func NewSelector(gw llm.Gateway, defaultModel string) *Selector {
	return &Selector{gw: gw, defaultModel: defaultModel}
}

// Fallback returns the deterministic selection.
func (s *Selector) Fallback() Selection {
	return Selection{
		Model:         s.defaultModel,
		ContextWindow: FallbackContextWindow,
		Temperature:   FallbackTemperature,
		Reasoning:     FallbackReasoning,
		Fallback:      true,
	}
}

// Select picks parameters for si. Gateway faults are returned; unusable
// output yields Fallback.
func (s *Selector) Select(ctx context.Context, si agentspec.StructuredInstruction) (Selection, error) {
	resp, err := s.gw.GenerateStructured(ctx, llm.Request{
		Prompt:            selectorPrompt(si),
		SystemInstruction: "You are an expert AI architect.",
		Schema:            selectorSchema,
	})
	if err != nil {
		return Selection{}, err
	}
	usage := agentspec.Usage{TotalTokens: resp.TotalTokens, CostUSD: resp.CostUSD, Model: resp.ModelName}

	sel, missing, perr := parseSelection(resp)
	if len(missing) > 0 {
		audit.Fallback(ctx, selectorStage, missing,
			&agentspec.MalformedResponseError{Stage: selectorStage, Fields: missing, Err: perr})
		sel = s.Fallback()
	}
	sel.Usage = usage

	slog.DebugContext(ctx, "model selected",
		"model", sel.Model,
		"context_window", sel.ContextWindow,
		"temperature", sel.Temperature,
		"fallback", sel.Fallback)
	return sel, nil
}

func selectorPrompt(si agentspec.StructuredInstruction) string {
	complexity := si.EstimatedComplexity
	if complexity == "" {
		complexity = agentspec.ComplexityMedium
	}
	return fmt.Sprintf(`You are an AI model selection expert. Analyze this agent configuration
and recommend the optimal LLM model.

Agent Type: %s
Complexity: %s
Capabilities Required: %s
Constraints: %s

Consider:
- Task complexity vs cost
- Context window requirements
- Specific capability needs (coding, reasoning, analysis)
- Budget constraints

Recommend ONE model with reasoning in JSON:
{
    "model_name": "chosen_model",
    "context_window": number,
    "temperature": 0.0-1.0,
    "reasoning": "why this model",
    "estimated_cost_per_1k_tokens": number
}`, si.AgentType, complexity, strings.Join(si.Capabilities, ", "), strings.Join(si.Constraints, ", "))
}

func parseSelection(resp *llm.Response) (Selection, []string, error) {
	obj, err := llm.AsObject(resp.Parsed)
	if err != nil {
		return Selection{}, []string{"model_name", "context_window", "temperature"}, err
	}

	var (
		sel     Selection
		missing []string
	)
	if v, ok := llm.Field[string](obj, "model_name"); ok && strings.TrimSpace(v) != "" {
		sel.Model = strings.TrimSpace(v)
	} else {
		missing = append(missing, "model_name")
	}
	// Models sometimes render integers as 32768.0.
	if v, ok := llm.Field[float64](obj, "context_window"); ok && v > 0 {
		sel.ContextWindow = int(v)
	} else {
		missing = append(missing, "context_window")
	}
	if v, ok := llm.Field[float64](obj, "temperature"); ok && v >= 0 && v <= 2 {
		sel.Temperature = min(v, 1)
	} else {
		missing = append(missing, "temperature")
	}
	sel.Reasoning, _ = llm.Field[string](obj, "reasoning")
	sel.EstimatedCostPer1K, _ = llm.FirstField[float64](obj, "estimated_cost_per_1k_tokens", "estimated_cost_per_1k")
	return sel, missing, nil
}
