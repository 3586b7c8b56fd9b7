// Package stages holds the gateway-backed steps that run before QA: the
// instruction interpreter and the model selector.
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

// DefaultAgentType is used when the interpreter cannot name a role.
const DefaultAgentType = "general_assistant"

const interpreterStage = "interpreter"

const interpreterSystem = `You are an MDP-based agent configuration system.
Your role is to analyze user instructions and extract structured configuration
by treating the prompt as the current state and configuration as the action.`

var interpreterSchema = map[string]any{
	"type":     "object",
	"required": []string{"agent_type", "capabilities", "success_criteria"},
	"properties": map[string]any{
		"agent_type":           map[string]any{"type": "string"},
		"capabilities":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"constraints":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"success_criteria":     map[string]any{"type": "string"},
		"estimated_complexity": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
	},
}

// Interpreter turns raw instruction text into a StructuredInstruction.
type Interpreter struct {
	gw llm.Gateway
}

// NewInterpreter returns an Interpreter over gw.
func NewInterpreter(gw llm.Gateway) *Interpreter {
	return &Interpreter{gw: gw}
}

// Interpret calls the gateway once. Missing or mistyped fields are replaced
// with defaults and reported as a fallback; gateway faults are returned.
func (i *Interpreter) Interpret(ctx context.Context, instruction string) (agentspec.StructuredInstruction, error) {
	resp, err := i.gw.GenerateStructured(ctx, llm.Request{
		Prompt:            interpreterPrompt(instruction),
		SystemInstruction: interpreterSystem,
		Schema:            interpreterSchema,
	})
	if err != nil {
		return agentspec.StructuredInstruction{}, err
	}

	si, malformed := parseInstruction(resp)
	if malformed != nil {
		audit.Fallback(ctx, interpreterStage, malformed.Fields, malformed)
		si.Fallback = true
	}

	slog.DebugContext(ctx, "instruction interpreted",
		"agent_type", si.AgentType,
		"capabilities", len(si.Capabilities),
		"complexity", si.EstimatedComplexity,
		"tokens", si.Usage.TotalTokens,
		"cost_usd", si.Usage.CostUSD)
	return si, nil
}

func interpreterPrompt(instruction string) string {
	return fmt.Sprintf(`Analyze this instruction and extract structured configuration:

Instruction: %s

Extract the following in JSON format:
1. agent_type: Primary role (e.g., "data_analyst", "code_generator", "researcher", "general_assistant")
2. capabilities: List of specific skills required (be specific and actionable)
3. constraints: Any limitations or requirements (e.g., "must_use_python", "realtime_processing")
4. success_criteria: Clear success metric (e.g., "Generate accurate statistical summary")
5. estimated_complexity: "low", "medium", or "high"

Return ONLY valid JSON matching this structure.`, instruction)
}

func parseInstruction(resp *llm.Response) (agentspec.StructuredInstruction, *agentspec.MalformedResponseError) {
	si := agentspec.StructuredInstruction{
		AgentType:           DefaultAgentType,
		Capabilities:        []string{},
		Constraints:         []string{},
		EstimatedComplexity: agentspec.ComplexityMedium,
		Usage: agentspec.Usage{
			TotalTokens: resp.TotalTokens,
			CostUSD:     resp.CostUSD,
			Model:       resp.ModelName,
		},
	}

	obj, err := llm.AsObject(resp.Parsed)
	if err != nil {
		return si, &agentspec.MalformedResponseError{
			Stage:  interpreterStage,
			Fields: []string{"agent_type", "capabilities", "constraints", "success_criteria", "estimated_complexity"},
			Err:    err,
		}
	}

	var missing []string
	if v, ok := llm.Field[string](obj, "agent_type"); ok && strings.TrimSpace(v) != "" {
		si.AgentType = strings.TrimSpace(v)
	} else {
		missing = append(missing, "agent_type")
	}
	if v, ok := llm.Field[[]string](obj, "capabilities"); ok {
		si.Capabilities = compact(v)
	} else {
		missing = append(missing, "capabilities")
	}
	if v, ok := llm.Field[[]string](obj, "constraints"); ok {
		si.Constraints = compact(v)
	} else {
		missing = append(missing, "constraints")
	}
	if v, ok := llm.Field[string](obj, "success_criteria"); ok {
		si.SuccessCriteria = strings.TrimSpace(v)
	} else {
		missing = append(missing, "success_criteria")
	}
	raw, _ := llm.Field[string](obj, "estimated_complexity")
	if c, ok := agentspec.ParseComplexity(strings.ToLower(strings.TrimSpace(raw))); ok {
		si.EstimatedComplexity = c
	} else {
		missing = append(missing, "estimated_complexity")
	}

	if len(missing) == 0 {
		return si, nil
	}
	return si, &agentspec.MalformedResponseError{Stage: interpreterStage, Fields: missing}
}

// compact trims entries and drops empty ones.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
