/*
Package agentspec holds the values that flow through agent creation: the
structured instruction, the agent specification and the errors shared by
the stages that produce them.
*/
package agentspec

import (
	"slices"
)

// Complexity is the interpreter's estimate of task difficulty.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ParseComplexity reports whether s names a known complexity.
func ParseComplexity(s string) (Complexity, bool) {
	switch c := Complexity(s); c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return c, true
	}
	return "", false
}

// Usage is the gateway accounting attached to a stage result.
type Usage struct {
	TotalTokens int     `json:"total_tokens" yaml:"total_tokens"`
	CostUSD     float64 `json:"cost_usd" yaml:"cost_usd"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
}

// Add returns the sum of two usages. The model name of u wins when set.
func (u Usage) Add(o Usage) Usage {
	out := Usage{
		TotalTokens: u.TotalTokens + o.TotalTokens,
		CostUSD:     u.CostUSD + o.CostUSD,
		Model:       u.Model,
	}
	if out.Model == "" {
		out.Model = o.Model
	}
	return out
}

// StructuredInstruction is the interpreted form of a raw instruction.
// It is produced once per request and never modified afterwards.
type StructuredInstruction struct {
	AgentType           string     `json:"agent_type" yaml:"agent_type"`
	Capabilities        []string   `json:"capabilities" yaml:"capabilities"`
	Constraints         []string   `json:"constraints" yaml:"constraints"`
	SuccessCriteria     string     `json:"success_criteria" yaml:"success_criteria"`
	EstimatedComplexity Complexity `json:"estimated_complexity" yaml:"estimated_complexity"`

	Usage    Usage `json:"usage" yaml:"usage"`
	Fallback bool  `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Specification describes an agent to be registered. Only the retry
// controller changes BehavioralPrompt, Capabilities and Constraints, and it
// always does so on a Clone.
type Specification struct {
	AgentID            string   `json:"agent_id" yaml:"agent_id"`
	AgentType          string   `json:"agent_type" yaml:"agent_type"`
	Capabilities       []string `json:"capabilities" yaml:"capabilities"`
	Constraints        []string `json:"constraints" yaml:"constraints"`
	BehavioralPrompt   string   `json:"behavioral_prompt" yaml:"behavioral_prompt"`
	SelectedModel      string   `json:"selected_model" yaml:"selected_model"`
	ModelTemperature   float64  `json:"model_temperature" yaml:"model_temperature"`
	ModelContextWindow int      `json:"model_context_window" yaml:"model_context_window"`

	// Informational.
	SuccessCriteria    string `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
	SelectionReasoning string `json:"selection_reasoning,omitempty" yaml:"selection_reasoning,omitempty"`
}

// Clone returns a deep copy. Slices are never shared with the receiver.
func (s Specification) Clone() Specification {
	out := s
	out.Capabilities = slices.Clone(s.Capabilities)
	out.Constraints = slices.Clone(s.Constraints)
	return out
}

// HasCapability reports whether name is among the capabilities.
func (s Specification) HasCapability(name string) bool {
	return slices.Contains(s.Capabilities, name)
}

// HasConstraint reports whether name is among the constraints.
func (s Specification) HasConstraint(name string) bool {
	return slices.Contains(s.Constraints, name)
}

// Summary is a one-line description used in audit before/after records.
func (s Specification) Summary() string {
	return summarize(s)
}

// cloneStrings copies in, returning an empty non-nil slice for nil.
func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
