package agentspec

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	si := StructuredInstruction{
		AgentType:       "code_reviewer",
		Capabilities:    []string{"python", "static_analysis"},
		Constraints:     []string{"must_use_python"},
		SuccessCriteria: "Find real bugs",
	}

	spec := Build(si)

	_, err := uuid.Parse(spec.AgentID)
	require.NoError(t, err, "agent id should be a UUID")
	assert.Equal(t, "code_reviewer", spec.AgentType)
	assert.Equal(t, "You are a code_reviewer. Your capabilities include: python, static_analysis. Constraints: must_use_python.", spec.BehavioralPrompt)
	assert.Equal(t, "Find real bugs", spec.SuccessCriteria)

	spec.Capabilities[0] = "changed"
	assert.Equal(t, "python", si.Capabilities[0], "Build must not alias instruction slices")
}

func TestBuild_EmptyLists(t *testing.T) {
	spec := Build(StructuredInstruction{AgentType: "general_assistant"})

	assert.NotNil(t, spec.Capabilities)
	assert.NotNil(t, spec.Constraints)
	assert.Equal(t, "You are a general_assistant. Your capabilities include: . Constraints: .", spec.BehavioralPrompt)
	assert.NotEqual(t, spec.AgentID, Build(StructuredInstruction{}).AgentID)
}

func TestClone_Independent(t *testing.T) {
	orig := Specification{
		AgentID:          "a-1",
		AgentType:        "researcher",
		Capabilities:     []string{"search", "summarize"},
		Constraints:      []string{"cite_sources"},
		BehavioralPrompt: "You are a researcher.",
		SelectedModel:    "gemini-2.0-flash",
		ModelTemperature: 0.4,
	}
	snapshot := Specification{
		AgentID:          "a-1",
		AgentType:        "researcher",
		Capabilities:     []string{"search", "summarize"},
		Constraints:      []string{"cite_sources"},
		BehavioralPrompt: "You are a researcher.",
		SelectedModel:    "gemini-2.0-flash",
		ModelTemperature: 0.4,
	}

	clone := orig.Clone()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	clone.Capabilities[0] = "mutated"
	clone.Capabilities = append(clone.Capabilities, "continuous_learning")
	clone.Constraints = append(clone.Constraints, "prioritize_accuracy_over_speed")
	clone.BehavioralPrompt += " More."

	if diff := cmp.Diff(snapshot, orig); diff != "" {
		t.Errorf("original changed after clone mutation (-want +got):\n%s", diff)
	}
}

func TestClone_NilSlicesStayNil(t *testing.T) {
	clone := Specification{AgentType: "x"}.Clone()
	assert.Nil(t, clone.Capabilities)
	assert.Nil(t, clone.Constraints)
}

func TestParseComplexity(t *testing.T) {
	tests := []struct {
		in   string
		want Complexity
		ok   bool
	}{
		{"low", ComplexityLow, true},
		{"medium", ComplexityMedium, true},
		{"high", ComplexityHigh, true},
		{"HIGH", "", false},
		{"extreme", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseComplexity(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMalformedResponseError(t *testing.T) {
	cause := errors.New("expected JSON object")
	err := &MalformedResponseError{Stage: "interpreter", Fields: []string{"capabilities", "agent_type"}, Err: cause}

	assert.Equal(t, "malformed interpreter response: missing or invalid capabilities, agent_type: expected JSON object", err.Error())
	assert.ErrorIs(t, err, cause)

	var target *MalformedResponseError
	assert.True(t, errors.As(error(err), &target))
	assert.Equal(t, "malformed selector response", (&MalformedResponseError{Stage: "selector"}).Error())
}

func TestUsageAdd(t *testing.T) {
	a := Usage{TotalTokens: 10, CostUSD: 0.5}
	b := Usage{TotalTokens: 5, CostUSD: 0.25, Model: "gpt-4o-mini"}

	got := a.Add(b)
	assert.Equal(t, 15, got.TotalTokens)
	assert.InDelta(t, 0.75, got.CostUSD, 1e-9)
	assert.Equal(t, "gpt-4o-mini", got.Model)
}

func TestSummary(t *testing.T) {
	s := Specification{AgentType: "t", Capabilities: []string{"a", "b"}, BehavioralPrompt: "short"}
	assert.Equal(t, `type=t caps=2 [a,b] cons=0 [] prompt=5B "short"`, s.Summary())
}

func TestSummary_LongPromptKeepsRunesWhole(t *testing.T) {
	s := Specification{AgentType: "translator", BehavioralPrompt: strings.Repeat("数", 100)}

	got := s.Summary()
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, `prompt=300B "`+strings.Repeat("数", 77)+`..."`)
}
