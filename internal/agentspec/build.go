package agentspec

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Build derives the initial specification from an interpreted instruction.
// Model fields are left for the selector.
func Build(si StructuredInstruction) Specification {
	return Specification{
		AgentID:          uuid.NewString(),
		AgentType:        si.AgentType,
		Capabilities:     cloneStrings(si.Capabilities),
		Constraints:      cloneStrings(si.Constraints),
		BehavioralPrompt: BasePrompt(si.AgentType, si.Capabilities, si.Constraints),
		SuccessCriteria:  si.SuccessCriteria,
	}
}

// BasePrompt renders the initial behavioral prompt.
func BasePrompt(agentType string, capabilities, constraints []string) string {
	return fmt.Sprintf("You are a %s. Your capabilities include: %s. Constraints: %s.",
		agentType, strings.Join(capabilities, ", "), strings.Join(constraints, ", "))
}

func summarize(s Specification) string {
	prompt := s.BehavioralPrompt
	if r := []rune(prompt); len(r) > 80 {
		prompt = string(r[:77]) + "..."
	}
	return fmt.Sprintf("type=%s caps=%d [%s] cons=%d [%s] prompt=%dB %q",
		s.AgentType,
		len(s.Capabilities), strings.Join(s.Capabilities, ","),
		len(s.Constraints), strings.Join(s.Constraints, ","),
		len(s.BehavioralPrompt), prompt)
}
