/*
Package retry adjusts a specification that failed QA and re-runs the
assessment, up to a fixed attempt budget.
*/
package retry

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/qa"
)

// Strategy names one adjustment. Every strategy is a pure transformation:
// Apply never modifies its input.
type Strategy string

const (
	DifficultyAwareness       Strategy = "difficulty_awareness"
	FundamentalsReinforcement Strategy = "fundamentals_reinforcement"
	SpecificityEnhancement    Strategy = "specificity_enhancement"
	CapabilityExpansion       Strategy = "capability_expansion"
	ConstraintRefinement      Strategy = "constraint_refinement"
	ComplexityEscalation      Strategy = "complexity_escalation"
	RequirementSimplification Strategy = "requirement_simplification"
)

// Strategies lists every adjustment in the order they can be chosen.
var Strategies = []Strategy{
	DifficultyAwareness,
	FundamentalsReinforcement,
	SpecificityEnhancement,
	CapabilityExpansion,
	ConstraintRefinement,
	ComplexityEscalation,
	RequirementSimplification,
}

const (
	LearningCapability = "continuous_learning"
	AccuracyConstraint = "prioritize_accuracy_over_speed"

	simplifiedCapabilities = 3
)

const (
	difficultyClause   = "\n\nIMPORTANT: Pay special attention to edge cases and complex scenarios. Provide detailed reasoning for challenging questions."
	fundamentalsClause = "\n\nFocus on demonstrating strong understanding of fundamental concepts. Ensure accuracy in basic operations before tackling complex problems."
	specificityClause  = "\n\nYour core expertise areas are: %s. Demonstrate deep knowledge in these specific areas."
	learningClause     = "\n\nYou have the ability to learn from feedback and improve your responses."
	accuracyClause     = "\n\nPrioritize accuracy and thoroughness in your responses."
	complexityClause   = "\n\nDemonstrate advanced reasoning and consider multiple perspectives. Go beyond surface-level answers."
	simplifiedPrompt   = "You are a %s. Your primary capabilities are: %s. Provide clear, accurate, and concise responses."
)

// Apply returns an adjusted copy of spec.
func (s Strategy) Apply(spec agentspec.Specification) agentspec.Specification {
	out := spec.Clone()
	switch s {
	case DifficultyAwareness:
		out.BehavioralPrompt += difficultyClause
	case FundamentalsReinforcement:
		out.BehavioralPrompt += fundamentalsClause
	case SpecificityEnhancement:
		out.BehavioralPrompt += fmt.Sprintf(specificityClause, strings.Join(out.Capabilities, ", "))
	case CapabilityExpansion:
		if !out.HasCapability(LearningCapability) {
			out.Capabilities = append(out.Capabilities, LearningCapability)
			out.BehavioralPrompt += learningClause
		}
	case ConstraintRefinement:
		if !out.HasConstraint(AccuracyConstraint) {
			out.Constraints = append(out.Constraints, AccuracyConstraint)
			out.BehavioralPrompt += accuracyClause
		}
	case ComplexityEscalation:
		out.BehavioralPrompt += complexityClause
	case RequirementSimplification:
		out.BehavioralPrompt = SimplifiedPrompt(out.AgentType, out.Capabilities)
	}
	return out
}

// SimplifiedPrompt is the replacement prompt used by RequirementSimplification.
func SimplifiedPrompt(agentType string, capabilities []string) string {
	if len(capabilities) > simplifiedCapabilities {
		capabilities = capabilities[:simplifiedCapabilities]
	}
	return fmt.Sprintf(simplifiedPrompt, agentType, strings.Join(capabilities, ", "))
}

// Select picks the adjustment for a failed verdict at the given attempt.
//
// Attempt 0 targets the prompt, attempt 1 the capability and constraint
// lists, and the final attempt either pushes harder or simplifies.
func Select(attempt int, v *qa.Verdict) Strategy {
	varianceRelated := v.Classification == qa.TooUniform
	switch attempt {
	case 0:
		switch {
		case varianceRelated:
			return DifficultyAwareness
		case v.FailedEasy > 0:
			return FundamentalsReinforcement
		default:
			return SpecificityEnhancement
		}
	case 1:
		if varianceRelated {
			return CapabilityExpansion
		}
		return ConstraintRefinement
	default:
		if v.AllCorrect() {
			return ComplexityEscalation
		}
		return RequirementSimplification
	}
}
