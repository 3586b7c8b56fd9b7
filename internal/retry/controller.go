package retry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/qa"
)

// MaxAttempts is the fixed number of adjustments tried before giving up.
const MaxAttempts = 3

const (
	exhaustedSuggestion = "Review agent configuration and requirements. Consider simplifying the task or providing more specific instructions."
	stage               = "retry"
)

// Outcome is the terminal state of a controller run.
type Outcome string

const (
	Success   Outcome = "success"
	Exhausted Outcome = "exhausted"
)

// State is owned by a single Run and discarded when it returns.
type State struct {
	Attempt     int
	MaxAttempts int
	History     []Strategy
}

// Result is the terminal value of a Run.
type Result struct {
	Outcome Outcome
	// Spec is the accepted specification on Success and the last adjusted
	// specification on Exhausted.
	Spec agentspec.Specification
	// Attempt is the index of the passing QA run on Success.
	Attempt    int
	Verdict    *qa.Verdict
	History    []Strategy
	RetryCount int

	Message    string
	Feedback   string
	Suggestion string

	Usage agentspec.Usage
}

// Controller drives QA, adjustment and re-assessment as a bounded loop.
type Controller struct {
	assessor qa.Assessor
}

// NewController returns a Controller using assessor for every QA pass.
func NewController(assessor qa.Assessor) *Controller {
	return &Controller{assessor: assessor}
}

// Run assesses spec and adjusts it after each failed verdict until it
// passes or the attempt budget is spent. Exhaustion is a Result, not an
// error; errors are gateway faults or cancellation.
func (c *Controller) Run(ctx context.Context, spec agentspec.Specification) (*Result, error) {
	state := State{MaxAttempts: MaxAttempts}
	current := spec.Clone()
	var usage agentspec.Usage

	for {
		actx := audit.WithAttempt(ctx, state.Attempt)
		verdict, err := c.assessor.Assess(actx, current)
		if err != nil {
			return nil, fmt.Errorf("qa attempt %d: %w", state.Attempt, err)
		}
		usage = usage.Add(verdict.Usage)

		if verdict.Passed {
			slog.InfoContext(ctx, "qa passed",
				"agent_id", current.AgentID,
				"attempt", state.Attempt,
				"avg_score", verdict.AverageScore,
				"variance", verdict.Variance)
			return &Result{
				Outcome:    Success,
				Spec:       current,
				Attempt:    state.Attempt,
				Verdict:    verdict,
				History:    state.History,
				RetryCount: state.Attempt,
				Usage:      usage,
			}, nil
		}

		slog.InfoContext(ctx, "qa failed",
			"agent_id", current.AgentID,
			"attempt", state.Attempt,
			"classification", verdict.Classification,
			"reason", verdict.Reason)

		if state.Attempt >= state.MaxAttempts {
			return c.exhausted(actx, state, current, verdict, usage), nil
		}

		strategy := Select(state.Attempt, verdict)
		audit.Record(actx, audit.Event{
			Kind:     audit.KindStrategySelected,
			Stage:    stage,
			Strategy: string(strategy),
			Message:  verdict.Reason,
			Data: map[string]any{
				"classification": string(verdict.Classification),
				"failed_easy":    verdict.FailedEasy,
				"failed_hard":    verdict.FailedHard,
				"pass_rate":      verdict.PassRate,
			},
		})

		adjusted := strategy.Apply(current)
		audit.Record(actx, audit.Event{
			Kind:     audit.KindAdjustment,
			Stage:    stage,
			Strategy: string(strategy),
			Before:   current.Summary(),
			After:    adjusted.Summary(),
		})
		slog.DebugContext(ctx, "adjustment applied",
			"agent_id", current.AgentID,
			"attempt", state.Attempt,
			"strategy", strategy)

		state.History = append(state.History, strategy)
		state.Attempt++
		current = adjusted

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("qa attempt %d: %w", state.Attempt, err)
		}
	}
}

func (c *Controller) exhausted(ctx context.Context, state State, spec agentspec.Specification, v *qa.Verdict, usage agentspec.Usage) *Result {
	res := &Result{
		Outcome:    Exhausted,
		Spec:       spec,
		Attempt:    state.Attempt,
		Verdict:    v,
		History:    state.History,
		RetryCount: state.Attempt,
		Message:    fmt.Sprintf("QA failed after %d retry attempts - human intervention required", state.MaxAttempts),
		Feedback:   v.Feedback,
		Suggestion: exhaustedSuggestion,
		Usage:      usage,
	}
	audit.Record(ctx, audit.Event{
		Kind:    audit.KindExhausted,
		Stage:   stage,
		Message: res.Message,
		Data: map[string]any{
			"retry_count": res.RetryCount,
			"history":     historyNames(state.History),
		},
	})
	return res
}

func historyNames(h []Strategy) []string {
	out := make([]string, len(h))
	for i, s := range h {
		out[i] = string(s)
	}
	return out
}
