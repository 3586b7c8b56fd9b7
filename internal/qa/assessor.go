package qa

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
)

// Assessor runs one full QA pass against a specification.
type Assessor interface {
	Assess(ctx context.Context, spec agentspec.Specification) (*Verdict, error)
}

// Pipeline is the gateway-backed Assessor: challenger, simulator, judge,
// then the acceptance gate. Questions are generated fresh on every call.
type Pipeline struct {
	challenger *Challenger
	simulator  *Simulator
	judge      Judge
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithJudge replaces the default gateway judge.
func WithJudge(j Judge) PipelineOption {
	return func(p *Pipeline) {
		if j != nil {
			p.judge = j
		}
	}
}

// WithQuestions sets the challenge batch size.
func WithQuestions(n int) PipelineOption {
	return func(p *Pipeline) {
		p.challenger = NewChallenger(p.challenger.gw, n)
	}
}

// NewPipeline builds a Pipeline sharing gw across its stages.
func NewPipeline(gw llm.Gateway, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		challenger: NewChallenger(gw, DefaultQuestions),
		simulator:  NewSimulator(gw),
		judge:      NewLLMJudge(gw),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Assess returns the gate verdict. Any gateway fault aborts the pass and
// is returned with the stage that hit it.
func (p *Pipeline) Assess(ctx context.Context, spec agentspec.Specification) (*Verdict, error) {
	questions, usage, err := p.challenger.Generate(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("challenge generation: %w", err)
	}
	audit.Record(ctx, audit.Event{
		Kind:  audit.KindStageCompleted,
		Stage: challengerStage,
		Data:  map[string]any{"questions": len(questions), "avg_difficulty": meanDifficulty(questions)},
	})

	results := make([]Result, 0, len(questions))
	for i, q := range questions {
		answer, u, err := p.simulator.Answer(ctx, spec, q)
		if err != nil {
			return nil, fmt.Errorf("simulation of question %d: %w", i+1, err)
		}
		usage = usage.Add(u)

		j, err := p.judge.Judge(ctx, q, answer)
		if err != nil {
			return nil, fmt.Errorf("evaluation of question %d: %w", i+1, err)
		}
		usage = usage.Add(j.Usage)

		results = append(results, Result{
			QuestionRef: q.Text,
			Correct:     j.Correct,
			Score:       j.Score,
			Difficulty:  q.Difficulty,
			Answer:      answer,
			Reasoning:   j.Reasoning,
		})
	}

	v, err := Evaluate(results)
	if err != nil {
		return nil, err
	}
	v.Usage = usage

	slog.DebugContext(ctx, "qa verdict",
		"agent_id", spec.AgentID,
		"passed", v.Passed,
		"avg_score", v.AverageScore,
		"variance", v.Variance,
		"classification", v.Classification)
	audit.Record(ctx, audit.Event{
		Kind:    audit.KindVerdict,
		Stage:   "gate",
		Message: v.Reason,
		Data: map[string]any{
			"passed":         v.Passed,
			"average_score":  v.AverageScore,
			"pass_rate":      v.PassRate,
			"variance":       v.Variance,
			"classification": string(v.Classification),
		},
	})
	return &v, nil
}
