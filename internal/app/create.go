package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/logger"
	"github.com/josephgoksu/genesis/internal/qa"
	"github.com/josephgoksu/genesis/internal/registry"
	"github.com/josephgoksu/genesis/internal/retry"
	"github.com/josephgoksu/genesis/internal/stages"
	"github.com/josephgoksu/genesis/internal/telemetry"
)

const (
	stageValidation = "validation"
	stageBuilder    = "builder"
	stageInterpret  = "interpreter"
	stageSelector   = "selector"
	stageQA         = "qa"
	stageRegistrar  = "registrar"
)

// QAScores summarises the verdict an agent was accepted with.
type QAScores struct {
	AverageScore float64 `json:"average_score" yaml:"average_score"`
	PassRate     float64 `json:"pass_rate" yaml:"pass_rate"`
	Variance     float64 `json:"variance" yaml:"variance"`
	Attempt      int     `json:"attempt" yaml:"attempt"`
}

// CreateResult is the canonical response of a creation request, shared by
// the CLI, the HTTP API and the MCP tool. Exhaustion is a result with
// Success false, not an error.
type CreateResult struct {
	Success   bool   `json:"success" yaml:"success"`
	RequestID string `json:"request_id" yaml:"request_id"`

	AgentID      string    `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	AgentType    string    `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	QAScores     *QAScores `json:"qa_scores,omitempty" yaml:"qa_scores,omitempty"`

	RetryCount int      `json:"retry_count" yaml:"retry_count"`
	Strategies []string `json:"strategies,omitempty" yaml:"strategies,omitempty"`

	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
	Feedback   string `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`

	Usage      agentspec.Usage `json:"usage" yaml:"usage"`
	DurationMS int64           `json:"duration_ms" yaml:"duration_ms"`
}

// CreateOptions tunes a single request.
type CreateOptions struct {
	// RequestID is generated when empty.
	RequestID string
	// Sinks receive this request's events only, e.g. a progress view.
	Sinks []audit.Recorder
}

// CreateApp runs the creation pipeline.
type CreateApp struct {
	ctx         *Context
	interpreter *stages.Interpreter
	selector    *stages.Selector
	controller  *retry.Controller
}

// NewCreateApp wires the pipeline stages around c.Gateway.
func NewCreateApp(c *Context) *CreateApp {
	var popts []qa.PipelineOption
	if c.Questions > 0 {
		popts = append(popts, qa.WithQuestions(c.Questions))
	}
	if c.Judge != nil {
		popts = append(popts, qa.WithJudge(c.Judge))
	}
	return &CreateApp{
		ctx:         c,
		interpreter: stages.NewInterpreter(c.Gateway),
		selector:    stages.NewSelector(c.Gateway, c.DefaultModel),
		controller:  retry.NewController(qa.NewPipeline(c.Gateway, popts...)),
	}
}

// request is the state owned by one Create call.
type request struct {
	trail     *audit.Trail
	start     time.Time
	spec      agentspec.Specification
	usage     agentspec.Usage
	fallbacks atomic.Int64
}

// Create turns instruction into a registered agent. Errors are
// *ValidationError, *llm.GatewayFault, *registry.RegistrationFault or
// context errors; QA exhaustion is reported through the result.
func (a *CreateApp) Create(ctx context.Context, instruction string, opts CreateOptions) (*CreateResult, error) {
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req := &request{start: time.Now()}
	counter := audit.RecorderFunc(func(e audit.Event) {
		if e.Kind == audit.KindFallback {
			req.fallbacks.Add(1)
		}
		if e.Stage != "" {
			logger.SetStage(e.Stage)
		}
	})
	req.trail = audit.NewTrail(requestID, a.ctx.recorders(append([]audit.Recorder{counter}, opts.Sinks...))...)
	ctx = audit.WithRecorder(ctx, req.trail)
	logger.SetRequest(requestID, instruction)

	req.trail.Record(audit.Event{
		Kind:  audit.KindRequestStarted,
		Stage: stageValidation,
		Data:  map[string]any{"instruction_length": len(instruction)},
	})

	res, err := a.run(ctx, req, instruction)
	a.finish(ctx, req, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *CreateApp) run(ctx context.Context, req *request, instruction string) (*CreateResult, error) {
	if err := ValidateInstruction(instruction); err != nil {
		return nil, err
	}

	si, err := a.interpreter.Interpret(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("interpret instruction: %w", err)
	}
	req.usage = req.usage.Add(si.Usage)
	req.trail.Record(audit.Event{
		Kind:  audit.KindStageCompleted,
		Stage: stageInterpret,
		Data: map[string]any{
			"agent_type":   si.AgentType,
			"capabilities": len(si.Capabilities),
			"complexity":   string(si.EstimatedComplexity),
			"fallback":     si.Fallback,
		},
	})

	req.spec = agentspec.Build(si)
	req.trail.SetAgentID(req.spec.AgentID)
	req.trail.Record(audit.Event{
		Kind:    audit.KindStageCompleted,
		Stage:   stageBuilder,
		Message: req.spec.Summary(),
	})

	sel, err := a.selector.Select(ctx, si)
	if err != nil {
		return nil, fmt.Errorf("select model: %w", err)
	}
	req.usage = req.usage.Add(sel.Usage)
	req.spec = sel.ApplyTo(req.spec)
	req.trail.Record(audit.Event{
		Kind:  audit.KindStageCompleted,
		Stage: stageSelector,
		Data: map[string]any{
			"model":          sel.Model,
			"context_window": sel.ContextWindow,
			"temperature":    sel.Temperature,
			"fallback":       sel.Fallback,
		},
	})

	out, err := a.controller.Run(ctx, req.spec)
	if err != nil {
		return nil, err
	}
	req.usage = req.usage.Add(out.Usage)
	req.spec = out.Spec

	res := &CreateResult{
		RequestID:  req.trail.RequestID(),
		RetryCount: out.RetryCount,
		Strategies: strategyNames(out.History),
	}
	if out.Outcome == retry.Exhausted {
		res.Message = out.Message
		res.Feedback = out.Feedback
		res.Suggestion = out.Suggestion
		return res, nil
	}
	req.trail.Record(audit.Event{
		Kind:    audit.KindStageCompleted,
		Stage:   stageQA,
		Attempt: out.Attempt,
		Message: "qa passed",
	})

	reg, err := a.ctx.Registrar.Register(ctx, out.Spec,
		registry.WithVerdict(out.Verdict),
		registry.WithRetryCount(out.RetryCount),
		registry.WithRequestID(req.trail.RequestID()))
	if err != nil {
		return nil, err
	}

	res.Success = true
	res.AgentID = out.Spec.AgentID
	res.AgentType = out.Spec.AgentType
	res.Capabilities = out.Spec.Capabilities
	res.Endpoint = reg.Endpoint
	res.QAScores = &QAScores{
		AverageScore: out.Verdict.AverageScore,
		PassRate:     out.Verdict.PassRate,
		Variance:     out.Verdict.Variance,
		Attempt:      out.Attempt,
	}
	return res, nil
}

// finish records the terminal event, persists the trail and reports the
// outcome to metrics and telemetry.
func (a *CreateApp) finish(ctx context.Context, req *request, res *CreateResult, err error) {
	elapsed := time.Since(req.start)
	outcome := "success"
	switch {
	case err != nil:
		outcome = FailureKind(err)
		req.trail.Record(audit.Event{
			Kind:    audit.KindRequestFailed,
			Message: err.Error(),
			Data:    map[string]any{"failure": outcome},
		})
	case !res.Success:
		outcome = FailureExhausted
	}
	if res != nil {
		res.Usage = req.usage
		res.DurationMS = elapsed.Milliseconds()
	}

	if a.ctx.Events != nil {
		agentID := ""
		if res != nil && res.Success {
			agentID = res.AgentID
		}
		if serr := a.ctx.Events.SaveEvents(context.WithoutCancel(ctx), agentID, req.trail.Events()); serr != nil {
			slog.WarnContext(ctx, "audit trail not persisted", "request_id", req.trail.RequestID(), "error", serr)
		}
	}

	if a.ctx.Metrics != nil {
		a.ctx.Metrics.ObserveRequest(outcome, elapsed, req.usage.TotalTokens, req.usage.CostUSD)
	}

	retries := 0
	if res != nil {
		retries = res.RetryCount
	}
	o := telemetry.Outcome{
		Success:      outcome == "success",
		RetryCount:   retries,
		Capabilities: len(req.spec.Capabilities),
		Fallbacks:    int(req.fallbacks.Load()),
		Provider:     a.ctx.Provider,
		Model:        req.spec.SelectedModel,
		TotalTokens:  req.usage.TotalTokens,
		CostUSD:      req.usage.CostUSD,
		Duration:     elapsed,
	}
	if !o.Success {
		o.FailureKind = outcome
	}
	telemetry.TrackOutcome(a.ctx.Telemetry, o)

	slog.InfoContext(ctx, "creation request finished",
		"request_id", req.trail.RequestID(),
		"outcome", outcome,
		"tokens", req.usage.TotalTokens,
		"cost_usd", req.usage.CostUSD,
		"duration", elapsed)
}

func strategyNames(h []retry.Strategy) []string {
	if len(h) == 0 {
		return nil
	}
	out := make([]string, len(h))
	for i, s := range h {
		out[i] = string(s)
	}
	return out
}
