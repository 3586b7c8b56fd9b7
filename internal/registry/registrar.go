package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/qa"
)

// DefaultEndpointBase prefixes registered agent endpoints when none is configured.
const DefaultEndpointBase = "http://localhost:8420/agents"

const registrarStage = "registrar"

// RegistrationFault reports that an accepted agent could not be registered.
// It is never retried.
type RegistrationFault struct {
	AgentID    string
	Reason     string
	Violations []string
	Err        error
}

func (f *RegistrationFault) Error() string {
	msg := fmt.Sprintf("registration of agent %s failed: %s", f.AgentID, f.Reason)
	if len(f.Violations) > 0 {
		msg += " (" + strings.Join(f.Violations, "; ") + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *RegistrationFault) Unwrap() error { return f.Err }

// Registration is the result of a successful Register.
type Registration struct {
	AgentID      string    `json:"agent_id"`
	Endpoint     string    `json:"endpoint"`
	DecisionID   string    `json:"decision_id,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// AdmissionInput is what an Admitter sees about the agent being registered.
type AdmissionInput struct {
	RequestID  string                  `json:"request_id,omitempty"`
	Spec       agentspec.Specification `json:"agent"`
	Verdict    *qa.Verdict             `json:"qa,omitempty"`
	RetryCount int                     `json:"retry_count"`
}

// Admitter decides whether an agent may be registered.
type Admitter interface {
	Admit(ctx context.Context, in AdmissionInput) (*Decision, error)
}

// Option adds context to a registration.
type Option func(*AdmissionInput)

// WithVerdict attaches the QA verdict the agent passed with.
func WithVerdict(v *qa.Verdict) Option {
	return func(in *AdmissionInput) { in.Verdict = v }
}

// WithRetryCount records how many adjustments the agent needed.
func WithRetryCount(n int) Option {
	return func(in *AdmissionInput) { in.RetryCount = n }
}

// WithRequestID ties the registration to a creation request.
func WithRequestID(id string) Option {
	return func(in *AdmissionInput) { in.RequestID = id }
}

// Registrar stores accepted agents and assigns their endpoints.
type Registrar struct {
	store        *Store
	endpointBase string
	admitter     Admitter
}

// NewRegistrar returns a Registrar writing to store. admitter may be nil,
// in which case every agent is admitted.
func NewRegistrar(store *Store, endpointBase string, admitter Admitter) *Registrar {
	if endpointBase == "" {
		endpointBase = DefaultEndpointBase
	}
	return &Registrar{
		store:        store,
		endpointBase: strings.TrimRight(endpointBase, "/"),
		admitter:     admitter,
	}
}

// Endpoint returns the endpoint an agent id resolves to.
func (r *Registrar) Endpoint(agentID string) string {
	return r.endpointBase + "/" + agentID
}

// Register admits and stores spec. Any failure is a *RegistrationFault.
func (r *Registrar) Register(ctx context.Context, spec agentspec.Specification, opts ...Option) (Registration, error) {
	in := AdmissionInput{Spec: spec}
	for _, opt := range opts {
		opt(&in)
	}
	if strings.TrimSpace(spec.AgentID) == "" {
		return Registration{}, &RegistrationFault{Reason: "specification has no agent id"}
	}

	reg := Registration{AgentID: spec.AgentID, Endpoint: r.Endpoint(spec.AgentID)}

	if r.admitter != nil {
		decision, err := r.admitter.Admit(ctx, in)
		if err != nil {
			return Registration{}, &RegistrationFault{AgentID: spec.AgentID, Reason: "admission check failed", Err: err}
		}
		decision.AgentID = spec.AgentID
		decision.RequestID = in.RequestID
		if err := r.store.SaveDecision(ctx, decision); err != nil {
			return Registration{}, &RegistrationFault{AgentID: spec.AgentID, Reason: "store admission decision", Err: err}
		}
		audit.Record(ctx, audit.Event{
			Kind:    audit.KindPolicyDecision,
			Stage:   registrarStage,
			Message: decision.Result,
			Data: map[string]any{
				"decision_id": decision.DecisionID,
				"policy":      decision.PolicyPath,
				"violations":  decision.Violations,
				"warnings":    decision.Warnings,
			},
		})
		for _, w := range decision.Warnings {
			slog.WarnContext(ctx, "admission warning", "agent_id", spec.AgentID, "warning", w)
		}
		if !decision.Allowed() {
			return Registration{}, &RegistrationFault{
				AgentID:    spec.AgentID,
				Reason:     "denied by admission policy",
				Violations: decision.Violations,
			}
		}
		reg.DecisionID = decision.DecisionID
	}

	agent := Agent{
		ID:         spec.AgentID,
		AgentType:  spec.AgentType,
		Endpoint:   reg.Endpoint,
		RequestID:  in.RequestID,
		RetryCount: in.RetryCount,
		Spec:       spec,
		CreatedAt:  time.Now().UTC(),
	}
	if in.Verdict != nil {
		agent.AverageScore = in.Verdict.AverageScore
		agent.PassRate = in.Verdict.PassRate
		agent.Variance = in.Verdict.Variance
	}
	if err := r.store.SaveAgent(ctx, agent); err != nil {
		return Registration{}, &RegistrationFault{AgentID: spec.AgentID, Reason: "store agent", Err: err}
	}
	reg.RegisteredAt = agent.CreatedAt

	audit.Record(ctx, audit.Event{
		Kind:    audit.KindRegistered,
		Stage:   registrarStage,
		Message: "agent registered",
		Data:    map[string]any{"endpoint": reg.Endpoint},
	})
	slog.InfoContext(ctx, "agent registered", "agent_id", spec.AgentID, "agent_type", spec.AgentType, "endpoint", reg.Endpoint)
	return reg, nil
}
