/*
Package audit records what happened during one agent-creation request:
stage transitions, fallbacks, gate verdicts, retry strategies and the
specification before and after each adjustment.
*/
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind identifies an audit event.
type Kind string

const (
	KindRequestStarted   Kind = "request_started"
	KindStageCompleted   Kind = "stage_completed"
	KindFallback         Kind = "fallback_activated"
	KindVerdict          Kind = "qa_verdict"
	KindStrategySelected Kind = "strategy_selected"
	KindAdjustment       Kind = "adjustment_applied"
	KindExhausted        Kind = "retry_exhausted"
	KindPolicyDecision   Kind = "policy_decision"
	KindRegistered       Kind = "agent_registered"
	KindRequestFailed    Kind = "request_failed"
)

// Event is one audit record.
type Event struct {
	RequestID string         `json:"request_id"`
	AgentID   string         `json:"agent_id,omitempty"`
	Kind      Kind           `json:"kind"`
	Stage     string         `json:"stage,omitempty"`
	Attempt   int            `json:"attempt"`
	Strategy  string         `json:"strategy,omitempty"`
	Before    string         `json:"before,omitempty"`
	After     string         `json:"after,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Recorder receives audit events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(e Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Event)

func (f RecorderFunc) Record(e Event) { f(e) }

// Fanout forwards every event to each recorder in order.
type Fanout []Recorder

func (f Fanout) Record(e Event) {
	for _, r := range f {
		if r != nil {
			r.Record(e)
		}
	}
}

// Trail is the audit log of a single request. It stamps events with the
// request id, the current agent id and a timestamp before storing them and
// forwarding them to its sinks.
type Trail struct {
	mu        sync.RWMutex
	requestID string
	agentID   string
	events    []Event
	sinks     Fanout
}

// NewTrail creates an empty trail for requestID.
func NewTrail(requestID string, sinks ...Recorder) *Trail {
	return &Trail{
		requestID: requestID,
		events:    make([]Event, 0, 32),
		sinks:     sinks,
	}
}

// RequestID returns the id the trail was created with.
func (t *Trail) RequestID() string { return t.requestID }

// SetAgentID stamps subsequent events with id.
func (t *Trail) SetAgentID(id string) {
	t.mu.Lock()
	t.agentID = id
	t.mu.Unlock()
}

func (t *Trail) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	e.RequestID = t.requestID
	if e.AgentID == "" {
		e.AgentID = t.agentID
	}
	t.events = append(t.events, e)
	t.mu.Unlock()

	t.sinks.Record(e)
}

// Events returns a copy of the recorded events in order.
func (t *Trail) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Filter returns the recorded events of the given kinds.
func (t *Trail) Filter(kinds ...Kind) []Event {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Event
	for _, e := range t.Events() {
		if want[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

type (
	recorderKey struct{}
	attemptKey  struct{}
)

// WithRecorder returns a context carrying r.
func WithRecorder(ctx context.Context, r Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// FromContext returns the recorder carried by ctx, or a no-op recorder.
func FromContext(ctx context.Context) Recorder {
	if r, ok := ctx.Value(recorderKey{}).(Recorder); ok && r != nil {
		return r
	}
	return RecorderFunc(func(Event) {})
}

// WithAttempt returns a context that stamps events with the retry attempt.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFrom returns the attempt carried by ctx, or zero.
func AttemptFrom(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

// Record sends e to the recorder carried by ctx. A zero Attempt is filled
// from ctx.
func Record(ctx context.Context, e Event) {
	if e.Attempt == 0 {
		e.Attempt = AttemptFrom(ctx)
	}
	FromContext(ctx).Record(e)
}

// Fallback logs that stage replaced an unusable gateway response with its
// deterministic default and records the matching audit event.
func Fallback(ctx context.Context, stage string, fields []string, err error) {
	attrs := []any{"stage", stage, "fields", fields}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	slog.WarnContext(ctx, "fallback activated", attrs...)

	data := map[string]any{"fields": fields}
	if err != nil {
		data["error"] = err.Error()
	}
	Record(ctx, Event{
		Kind:    KindFallback,
		Stage:   stage,
		Message: "fallback activated",
		Data:    data,
	})
}
