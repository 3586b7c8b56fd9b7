package telemetry

import "time"

// Event names.
const (
	EventAgentCreated        = "agent_created"
	EventAgentCreationFailed = "agent_creation_failed"
	EventCommandExecuted     = "command_executed"
)

// Outcome summarises one creation request. It carries counts and model
// names only; instructions, prompts and answers are never sent.
type Outcome struct {
	Success      bool
	FailureKind  string // validation, gateway, qa_exhausted, registration, internal
	RetryCount   int
	Capabilities int
	Fallbacks    int
	Provider     string
	Model        string
	TotalTokens  int
	CostUSD      float64
	Duration     time.Duration
}

// Event returns the event name and properties for o.
func (o Outcome) Event() (string, Properties) {
	props := Properties{
		"retry_count":  o.RetryCount,
		"capabilities": o.Capabilities,
		"fallbacks":    o.Fallbacks,
		"provider":     o.Provider,
		"model":        o.Model,
		"total_tokens": o.TotalTokens,
		"cost_usd":     o.CostUSD,
		"duration_ms":  o.Duration.Milliseconds(),
	}
	if o.Success {
		return EventAgentCreated, props
	}
	props["failure_kind"] = o.FailureKind
	return EventAgentCreationFailed, props
}

// TrackOutcome sends o through c.
func TrackOutcome(c Client, o Outcome) {
	if c == nil {
		return
	}
	name, props := o.Event()
	c.Track(name, props)
}

// TrackCommand records a CLI command run.
func TrackCommand(c Client, command string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.Track(EventCommandExecuted, Properties{
		"command":     command,
		"duration_ms": d.Milliseconds(),
		"success":     err == nil,
	})
}
