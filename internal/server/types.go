package server

import (
	"time"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/registry"
)

// CreateRequest is the payload for POST /api/agents
type CreateRequest struct {
	Instruction string `json:"instruction"`
	RequestID   string `json:"request_id,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	FailureKind string   `json:"failure_kind,omitempty"`
	Violations  []string `json:"violations,omitempty"`
}

// AuditResponse is the response for /api/agents/{id}/audit
type AuditResponse struct {
	AgentID   string              `json:"agent_id"`
	Events    []audit.Event       `json:"events"`
	Decisions []registry.Decision `json:"decisions"`
}

// AgentCard is what a registered endpoint serves.
type AgentCard struct {
	AgentID      string                  `json:"agent_id"`
	AgentType    string                  `json:"agent_type"`
	Endpoint     string                  `json:"endpoint"`
	Spec         agentspec.Specification `json:"specification"`
	QA           CardScores              `json:"qa"`
	RetryCount   int                     `json:"retry_count"`
	RegisteredAt string                  `json:"registered_at"`
}

// CardFor builds the card served for a registered agent.
func CardFor(a registry.Agent) AgentCard {
	return AgentCard{
		AgentID:   a.ID,
		AgentType: a.AgentType,
		Endpoint:  a.Endpoint,
		Spec:      a.Spec,
		QA: CardScores{
			AverageScore: a.AverageScore,
			PassRate:     a.PassRate,
			Variance:     a.Variance,
		},
		RetryCount:   a.RetryCount,
		RegisteredAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// CardScores are the verdict statistics the agent was admitted with.
type CardScores struct {
	AverageScore float64 `json:"average_score"`
	PassRate     float64 `json:"pass_rate"`
	Variance     float64 `json:"variance"`
}
