package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision results.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// Decision is the outcome of an admission check, kept for audit.
type Decision struct {
	DecisionID  string    `json:"decision_id"`
	AgentID     string    `json:"agent_id"`
	RequestID   string    `json:"request_id,omitempty"`
	PolicyPath  string    `json:"policy_path"`
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Allowed reports whether the decision lets the agent through.
func (d Decision) Allowed() bool { return d.Result != ResultDeny }

// SaveDecision persists d, assigning an id and timestamp when missing.
func (s *Store) SaveDecision(ctx context.Context, d *Decision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if d.DecisionID == "" {
		d.DecisionID = uuid.New().String()
	}
	if d.EvaluatedAt.IsZero() {
		d.EvaluatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_decisions (
			decision_id, agent_id, request_id, policy_path, result, violations, warnings, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DecisionID, d.AgentID, nullString(d.RequestID), d.PolicyPath, d.Result,
		stringsJSON(d.Violations), stringsJSON(d.Warnings),
		d.EvaluatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert policy decision: %w", err)
	}
	return nil
}

// Decisions returns the admission decisions taken for an agent, oldest first.
func (s *Store) Decisions(ctx context.Context, agentID string) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, agent_id, request_id, policy_path, result, violations, warnings, evaluated_at
		FROM policy_decisions
		WHERE agent_id = ?
		ORDER BY id ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("query policy decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Decision
	for rows.Next() {
		var (
			d                    Decision
			requestID            sql.NullString
			violations, warnings sql.NullString
			evaluatedAt          string
		)
		if err := rows.Scan(&d.DecisionID, &d.AgentID, &requestID, &d.PolicyPath, &d.Result,
			&violations, &warnings, &evaluatedAt); err != nil {
			return nil, fmt.Errorf("scan policy decision: %w", err)
		}
		d.RequestID = requestID.String
		d.Violations = parseStrings(violations.String)
		d.Warnings = parseStrings(warnings.String)
		d.EvaluatedAt, _ = time.Parse(timeLayout, evaluatedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy decisions: %w", err)
	}
	return out, nil
}

func stringsJSON(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
