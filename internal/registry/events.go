package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/josephgoksu/genesis/internal/audit"
)

// SaveEvents persists a request's audit trail. A non-empty agentID is
// stamped on every event, including those recorded before the agent id
// was known.
func (s *Store) SaveEvents(ctx context.Context, agentID string, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events (
			request_id, agent_id, kind, stage, attempt, strategy, before_summary, after_summary, message, data_json, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range events {
		if agentID != "" {
			e.AgentID = agentID
		}
		data := ""
		if len(e.Data) > 0 {
			b, err := json.Marshal(e.Data)
			if err != nil {
				return fmt.Errorf("marshal %s event data: %w", e.Kind, err)
			}
			data = string(b)
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx,
			e.RequestID, nullString(e.AgentID), string(e.Kind), nullString(e.Stage),
			e.Attempt, nullString(e.Strategy), nullString(e.Before), nullString(e.After),
			nullString(e.Message), nullString(data), e.Timestamp.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert %s event: %w", e.Kind, err)
		}
	}
	return tx.Commit()
}

// Events returns the audit events of an agent in the order they were
// recorded. The id may also be a request id, which covers requests that
// never produced a registered agent.
func (s *Store) Events(ctx context.Context, id string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, agent_id, kind, stage, attempt, strategy, before_summary, after_summary, message, data_json, recorded_at
		FROM audit_events
		WHERE agent_id = ? OR request_id = ?
		ORDER BY id ASC`, id, id)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []audit.Event{}
	for rows.Next() {
		var (
			e                                                      audit.Event
			kind, recordedAt                                       string
			agentID, stage, strategy, before, after, message, data sql.NullString
		)
		if err := rows.Scan(&e.RequestID, &agentID, &kind, &stage, &e.Attempt, &strategy,
			&before, &after, &message, &data, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Kind = audit.Kind(kind)
		e.AgentID = agentID.String
		e.Stage = stage.String
		e.Strategy = strategy.String
		e.Before = before.String
		e.After = after.String
		e.Message = message.String
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("decode %s event data: %w", kind, err)
			}
		}
		e.Timestamp, _ = time.Parse(timeLayout, recordedAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
