// Package registry persists accepted agents together with the audit trail
// and admission decisions of the request that produced them.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/josephgoksu/genesis/internal/agentspec"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an agent id is not in the registry.
var ErrNotFound = errors.New("agent not found")

// InMemory opens a registry that lives only as long as the process.
const InMemory = ":memory:"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Agent is a registered agent and the QA figures it was accepted with.
type Agent struct {
	ID           string                  `json:"agent_id" yaml:"agent_id"`
	AgentType    string                  `json:"agent_type" yaml:"agent_type"`
	Endpoint     string                  `json:"endpoint" yaml:"endpoint"`
	RequestID    string                  `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	AverageScore float64                 `json:"average_score" yaml:"average_score"`
	PassRate     float64                 `json:"pass_rate" yaml:"pass_rate"`
	Variance     float64                 `json:"variance" yaml:"variance"`
	RetryCount   int                     `json:"retry_count" yaml:"retry_count"`
	Spec         agentspec.Specification `json:"specification" yaml:"specification"`
	CreatedAt    time.Time               `json:"created_at" yaml:"created_at"`
}

// Store is the SQLite-backed registry.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the registry database. dir is the
// directory holding registry.db, or InMemory.
func Open(dir string) (*Store, error) {
	dbPath := InMemory
	if dir != InMemory {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
		dbPath = filepath.Join(dir, "registry.db")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every pooled connection to :memory: would get its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		agent_type TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		request_id TEXT,
		average_score REAL NOT NULL DEFAULT 0,
		pass_rate REAL NOT NULL DEFAULT 0,
		variance REAL NOT NULL DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0,
		spec_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		agent_id TEXT,
		kind TEXT NOT NULL,
		stage TEXT,
		attempt INTEGER NOT NULL DEFAULT 0,
		strategy TEXT,
		before_summary TEXT,
		after_summary TEXT,
		message TEXT,
		data_json TEXT,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policy_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL UNIQUE,
		agent_id TEXT NOT NULL,
		request_id TEXT,
		policy_path TEXT NOT NULL,
		result TEXT NOT NULL,
		violations TEXT,
		warnings TEXT,
		evaluated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_type ON agents(agent_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_agent ON audit_events(agent_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_request ON audit_events(request_id);
	CREATE INDEX IF NOT EXISTS idx_policy_decisions_agent ON policy_decisions(agent_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAgent inserts a registered agent.
func (s *Store) SaveAgent(ctx context.Context, a Agent) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	specJSON, err := json.Marshal(a.Spec)
	if err != nil {
		return fmt.Errorf("marshal specification: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (
			id, agent_type, endpoint, request_id, average_score, pass_rate, variance, retry_count, spec_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AgentType, a.Endpoint, nullString(a.RequestID),
		a.AverageScore, a.PassRate, a.Variance, a.RetryCount,
		string(specJSON), a.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

const agentColumns = `id, agent_type, endpoint, request_id, average_score, pass_rate, variance, retry_count, spec_json, created_at`

// GetAgent returns the agent with id, or ErrNotFound.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// ListOptions filters ListAgents.
type ListOptions struct {
	AgentType string // exact match
	Limit     int    // 0 = no limit
}

// ListAgents returns agents newest first.
func (s *Store) ListAgents(ctx context.Context, opts ListOptions) ([]Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE 1=1`
	var args []any
	if opts.AgentType != "" {
		query += " AND agent_type = ?"
		args = append(args, opts.AgentType)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	agents := []Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*Agent, error) {
	var (
		a         Agent
		requestID sql.NullString
		specJSON  string
		createdAt string
	)
	err := row.Scan(&a.ID, &a.AgentType, &a.Endpoint, &requestID,
		&a.AverageScore, &a.PassRate, &a.Variance, &a.RetryCount,
		&specJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	a.RequestID = requestID.String
	if err := json.Unmarshal([]byte(specJSON), &a.Spec); err != nil {
		return nil, fmt.Errorf("decode specification of %s: %w", a.ID, err)
	}
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
