package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/registry"
)

type creatorFunc func(ctx context.Context, instruction string, opts app.CreateOptions) (*app.CreateResult, error)

func (f creatorFunc) Create(ctx context.Context, instruction string, opts app.CreateOptions) (*app.CreateResult, error) {
	return f(ctx, instruction, opts)
}

func newTestServer(t *testing.T, c Creator) (*Server, *registry.Store) {
	t.Helper()
	store, err := registry.Open(registry.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("genesis_requests_total 0\n"))
	})
	cfg := Config{Addr: "127.0.0.1:0", Version: "test", AllowedOrigins: []string{"http://ui.test"}, Metrics: metrics}
	return New(cfg, c, store), store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	return rec
}

func seedAgent(t *testing.T, store *registry.Store, id string) {
	t.Helper()
	require.NoError(t, store.SaveAgent(context.Background(), registry.Agent{
		ID:           id,
		AgentType:    "code_reviewer",
		Endpoint:     "http://localhost:8420/agents/" + id,
		RequestID:    "req-" + id,
		AverageScore: 0.66,
		PassRate:     0.6,
		Variance:     0.24,
		Spec: agentspec.Specification{
			AgentID:       id,
			AgentType:     "code_reviewer",
			Capabilities:  []string{"python"},
			Constraints:   []string{},
			SelectedModel: "gpt-4o-mini",
		},
	}))
}

func TestCreateAgent_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		create     creatorFunc
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name: "created",
			create: func(_ context.Context, _ string, opts app.CreateOptions) (*app.CreateResult, error) {
				return &app.CreateResult{Success: true, RequestID: opts.RequestID, AgentID: "a1"}, nil
			},
			body:       `{"instruction": "Review Go code for races", "request_id": "r1"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name: "exhausted",
			create: func(context.Context, string, app.CreateOptions) (*app.CreateResult, error) {
				return &app.CreateResult{Success: false, RetryCount: 3, Message: "QA failed"}, nil
			},
			body:       `{"instruction": "Review Go code for races"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "validation",
			create: func(_ context.Context, instruction string, _ app.CreateOptions) (*app.CreateResult, error) {
				return nil, app.ValidateInstruction(instruction)
			},
			body:       `{"instruction": "short"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   app.FailureValidation,
		},
		{
			name: "gateway fault",
			create: func(context.Context, string, app.CreateOptions) (*app.CreateResult, error) {
				return nil, &llm.GatewayFault{Kind: llm.FaultAuth, Err: errors.New("401")}
			},
			body:       `{"instruction": "Review Go code for races"}`,
			wantStatus: http.StatusBadGateway,
			wantKind:   app.FailureGateway,
		},
		{
			name: "policy denial",
			create: func(context.Context, string, app.CreateOptions) (*app.CreateResult, error) {
				return nil, &registry.RegistrationFault{AgentID: "a1", Reason: "denied by admission policy", Violations: []string{"too many capabilities"}}
			},
			body:       `{"instruction": "Review Go code for races"}`,
			wantStatus: http.StatusForbidden,
			wantKind:   app.FailureRegistration,
		},
		{
			name:       "bad body",
			create:     func(context.Context, string, app.CreateOptions) (*app.CreateResult, error) { panic("not called") },
			body:       `{"instruction":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.create)
			rec := do(t, s, http.MethodPost, "/api/agents", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, body["failure_kind"])
				assert.Equal(t, false, body["success"])
			}
		})
	}
}

func TestCreateAgent_Location(t *testing.T) {
	s, _ := newTestServer(t, creatorFunc(func(context.Context, string, app.CreateOptions) (*app.CreateResult, error) {
		return &app.CreateResult{Success: true, AgentID: "a9"}, nil
	}))
	rec := do(t, s, http.MethodPost, "/api/agents", `{"instruction": "Review Go code for races"}`)
	assert.Equal(t, "/api/agents/a9", rec.Header().Get("Location"))
}

func TestListAndGetAgents(t *testing.T) {
	s, store := newTestServer(t, nil)
	seedAgent(t, store, "a1")
	seedAgent(t, store, "a2")

	rec := do(t, s, http.MethodGet, "/api/agents?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var agents []registry.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	assert.Len(t, agents, 1)

	rec = do(t, s, http.MethodGet, "/api/agents?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/agents/a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var agent registry.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agent))
	assert.Equal(t, "gpt-4o-mini", agent.Spec.SelectedModel)

	rec = do(t, s, http.MethodGet, "/api/agents/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentAuditAndCard(t *testing.T) {
	s, store := newTestServer(t, nil)
	seedAgent(t, store, "a1")
	ctx := context.Background()
	require.NoError(t, store.SaveEvents(ctx, "a1", []audit.Event{
		{RequestID: "req-a1", Kind: audit.KindRequestStarted},
		{RequestID: "req-a1", Kind: audit.KindRegistered},
	}))

	rec := do(t, s, http.MethodGet, "/api/agents/a1/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var audited AuditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audited))
	assert.Len(t, audited.Events, 2)
	assert.Equal(t, audit.KindRegistered, audited.Events[1].Kind)

	rec = do(t, s, http.MethodGet, "/agents/a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var card AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "code_reviewer", card.AgentType)
	assert.InDelta(t, 0.24, card.QA.Variance, 1e-9)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "genesis_requests_total")

	r := httptest.NewRequest(http.MethodOptions, "/api/agents", nil)
	r.Header.Set("Origin", "http://ui.test")
	out := httptest.NewRecorder()
	s.Handler().ServeHTTP(out, r)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Equal(t, "http://ui.test", out.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/agents", nil)
	r.Header.Set("Origin", "http://evil.test")
	out = httptest.NewRecorder()
	s.Handler().ServeHTTP(out, r)
	assert.Equal(t, http.StatusForbidden, out.Code)
}
