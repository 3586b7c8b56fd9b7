package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/registry"
)

const maxBodyBytes = 64 << 10

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	res, err := s.creator.Create(ctx, req.Instruction, app.CreateOptions{RequestID: req.RequestID})
	if err != nil {
		status, body := createError(err)
		if status >= http.StatusInternalServerError {
			slog.Error("create agent failed", "error", err)
		}
		writeError(w, status, body)
		return
	}
	if !res.Success {
		writeAPIJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	w.Header().Set("Location", "/api/agents/"+res.AgentID)
	writeAPIJSON(w, http.StatusCreated, res)
}

// createError maps a Create error to a status code and body.
func createError(err error) (int, ErrorResponse) {
	kind := app.FailureKind(err)
	body := ErrorResponse{Error: err.Error(), FailureKind: kind}

	var fault *registry.RegistrationFault
	switch kind {
	case app.FailureValidation:
		return http.StatusBadRequest, body
	case app.FailureGateway:
		return http.StatusBadGateway, body
	case app.FailureCancelled:
		return http.StatusServiceUnavailable, body
	case app.FailureRegistration:
		if errors.As(err, &fault) && len(fault.Violations) > 0 {
			body.Violations = fault.Violations
			return http.StatusForbidden, body
		}
	}
	return http.StatusInternalServerError, body
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	opts := registry.ListOptions{AgentType: r.URL.Query().Get("type")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		opts.Limit = n
	}

	agents, err := s.store.ListAgents(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeAPIJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeAPIJSON(w, http.StatusOK, agent)
}

func (s *Server) handleAgentAudit(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.lookup(w, r)
	if !ok {
		return
	}
	events, err := s.store.Events(r.Context(), agent.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	decisions, err := s.store.Decisions(r.Context(), agent.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeAPIJSON(w, http.StatusOK, AuditResponse{AgentID: agent.ID, Events: events, Decisions: decisions})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeAPIJSON(w, http.StatusOK, CardFor(*agent))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeAPIJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

// lookup resolves the {id} path value, writing 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*registry.Agent, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "missing id"})
		return nil, false
	}
	agent, err := s.store.GetAgent(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return nil, false
	}
	return agent, true
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	body.Success = false
	writeAPIJSON(w, status, body)
}

func writeAPIJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
