// Package server exposes the creation pipeline and the registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/registry"
)

// Creator runs creation requests.
type Creator interface {
	Create(ctx context.Context, instruction string, opts app.CreateOptions) (*app.CreateResult, error)
}

// AgentStore is the read side of the registry.
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*registry.Agent, error)
	ListAgents(ctx context.Context, opts registry.ListOptions) ([]registry.Agent, error)
	Events(ctx context.Context, id string) ([]audit.Event, error)
	Decisions(ctx context.Context, agentID string) ([]registry.Decision, error)
}

// Config configures a Server. Metrics may be nil.
type Config struct {
	Addr           string
	Version        string
	AllowedOrigins []string
	// RequestTimeout bounds a single creation request; zero means none.
	RequestTimeout time.Duration
	Metrics        http.Handler
}

type Server struct {
	creator Creator
	store   AgentStore
	cfg     Config
	origins map[string]struct{}
	server  *http.Server
}

func New(cfg Config, creator Creator, store AgentStore) *Server {
	s := &Server{
		creator: creator,
		store:   store,
		cfg:     cfg,
		origins: make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = struct{}{}
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.registerRoutes()
}

func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("api server listening", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
