// Package app is the application layer behind every entry point. The CLI,
// the HTTP server and the MCP tool are thin adapters over CreateApp.
package app

import (
	"context"

	"github.com/josephgoksu/genesis/internal/agentspec"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/metrics"
	"github.com/josephgoksu/genesis/internal/qa"
	"github.com/josephgoksu/genesis/internal/registry"
	"github.com/josephgoksu/genesis/internal/telemetry"
)

// Registrar admits and stores accepted specifications.
type Registrar interface {
	Register(ctx context.Context, spec agentspec.Specification, opts ...registry.Option) (registry.Registration, error)
}

// EventStore persists a finished request's audit trail.
type EventStore interface {
	SaveEvents(ctx context.Context, agentID string, events []audit.Event) error
}

// Context holds the dependencies shared by every request. Only Gateway and
// Registrar are required.
type Context struct {
	Gateway   llm.Gateway
	Registrar Registrar
	Events    EventStore

	// Judge grades simulated answers. Nil uses the gateway as judge.
	Judge        qa.Judge
	Questions    int
	DefaultModel string
	Provider     string

	Metrics   *metrics.Sink
	Telemetry telemetry.Client
	// Sinks receive the events of every request, e.g. an audit.Logger.
	Sinks []audit.Recorder
}

func (c *Context) recorders(extra []audit.Recorder) []audit.Recorder {
	out := make([]audit.Recorder, 0, len(c.Sinks)+len(extra)+1)
	out = append(out, c.Sinks...)
	if c.Metrics != nil {
		out = append(out, c.Metrics)
	}
	return append(out, extra...)
}
