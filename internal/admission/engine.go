/*
Package admission gates agent registration with Rego policies.

Policies live as .rego files in the configured directory and declare the
package genesis.admission. Every string in the deny set blocks the
registration; strings in the warn set are logged and kept on the decision.

	package genesis.admission

	deny contains msg if {
		count(input.agent.capabilities) > 12
		msg := "too many capabilities"
	}

The input document is the agent being registered:

	{
	  "request_id": "...",
	  "agent": { "agent_id": "...", "agent_type": "...", "capabilities": [...], ... },
	  "qa": { "average_score": 0.7, "pass_rate": 0.6, "variance": 0.24, ... },
	  "retry_count": 1
	}
*/
package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"

	"github.com/josephgoksu/genesis/internal/registry"
)

// DefaultPackage is the Rego package queried for deny and warn rules.
const DefaultPackage = "genesis.admission"

// Config configures NewEngine.
type Config struct {
	// Dir holds the .rego files. Empty means no policies.
	Dir string
	// Package overrides DefaultPackage.
	Package string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// Engine evaluates admission policies. It is safe for concurrent use and
// may be reloaded while serving.
type Engine struct {
	cfg Config

	mu       sync.RWMutex
	policies []*PolicyFile
	deny     *rego.PreparedEvalQuery
	warn     *rego.PreparedEvalQuery
}

// NewEngine loads and compiles the policies in cfg.Dir.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	e := &Engine{cfg: cfg}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithPolicies compiles the given policies without touching a filesystem.
func NewEngineWithPolicies(ctx context.Context, policies ...*PolicyFile) (*Engine, error) {
	e := &Engine{cfg: Config{Package: DefaultPackage}}
	if err := e.install(ctx, policies); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload re-reads the policy directory. On error the previous policies
// stay in force.
func (e *Engine) Reload(ctx context.Context) error {
	policies, err := NewLoader(e.cfg.Fs, e.cfg.Dir).LoadAll()
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	return e.install(ctx, policies)
}

func (e *Engine) install(ctx context.Context, policies []*PolicyFile) error {
	RegisterBuiltins()

	var deny, warn *rego.PreparedEvalQuery
	if len(policies) > 0 {
		var err error
		if deny, err = e.prepare(ctx, policies, "deny"); err != nil {
			return err
		}
		if warn, err = e.prepare(ctx, policies, "warn"); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.policies, e.deny, e.warn = policies, deny, warn
	e.mu.Unlock()

	slog.Debug("admission policies loaded", "count", len(policies), "package", e.cfg.Package)
	return nil
}

func (e *Engine) prepare(ctx context.Context, policies []*PolicyFile, rule string) (*rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){
		rego.Query(fmt.Sprintf("data.%s.%s", e.cfg.Package, rule)),
	}
	for _, p := range policies {
		opts = append(opts, rego.Module(p.Path, p.Content))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile %s rules: %w", rule, err)
	}
	return &pq, nil
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.policies)
}

// PolicyNames returns the names of the loaded policies.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Evaluate runs the deny and warn rules against input. With no policies
// loaded everything is allowed.
func (e *Engine) Evaluate(ctx context.Context, input any) (*registry.Decision, error) {
	e.mu.RLock()
	deny, warn := e.deny, e.warn
	e.mu.RUnlock()

	decision := &registry.Decision{
		DecisionID:  uuid.New().String(),
		PolicyPath:  e.cfg.Package,
		Result:      registry.ResultAllow,
		EvaluatedAt: time.Now().UTC(),
	}
	if deny == nil {
		return decision, nil
	}

	doc, err := toDocument(input)
	if err != nil {
		return nil, err
	}

	violations, err := querySet(ctx, deny, doc)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	warnings, err := querySet(ctx, warn, doc)
	if err != nil {
		return nil, fmt.Errorf("query warn rules: %w", err)
	}

	decision.Violations = violations
	decision.Warnings = warnings
	if len(violations) > 0 {
		decision.Result = registry.ResultDeny
	}
	return decision, nil
}

// Admit implements registry.Admitter.
func (e *Engine) Admit(ctx context.Context, in registry.AdmissionInput) (*registry.Decision, error) {
	d, err := e.Evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "admission decision",
		"agent_id", in.Spec.AgentID,
		"result", d.Result,
		"violations", len(d.Violations))
	return d, nil
}

// querySet collects the strings of a set-valued rule. An undefined rule
// yields nothing.
func querySet(ctx context.Context, pq *rego.PreparedEvalQuery, input any) ([]string, error) {
	if pq == nil {
		return nil, nil
	}
	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			items, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out, nil
}

// toDocument converts input to the plain JSON shape Rego sees.
func toDocument(input any) (any, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode policy input: %w", err)
	}
	return doc, nil
}

// ValidatePolicy reports whether content compiles as Rego.
func ValidatePolicy(ctx context.Context, name, content string) error {
	RegisterBuiltins()
	_, err := rego.New(
		rego.Query("data"),
		rego.Module(name, content),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
