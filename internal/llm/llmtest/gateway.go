// Package llmtest provides a deterministic llm.Gateway for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/josephgoksu/genesis/internal/llm"
)

// ModelName is reported on every scripted response.
const ModelName = "scripted-model"

// Handler produces the raw model text for a request.
type Handler func(req llm.Request) (string, error)

type route struct {
	match   string
	handler Handler
}

// Gateway routes requests to handlers by substring match on the system
// instruction or prompt. The first matching route wins.
type Gateway struct {
	mu       sync.Mutex
	routes   []route
	fallback Handler
	calls    []llm.Request

	// TokensPerCall and CostPerCall are reported on every response.
	TokensPerCall int
	CostPerCall   float64
}

// New returns an empty Gateway. Unrouted requests fail with a transport fault.
func New() *Gateway {
	return &Gateway{TokensPerCall: 10}
}

// On routes requests containing match to h.
func (g *Gateway) On(match string, h Handler) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, route{match: match, handler: h})
	return g
}

// OnJSON routes requests containing match to a fixed body.
func (g *Gateway) OnJSON(match, body string) *Gateway {
	return g.On(match, Body(body))
}

// Otherwise sets the handler for unrouted requests.
func (g *Gateway) Otherwise(h Handler) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallback = h
	return g
}

func (g *Gateway) GenerateStructured(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.Classify(err, ModelName)
	}

	g.mu.Lock()
	g.calls = append(g.calls, req)
	h := g.fallback
	for _, r := range g.routes {
		if strings.Contains(req.SystemInstruction, r.match) || strings.Contains(req.Prompt, r.match) {
			h = r.handler
			break
		}
	}
	tokens, cost := g.TokensPerCall, g.CostPerCall
	g.mu.Unlock()

	if h == nil {
		return nil, &llm.GatewayFault{Kind: llm.FaultTransport, Model: ModelName, Err: errNoRoute}
	}
	text, err := h(req)
	if err != nil {
		return nil, llm.Classify(err, ModelName)
	}
	parsed, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, &llm.GatewayFault{Kind: llm.FaultUnparsable, Model: ModelName, Err: err}
	}
	return &llm.Response{
		Parsed:      parsed,
		Text:        text,
		TotalTokens: tokens,
		CostUSD:     cost,
		ModelName:   ModelName,
	}, nil
}

// Calls returns a copy of every request received.
func (g *Gateway) Calls() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.calls...)
}

// CallCount returns the number of requests received.
func (g *Gateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// CallsMatching counts requests whose system instruction or prompt
// contains match.
func (g *Gateway) CallsMatching(match string) int {
	n := 0
	for _, c := range g.Calls() {
		if strings.Contains(c.SystemInstruction, match) || strings.Contains(c.Prompt, match) {
			n++
		}
	}
	return n
}

// Body always returns body.
func Body(body string) Handler {
	return func(llm.Request) (string, error) { return body, nil }
}

// Fail always returns err.
func Fail(err error) Handler {
	return func(llm.Request) (string, error) { return "", err }
}

// Sequence returns bodies in order, repeating the last one.
func Sequence(bodies ...string) Handler {
	var (
		mu sync.Mutex
		i  int
	)
	return func(llm.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		b := bodies[min(i, len(bodies)-1)]
		i++
		return b, nil
	}
}

type routeError string

func (e routeError) Error() string { return string(e) }

const errNoRoute = routeError("no scripted route for request")
