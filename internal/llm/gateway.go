package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// Request is one structured generation call.
type Request struct {
	Prompt            string
	SystemInstruction string
	// Schema describes the expected JSON shape. It is rendered into the
	// system instruction; providers are not asked to enforce it.
	Schema map[string]any
	// Temperature overrides the model default when set.
	Temperature *float32
}

// Response carries the parsed JSON value and usage accounting.
type Response struct {
	Parsed       json.RawMessage
	Text         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
	ModelName    string
}

// Gateway is the text-generation collaborator used by every pipeline stage.
// Implementations must be safe for concurrent use.
type Gateway interface {
	GenerateStructured(ctx context.Context, req Request) (*Response, error)
}

// GatewayOptions tunes round-trip behaviour.
type GatewayOptions struct {
	Timeout           time.Duration // per round trip; zero disables
	RequestsPerSecond float64       // zero disables throttling
	MaxRetries        int           // extra attempts for retryable faults
	BackoffBase       time.Duration
}

const (
	defaultBackoffBase = 500 * time.Millisecond
	maxBackoff         = 10 * time.Second
	backoffJitter      = 0.2
)

// ChatGateway implements Gateway over an Eino chat model. Each call runs a
// compiled prompt -> model -> parse graph.
type ChatGateway struct {
	chain     compose.Runnable[*exchange, *exchange]
	modelName string
	limiter   *rate.Limiter
	opts      GatewayOptions
}

// exchange is the state threaded through the graph for one call.
type exchange struct {
	req      Request
	messages []*schema.Message
	reply    *schema.Message
	resp     *Response
	fault    *GatewayFault
}

// NewChatGateway compiles the generation graph around chatModel.
func NewChatGateway(ctx context.Context, chatModel model.BaseChatModel, modelName string, opts GatewayOptions) (*ChatGateway, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}

	g := &ChatGateway{modelName: modelName, opts: opts}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	chain, err := g.compile(ctx, chatModel)
	if err != nil {
		return nil, err
	}
	g.chain = chain
	return g, nil
}

type graphNode struct {
	key    string
	lambda *compose.Lambda
}

var gatewayEdges = [][2]string{
	{compose.START, "prompt"},
	{"prompt", "model"},
	{"model", "parse"},
	{"parse", compose.END},
}

// compile wires prompt → model → parse into a runnable graph.
func (g *ChatGateway) compile(ctx context.Context, chatModel model.BaseChatModel) (compose.Runnable[*exchange, *exchange], error) {
	graph, err := wireGraph([]graphNode{
		{"prompt", compose.InvokableLambda(buildMessages)},
		{"model", compose.InvokableLambda(func(ctx context.Context, ex *exchange) (*exchange, error) {
			return g.generate(ctx, chatModel, ex)
		})},
		{"parse", compose.InvokableLambda(g.parse)},
	}, gatewayEdges)
	if err != nil {
		return nil, err
	}

	chain, err := graph.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile gateway graph: %w", err)
	}
	return chain, nil
}

func wireGraph(nodes []graphNode, edges [][2]string) (*compose.Graph[*exchange, *exchange], error) {
	graph := compose.NewGraph[*exchange, *exchange]()
	for _, n := range nodes {
		if err := graph.AddLambdaNode(n.key, n.lambda); err != nil {
			return nil, fmt.Errorf("add gateway node %s: %w", n.key, err)
		}
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add gateway edge %s -> %s: %w", e[0], e[1], err)
		}
	}
	return graph, nil
}

// ModelName returns the model the gateway talks to.
func (g *ChatGateway) ModelName() string { return g.modelName }

// GenerateStructured sends the request and returns the parsed JSON value.
// Every failure is a *GatewayFault.
func (g *ChatGateway) GenerateStructured(ctx context.Context, req Request) (*Response, error) {
	ex := &exchange{req: req}
	if _, err := g.chain.Invoke(ctx, ex); err != nil {
		if ex.fault != nil {
			return nil, ex.fault
		}
		return nil, classifyFault(err, g.modelName)
	}
	if ex.resp == nil {
		return nil, &GatewayFault{Kind: FaultTransport, Model: g.modelName, Err: fmt.Errorf("empty response")}
	}
	return ex.resp, nil
}

func buildMessages(_ context.Context, ex *exchange) (*exchange, error) {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(ex.req.SystemInstruction))
	sys.WriteString("\n\nRespond with a single JSON value only. No markdown, no code fences.")
	if len(ex.req.Schema) > 0 {
		if b, err := json.Marshal(ex.req.Schema); err == nil {
			sys.WriteString("\nExpected JSON schema: ")
			sys.Write(b)
		}
	}
	ex.messages = []*schema.Message{
		schema.SystemMessage(strings.TrimSpace(sys.String())),
		schema.UserMessage(ex.req.Prompt),
	}
	return ex, nil
}

func (g *ChatGateway) generate(ctx context.Context, chatModel model.BaseChatModel, ex *exchange) (*exchange, error) {
	var opts []model.Option
	if ex.req.Temperature != nil {
		opts = append(opts, model.WithTemperature(*ex.req.Temperature))
	}

	for attempt := 0; ; attempt++ {
		reply, err := g.roundTrip(ctx, chatModel, ex.messages, opts)
		if err == nil {
			ex.reply = reply
			return ex, nil
		}

		fault := classifyFault(err, g.modelName)
		if attempt >= g.opts.MaxRetries || !fault.Retryable() || ctx.Err() != nil {
			ex.fault = fault
			return ex, fault
		}

		delay := g.backoff(attempt)
		slog.Debug("gateway retry", "model", g.modelName, "kind", fault.Kind, "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			ex.fault = classifyFault(ctx.Err(), g.modelName)
			return ex, ex.fault
		case <-time.After(delay):
		}
	}
}

func (g *ChatGateway) roundTrip(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message, opts []model.Option) (*schema.Message, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	reply, err := chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("model returned no message")
	}
	return reply, nil
}

// backoff is exponential with jitter, capped at maxBackoff.
func (g *ChatGateway) backoff(attempt int) time.Duration {
	delay := g.opts.BackoffBase * time.Duration(1<<attempt)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	if jitter := int64(float64(delay) * backoffJitter); jitter > 0 {
		//nolint:gosec // jitter does not need a CSPRNG
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}
	if delay < 0 {
		return g.opts.BackoffBase
	}
	return delay
}

func (g *ChatGateway) parse(_ context.Context, ex *exchange) (*exchange, error) {
	parsed, err := ExtractJSON(ex.reply.Content)
	if err != nil {
		ex.fault = &GatewayFault{Kind: FaultUnparsable, Model: g.modelName, Err: err}
		return ex, ex.fault
	}

	resp := &Response{
		Parsed:    parsed,
		Text:      ex.reply.Content,
		ModelName: g.modelName,
	}
	if meta := ex.reply.ResponseMeta; meta != nil && meta.Usage != nil {
		resp.InputTokens = meta.Usage.PromptTokens
		resp.OutputTokens = meta.Usage.CompletionTokens
		resp.TotalTokens = meta.Usage.TotalTokens
	} else {
		for _, m := range ex.messages {
			resp.InputTokens += EstimateTokens(m.Content)
		}
		resp.OutputTokens = EstimateTokens(ex.reply.Content)
	}
	if resp.TotalTokens == 0 {
		resp.TotalTokens = resp.InputTokens + resp.OutputTokens
	}
	resp.CostUSD = CalculateCost(g.modelName, resp.InputTokens, resp.OutputTokens)

	ex.resp = resp
	return ex, nil
}
