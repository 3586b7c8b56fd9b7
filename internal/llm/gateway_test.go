package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays canned replies and errors in order.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	errs    []error
	calls   int
	seen    [][]*schema.Message
	temps   []*float32
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++
	m.seen = append(m.seen, input)
	m.temps = append(m.temps, model.GetCommonOptions(&model.Options{}, opts...).Temperature)

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return m.replies[len(m.replies)-1], nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func newTestGateway(t *testing.T, m model.BaseChatModel, opts GatewayOptions) *ChatGateway {
	t.Helper()
	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Millisecond
	}
	g, err := NewChatGateway(context.Background(), m, "gpt-4o-mini", opts)
	require.NoError(t, err)
	return g
}

func TestNewChatGateway_RequiresModel(t *testing.T) {
	_, err := NewChatGateway(context.Background(), nil, "x", GatewayOptions{})
	assert.EqualError(t, err, "chat model is required")
}

func TestChatGateway_GenerateStructured(t *testing.T) {
	m := &scriptedModel{replies: []*schema.Message{{
		Role:    schema.Assistant,
		Content: "```json\n{\"agent_type\": \"code_reviewer\"}\n```",
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens: 1_000_000, CompletionTokens: 1_000_000, TotalTokens: 2_000_000,
		}},
	}}}
	g := newTestGateway(t, m, GatewayOptions{})

	temp := float32(0.2)
	resp, err := g.GenerateStructured(context.Background(), Request{
		Prompt:            "Review Python code",
		SystemInstruction: "Extract requirements.",
		Schema:            map[string]any{"agent_type": "string"},
		Temperature:       &temp,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"agent_type":"code_reviewer"}`, string(resp.Parsed))
	assert.Equal(t, 1_000_000, resp.InputTokens)
	assert.Equal(t, 1_000_000, resp.OutputTokens)
	assert.Equal(t, 2_000_000, resp.TotalTokens)
	assert.InDelta(t, 0.75, resp.CostUSD, 1e-9)
	assert.Equal(t, "gpt-4o-mini", resp.ModelName)
	assert.Equal(t, "gpt-4o-mini", g.ModelName())

	require.Len(t, m.seen, 1)
	msgs := m.seen[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Extract requirements.")
	assert.Contains(t, msgs[0].Content, `"agent_type":"string"`)
	assert.Equal(t, "Review Python code", msgs[1].Content)

	require.NotNil(t, m.temps[0])
	assert.Equal(t, temp, *m.temps[0])
}

func TestChatGateway_EstimatesUsageWithoutMeta(t *testing.T) {
	m := &scriptedModel{replies: []*schema.Message{{Role: schema.Assistant, Content: `{"text":"ok"}`}}}
	g := newTestGateway(t, m, GatewayOptions{})

	resp, err := g.GenerateStructured(context.Background(), Request{Prompt: "hello there"})
	require.NoError(t, err)
	assert.Positive(t, resp.InputTokens)
	assert.Equal(t, EstimateTokens(`{"text":"ok"}`), resp.OutputTokens)
	assert.Equal(t, resp.InputTokens+resp.OutputTokens, resp.TotalTokens)
	assert.Nil(t, m.temps[0])
}

func TestChatGateway_RetriesRetryableFaults(t *testing.T) {
	m := &scriptedModel{
		errs:    []error{errors.New("429 too many requests"), errors.New("connection reset by peer")},
		replies: []*schema.Message{nil, nil, {Role: schema.Assistant, Content: `{"ok":true}`}},
	}
	g := newTestGateway(t, m, GatewayOptions{MaxRetries: 2})

	resp, err := g.GenerateStructured(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Parsed))
	assert.Equal(t, 3, m.calls)
}

func TestChatGateway_FaultKinds(t *testing.T) {
	tests := []struct {
		name      string
		model     *scriptedModel
		retries   int
		wantKind  FaultKind
		wantCalls int
	}{
		{
			name:      "auth is not retried",
			model:     &scriptedModel{errs: []error{errors.New("401 unauthorized")}, replies: []*schema.Message{nil}},
			retries:   3,
			wantKind:  FaultAuth,
			wantCalls: 1,
		},
		{
			name: "retries exhausted",
			model: &scriptedModel{
				errs:    []error{errors.New("rate limit"), errors.New("rate limit")},
				replies: []*schema.Message{nil},
			},
			retries:   1,
			wantKind:  FaultRateLimit,
			wantCalls: 2,
		},
		{
			name:      "prose reply is unparsable",
			model:     &scriptedModel{replies: []*schema.Message{{Role: schema.Assistant, Content: "Sorry, I can't do that."}}},
			wantKind:  FaultUnparsable,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, tt.model, GatewayOptions{MaxRetries: tt.retries})

			_, err := g.GenerateStructured(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)

			var fault *GatewayFault
			require.True(t, errors.As(err, &fault), "expected GatewayFault, got %T", err)
			assert.Equal(t, tt.wantKind, fault.Kind)
			assert.Equal(t, tt.wantCalls, tt.model.calls)
		})
	}
}

func TestChatGateway_Backoff(t *testing.T) {
	g := &ChatGateway{opts: GatewayOptions{BackoffBase: 100 * time.Millisecond}}

	for attempt := 0; attempt < 3; attempt++ {
		base := 100 * time.Millisecond * time.Duration(1<<attempt)
		d := g.backoff(attempt)
		assert.GreaterOrEqual(t, d, base-base/5)
		assert.LessOrEqual(t, d, base+base/5)
	}
	assert.LessOrEqual(t, g.backoff(20), maxBackoff+maxBackoff/5)
}

func TestWireGraph_ReportsBadWiring(t *testing.T) {
	pass := compose.InvokableLambda(func(_ context.Context, ex *exchange) (*exchange, error) { return ex, nil })

	tests := []struct {
		name    string
		nodes   []graphNode
		edges   [][2]string
		wantErr string
	}{
		{
			name:  "gateway wiring",
			nodes: []graphNode{{"prompt", pass}, {"model", pass}, {"parse", pass}},
			edges: gatewayEdges,
		},
		{
			name:    "duplicate node",
			nodes:   []graphNode{{"prompt", pass}, {"prompt", pass}},
			wantErr: "add gateway node prompt",
		},
		{
			name:    "edge to missing node",
			nodes:   []graphNode{{"prompt", pass}},
			edges:   [][2]string{{compose.START, "prompt"}, {"prompt", "model"}},
			wantErr: "add gateway edge prompt -> model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph, err := wireGraph(tt.nodes, tt.edges)
			if tt.wantErr == "" {
				require.NoError(t, err)
				_, err = graph.Compile(context.Background())
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
