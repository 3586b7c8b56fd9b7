package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/genesis/internal/admission"
	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/config"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/metrics"
	"github.com/josephgoksu/genesis/internal/qa"
	"github.com/josephgoksu/genesis/internal/registry"
	"github.com/josephgoksu/genesis/internal/telemetry"
)

// modelStack is what the pipeline needs from the configured provider.
type modelStack struct {
	gateway  llm.Gateway
	judge    qa.Judge // nil grades with the gateway
	model    string
	provider string
}

// newModelStack builds the gateway from llm.* settings. Replaced in tests.
var newModelStack = func(ctx context.Context, s *config.Settings) (*modelStack, error) {
	cfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, err
	}
	chat, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", cfg.Provider, err)
	}
	gw, err := llm.NewChatGateway(ctx, chat, cfg.Model, config.LoadGatewayOptions())
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	stack := &modelStack{gateway: gw, model: cfg.Model, provider: string(cfg.Provider)}
	if s.QA.Judge == config.JudgeEmbedding {
		emb, err := llm.NewEmbeddingModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create embedding judge: %w", err)
		}
		stack.judge = qa.NewEmbeddingJudge(emb, cfg.EmbeddingModel, s.QA.SimilarityThreshold)
	}
	slog.Debug("model gateway ready", "provider", cfg.Provider, "model", cfg.Model, "judge", s.QA.Judge)
	return stack, nil
}

// services is everything a creation request touches.
type services struct {
	create  *app.CreateApp
	store   *registry.Store
	engine  *admission.Engine
	metrics *metrics.Sink
}

func openServices(ctx context.Context, s *config.Settings) (*services, error) {
	stack, err := newModelStack(ctx, s)
	if err != nil {
		return nil, err
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}

	engine, err := admission.NewEngine(ctx, admission.Config{Dir: config.PoliciesDir()})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load admission policies: %w", err)
	}

	sink := metrics.NewSink(nil)
	c := &app.Context{
		Gateway:      stack.gateway,
		Registrar:    registry.NewRegistrar(store, s.Registry.EndpointBase, engine),
		Events:       store,
		Judge:        stack.judge,
		Questions:    s.QA.Questions,
		DefaultModel: stack.model,
		Provider:     stack.provider,
		Metrics:      sink,
		Telemetry:    telemetryClient(),
		Sinks:        []audit.Recorder{audit.NewLogger(slog.Default())},
	}
	return &services{create: app.NewCreateApp(c), store: store, engine: engine, metrics: sink}, nil
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		slog.Warn("close registry", "error", err)
	}
}

func openStore() (*registry.Store, error) {
	store, err := registry.Open(config.RegistryDir())
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return store, nil
}

var telClient telemetry.Client

// telemetryClient is created on first use. Without an opt-in or an API
// key it never sends anything.
func telemetryClient() telemetry.Client {
	if telClient != nil {
		return telClient
	}
	telClient = telemetry.NoopClient{}

	cfg, err := telemetry.Load()
	if err != nil {
		slog.Debug("telemetry disabled", "error", err)
		return telClient
	}
	var apiKey, endpoint string
	if settings != nil {
		apiKey, endpoint = settings.Telemetry.APIKey, settings.Telemetry.Endpoint
	}
	c, err := telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:   apiKey,
		Version:  version,
		Config:   cfg,
		Endpoint: endpoint,
	})
	if err != nil {
		slog.Debug("telemetry disabled", "error", err)
		return telClient
	}
	telClient = c
	return telClient
}

func closeTelemetry() {
	if telClient == nil {
		return
	}
	_ = telClient.Close()
	telClient = nil
}
