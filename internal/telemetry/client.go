package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/posthog/posthog-go"
)

// Client sends telemetry events.
type Client interface {
	// Track queues an event without blocking. No-op when disabled.
	Track(event string, properties Properties)
	// Close flushes queued events.
	Close() error
}

// Properties are event attributes.
type Properties = map[string]any

// enqueuer is the slice of the PostHog SDK the client needs.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogClient delivers pipeline events through the PostHog SDK. It is
// inert until it has both an API key and an opted-in Config.
type PostHogClient struct {
	sink   enqueuer
	config *Config
	common Properties
	closed atomic.Bool
}

// ClientConfig configures NewPostHogClient.
type ClientConfig struct {
	APIKey   string
	Version  string
	Config   *Config
	Endpoint string // self-hosted PostHog; empty for the cloud endpoint
}

func NewPostHogClient(cfg ClientConfig) (*PostHogClient, error) {
	if cfg.APIKey == "" || cfg.Config == nil {
		return newPostHogClientWithEnqueuer(nil, cfg.Config, cfg.Version), nil
	}

	ph, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint:  cfg.Endpoint,
		BatchSize: 10,
		Interval:  time.Second,
		Logger:    slogPostHog{},
	})
	if err != nil {
		return nil, fmt.Errorf("posthog client: %w", err)
	}
	return newPostHogClientWithEnqueuer(ph, cfg.Config, cfg.Version), nil
}

func newPostHogClientWithEnqueuer(sink enqueuer, cfg *Config, version string) *PostHogClient {
	return &PostHogClient{
		sink:   sink,
		config: cfg,
		common: Properties{
			"os":          runtime.GOOS,
			"arch":        runtime.GOARCH,
			"cli_version": version,
			// anonymous events, no person profiles
			"$process_person_profile": false,
		},
	}
}

func (c *PostHogClient) Track(event string, properties Properties) {
	if c.sink == nil || c.closed.Load() || !c.config.IsEnabled() {
		return
	}

	props := posthog.NewProperties()
	for k, v := range c.common {
		props.Set(k, v)
	}
	for k, v := range properties {
		props.Set(k, v)
	}

	err := c.sink.Enqueue(posthog.Capture{
		DistinctId: c.config.AnonymousID,
		Event:      event,
		Properties: props,
	})
	if err != nil {
		slog.Debug("telemetry event dropped", "event", event, "error", err)
	}
}

// Close flushes the queue once; later calls and events are ignored.
func (c *PostHogClient) Close() error {
	if c.sink == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.sink.Close()
}

// NoopClient drops every event.
type NoopClient struct{}

func (NoopClient) Track(string, Properties) {}
func (NoopClient) Close() error             { return nil }

// slogPostHog sends SDK transport chatter to debug logs instead of the
// terminal.
type slogPostHog struct{}

func (slogPostHog) Debugf(format string, args ...any) {
	slog.Debug("posthog: " + fmt.Sprintf(format, args...))
}
func (slogPostHog) Logf(format string, args ...any) {
	slog.Debug("posthog: " + fmt.Sprintf(format, args...))
}
func (slogPostHog) Warnf(format string, args ...any) {
	slog.Debug("posthog: " + fmt.Sprintf(format, args...))
}
func (slogPostHog) Errorf(format string, args ...any) {
	slog.Debug("posthog: " + fmt.Sprintf(format, args...))
}
