package telemetry

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEnqueuer captures events for testing.
type mockEnqueuer struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed bool
}

func (m *mockEnqueuer) Enqueue(msg posthog.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if capture, ok := msg.(posthog.Capture); ok {
		m.events = append(m.events, capture)
	}
	return nil
}

func (m *mockEnqueuer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEnqueuer) captured() []posthog.Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]posthog.Capture, len(m.events))
	copy(out, m.events)
	return out
}

func newTestClient(t *testing.T, cfg *Config) (*PostHogClient, *mockEnqueuer) {
	t.Helper()
	t.Setenv(DoNotTrackEnv, "")
	mock := &mockEnqueuer{}
	return newPostHogClientWithEnqueuer(mock, cfg, "1.2.3"), mock
}

func TestPostHogClient_TrackWhenEnabled(t *testing.T) {
	client, mock := newTestClient(t, &Config{Enabled: true, ConsentAsked: true, AnonymousID: "anon-1"})

	client.Track(EventAgentCreated, Properties{"retry_count": 1})

	events := mock.captured()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "anon-1", e.DistinctId)
	assert.Equal(t, EventAgentCreated, e.Event)
	assert.Equal(t, 1, e.Properties["retry_count"])
	assert.Equal(t, runtime.GOOS, e.Properties["os"])
	assert.Equal(t, runtime.GOARCH, e.Properties["arch"])
	assert.Equal(t, "1.2.3", e.Properties["cli_version"])
	assert.Equal(t, false, e.Properties["$process_person_profile"])
}

func TestPostHogClient_TrackWhenDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"opted out", &Config{Enabled: false, ConsentAsked: true, AnonymousID: "x"}},
		{"no config", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newTestClient(t, tt.cfg)
			client.Track(EventAgentCreated, nil)
			assert.Empty(t, mock.captured())
		})
	}
}

func TestNewPostHogClient_WithoutAPIKeyIsInert(t *testing.T) {
	client, err := NewPostHogClient(ClientConfig{Version: "dev", Config: &Config{Enabled: true}})
	require.NoError(t, err)

	client.Track(EventAgentCreated, nil)
	assert.NoError(t, client.Close())
}

func TestPostHogClient_CloseStopsTracking(t *testing.T) {
	client, mock := newTestClient(t, &Config{Enabled: true, AnonymousID: "a"})

	require.NoError(t, client.Close())
	mock.mu.Lock()
	assert.True(t, mock.closed)
	mock.mu.Unlock()

	client.Track(EventAgentCreated, nil)
	assert.Empty(t, mock.captured())
	assert.NoError(t, client.Close(), "second close is a no-op")
}

func TestPostHogClient_ConcurrentTrack(t *testing.T) {
	client, mock := newTestClient(t, &Config{Enabled: true, AnonymousID: "a"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Track(EventCommandExecuted, nil)
		}()
	}
	wg.Wait()
	assert.Len(t, mock.captured(), 20)
}

func TestOutcome_Event(t *testing.T) {
	ok := Outcome{
		Success:      true,
		RetryCount:   2,
		Capabilities: 3,
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		TotalTokens:  1200,
		CostUSD:      0.01,
		Duration:     1500 * time.Millisecond,
	}
	name, props := ok.Event()
	assert.Equal(t, EventAgentCreated, name)
	assert.Equal(t, int64(1500), props["duration_ms"])
	assert.NotContains(t, props, "failure_kind")

	failed := Outcome{FailureKind: "qa_exhausted", RetryCount: 3}
	name, props = failed.Event()
	assert.Equal(t, EventAgentCreationFailed, name)
	assert.Equal(t, "qa_exhausted", props["failure_kind"])
	assert.Equal(t, 3, props["retry_count"])
}

func TestTrackHelpers(t *testing.T) {
	client, mock := newTestClient(t, &Config{Enabled: true, AnonymousID: "a"})

	TrackOutcome(client, Outcome{Success: false, FailureKind: "validation"})
	TrackCommand(client, "create", time.Second, errors.New("boom"))
	TrackOutcome(nil, Outcome{})
	TrackCommand(NoopClient{}, "create", 0, nil)

	events := mock.captured()
	require.Len(t, events, 2)
	assert.Equal(t, EventAgentCreationFailed, events[0].Event)
	assert.Equal(t, EventCommandExecuted, events[1].Event)
	assert.Equal(t, false, events[1].Properties["success"])
}
