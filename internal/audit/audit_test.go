package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailStampsEvents(t *testing.T) {
	var forwarded []Event
	sink := RecorderFunc(func(e Event) { forwarded = append(forwarded, e) })

	trail := NewTrail("req-1", sink)
	trail.Record(Event{Kind: KindRequestStarted})
	trail.SetAgentID("agent-7")
	trail.Record(Event{Kind: KindStrategySelected, Strategy: "specificity_enhancement"})

	events := trail.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Empty(t, events[0].AgentID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "agent-7", events[1].AgentID)
	assert.Equal(t, events, forwarded)
	assert.Equal(t, "req-1", trail.RequestID())
}

func TestTrailEventsIsCopy(t *testing.T) {
	trail := NewTrail("r")
	trail.Record(Event{Kind: KindVerdict})

	events := trail.Events()
	events[0].Kind = KindExhausted
	assert.Equal(t, KindVerdict, trail.Events()[0].Kind)
}

func TestTrailFilter(t *testing.T) {
	trail := NewTrail("r")
	trail.Record(Event{Kind: KindVerdict, Attempt: 0})
	trail.Record(Event{Kind: KindStrategySelected, Attempt: 0})
	trail.Record(Event{Kind: KindAdjustment, Attempt: 0})
	trail.Record(Event{Kind: KindVerdict, Attempt: 1})

	verdicts := trail.Filter(KindVerdict)
	require.Len(t, verdicts, 2)
	assert.Equal(t, 1, verdicts[1].Attempt)
	assert.Len(t, trail.Filter(KindStrategySelected, KindAdjustment), 2)
	assert.Empty(t, trail.Filter(KindRegistered))
}

func TestTrailConcurrentRecord(t *testing.T) {
	trail := NewTrail("r")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trail.Record(Event{Kind: KindStageCompleted, Attempt: i})
		}(i)
	}
	wg.Wait()
	assert.Len(t, trail.Events(), 50)
}

func TestContextRecorder(t *testing.T) {
	// No recorder: must not panic.
	Record(context.Background(), Event{Kind: KindFallback})

	trail := NewTrail("ctx")
	ctx := WithRecorder(context.Background(), trail)
	Record(ctx, Event{Kind: KindFallback, Stage: "selector"})

	Record(WithAttempt(ctx, 2), Event{Kind: KindVerdict})

	events := trail.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "selector", events[0].Stage)
	assert.Equal(t, 0, events[0].Attempt)
	assert.Equal(t, 2, events[1].Attempt)
}

func TestFanoutSkipsNil(t *testing.T) {
	count := 0
	f := Fanout{nil, RecorderFunc(func(Event) { count++ }), RecorderFunc(func(Event) { count++ })}
	f.Record(Event{})
	assert.Equal(t, 2, count)
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := NewLogger(l)

	sink.Record(Event{Kind: KindStageCompleted, Stage: "interpreter"})
	assert.Empty(t, buf.String(), "stage events log at debug")

	sink.Record(Event{Kind: KindFallback, Stage: "interpreter"})
	assert.Empty(t, buf.String(), "fallbacks are logged by Fallback, not the sink")

	sink.Record(Event{Kind: KindExhausted, Stage: "retry", Message: "retries exhausted", Data: map[string]any{"retry_count": 3}})
	out := buf.String()
	assert.Contains(t, out, "retries exhausted")
	assert.Contains(t, out, "stage=retry")
	assert.Contains(t, out, "retry_count=3")
}

func TestFallback(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	trail := NewTrail("r")
	ctx := WithRecorder(context.Background(), trail)
	Fallback(ctx, "selector", []string{"model_name"}, errors.New("missing keys"))

	events := trail.Filter(KindFallback)
	require.Len(t, events, 1)
	assert.Equal(t, "selector", events[0].Stage)
	assert.Equal(t, []string{"model_name"}, events[0].Data["fields"])
	assert.Contains(t, buf.String(), "fallback activated")
	assert.Contains(t, buf.String(), "stage=selector")
}

func TestStreamDropsWhenFull(t *testing.T) {
	s := NewStream(1)
	s.Record(Event{Kind: KindVerdict})
	s.Record(Event{Kind: KindExhausted})
	s.Close()

	var got []Kind
	for e := range s.Events() {
		got = append(got, e.Kind)
	}
	assert.Equal(t, []Kind{KindVerdict}, got)
}
