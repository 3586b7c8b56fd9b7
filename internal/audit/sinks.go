package audit

import (
	"context"
	"log/slog"
)

// Logger writes events to a slog.Logger. Exhaustion and request failures
// log at Warn, registrations at Info, everything else at Debug. Fallbacks
// are already logged at Warn by Fallback.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns a Logger over l, or over slog.Default when l is nil.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{log: l}
}

func (s *Logger) Record(e Event) {
	level := slog.LevelDebug
	switch e.Kind {
	case KindExhausted, KindRequestFailed:
		level = slog.LevelWarn
	case KindRegistered:
		level = slog.LevelInfo
	}

	attrs := []any{"request_id", e.RequestID, "kind", string(e.Kind), "attempt", e.Attempt}
	if e.AgentID != "" {
		attrs = append(attrs, "agent_id", e.AgentID)
	}
	if e.Stage != "" {
		attrs = append(attrs, "stage", e.Stage)
	}
	if e.Strategy != "" {
		attrs = append(attrs, "strategy", e.Strategy)
	}
	if e.Before != "" || e.After != "" {
		attrs = append(attrs, "before", e.Before, "after", e.After)
	}
	for k, v := range e.Data {
		attrs = append(attrs, k, v)
	}

	msg := e.Message
	if msg == "" {
		msg = "audit " + string(e.Kind)
	}
	s.log.Log(context.Background(), level, msg, attrs...)
}

// Stream delivers events on a buffered channel. Events are dropped rather
// than blocking the pipeline when the reader falls behind.
type Stream struct {
	ch chan Event
}

// NewStream creates a Stream with the given buffer size.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 64
	}
	return &Stream{ch: make(chan Event, buffer)}
}

func (s *Stream) Record(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan Event { return s.ch }

// Close closes the channel. Record must not be called afterwards.
func (s *Stream) Close() { close(s.ch) }
