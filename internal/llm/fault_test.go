package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFault(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      FaultKind
		retryable bool
	}{
		{"unauthorized", errors.New("HTTP 401 Unauthorized"), FaultAuth, false},
		{"bad key", errors.New("API key not valid. Please pass a valid API key."), FaultAuth, false},
		{"quota", errors.New("Error 429: RESOURCE_EXHAUSTED quota exceeded"), FaultQuota, false},
		{"rate limit", errors.New("429 Too Many Requests"), FaultRateLimit, true},
		{"safety", errors.New("response blocked by safety filters"), FaultSafety, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), FaultTimeout, true},
		{"timeout text", errors.New("i/o timeout"), FaultTimeout, true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), FaultTransport, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := classifyFault(tt.err, "m")
			assert.Equal(t, tt.want, f.Kind)
			assert.Equal(t, tt.retryable, f.Retryable())
			assert.ErrorIs(t, f, tt.err)
		})
	}
}

func TestClassifyFault_KeepsExisting(t *testing.T) {
	orig := &GatewayFault{Kind: FaultUnparsable, Model: "m", Err: ErrNoJSON}
	wrapped := fmt.Errorf("stage: %w", orig)

	got := classifyFault(wrapped, "other")
	assert.Same(t, orig, got)
	assert.True(t, IsGatewayFault(wrapped))
	assert.False(t, IsGatewayFault(errors.New("plain")))
}

func TestGatewayFault_Error(t *testing.T) {
	f := &GatewayFault{Kind: FaultAuth, Model: "gpt-4o", Err: errors.New("denied")}
	assert.Equal(t, "gateway auth fault (gpt-4o): denied", f.Error())

	f.Model = ""
	assert.Equal(t, "gateway auth fault: denied", f.Error())
}
