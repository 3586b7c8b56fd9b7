package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
)

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  audit.Event
		want   string
		hidden bool
	}{
		{"started", audit.Event{Kind: audit.KindRequestStarted}, "Validating instruction", false},
		{"interpreted", audit.Event{Kind: audit.KindStageCompleted, Stage: "interpreter",
			Data: map[string]any{"agent_type": "code_reviewer", "capabilities": 2}}, "Interpreted as Code Reviewer (2 capabilities)", false},
		{"selected", audit.Event{Kind: audit.KindStageCompleted, Stage: "selector",
			Data: map[string]any{"model": "gpt-4o-mini"}}, "Selected model gpt-4o-mini", false},
		{"qa stage hidden", audit.Event{Kind: audit.KindStageCompleted, Stage: "qa"}, "", true},
		{"fallback", audit.Event{Kind: audit.KindFallback, Stage: "selector"}, "selector response malformed", false},
		{"verdict", audit.Event{Kind: audit.KindVerdict, Attempt: 2, Data: map[string]any{
			"passed": true, "average_score": 0.9, "pass_rate": 1.0, "variance": 0.01, "classification": "accepted"}},
			"QA attempt 2", false},
		{"strategy", audit.Event{Kind: audit.KindStrategySelected, Strategy: "specificity_enhancement"}, "Adjusting with specificity_enhancement", false},
		{"registered", audit.Event{Kind: audit.KindRegistered, Data: map[string]any{"endpoint": "http://x/agents/1"}}, "Registered at http://x/agents/1", false},
		{"exhausted", audit.Event{Kind: audit.KindExhausted, Message: "out of attempts"}, "out of attempts", false},
		{"adjustment hidden", audit.Event{Kind: audit.KindAdjustment}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := DescribeEvent(tt.event)
			if tt.hidden {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Contains(t, line, tt.want)
		})
	}
}

func TestProgressModel_Update(t *testing.T) {
	events := make(chan audit.Event, 1)
	cancelled := false
	m := NewProgressModel(events, nil, func() { cancelled = true })

	next, cmd := m.Update(eventMsg(audit.Event{Kind: audit.KindStrategySelected, Stage: "retry", Strategy: "capability_expansion"}))
	m = next.(ProgressModel)
	assert.NotNil(t, cmd, "keeps listening for events")
	assert.Contains(t, m.View(), "Adjusting with capability_expansion")
	assert.Contains(t, m.View(), "Running retry...")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(ProgressModel)
	assert.True(t, cancelled)
	assert.Contains(t, m.View(), "Cancelling...")

	res := &app.CreateResult{Success: true, AgentID: "a1"}
	next, cmd = m.Update(doneMsg{res: res, err: errors.New("late")})
	m = next.(ProgressModel)
	require.NotNil(t, cmd)
	assert.Equal(t, res, m.Result)
	assert.EqualError(t, m.Err, "late")
	assert.NotContains(t, m.View(), "Cancelling...")
}
