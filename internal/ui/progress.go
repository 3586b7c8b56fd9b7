package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
)

// DescribeEvent renders an audit event as one progress line. ok is false
// for events not worth showing.
func DescribeEvent(e audit.Event) (line string, ok bool) {
	switch e.Kind {
	case audit.KindRequestStarted:
		return MarkStep.String() + " Validating instruction", true
	case audit.KindStageCompleted:
		switch e.Stage {
		case "interpreter":
			return fmt.Sprintf("%s Interpreted as %s (%v capabilities)",
				MarkDone, DisplayName(str(e.Data, "agent_type")), e.Data["capabilities"]), true
		case "builder":
			return MarkDone.String() + " Built initial specification", true
		case "selector":
			return fmt.Sprintf("%s Selected model %s", MarkDone, str(e.Data, "model")), true
		}
		return "", false
	case audit.KindFallback:
		return fmt.Sprintf("%s %s response malformed, fallback used", MarkWarn, e.Stage), true
	case audit.KindVerdict:
		outcome := MarkFail.Style.Render("failed")
		if passed, _ := e.Data["passed"].(bool); passed {
			outcome = MarkDone.Style.Render("passed")
		}
		return fmt.Sprintf("%s QA attempt %d %s: avg %.2f, pass rate %.2f, variance %.2f (%s)",
			MarkStep, e.Attempt, outcome,
			num(e.Data, "average_score"), num(e.Data, "pass_rate"), num(e.Data, "variance"),
			str(e.Data, "classification")), true
	case audit.KindStrategySelected:
		return fmt.Sprintf("%s Adjusting with %s", MarkAdjust, e.Strategy), true
	case audit.KindPolicyDecision:
		return fmt.Sprintf("%s Admission %s", MarkStep, e.Message), true
	case audit.KindRegistered:
		return fmt.Sprintf("%s Registered at %s", MarkAgent, str(e.Data, "endpoint")), true
	case audit.KindExhausted, audit.KindRequestFailed:
		return fmt.Sprintf("%s %s", MarkFail, e.Message), true
	}
	return "", false
}

func str(d map[string]any, key string) string {
	s, _ := d[key].(string)
	return s
}

func num(d map[string]any, key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

type eventMsg audit.Event

type doneMsg struct {
	res *app.CreateResult
	err error
}

// ProgressModel shows pipeline progress while a creation request runs.
type ProgressModel struct {
	spinner spinner.Model
	events  <-chan audit.Event
	run     func() (*app.CreateResult, error)
	cancel  context.CancelFunc
	lines   []string
	status  string

	Result *app.CreateResult
	Err    error
	done   bool
}

// NewProgressModel runs run in the background and renders events until
// it returns. The events channel must be closed once run returns.
func NewProgressModel(events <-chan audit.Event, run func() (*app.CreateResult, error), cancel context.CancelFunc) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleAccent
	return ProgressModel{
		spinner: s,
		events:  events,
		run:     run,
		cancel:  cancel,
		status:  "Creating agent...",
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events), runCreate(m.run))
}

func waitForEvent(events <-chan audit.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func runCreate(run func() (*app.CreateResult, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := run()
		return doneMsg{res: res, err: err}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.status = "Cancelling..."
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case eventMsg:
		if line, ok := DescribeEvent(audit.Event(msg)); ok {
			m.lines = append(m.lines, line)
		}
		if msg.Stage != "" {
			m.status = "Running " + msg.Stage + "..."
		}
		return m, waitForEvent(m.events)
	case doneMsg:
		m.Result, m.Err, m.done = msg.res, msg.err, true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render("genesis") + "\n")
	for _, l := range m.lines {
		sb.WriteString("  " + l + "\n")
	}
	if !m.done {
		sb.WriteString("  " + m.spinner.View() + " " + StyleSubtle.Render(m.status) + "\n")
	}
	return sb.String()
}

// RunProgress drives a ProgressModel on out until run finishes.
func RunProgress(ctx context.Context, out io.Writer, events <-chan audit.Event, run func() (*app.CreateResult, error), cancel context.CancelFunc) (*app.CreateResult, error) {
	p := tea.NewProgram(NewProgressModel(events, run, cancel), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	m := final.(ProgressModel)
	return m.Result, m.Err
}
