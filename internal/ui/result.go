package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/registry"
)

func field(label, value string) string {
	return StyleLabel.Render(label) + value + "\n"
}

// RenderCreateResult formats a creation result for the terminal.
func RenderCreateResult(res *app.CreateResult) string {
	var sb strings.Builder
	if res.Success {
		sb.WriteString(field("Agent", MarkAgent.Style.Render(DisplayName(res.AgentType))+" "+StyleSubtle.Render(res.AgentID)))
		sb.WriteString(field("Endpoint", res.Endpoint))
		caps := "(none)"
		if len(res.Capabilities) > 0 {
			caps = strings.Join(res.Capabilities, ", ")
		}
		sb.WriteString(field("Capabilities", caps))
		if q := res.QAScores; q != nil {
			sb.WriteString(field("QA", fmt.Sprintf("avg %.2f  pass rate %.2f  variance %.2f", q.AverageScore, q.PassRate, q.Variance)))
		}
		sb.WriteString(field("Retries", fmt.Sprintf("%d", res.RetryCount)))
		sb.WriteString(field("Usage", usage(res)))
		return RenderSuccessPanel("Agent created", strings.TrimRight(sb.String(), "\n"))
	}

	sb.WriteString(res.Message + "\n\n")
	if res.Feedback != "" {
		sb.WriteString(field("Feedback", res.Feedback))
	}
	if len(res.Strategies) > 0 {
		sb.WriteString(field("Tried", strings.Join(res.Strategies, " → ")))
	}
	sb.WriteString(field("Retries", fmt.Sprintf("%d", res.RetryCount)))
	sb.WriteString(field("Usage", usage(res)))
	if res.Suggestion != "" {
		sb.WriteString("\n" + StyleWarning.Render(res.Suggestion))
	}
	return RenderErrorPanel("Agent not created", strings.TrimRight(sb.String(), "\n"))
}

func usage(res *app.CreateResult) string {
	return fmt.Sprintf("%d tokens, $%.4f, %s", res.Usage.TotalTokens, res.Usage.CostUSD,
		(time.Duration(res.DurationMS) * time.Millisecond).Round(time.Millisecond))
}

// RenderAgents lists registered agents.
func RenderAgents(agents []registry.Agent) string {
	if len(agents) == 0 {
		return StyleSubtle.Render("No agents registered yet.") + "\n"
	}
	t := &Table{
		Headers:  []string{"ID", "TYPE", "MODEL", "AVG", "RETRIES", "CREATED"},
		MaxWidth: 40,
	}
	for _, a := range agents {
		t.Rows = append(t.Rows, []string{
			ShortID(a.ID),
			a.AgentType,
			a.Spec.SelectedModel,
			fmt.Sprintf("%.2f", a.AverageScore),
			fmt.Sprintf("%d", a.RetryCount),
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return t.Render()
}

// RenderAgent shows one agent in full.
func RenderAgent(a *registry.Agent) string {
	var sb strings.Builder
	sb.WriteString(field("ID", a.ID))
	sb.WriteString(field("Type", DisplayName(a.AgentType)))
	sb.WriteString(field("Endpoint", a.Endpoint))
	sb.WriteString(field("Model", fmt.Sprintf("%s (temp %.2f, ctx %d)", a.Spec.SelectedModel, a.Spec.ModelTemperature, a.Spec.ModelContextWindow)))
	sb.WriteString(field("Capabilities", strings.Join(a.Spec.Capabilities, ", ")))
	sb.WriteString(field("Constraints", strings.Join(a.Spec.Constraints, ", ")))
	sb.WriteString(field("QA", fmt.Sprintf("avg %.2f  pass rate %.2f  variance %.2f", a.AverageScore, a.PassRate, a.Variance)))
	sb.WriteString(field("Retries", fmt.Sprintf("%d", a.RetryCount)))
	sb.WriteString(field("Request", a.RequestID))
	sb.WriteString(field("Created", a.CreatedAt.Local().Format(time.RFC3339)))
	sb.WriteString("\n" + StyleTitle.Render("Behavioral prompt") + "\n" + a.Spec.BehavioralPrompt)
	return NewPanel(DisplayName(a.AgentType), sb.String()).Render()
}

// RenderAudit lists a trail's events in order.
func RenderAudit(events []audit.Event) string {
	if len(events) == 0 {
		return StyleSubtle.Render("No audit events.") + "\n"
	}
	t := &Table{Headers: []string{"TIME", "KIND", "STAGE", "ATTEMPT", "DETAIL"}, MaxWidth: 60}
	for _, e := range events {
		detail := e.Message
		if e.Strategy != "" {
			detail = e.Strategy
		}
		t.Rows = append(t.Rows, []string{
			e.Timestamp.Local().Format("15:04:05.000"),
			string(e.Kind),
			e.Stage,
			fmt.Sprintf("%d", e.Attempt),
			detail,
		})
	}
	return t.Render()
}

// RenderBatch summarises a batch run.
func RenderBatch(items []app.BatchItem) string {
	t := &Table{Headers: []string{"#", "RESULT", "AGENT", "RETRIES", "INSTRUCTION"}, MaxWidth: 50}
	ok := 0
	for _, it := range items {
		result, agent, retries := "", "", ""
		switch {
		case it.Succeeded():
			ok++
			result = StyleSuccess.Render("created")
			agent = ShortID(it.Result.AgentID)
			retries = fmt.Sprintf("%d", it.Result.RetryCount)
		case it.Result != nil:
			result = StyleWarning.Render("exhausted")
			retries = fmt.Sprintf("%d", it.Result.RetryCount)
		case it.Error != "":
			result = StyleError.Render(it.FailureKind)
		default:
			result = StyleSubtle.Render("skipped")
		}
		t.Rows = append(t.Rows, []string{fmt.Sprintf("%d", it.Index+1), result, agent, retries, it.Instruction})
	}
	return t.Render() + fmt.Sprintf("\n %d of %d agents created\n", ok, len(items))
}
