package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var titleCaser = cases.Title(language.English)

// DisplayName turns an agent type such as "code_reviewer" into
// "Code Reviewer".
func DisplayName(agentType string) string {
	words := strings.FieldsFunc(agentType, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	return titleCaser.String(strings.Join(words, " "))
}

// Panel is a rounded box with an optional bold title line.
type Panel struct {
	Title   string
	Content string
	Border  lipgloss.Color
}

func NewPanel(title, content string) *Panel {
	return &Panel{Title: title, Content: content, Border: ColorMuted}
}

func (p *Panel) Render() string {
	body := p.Content
	if p.Title != "" {
		body = StyleAccent.Bold(true).Render(p.Title) + "\n" + body
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1).
		Render(body)
}

// RenderSuccessPanel frames a created agent.
func RenderSuccessPanel(title, content string) string {
	return (&Panel{Title: title, Content: content, Border: ColorSuccess}).Render()
}

// RenderErrorPanel frames a request that did not produce an agent.
func RenderErrorPanel(title, content string) string {
	return (&Panel{Title: title, Content: content, Border: ColorError}).Render()
}
