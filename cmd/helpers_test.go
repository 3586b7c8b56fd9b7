package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/genesis/internal/config"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/llm/llmtest"
	"github.com/josephgoksu/genesis/internal/telemetry"
)

const (
	testInstruction = "Review Python pull requests for security bugs"

	testInterpretation = `{
		"agent_type": "code_reviewer",
		"capabilities": ["python", "static_analysis"],
		"constraints": ["read_only"],
		"success_criteria": "Find real bugs",
		"estimated_complexity": "medium"
	}`
	testSelection = `{"model_name": "gpt-4o-mini", "context_window": 128000, "temperature": 0.3, "reasoning": "cheap"}`
	testQuestions = `[
		{"q": "Q1", "answer": "a1", "difficulty": 0.2},
		{"q": "Q2", "answer": "a2", "difficulty": 0.5},
		{"q": "Q3", "answer": "a3", "difficulty": 0.6},
		{"q": "Q4", "answer": "a4", "difficulty": 0.8},
		{"q": "Q5", "answer": "a5", "difficulty": 0.9}
	]`
)

// grading returns a judge that marks the first n questions correct.
func grading(n int) llmtest.Handler {
	return func(req llm.Request) (string, error) {
		for i := 1; i <= n; i++ {
			if strings.Contains(req.Prompt, "Question: Q"+string(rune('0'+i))) {
				return `{"correct": true, "score": 0.9, "reasoning": "good"}`, nil
			}
		}
		return `{"correct": false, "score": 0.3, "reasoning": "weak"}`, nil
	}
}

func testGateway(judge llmtest.Handler) *llmtest.Gateway {
	return llmtest.New().
		OnJSON("MDP-based agent configuration", testInterpretation).
		OnJSON("expert AI architect", testSelection).
		OnJSON("valid JSON array", testQuestions).
		On("strict but fair evaluator", judge).
		OnJSON("Answer this test question", `{"text": "an answer"}`)
}

// setupCLI isolates a test from the user's home, config and registry and
// routes model calls to gw.
func setupCLI(t *testing.T, gw llm.Gateway) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("GENESIS_REGISTRY_PATH", t.TempDir())
	t.Setenv("GENESIS_POLICY_DIR", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv(telemetry.DoNotTrackEnv, "")
	t.Chdir(t.TempDir())

	telemetry.SetConfigDir(t.TempDir())
	t.Cleanup(func() { telemetry.SetConfigDir("") })

	prevStack := newModelStack
	newModelStack = func(context.Context, *config.Settings) (*modelStack, error) {
		return &modelStack{gateway: gw, model: "gpt-4o-mini", provider: "openai"}, nil
	}
	t.Cleanup(func() {
		newModelStack = prevStack
		closeTelemetry()
	})

	cfgFile, verbose = "", false
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

// resetFlags restores flag defaults left over from an earlier execution.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() == "stringSlice" {
			return
		}
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func requireNoError(t *testing.T, out string, err error) {
	t.Helper()
	require.NoError(t, err, "output:\n%s", out)
}
