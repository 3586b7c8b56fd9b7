package admission

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/topdown"
	"github.com/spf13/afero"
)

// TestResult is the outcome of one Rego test rule.
type TestResult struct {
	Name     string        `json:"name"`
	Package  string        `json:"package"`
	Passed   bool          `json:"passed"`
	Failed   bool          `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Output   []string      `json:"output,omitempty"`
}

// TestSummary aggregates a test run.
type TestSummary struct {
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errored  int           `json:"errored"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
	Results  []*TestResult `json:"results"`
}

// AllPassed reports whether no test failed or errored.
func (s *TestSummary) AllPassed() bool {
	return s.Failed == 0 && s.Errored == 0
}

// FormatSummary renders a one-line summary.
func (s *TestSummary) FormatSummary() string {
	if s.Total == 0 {
		return "No tests found.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tests, %d passed", s.Total, s.Passed)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", s.Failed)
	}
	if s.Errored > 0 {
		fmt.Fprintf(&sb, ", %d errored", s.Errored)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", s.Skipped)
	}
	fmt.Fprintf(&sb, " in %s\n", s.Duration.Round(time.Millisecond))
	return sb.String()
}

// TestRunner runs the test_ rules of a policy directory.
type TestRunner struct {
	fs  afero.Fs
	dir string
}

// NewTestRunner returns a runner over dir on fs.
func NewTestRunner(fs afero.Fs, dir string) *TestRunner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TestRunner{fs: fs, dir: dir}
}

// Run compiles every module in the directory, policies and tests alike,
// and executes the tests.
func (r *TestRunner) Run(ctx context.Context) (*TestSummary, error) {
	start := time.Now()
	RegisterBuiltins()

	modules, err := r.loadModules()
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	if len(modules) == 0 {
		return &TestSummary{Duration: time.Since(start), Results: []*TestResult{}}, nil
	}

	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		msgs := make([]string, 0, len(compiler.Errors))
		for _, e := range compiler.Errors {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("compile policies: %s", strings.Join(msgs, "; "))
	}

	ch, err := tester.NewRunner().
		SetCompiler(compiler).
		SetModules(modules).
		EnableTracing(true).
		SetTimeout(30*time.Second).
		RunTests(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	summary := &TestSummary{Results: []*TestResult{}}
	for tr := range ch {
		res := &TestResult{Name: tr.Name, Package: tr.Package, Duration: tr.Duration}
		switch {
		case tr.Skip:
			res.Skipped = true
			summary.Skipped++
		case tr.Error != nil:
			res.Error = tr.Error.Error()
			summary.Errored++
		case tr.Fail:
			res.Failed = true
			summary.Failed++
		default:
			res.Passed = true
			summary.Passed++
		}
		for _, evt := range tr.Trace {
			if evt.Op == topdown.NoteOp && evt.Message != "" {
				res.Output = append(res.Output, evt.Message)
			}
		}
		summary.Total++
		summary.Results = append(summary.Results, res)
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

func (r *TestRunner) loadModules() (map[string]*ast.Module, error) {
	modules := make(map[string]*ast.Module)

	exists, err := afero.DirExists(r.fs, r.dir)
	if err != nil || !exists {
		return modules, err
	}

	err = afero.Walk(r.fs, r.dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		content, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		module, err := ast.ParseModule(path, string(content))
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		name, _ := filepath.Rel(r.dir, path)
		if name == "" {
			name = path
		}
		modules[name] = module
		return nil
	})
	return modules, err
}
