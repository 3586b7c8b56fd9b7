// Package logger configures structured logging and records crash reports.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxCrashLogs is how many reports are kept in the crash directory.
const MaxCrashLogs = 10

// crashContext is what a report knows about the process when it panicked.
type crashContext struct {
	mu        sync.RWMutex
	dir       string
	version   string
	command   string
	requestID string
	request   string
	stage     string
}

var crash = &crashContext{}

// SetCrashDir sets where reports are written.
func SetCrashDir(dir string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.dir = dir
}

func SetVersion(version string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.version = version
}

func SetCommand(cmd string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.command = cmd
}

// SetRequest remembers the creation request in flight. The text is
// truncated to 500 bytes.
func SetRequest(requestID, text string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.requestID = requestID
	crash.request = truncate(strings.TrimSpace(text), 500)
}

// SetStage remembers the last pipeline stage that started.
func SetStage(stage string) {
	crash.mu.Lock()
	defer crash.mu.Unlock()
	crash.stage = stage
}

// truncate keeps at most n bytes of s, cutting on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "... [truncated]"
}

// CrashReport is one recovered panic.
type CrashReport struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Command    string    `json:"command"`
	RequestID  string    `json:"request_id,omitempty"`
	Request    string    `json:"request,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
	GoVersion  string    `json:"go_version"`
	OS         string    `json:"os"`
	Arch       string    `json:"arch"`
}

// HandlePanic recovers, writes a report and exits with status 1.
//
//	defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report := newCrashReport(r)
	path, err := writeCrashReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] could not write crash report: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] panic: %v\n%s\n", r, report.StackTrace)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\ngenesis hit an unexpected error.\nA crash report was saved to:\n  %s\n\n", path)
	os.Exit(1)
}

func newCrashReport(v any) CrashReport {
	crash.mu.RLock()
	defer crash.mu.RUnlock()

	return CrashReport{
		Timestamp:  time.Now(),
		Version:    crash.version,
		Command:    crash.command,
		RequestID:  crash.requestID,
		Request:    crash.request,
		Stage:      crash.stage,
		PanicValue: fmt.Sprintf("%v", v),
		StackTrace: string(debug.Stack()),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

func crashDir() string {
	crash.mu.RLock()
	defer crash.mu.RUnlock()
	if crash.dir == "" {
		return filepath.Join(".genesis", "crash_logs")
	}
	return crash.dir
}

func crashReportPath(t time.Time) string {
	return filepath.Join(crashDir(), fmt.Sprintf("crash_%s.log", t.Format("20060102_150405")))
}

func writeCrashReport(r CrashReport) (string, error) {
	dir := crashDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	if err := pruneCrashReports(dir, MaxCrashLogs-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not prune crash reports: %v\n", err)
	}
	path := crashReportPath(r.Timestamp)
	if err := os.WriteFile(path, []byte(formatCrashReport(r)), 0o644); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

func formatCrashReport(r CrashReport) string {
	rule := strings.Repeat("=", 80)
	section := func(sb *strings.Builder, title, body string) {
		sb.WriteString("\n" + strings.Repeat("-", 80) + "\n")
		sb.WriteString(title + "\n")
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		sb.WriteString(strings.TrimRight(body, "\n") + "\n")
	}

	var sb strings.Builder
	sb.WriteString(rule + "\nGENESIS CRASH REPORT\n" + rule + "\n\n")
	fmt.Fprintf(&sb, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", r.Version)
	fmt.Fprintf(&sb, "Command:   %s\n", r.Command)
	fmt.Fprintf(&sb, "Go:        %s\n", r.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch:   %s/%s\n", r.OS, r.Arch)
	if r.RequestID != "" {
		fmt.Fprintf(&sb, "Request:   %s\n", r.RequestID)
	}
	if r.Stage != "" {
		fmt.Fprintf(&sb, "Stage:     %s\n", r.Stage)
	}

	section(&sb, "PANIC VALUE", r.PanicValue)
	section(&sb, "STACK TRACE", r.StackTrace)
	if r.Request != "" {
		section(&sb, "REQUEST TEXT", r.Request)
	}
	sb.WriteString("\n" + rule + "\n")
	return sb.String()
}

// pruneCrashReports deletes the oldest reports until at most keep remain.
// Names embed the timestamp, so lexical order is age order.
func pruneCrashReports(dir string, keep int) error {
	reports, err := listCrashReports(dir)
	if err != nil {
		return err
	}
	for i := 0; i < len(reports)-keep; i++ {
		if err := os.Remove(reports[i]); err != nil {
			return fmt.Errorf("remove %s: %w", filepath.Base(reports[i]), err)
		}
	}
	return nil
}

func listCrashReports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "crash_") && strings.HasSuffix(name, ".log") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// CrashReports lists saved reports, oldest first.
func CrashReports() ([]string, error) {
	return listCrashReports(crashDir())
}
