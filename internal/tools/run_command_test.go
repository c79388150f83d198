package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/sandbox"
)

// fakeRunner records the call and replays a fixed result.
type fakeRunner struct {
	result  sandbox.Result
	err     error
	called  bool
	name    string
	args    []string
	timeout time.Duration
}

func (f *fakeRunner) RunCmd(ctx context.Context, workspaceDir, name string, args []string, timeout time.Duration) (sandbox.Result, error) {
	f.called = true
	f.name = name
	f.args = args
	f.timeout = timeout
	return f.result, f.err
}

func decodeExecResult(t *testing.T, out string) engine.ExecutionResult {
	t.Helper()
	// Termination prefixes sit in front of the JSON payload.
	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no JSON in output: %q", out)
	}
	var result engine.ExecutionResult
	if err := json.Unmarshal([]byte(out[start:]), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	return result
}

func TestRunCommandAllowlistRejection(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewRunCommandTool(t.TempDir(), runner, nil)

	out, err := tool.Fn(context.Background(), map[string]any{"cmd": "frobnicate"})
	if err != nil {
		t.Fatalf("rejection must come back as a result, not an error: %v", err)
	}
	result := decodeExecResult(t, out)
	if result.Status != "failed" || result.ExitCode != 1 {
		t.Errorf("status=%s exit=%d", result.Status, result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "not in allowlist") {
		t.Errorf("stderr = %q", result.Stderr)
	}
	if runner.called {
		t.Error("sandbox invoked for a disallowed command")
	}
}

func TestRunCommandExtraCommandsExtendAllowlist(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "ok"}}
	tool := NewRunCommandTool(t.TempDir(), runner, []string{"terraform"})

	out, err := tool.Fn(context.Background(), map[string]any{"cmd": "terraform", "args": "plan"})
	if err != nil {
		t.Fatal(err)
	}
	if !runner.called || runner.name != "terraform" {
		t.Errorf("sandbox call: called=%v name=%s", runner.called, runner.name)
	}
	if result := decodeExecResult(t, out); result.Status != "ok" {
		t.Errorf("status = %s", result.Status)
	}
}

func TestRunCommandSuccess(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "hello world", Code: 0}}
	tool := NewRunCommandTool(t.TempDir(), runner, nil)

	out, err := tool.Fn(context.Background(), map[string]any{
		"cmd":             "echo",
		"args":            `hello "two words"`,
		"timeout_seconds": float64(30),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(runner.args, []string{"hello", "two words"}) {
		t.Errorf("args = %v", runner.args)
	}
	if runner.timeout != 30*time.Second {
		t.Errorf("timeout = %s", runner.timeout)
	}

	// A normal termination carries no context prefix.
	if !strings.HasPrefix(out, "{") {
		t.Errorf("unexpected prefix: %q", out[:40])
	}
	result := decodeExecResult(t, out)
	if result.Status != "ok" || result.Termination != string(engine.TerminationNormal) {
		t.Errorf("status=%s termination=%s", result.Status, result.Termination)
	}
	if result.Cmd != `echo hello two words` {
		t.Errorf("cmd = %q", result.Cmd)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "partial", Code: 124, TimedOut: true}}
	tool := NewRunCommandTool(t.TempDir(), runner, nil)

	out, err := tool.Fn(context.Background(), map[string]any{"cmd": "go", "args": "test ./..."})
	if err != nil {
		t.Fatal(err)
	}
	prefix := engine.TerminationContextPrefix(engine.TerminationTimeout)
	if !strings.HasPrefix(out, prefix) {
		t.Errorf("missing timeout prefix: %q", out[:60])
	}
	result := decodeExecResult(t, out)
	if !result.TimedOut || result.Status != "failed" {
		t.Errorf("timed_out=%v status=%s", result.TimedOut, result.Status)
	}
	if result.Termination != string(engine.TerminationTimeout) {
		t.Errorf("termination = %s", result.Termination)
	}
}

func TestRunCommandUserStopped(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{}}
	tool := NewRunCommandTool(t.TempDir(), runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := tool.Fn(ctx, map[string]any{"cmd": "ls"})
	if err != nil {
		t.Fatal(err)
	}
	prefix := engine.TerminationContextPrefix(engine.TerminationUserStopped)
	if !strings.HasPrefix(out, prefix) {
		t.Errorf("missing user-stopped prefix: %q", out[:60])
	}
	result := decodeExecResult(t, out)
	if result.Termination != string(engine.TerminationUserStopped) || result.Status != "failed" {
		t.Errorf("termination=%s status=%s", result.Termination, result.Status)
	}
}

func TestRunCommandSpawnFailure(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("exec: not started"), result: sandbox.Result{}}
	tool := NewRunCommandTool(t.TempDir(), runner, nil)

	out, err := tool.Fn(context.Background(), map[string]any{"cmd": "git"})
	if err != nil {
		t.Fatal(err)
	}
	result := decodeExecResult(t, out)
	if result.Termination != string(engine.TerminationError) || result.Status != "failed" {
		t.Errorf("termination=%s status=%s", result.Termination, result.Status)
	}
	if result.Stderr != "exec: not started" {
		t.Errorf("stderr = %q", result.Stderr)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one two three", []string{"one", "two", "three"}},
		{`-m "commit message"`, []string{"-m", "commit message"}},
		{`'single quoted' plain`, []string{"single quoted", "plain"}},
		{`nested "it's fine"`, []string{"nested", "it's fine"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
	}
	for _, tt := range tests {
		if got := parseArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseArgs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeoutArg(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
	}{
		{nil, defaultRunCmdTimeout},
		{"soon", defaultRunCmdTimeout},
		{float64(0), defaultRunCmdTimeout},
		{float64(1), minRunCmdTimeout},
		{float64(30), 30 * time.Second},
		{float64(9000), maxRunCmdTimeout},
		{120, 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := parseTimeoutArg(tt.in); got != tt.want {
			t.Errorf("parseTimeoutArg(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseMaxOutputLinesArg(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{nil, defaultRunCmdLines},
		{"many", defaultRunCmdLines},
		{float64(1), minRunCmdLines},
		{float64(100), 100},
		{float64(5000), maxRunCmdLines},
	}
	for _, tt := range tests {
		if got := parseMaxOutputLinesArg(tt.in); got != tt.want {
			t.Errorf("parseMaxOutputLinesArg(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTruncateOutput(t *testing.T) {
	if got, truncated := truncateOutput("", 40); got != "" || truncated {
		t.Error("empty output altered")
	}

	many := strings.Repeat("line\n", 100) + "last"
	got, truncated := truncateOutput(many, 10)
	if !truncated || len(strings.Split(got, "\n")) != 10 {
		t.Errorf("line cap failed: truncated=%v lines=%d", truncated, len(strings.Split(got, "\n")))
	}

	long := strings.Repeat("z", 5000)
	got, truncated = truncateOutput(long, 10)
	if !truncated || len(got) != maxRunCmdChars {
		t.Errorf("char cap failed: truncated=%v len=%d", truncated, len(got))
	}
}

func TestRegistryExecuteValidation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewReadFileTool(t.TempDir()))

	if _, err := reg.Execute(context.Background(), "no_such_tool", nil); err == nil {
		t.Error("unknown tool dispatched")
	}

	_, err := reg.Execute(context.Background(), "read_file", map[string]any{})
	var ve *engine.ToolValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ToolValidationError", err)
	}
	if ve.ToolName != "read_file" {
		t.Errorf("tool name = %s", ve.ToolName)
	}
}

func TestRegistryOrderStable(t *testing.T) {
	root := t.TempDir()
	reg := ForTask(root, &fakeRunner{}, nil, nil)

	schemas := reg.Schemas()
	want := []string{"read_file", "write_file", "list_files", "delete_file", "run_command"}
	if len(schemas) != len(want) {
		t.Fatalf("schemas = %d, want %d", len(schemas), len(want))
	}
	for i, name := range want {
		if schemas[i].Name != name {
			t.Errorf("position %d: %s, want %s", i, schemas[i].Name, name)
		}
	}
	for _, name := range want {
		if !strings.Contains(reg.Descriptions(), name) {
			t.Errorf("descriptions missing %s", name)
		}
	}
}
