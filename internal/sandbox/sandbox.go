// Package sandbox executes task commands with isolation when available.
// The run_command tool goes through a Runner; Docker is preferred and the
// host is the fallback.
package sandbox

import (
	"context"
	"time"
)

// Result captures the output of one command.
type Result struct {
	Stdout   string
	Stderr   string
	Code     int
	TimedOut bool
}

// Runner executes a command inside a task workspace.
// - workspaceDir: the task's workspace on disk
// - name: executable name, e.g. "python3"
// - args: arguments
// - timeout: per-command deadline (<=0 uses the configured default)
type Runner interface {
	RunCmd(ctx context.Context, workspaceDir, name string, args []string, timeout time.Duration) (Result, error)
}
