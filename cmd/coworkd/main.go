package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mesutfelat/cowork/internal/daemon"
	"github.com/mesutfelat/cowork/internal/task"
)

func main() {
	// Load .env from the working directory if present.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("coworkd", flag.ExitOnError)
	workspaceFlag := fs.String("workspace", "", "Path to the task workspace (default: current directory)")
	stdioMode := fs.Bool("stdio", false, "Serve the daemon over the NDJSON stdio protocol")
	promptFlag := fs.String("prompt", "", "Run a single task with this prompt and exit")
	titleFlag := fs.String("title", "", "Title for the one-shot task (with -prompt)")
	maxConcurrent := fs.Int("max-concurrent", 0, "Maximum tasks executing at once (default: from config)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parse failed: %v", err)
	}

	// Logs must not corrupt the NDJSON stream.
	if *stdioMode {
		log.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := prepareRuntimeEnv(ctx, *workspaceFlag, *maxConcurrent)
	if err != nil {
		if *stdioMode {
			fmt.Fprintf(os.Stderr, "ERROR: failed to prepare runtime environment: %v\n", err)
		}
		log.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	switch {
	case *stdioMode:
		err = runStdIO(ctx, env)
	case *promptFlag != "":
		err = runOneShot(ctx, env, *titleFlag, *promptFlag)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("coworkd: %v", err)
	}
}

// runOneShot enqueues a single task, waits for it to reach a terminal state,
// and prints the outcome.
func runOneShot(ctx context.Context, env *runtimeEnv, title, prompt string) error {
	if title == "" {
		title = prompt
		if len(title) > 60 {
			title = title[:60]
		}
	}

	done := make(chan struct{})
	var d *daemon.Daemon
	d, err := daemon.New(daemon.Options{
		Store:          env.Store,
		Memory:         env.Memory,
		WorkspaceDir:   env.WorkspaceDir,
		MaxConcurrent:  1,
		MaxTaskRetries: env.MaxTaskRetries,
		RetryDelay:     env.RetryDelay,
		Limits:         env.Limits,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(runCtx) }()

	t, err := d.CreateTask(ctx, title, prompt, env.WorkspaceDir, "")
	if err != nil {
		return err
	}
	log.Printf("🚀 task %s queued: %s", t.ID, title)

	go func() {
		defer close(done)
		waitForTerminal(runCtx, env, d, t.ID)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	cancel()
	<-errCh
	return nil
}

// waitForTerminal polls the task record until it settles.
func waitForTerminal(ctx context.Context, env *runtimeEnv, d *daemon.Daemon, taskID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, err := env.Store.GetTask(ctx, taskID)
		if err == nil && t != nil && t.Status.IsTerminal() {
			switch t.Status {
			case task.StatusCompleted:
				fmt.Println(t.ResultSummary)
			default:
				fmt.Fprintf(os.Stderr, "task %s: %s\n", t.Status, t.StatusMessage)
			}
			return
		}
		if err == nil && t != nil && t.Status == task.StatusPaused {
			fmt.Fprintf(os.Stderr, "task is waiting for input: %s\nre-run with -stdio to answer\n", t.StatusMessage)
			return
		}
		if !sleepCtx(ctx, pollInterval) {
			return
		}
	}
}
