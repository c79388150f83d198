package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mesutfelat/cowork/internal/config"
	"github.com/mesutfelat/cowork/internal/daemon"
	"github.com/mesutfelat/cowork/internal/daemon/protocol"
)

// runStdIO serves the daemon over NDJSON on stdin/stdout.
func runStdIO(ctx context.Context, env *runtimeEnv) error {
	log.Println("🔌 Starting daemon stdio bridge (-stdio)")
	runner, err := newStdIORunner(os.Stdin, os.Stdout, env)
	if err != nil {
		return err
	}
	runner.emitEvent(protocol.NewTaskStatusEvent("", "daemon_ready", "stdio protocol ready"))
	return runner.Run(ctx)
}

type stdioRunner struct {
	scanner *bufio.Scanner
	writer  *bufio.Writer
	events  chan protocol.Event
	daemon  *daemon.Daemon
	config  *config.Manager
}

func newStdIORunner(in io.Reader, out io.Writer, env *runtimeEnv) (*stdioRunner, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	events := make(chan protocol.Event, 256)

	d, err := daemon.New(daemon.Options{
		Store:          env.Store,
		Memory:         env.Memory,
		WorkspaceDir:   env.WorkspaceDir,
		MaxConcurrent:  env.MaxConcurrent,
		MaxTaskRetries: env.MaxTaskRetries,
		RetryDelay:     env.RetryDelay,
		Limits:         env.Limits,
		Emit: func(ev protocol.Event) {
			select {
			case events <- ev:
			default:
				log.Printf("stdio: dropping event %s due to full buffer", ev.GetType())
			}
		},
	})
	if err != nil {
		return nil, err
	}

	// Tell the client when no configuration exists yet.
	if env.Config != nil && !env.Config.Exists() {
		select {
		case events <- protocol.NewSetupRequiredEvent():
		default:
		}
	}

	return &stdioRunner{
		scanner: scanner,
		writer:  bufio.NewWriter(out),
		events:  events,
		daemon:  d,
		config:  env.Config,
	}, nil
}

func (r *stdioRunner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	daemonErr := make(chan error, 1)
	go func() { daemonErr <- r.daemon.Start(ctx) }()

	writeErr := make(chan error, 1)
	go r.flushEvents(ctx, writeErr)

	for {
		select {
		case <-ctx.Done():
			// Live task goroutines emit into r.events until the daemon has
			// fully wound down; the channel must outlive them.
			<-daemonErr
			close(r.events)
			return <-writeErr
		default:
		}

		if !r.scanner.Scan() {
			break
		}
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		// Handle asynchronously so cancel_task can land while another
		// command is still running.
		go func(l string) {
			if err := r.handleLine(ctx, l); err != nil {
				log.Printf("stdio command error: %v", err)
			}
		}(line)
	}

	if err := r.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		r.emitEvent(protocol.NewErrorEvent("", fmt.Sprintf("stdin error: %v", err), "protocol_error", ""))
	}

	cancel()
	<-daemonErr
	close(r.events)
	return <-writeErr
}

func (r *stdioRunner) flushEvents(ctx context.Context, errCh chan<- error) {
	for ev := range r.events {
		if err := r.writeEvent(ev); err != nil {
			errCh <- err
			// Drain so emitters never block after a write failure.
			for range r.events {
			}
			return
		}
	}
	errCh <- r.writer.Flush()
}

func (r *stdioRunner) writeEvent(ev protocol.Event) error {
	payload, err := protocol.MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := r.writer.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return r.writer.Flush()
}

func (r *stdioRunner) emitEvent(ev protocol.Event) {
	select {
	case r.events <- ev:
	default:
		log.Printf("stdio: dropping event %s due to full buffer", ev.GetType())
	}
}

func (r *stdioRunner) handleLine(ctx context.Context, line string) error {
	cmd, err := protocol.DecodeCommand([]byte(line))
	if err != nil {
		r.emitEvent(protocol.NewErrorEvent("", err.Error(), "invalid_command", truncate(line, 256)))
		return err
	}

	switch c := cmd.(type) {
	case protocol.CreateTaskCommand:
		t, cerr := r.daemon.CreateTask(ctx, c.Title, c.Prompt, c.WorkspaceDir, c.Model)
		if cerr != nil {
			r.emitEvent(protocol.NewErrorEvent("", cerr.Error(), "task_error", ""))
			return cerr
		}
		log.Printf("🚀 task %s queued: %s", t.ID, t.Title)
		return nil
	case protocol.UserMessageCommand:
		if uerr := r.daemon.SendUserMessage(ctx, c.TaskID, c.Message); uerr != nil {
			r.emitEvent(protocol.NewErrorEvent(c.TaskID, uerr.Error(), "task_error", ""))
			return uerr
		}
		return nil
	case protocol.CancelTaskCommand:
		if cerr := r.daemon.CancelTask(ctx, c.TaskID); cerr != nil {
			r.emitEvent(protocol.NewErrorEvent(c.TaskID, cerr.Error(), "task_error", ""))
			return cerr
		}
		return nil
	case protocol.PauseTaskCommand:
		if perr := r.daemon.PauseTask(c.TaskID); perr != nil {
			r.emitEvent(protocol.NewErrorEvent(c.TaskID, perr.Error(), "task_error", ""))
			return perr
		}
		r.emitEvent(protocol.NewTaskStatusEvent(c.TaskID, "pausing", "pause requested"))
		return nil
	case protocol.ResumeTaskCommand:
		if rerr := r.daemon.ResumeTask(c.TaskID); rerr != nil {
			r.emitEvent(protocol.NewErrorEvent(c.TaskID, rerr.Error(), "task_error", ""))
			return rerr
		}
		return nil
	case protocol.ListTasksCommand:
		tasks, lerr := r.daemon.Tasks(ctx)
		if lerr != nil {
			r.emitEvent(protocol.NewErrorEvent("", lerr.Error(), "task_error", ""))
			return lerr
		}
		infos := make([]protocol.TaskInfo, 0, len(tasks))
		for _, t := range tasks {
			infos = append(infos, protocol.TaskInfo{
				ID:            t.ID,
				Title:         t.Title,
				Status:        string(t.Status),
				StatusMessage: t.StatusMessage,
				CreatedAt:     t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				ResultSummary: t.ResultSummary,
			})
		}
		r.emitEvent(protocol.NewTaskListEvent(infos))
		return nil
	case protocol.GetConfigCommand:
		if r.config == nil {
			r.emitEvent(protocol.NewErrorEvent("", "config manager not initialized", "config_error", ""))
			return fmt.Errorf("config manager not initialized")
		}
		cfg, lerr := r.config.Load()
		if lerr != nil {
			r.emitEvent(protocol.NewConfigLoadedEvent(map[string]string{}))
			return nil
		}
		r.emitEvent(protocol.NewConfigLoadedEvent(map[string]string{
			"llm_provider":         cfg.LLMProvider,
			"api_key":              cfg.APIKey,
			"model":                cfg.Model,
			"base_url":             cfg.BaseURL,
			"max_concurrent_tasks": strconv.Itoa(cfg.MaxConcurrentTasks),
			"sandbox_mode":         cfg.SandboxMode,
		}))
		return nil
	case protocol.SaveConfigCommand:
		if r.config == nil {
			r.emitEvent(protocol.NewErrorEvent("", "config manager not initialized", "config_error", ""))
			return fmt.Errorf("config manager not initialized")
		}
		cfg := &config.Config{
			LLMProvider: c.Config["llm_provider"],
			APIKey:      c.Config["api_key"],
			Model:       c.Config["model"],
			BaseURL:     c.Config["base_url"],
			SandboxMode: c.Config["sandbox_mode"],
			DockerImage: c.Config["docker_image"],
		}
		if v := c.Config["max_concurrent_tasks"]; v != "" {
			if n, perr := strconv.Atoi(v); perr == nil {
				cfg.MaxConcurrentTasks = n
			}
		}
		if serr := r.config.Save(cfg); serr != nil {
			r.emitEvent(protocol.NewErrorEvent("", serr.Error(), "config_save_error", ""))
			return serr
		}
		// Fill any environment variables the process started without so
		// new tasks pick the settings up.
		applyConfigToEnv(cfg)
		r.emitEvent(protocol.NewTaskStatusEvent("", "setup_complete", "configuration saved"))
		return nil
	default:
		return fmt.Errorf("unhandled command type: %s", cmd.GetType())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
