package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mesutfelat/cowork/internal/daemon/protocol"
	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/eventlog"
	"github.com/mesutfelat/cowork/internal/memory"
	"github.com/mesutfelat/cowork/internal/task"
	"github.com/mesutfelat/cowork/internal/workspace"
)

const (
	// DefaultMaxConcurrent is how many tasks execute at once.
	DefaultMaxConcurrent = 2
	queueBuffer          = 256
)

// Options wires a Daemon. Store is required; everything else has defaults.
type Options struct {
	Store          *eventlog.Store
	Memory         *memory.Index // nil disables task recall and retention
	WorkspaceDir   string        // default workspace for tasks that name none
	MaxConcurrent  int
	MaxTaskRetries int
	RetryDelay     time.Duration
	Limits         engine.Limits
	Emit           func(protocol.Event) // nil drops client events
}

// Daemon owns the task queue: it admits tasks up to the concurrency cap,
// builds an executor per task, and routes failures between the retry
// scheduler and the terminal failed state. It is the engine.TaskHost every
// executor reports into.
type Daemon struct {
	store     *eventlog.Store
	mem       *memory.Index
	scheduler *RetryScheduler
	limits    engine.Limits
	workspace string
	emit      func(protocol.Event)

	queueC chan string
	slots  chan struct{}

	mu     sync.Mutex
	active map[string]*run

	wg sync.WaitGroup
}

// New builds a daemon from options.
func New(opts Options) (*Daemon, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("daemon requires an event log store")
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	limits := opts.Limits
	if limits == (engine.Limits{}) {
		limits = engine.DefaultLimits()
	}
	emit := opts.Emit
	if emit == nil {
		emit = func(protocol.Event) {}
	}

	return &Daemon{
		store:     opts.Store,
		mem:       opts.Memory,
		scheduler: NewRetryScheduler(opts.MaxTaskRetries, opts.RetryDelay),
		limits:    limits,
		workspace: opts.WorkspaceDir,
		emit:      emit,
		queueC:    make(chan string, queueBuffer),
		slots:     make(chan struct{}, maxConcurrent),
		active:    make(map[string]*run),
	}, nil
}

// Start recovers interrupted tasks and begins dispatching. It blocks until
// ctx is cancelled and all running tasks have wound down.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.recover(ctx); err != nil {
		log.Printf("⚠️  task recovery failed: %v", err)
	}

	for {
		var taskID string
		select {
		case <-ctx.Done():
			d.wg.Wait()
			return ctx.Err()
		case taskID = <-d.queueC:
		}

		select {
		case <-ctx.Done():
			d.wg.Wait()
			return ctx.Err()
		case d.slots <- struct{}{}:
		}

		t, err := d.store.GetTask(ctx, taskID)
		if err != nil || t == nil || t.Status != task.StatusQueued {
			<-d.slots
			continue
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runTask(ctx, t)
		}()
	}
}

// recover re-enqueues tasks the previous process left mid-flight. Snapshot
// restore inside the runner picks up their conversations.
func (d *Daemon) recover(ctx context.Context) error {
	stale, err := d.store.TasksByStatus(ctx, task.StatusQueued, task.StatusPlanning, task.StatusExecuting)
	if err != nil {
		return err
	}
	for _, t := range stale {
		if t.Status != task.StatusQueued {
			t.Status = task.StatusQueued
			t.StatusMessage = "requeued after daemon restart"
			t.Touch()
			if err := d.store.SaveTask(ctx, t); err != nil {
				log.Printf("⚠️  failed to requeue task %s: %v", t.ID, err)
				continue
			}
		}
		d.enqueueID(t.ID)
		log.Printf("🔁 recovered task %s (%s)", t.ID, t.Title)
	}
	return nil
}

// CreateTask persists a new task and puts it on the queue.
func (d *Daemon) CreateTask(ctx context.Context, title, prompt, workspaceDir, model string) (*task.Task, error) {
	t := task.New(title, prompt)
	if workspaceDir == "" {
		workspaceDir = d.workspace
	}
	t.WorkspaceDir = workspaceDir
	t.Model = model

	if err := d.store.SaveTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	d.emit(protocol.NewTaskStatusEvent(t.ID, string(t.Status), ""))
	d.enqueueID(t.ID)
	return t, nil
}

func (d *Daemon) enqueueID(taskID string) {
	select {
	case d.queueC <- taskID:
	default:
		log.Printf("⚠️  task queue full, dropping enqueue for %s", taskID)
	}
}

// SendUserMessage routes a follow-up into the task's conversation. Tasks
// that finished their run but are awaiting input stay in the active set, so
// this reaches them directly; a paused task from a previous process is
// revived with its snapshot first.
func (d *Daemon) SendUserMessage(ctx context.Context, taskID, message string) error {
	d.mu.Lock()
	r := d.active[taskID]
	d.mu.Unlock()

	if r != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliverMessage(ctx, r, message)
		}()
		return nil
	}

	t, err := d.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("unknown task: %s", taskID)
	}
	if t.Status != task.StatusPaused {
		return fmt.Errorf("task %s is %s, not awaiting input", taskID, t.Status)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.reviveAndDeliver(ctx, t, message)
	}()
	return nil
}

// CancelTask stops a task wherever it is: pending retry timer, queue, or
// live executor.
func (d *Daemon) CancelTask(ctx context.Context, taskID string) error {
	d.scheduler.Cancel(taskID)

	d.mu.Lock()
	r := d.active[taskID]
	d.mu.Unlock()

	if r != nil {
		r.exec.Cancel()
		r.cancel()
		return nil
	}

	t, err := d.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("unknown task: %s", taskID)
	}
	if t.Status.IsTerminal() {
		return nil
	}
	d.UpdateTaskStatus(ctx, taskID, task.StatusCancelled, "cancelled before execution")
	return nil
}

// PauseTask holds a running task between steps.
func (d *Daemon) PauseTask(taskID string) error {
	d.mu.Lock()
	r := d.active[taskID]
	d.mu.Unlock()
	if r == nil {
		return fmt.Errorf("task %s is not running", taskID)
	}
	r.exec.Pause()
	return nil
}

// ResumeTask reopens a paused task's step gate.
func (d *Daemon) ResumeTask(taskID string) error {
	d.mu.Lock()
	r := d.active[taskID]
	d.mu.Unlock()
	if r == nil {
		return fmt.Errorf("task %s is not running", taskID)
	}
	r.exec.Resume()
	return nil
}

// Tasks returns the persisted task table, newest first.
func (d *Daemon) Tasks(ctx context.Context) ([]*task.Task, error) {
	return d.store.ListTasks(ctx)
}

func (d *Daemon) addActive(r *run) {
	d.mu.Lock()
	d.active[r.task.ID] = r
	d.mu.Unlock()
}

// removeActive drops the task from the active set and frees its slot. Safe
// to call more than once per run.
func (d *Daemon) removeActive(taskID string) {
	d.mu.Lock()
	r := d.active[taskID]
	delete(d.active, taskID)
	d.mu.Unlock()
	if r != nil {
		r.releaseSlot()
	}
}

// ---- engine.TaskHost ----

// LogEvent appends to the task's event stream. Event log failures are logged
// and swallowed; execution never stops for the audit trail.
func (d *Daemon) LogEvent(ctx context.Context, taskID, kind string, payload any) {
	if _, err := d.store.Append(ctx, taskID, kind, payload); err != nil {
		log.Printf("⚠️  failed to log %s event for task %s: %v", kind, taskID, err)
	}
}

// UpdateTaskStatus persists a lifecycle transition and notifies the client.
func (d *Daemon) UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, message string) {
	t, err := d.store.GetTask(ctx, taskID)
	if err != nil || t == nil {
		log.Printf("⚠️  status update for unknown task %s", taskID)
		return
	}
	t.Status = status
	t.StatusMessage = message
	t.Touch()
	if err := d.store.SaveTask(ctx, t); err != nil {
		log.Printf("⚠️  failed to save task %s: %v", taskID, err)
		return
	}
	d.LogEvent(ctx, taskID, engine.EventStatusChanged, map[string]any{
		"status": string(status), "message": message,
	})
	d.emit(protocol.NewTaskStatusEvent(taskID, string(status), message))
}

// UpdateTask persists the full task record.
func (d *Daemon) UpdateTask(ctx context.Context, t *task.Task) {
	t.Touch()
	if err := d.store.SaveTask(ctx, t); err != nil {
		log.Printf("⚠️  failed to save task %s: %v", t.ID, err)
	}
}

// CompleteTask marks the task done, clears its retry history, and retains
// the outcome in the memory index when both the task and its workspace
// allow it.
func (d *Daemon) CompleteTask(ctx context.Context, taskID, summary string) {
	t, err := d.store.GetTask(ctx, taskID)
	if err != nil || t == nil {
		log.Printf("⚠️  completion for unknown task %s", taskID)
		return
	}
	t.Status = task.StatusCompleted
	t.StatusMessage = ""
	t.ResultSummary = summary
	t.Touch()
	if err := d.store.SaveTask(ctx, t); err != nil {
		log.Printf("⚠️  failed to save completed task %s: %v", taskID, err)
	}
	d.scheduler.Reset(taskID)
	d.retainInMemory(t)
	d.emit(protocol.NewTaskStatusEvent(taskID, string(task.StatusCompleted), ""))
}

func (d *Daemon) retainInMemory(t *task.Task) {
	if d.mem == nil || !t.RetainMemory() {
		return
	}
	if t.WorkspaceDir != "" {
		cfg, err := workspace.LoadConfig(t.WorkspaceDir)
		if err == nil && cfg != nil && !cfg.MemoryEnabled {
			return
		}
	}
	if err := d.mem.IndexTask(t); err != nil {
		log.Printf("⚠️  failed to retain task %s in memory: %v", t.ID, err)
	}
}

// HandleTransientTaskFailure routes a recoverable provider failure through
// the retry scheduler. It returns false when the task is out of retries, in
// which case the caller fails it normally.
func (d *Daemon) HandleTransientTaskFailure(ctx context.Context, taskID string, cause error) bool {
	attempt, ok := d.scheduler.Schedule(taskID, func() {
		d.enqueueID(taskID)
	})
	if !ok {
		return false
	}

	delay := d.scheduler.Delay()
	msg := fmt.Sprintf("Transient provider error. Retry %d/%d in %.0fs.",
		attempt, d.scheduler.MaxRetries(), delay.Seconds())

	d.UpdateTaskStatus(ctx, taskID, task.StatusQueued, msg)
	d.LogEvent(ctx, taskID, engine.EventRetryScheduled, map[string]any{
		"attempt": attempt, "max_attempts": d.scheduler.MaxRetries(),
		"delay_seconds": int(delay.Seconds()), "reason": cause.Error(),
	})
	d.removeActive(taskID)
	d.emit(protocol.NewRetryScheduledEvent(taskID, attempt, d.scheduler.MaxRetries(),
		int(delay.Seconds()), cause.Error()))
	log.Printf("🔁 task %s: %s (%v)", taskID, msg, cause)
	return true
}
