package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mesutfelat/cowork/internal/daemon/protocol"
	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/providers"
	"github.com/mesutfelat/cowork/internal/sandbox"
	"github.com/mesutfelat/cowork/internal/snapshot"
	"github.com/mesutfelat/cowork/internal/task"
	"github.com/mesutfelat/cowork/internal/tools"
	"github.com/mesutfelat/cowork/internal/workspace"
)

// run is one live task execution: the executor, its cancel handle, and the
// resources torn down when it ends.
type run struct {
	task     *task.Task
	exec     *engine.Executor
	cancel   context.CancelFunc
	tracker  *workspace.Tracker
	registry *tools.Registry
	modelKey string

	slotOnce sync.Once
	release  func()
}

func (r *run) releaseSlot() {
	r.slotOnce.Do(r.release)
}

func (r *run) teardown(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	if r.tracker != nil {
		if err := r.tracker.Stop(); err != nil {
			log.Printf("⚠️  tracker stop for task %s: %v", r.task.ID, err)
		}
	}
	if r.registry != nil {
		if err := r.registry.Cleanup(ctx); err != nil {
			log.Printf("⚠️  tool cleanup for task %s: %v", r.task.ID, err)
		}
	}
}

// runTask owns one slot: build the execution environment, restore any
// snapshot, drive the executor, and route the outcome.
func (d *Daemon) runTask(ctx context.Context, t *task.Task) {
	runCtx, cancel := context.WithCancel(ctx)
	r, err := d.buildRun(runCtx, cancel, t)
	if err != nil {
		cancel()
		<-d.slots
		d.failTask(ctx, t.ID, err)
		return
	}
	d.addActive(r)

	if restored := d.restoreConversation(runCtx, r); restored {
		log.Printf("💾 task %s resumed from snapshot", t.ID)
	}

	result, runErr := r.exec.Run(runCtx)
	d.settle(ctx, r, result, runErr)
}

// buildRun assembles the per-task environment: provider from config,
// workspace tracker, sandboxed tools, and the executor itself.
func (d *Daemon) buildRun(ctx context.Context, cancel context.CancelFunc, t *task.Task) (*run, error) {
	provider, model, providerKey, err := providers.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("provider setup failed: %w", err)
	}

	dir := t.WorkspaceDir
	if dir == "" {
		dir = d.workspace
	}
	if dir == "" {
		return nil, fmt.Errorf("task %s has no workspace directory", t.ID)
	}

	wsCfg, err := workspace.LoadConfig(dir)
	if err != nil {
		log.Printf("⚠️  workspace config for %s: %v (using defaults)", dir, err)
		wsCfg = &workspace.Config{MemoryEnabled: true}
	}
	rules, err := workspace.LoadRules(dir)
	if err != nil {
		log.Printf("⚠️  workspace rules for %s: %v (ignored)", dir, err)
	}

	tracker, err := workspace.NewTracker(dir)
	if err != nil {
		log.Printf("⚠️  file tracking unavailable for %s: %v", dir, err)
		tracker = nil
	} else {
		tracker.OnBatch(func(created, changed []string) {
			d.LogEvent(ctx, t.ID, engine.EventFilesChanged, map[string]any{
				"created": created, "changed": changed,
			})
			d.emit(protocol.NewFilesChangedEvent(t.ID, created, changed))
		})
		if err := tracker.Start(); err != nil {
			log.Printf("⚠️  tracker start for %s: %v", dir, err)
			tracker = nil
		}
	}

	sbCfg := sandbox.ConfigFromEnv()
	if sbCfg.DockerImage == "" {
		sbCfg.DockerImage = sandbox.ImageForWorkspace(dir, sbCfg)
	}
	runner := sandbox.NewRunner(sbCfg)

	var mem = d.mem
	if !wsCfg.MemoryEnabled {
		mem = nil
	}
	registry := tools.ForTask(dir, runner, mem, wsCfg.ExtraCommands)

	builder := engine.NewExecutorBuilder().
		WithTask(t).
		WithProvider(provider).
		WithTools(registry).
		WithHost(d).
		WithModel(model).
		WithLimits(d.limits).
		WithWorkspaceDescription(workspace.Describe(dir)).
		WithCustomRules(rules)
	if tracker != nil {
		builder = builder.WithFileTracker(tracker.CreatedFiles)
	}

	exec, err := builder.Build()
	if err != nil {
		if tracker != nil {
			_ = tracker.Stop()
		}
		return nil, fmt.Errorf("executor build failed: %w", err)
	}
	exec.AddHook(&emitHook{d: d, taskID: t.ID})

	return &run{
		task:     t,
		exec:     exec,
		cancel:   cancel,
		tracker:  tracker,
		registry: registry,
		modelKey: providerKey,
		release:  func() { <-d.slots },
	}, nil
}

// restoreConversation seeds the executor from the latest snapshot in the
// task's event stream, if one exists.
func (d *Daemon) restoreConversation(ctx context.Context, r *run) bool {
	events, err := d.store.EventsByTask(ctx, r.task.ID)
	if err != nil {
		log.Printf("⚠️  event read for task %s: %v", r.task.ID, err)
		return false
	}
	res := snapshot.Restore(events, r.task.Prompt)
	if !res.Restored {
		return false
	}
	r.exec.RestoreHistory(res.History)
	if res.Legacy {
		log.Printf("💾 task %s history rebuilt from legacy events", r.task.ID)
	}
	return true
}

// checkpoint writes a snapshot event and prunes superseded ones.
func (d *Daemon) checkpoint(ctx context.Context, r *run) {
	snap := snapshot.Capture(r.exec.History(), r.exec.SystemPrompt(), r.exec.Model(), r.modelKey)
	d.LogEvent(ctx, r.task.ID, engine.EventConversationSnapshot, snap)

	events, err := d.store.EventsByTaskAndType(ctx, r.task.ID, engine.EventConversationSnapshot)
	if err != nil {
		return
	}
	if ids := snapshot.Prune(events); len(ids) > 0 {
		if err := d.store.DeleteEvents(ctx, ids); err != nil {
			log.Printf("⚠️  snapshot prune for task %s: %v", r.task.ID, err)
		}
	}
}

// settle routes the end of a run: transient failures to the retry scheduler,
// questions to the paused state (keeping the run live for the answer),
// everything else to a terminal status.
func (d *Daemon) settle(ctx context.Context, r *run, result *engine.RunResult, runErr error) {
	d.checkpoint(ctx, r)

	if runErr != nil {
		r.teardown(ctx)
		if IsTransientProviderError(runErr) && d.HandleTransientTaskFailure(ctx, r.task.ID, runErr) {
			return
		}
		d.removeActive(r.task.ID)
		d.failTask(ctx, r.task.ID, runErr)
		return
	}

	switch result.Status {
	case task.StatusPaused:
		// Awaiting a user answer: free the slot but keep the executor so
		// SendUserMessage can reach the live conversation.
		d.UpdateTaskStatus(ctx, r.task.ID, task.StatusPaused, result.Reason)
		d.emit(protocol.NewQuestionEvent(r.task.ID, result.Summary))
		r.releaseSlot()
	case task.StatusCancelled:
		r.teardown(ctx)
		d.removeActive(r.task.ID)
		d.UpdateTaskStatus(ctx, r.task.ID, task.StatusCancelled, result.Reason)
		d.emit(protocol.NewDoneEvent(r.task.ID, string(task.StatusCancelled), "", result.Reason, nil))
	case task.StatusFailed:
		r.teardown(ctx)
		d.removeActive(r.task.ID)
		// finish() already persisted the failed status and reason.
		d.emit(protocol.NewDoneEvent(r.task.ID, string(task.StatusFailed), "", result.Reason, nil))
	default:
		// CompleteTask already persisted the completed record.
		files := r.createdFiles()
		r.teardown(ctx)
		d.removeActive(r.task.ID)
		d.emit(protocol.NewDoneEvent(r.task.ID, string(result.Status), result.Summary, "", files))
	}
	d.emitUsage(r)
}

func (r *run) createdFiles() []string {
	if r.tracker == nil {
		return nil
	}
	return r.tracker.CreatedFiles()
}

func (d *Daemon) emitUsage(r *run) {
	totals := r.exec.Totals()
	d.emit(protocol.NewTokenUsageEvent(r.task.ID, totals.Iterations,
		totals.InputTokens, totals.OutputTokens, totals.CostUSD))
}

// failTask records a terminal failure.
func (d *Daemon) failTask(ctx context.Context, taskID string, cause error) {
	t, err := d.store.GetTask(ctx, taskID)
	if err != nil || t == nil {
		return
	}
	t.Status = task.StatusFailed
	t.StatusMessage = cause.Error()
	t.Error = cause.Error()
	t.Touch()
	if err := d.store.SaveTask(ctx, t); err != nil {
		log.Printf("⚠️  failed to save failed task %s: %v", taskID, err)
	}
	d.LogEvent(ctx, taskID, engine.EventError, map[string]any{"error": cause.Error()})
	d.emit(protocol.NewTaskStatusEvent(taskID, string(task.StatusFailed), cause.Error()))
	d.emit(protocol.NewDoneEvent(taskID, string(task.StatusFailed), "", cause.Error(), nil))
	log.Printf("❌ task %s failed: %v", taskID, cause)
}

// deliverMessage feeds a user answer into a live conversation, then resumes
// the remaining plan.
func (d *Daemon) deliverMessage(ctx context.Context, r *run, message string) {
	d.UpdateTaskStatus(ctx, r.task.ID, task.StatusExecuting, "")
	d.LogEvent(ctx, r.task.ID, "user_message", map[string]any{"text": message})

	reply, err := r.exec.SendMessage(ctx, message)
	if err != nil {
		d.checkpoint(ctx, r)
		r.teardown(ctx)
		if IsTransientProviderError(err) && d.HandleTransientTaskFailure(ctx, r.task.ID, err) {
			return
		}
		d.removeActive(r.task.ID)
		d.failTask(ctx, r.task.ID, err)
		return
	}

	if engine.DetectsQuestion(reply) {
		d.checkpoint(ctx, r)
		d.UpdateTaskStatus(ctx, r.task.ID, task.StatusPaused, "awaiting user input")
		d.emit(protocol.NewQuestionEvent(r.task.ID, reply))
		return
	}

	result, runErr := r.exec.Continue(ctx)
	d.settle(ctx, r, result, runErr)
}

// reviveAndDeliver rebuilds a paused task from its snapshot, then delivers
// the answer into the restored conversation.
func (d *Daemon) reviveAndDeliver(ctx context.Context, t *task.Task, message string) {
	select {
	case <-ctx.Done():
		return
	case d.slots <- struct{}{}:
	}

	runCtx, cancel := context.WithCancel(ctx)
	r, err := d.buildRun(runCtx, cancel, t)
	if err != nil {
		cancel()
		<-d.slots
		d.failTask(ctx, t.ID, err)
		return
	}
	d.addActive(r)
	d.restoreConversation(runCtx, r)
	d.deliverMessage(runCtx, r, message)
}

// emitHook translates executor progress into protocol events for the
// connected client.
type emitHook struct {
	engine.NopHook
	d      *Daemon
	taskID string
}

func (h *emitHook) OnPlanCreated(ctx context.Context, p engine.Progress, plan *engine.Plan) {
	steps := make([]protocol.PlanStepInfo, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		steps = append(steps, protocol.PlanStepInfo{
			ID: s.ID, Description: s.Description, Status: string(s.Status),
		})
	}
	h.d.emit(protocol.NewPlanEvent(h.taskID, plan.Description, steps))
}

func (h *emitHook) OnStepStart(ctx context.Context, p engine.Progress, step *engine.PlanStep) {
	h.d.emit(protocol.NewStepEvent(h.taskID, step.ID, step.Description, "started", ""))
}

func (h *emitHook) OnStepDone(ctx context.Context, p engine.Progress, step *engine.PlanStep, err error) {
	phase, msg := "completed", ""
	if err != nil {
		phase, msg = "failed", err.Error()
	}
	h.d.emit(protocol.NewStepEvent(h.taskID, step.ID, step.Description, phase, msg))
}

func (h *emitHook) OnAssistantText(ctx context.Context, p engine.Progress, text string) {
	h.d.emit(protocol.NewAssistantTextEvent(h.taskID, text))
}

func (h *emitHook) OnToolCall(ctx context.Context, p engine.Progress, call engine.ContentBlock) {
	h.d.emit(protocol.NewToolEvent(h.taskID, call.Name, "started", nil, ""))
}

func (h *emitHook) OnToolResult(ctx context.Context, p engine.Progress, call engine.ContentBlock, result string, err error) {
	success := err == nil
	details := ""
	if err != nil {
		details = err.Error()
	}
	h.d.emit(protocol.NewToolEvent(h.taskID, call.Name, "completed", &success, details))
	if result != "" {
		h.d.emit(protocol.NewToolOutputEvent(h.taskID, call.Name, truncateForClient(result)))
	}
}

func (h *emitHook) OnToolSkipped(ctx context.Context, p engine.Progress, name, reason string) {
	h.d.emit(protocol.NewToolEvent(h.taskID, name, "skipped", nil, reason))
}

func (h *emitHook) OnToolDisabled(ctx context.Context, p engine.Progress, name string, class engine.FailureClass) {
	h.d.emit(protocol.NewToolEvent(h.taskID, name, "disabled", nil, string(class)))
}

func (h *emitHook) OnQuestion(ctx context.Context, p engine.Progress, text string) {
	h.d.emit(protocol.NewQuestionEvent(h.taskID, text))
}

const maxClientOutput = 4000

func truncateForClient(s string) string {
	if len(s) <= maxClientOutput {
		return s
	}
	return s[:maxClientOutput] + "... [truncated]"
}
