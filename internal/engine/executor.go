// Package engine drives one task through plan and step execution.
// This file contains the orchestrator: planning, the step sequence, pause
// and cancel side states, and the completion gate.

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mesutfelat/cowork/internal/task"
)

// RunResult is the executor's final verdict on a run. A failed completion
// contract shows up here as a failed status with a reason, not as an error;
// errors are reserved for faults the daemon routes (transient, budget,
// timeout, provider).
type RunResult struct {
	Status  task.Status // completed | failed | cancelled | paused
	Summary string
	Reason  string // set when Status is failed or paused
}

// Executor owns one task run: the conversation, the plan, per-tool health,
// and usage totals. It runs on a single goroutine; Cancel, Pause, and Resume
// are the only methods safe to call from outside while a run is live.
type Executor struct {
	task     *task.Task
	provider Provider
	tools    ToolRunner
	host     TaskHost
	hooks    Hooks
	cfg      Config

	systemPrompt   string // execution system prompt
	planningPrompt string // system prompt for the single planning call

	breaker   *ToolBreaker
	compactor *Compactor
	pause     *PauseGate
	cancelled atomic.Bool

	history []Message
	totals  UsageTotals
	plan    *Plan

	// Evidence for the completion contract.
	toolCalls    []ToolCallRecord
	createdFiles []string
	trackedFiles func() []string // optional workspace tracker feed

	// Summary candidates, most specific first.
	lastSubstantiveText string // last assistant text that was not a filler turn
	lastAssistantText   string // last assistant text of any kind
	finalText           string // text that ended the most recent step loop
	iteration           int    // monotonically increasing across the run
}

// Cancel requests a stop. The flag is observed at every loop boundary; a
// running tool or model call finishes first.
func (e *Executor) Cancel() {
	e.cancelled.Store(true)
	// Unblock a paused run so the cancel is observed.
	e.pause.Resume()
}

// Pause closes the step gate: the current step finishes its loop, and no new
// step starts until Resume.
func (e *Executor) Pause() { e.pause.Pause() }

// Resume reopens the step gate.
func (e *Executor) Resume() { e.pause.Resume() }

// AddHook registers another observer. Only valid before Run.
func (e *Executor) AddHook(h Hook) { e.hooks = append(e.hooks, h) }

// History returns a copy of the conversation so far.
func (e *Executor) History() []Message { return cloneMessages(e.history) }

// SystemPrompt returns the execution system prompt.
func (e *Executor) SystemPrompt() string { return e.systemPrompt }

// Model returns the model this run is pinned to.
func (e *Executor) Model() string { return e.cfg.Model }

// Totals returns what the run has consumed so far.
func (e *Executor) Totals() UsageTotals { return e.totals }

// Plan returns the current plan, nil before planning.
func (e *Executor) Plan() *Plan { return e.plan }

// RestoreHistory seeds the conversation from a snapshot before Run or
// SendMessage. It replaces whatever history the executor holds.
func (e *Executor) RestoreHistory(msgs []Message) {
	e.history = cloneMessages(msgs)
}

func (e *Executor) progress() Progress {
	p := Progress{TaskID: e.task.ID, Iteration: e.iteration, Totals: e.totals}
	if e.plan != nil {
		for i := range e.plan.Steps {
			if e.plan.Steps[i].Status == StepInProgress {
				p.StepID = e.plan.Steps[i].ID
				break
			}
		}
	}
	return p
}

// Run drives the task from planning through step execution to the completion
// gate. It returns an error only for faults the daemon must route; contract
// violations and cancellations come back inside the RunResult.
func (e *Executor) Run(ctx context.Context) (*RunResult, error) {
	e.host.UpdateTaskStatus(ctx, e.task.ID, task.StatusPlanning, "")

	plan, err := e.createPlan(ctx)
	if err != nil {
		if e.cancelled.Load() || errors.Is(err, context.Canceled) {
			return e.cancelledResult(ctx), nil
		}
		e.logError(ctx, err)
		return nil, err
	}
	e.plan = plan
	e.host.LogEvent(ctx, e.task.ID, EventPlanCreated, plan)
	e.hooks.OnPlanCreated(ctx, e.progress(), plan)

	e.host.UpdateTaskStatus(ctx, e.task.ID, task.StatusExecuting, "")
	return e.executeSteps(ctx)
}

// Continue resumes execution after a follow-up answer finished its step
// loop: the interrupted step counts as completed, remaining pending steps
// run, and the run ends at the completion gate. A task revived purely from
// a snapshot has no plan and goes straight to the gate.
func (e *Executor) Continue(ctx context.Context) (*RunResult, error) {
	if res := e.checkCancelled(ctx); res != nil {
		return res, nil
	}
	if e.plan == nil {
		return e.finish(ctx), nil
	}

	for i := range e.plan.Steps {
		step := &e.plan.Steps[i]
		if step.Status != StepInProgress {
			continue
		}
		_ = e.plan.MarkCompleted(step.ID)
		e.host.LogEvent(ctx, e.task.ID, EventStepCompleted, map[string]any{
			"step_id": step.ID, "status": string(StepCompleted), "stop": "answered",
		})
		e.hooks.OnStepDone(ctx, e.progress(), step, nil)
	}

	e.host.UpdateTaskStatus(ctx, e.task.ID, task.StatusExecuting, "")
	return e.executeSteps(ctx)
}

// executeSteps drives the remaining pending plan steps in order and gates
// completion at the end.
func (e *Executor) executeSteps(ctx context.Context) (*RunResult, error) {
	plan := e.plan
	total := len(plan.Steps)
	for i := range plan.Steps {
		if res := e.checkCancelled(ctx); res != nil {
			return res, nil
		}
		if err := e.waitIfPaused(ctx); err != nil {
			return e.cancelledResult(ctx), nil
		}

		step := &plan.Steps[i]
		if step.Status != StepPending {
			continue
		}
		_ = plan.MarkInProgress(step.ID)
		e.host.LogEvent(ctx, e.task.ID, EventStepStarted, map[string]any{
			"step_id": step.ID, "description": step.Description, "index": i + 1, "total": total,
		})
		e.hooks.OnStepStart(ctx, e.progress(), step)

		e.history = append(e.history, UserMessage(e.stepMessage(step, i+1, total)))

		outcome, err := e.runStepLoop(ctx)
		if err != nil {
			_ = plan.MarkFailed(step.ID, err.Error())
			e.host.LogEvent(ctx, e.task.ID, EventStepCompleted, map[string]any{
				"step_id": step.ID, "status": string(StepFailed), "error": err.Error(),
			})
			e.hooks.OnStepDone(ctx, e.progress(), step, err)
			e.logError(ctx, err)
			return nil, err
		}

		switch outcome.stop {
		case stopCancelled:
			return e.cancelledResult(ctx), nil
		case stopQuestion:
			// The step stays in progress; a follow-up answer resumes it.
			e.hooks.OnQuestion(ctx, e.progress(), outcome.text)
			return &RunResult{Status: task.StatusPaused, Summary: outcome.text, Reason: "awaiting user input"}, nil
		}

		_ = plan.MarkCompleted(step.ID)
		e.host.LogEvent(ctx, e.task.ID, EventStepCompleted, map[string]any{
			"step_id": step.ID, "status": string(StepCompleted), "stop": string(outcome.stop),
		})
		e.hooks.OnStepDone(ctx, e.progress(), step, nil)
	}

	return e.finish(ctx), nil
}

// SendMessage feeds a user follow-up into the existing conversation and runs
// the shared step loop once. It returns the assistant's reply.
func (e *Executor) SendMessage(ctx context.Context, text string) (string, error) {
	if res := e.checkCancelled(ctx); res != nil {
		return "", fmt.Errorf("task %s is cancelled", e.task.ID)
	}
	if err := e.waitIfPaused(ctx); err != nil {
		return "", err
	}

	e.history = append(e.history, UserMessage(text))

	outcome, err := e.runStepLoop(ctx)
	if err != nil {
		e.logError(ctx, err)
		return "", err
	}
	if outcome.stop == stopCancelled {
		return "", fmt.Errorf("task %s is cancelled", e.task.ID)
	}
	return outcome.text, nil
}

// finish gates completion behind the contract verifier and selects the
// stored summary.
func (e *Executor) finish(ctx context.Context) *RunResult {
	ev := CompletionEvidence{
		FinalOutput:  firstNonEmpty(e.finalText, e.lastSubstantiveText, e.lastAssistantText),
		FilesCreated: e.allCreatedFiles(),
		ToolCalls:    e.toolCalls,
	}

	verdict := VerifyCompletion(e.task.Prompt, ev)
	if !verdict.Satisfied {
		e.host.LogEvent(ctx, e.task.ID, EventError, map[string]any{
			"kind": "completion_contract", "reason": verdict.Reason,
		})
		e.host.UpdateTaskStatus(ctx, e.task.ID, task.StatusFailed, verdict.Reason)
		result := &RunResult{Status: task.StatusFailed, Reason: verdict.Reason}
		e.hooks.OnRunDone(ctx, e.progress(), result)
		return result
	}

	summary := SelectResultSummary(e.lastSubstantiveText, e.finalText, e.lastAssistantText)
	e.host.LogEvent(ctx, e.task.ID, EventTaskCompleted, map[string]any{
		"summary": summary, "iterations": e.totals.Iterations, "cost_usd": e.totals.CostUSD,
	})
	e.host.CompleteTask(ctx, e.task.ID, summary)

	result := &RunResult{Status: task.StatusCompleted, Summary: summary}
	e.hooks.OnRunDone(ctx, e.progress(), result)
	return result
}

// createPlan makes the single planning call and parses its JSON. Parse
// failure degrades to a one-step fallback plan; only provider and budget
// faults propagate.
func (e *Executor) createPlan(ctx context.Context) (*Plan, error) {
	if err := CheckBudget(e.totals, e.cfg.Limits); err != nil {
		e.hooks.OnBudgetExceeded(ctx, e.progress(), err)
		return nil, err
	}

	req := MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxOutputTokens,
		System:    e.planningPrompt,
		Messages:  []Message{UserMessage(e.task.Prompt)},
	}

	resp, err := e.callModel(ctx, req)
	if err != nil {
		return nil, err
	}
	e.iteration++
	e.totals.Add(e.cfg.Model, resp.Usage)

	plan, perr := ParsePlanResponse(resp.Text())
	if perr != nil {
		plan = FallbackPlan(resp.Text(), e.task.Prompt)
	}
	return plan, nil
}

// callModel races one provider call against the call timeout. The deadline
// fires even when the provider ignores its context.
func (e *Executor) callModel(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.LLMCallTimeout)
	defer cancel()

	type callResult struct {
		resp *MessageResponse
		err  error
	}
	ch := make(chan callResult, 1)
	go func() {
		resp, err := e.provider.CreateMessage(callCtx, req)
		ch <- callResult{resp, err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Op: "LLM call", After: e.cfg.LLMCallTimeout}
	}
}

// stepMessage builds the user turn that seeds one step. The first step
// carries the full task statement; later steps only advance the plan.
func (e *Executor) stepMessage(step *PlanStep, index, total int) string {
	var sb strings.Builder
	if len(e.history) == 0 {
		sb.WriteString("Task: ")
		sb.WriteString(e.task.Prompt)
		sb.WriteString("\n\n")
	}
	sb.WriteString(e.plan.FormatForPrompt())
	sb.WriteString(fmt.Sprintf("\n\nCurrent step (%d/%d): %s", index, total, step.Description))
	return sb.String()
}

func (e *Executor) checkCancelled(ctx context.Context) *RunResult {
	if e.cancelled.Load() || ctx.Err() != nil {
		return e.cancelledResult(ctx)
	}
	return nil
}

func (e *Executor) cancelledResult(ctx context.Context) *RunResult {
	e.host.UpdateTaskStatus(ctx, e.task.ID, task.StatusCancelled, "")
	result := &RunResult{Status: task.StatusCancelled}
	e.hooks.OnRunDone(ctx, e.progress(), result)
	return result
}

// waitIfPaused parks at the step boundary while the gate is closed.
func (e *Executor) waitIfPaused(ctx context.Context) error {
	if !e.pause.Paused() {
		return nil
	}
	e.hooks.OnPaused(ctx, e.progress())
	if err := e.pause.Wait(ctx); err != nil {
		return err
	}
	if e.cancelled.Load() {
		return context.Canceled
	}
	e.hooks.OnResumed(ctx, e.progress())
	return nil
}

func (e *Executor) logError(ctx context.Context, err error) {
	e.host.LogEvent(ctx, e.task.ID, EventError, map[string]any{"error": err.Error()})
}

// allCreatedFiles merges tool-observed writes with the workspace tracker.
func (e *Executor) allCreatedFiles() []string {
	seen := make(map[string]bool, len(e.createdFiles))
	var files []string
	add := func(path string) {
		if path != "" && !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, f := range e.createdFiles {
		add(f)
	}
	if e.trackedFiles != nil {
		for _, f := range e.trackedFiles() {
			add(f)
		}
	}
	return files
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}
