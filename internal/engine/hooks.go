// engine/hooks.go
package engine

import "context"

// Progress is the execution position handed to every hook: which task, which
// step, which iteration, and what the run has consumed so far.
type Progress struct {
	TaskID    string
	StepID    string
	Iteration int
	Totals    UsageTotals
}

// Hook observes executor progress. Implementations must not block; the
// executor calls them inline on its single goroutine.
type Hook interface {
	OnPlanCreated(ctx context.Context, p Progress, plan *Plan)
	OnStepStart(ctx context.Context, p Progress, step *PlanStep)
	OnStepDone(ctx context.Context, p Progress, step *PlanStep, err error)
	OnBeforeLLM(ctx context.Context, p Progress, msgs []Message, schemas []ToolSchema)
	OnAfterLLM(ctx context.Context, p Progress, resp *MessageResponse)
	OnAssistantText(ctx context.Context, p Progress, text string)
	OnToolCall(ctx context.Context, p Progress, call ContentBlock)
	OnToolResult(ctx context.Context, p Progress, call ContentBlock, result string, err error)
	OnToolSkipped(ctx context.Context, p Progress, name, reason string)
	OnToolDisabled(ctx context.Context, p Progress, name string, class FailureClass)
	OnCompaction(ctx context.Context, p Progress, stats CompactionStats)
	OnBudgetExceeded(ctx context.Context, p Progress, err error)
	OnQuestion(ctx context.Context, p Progress, text string)
	OnPaused(ctx context.Context, p Progress)
	OnResumed(ctx context.Context, p Progress)
	OnRunDone(ctx context.Context, p Progress, result *RunResult)
}

// NopHook lets you implement only the hooks you need.
type NopHook struct{}

func (NopHook) OnPlanCreated(context.Context, Progress, *Plan)                        {}
func (NopHook) OnStepStart(context.Context, Progress, *PlanStep)                      {}
func (NopHook) OnStepDone(context.Context, Progress, *PlanStep, error)                {}
func (NopHook) OnBeforeLLM(context.Context, Progress, []Message, []ToolSchema)        {}
func (NopHook) OnAfterLLM(context.Context, Progress, *MessageResponse)                {}
func (NopHook) OnAssistantText(context.Context, Progress, string)                     {}
func (NopHook) OnToolCall(context.Context, Progress, ContentBlock)                    {}
func (NopHook) OnToolResult(context.Context, Progress, ContentBlock, string, error)   {}
func (NopHook) OnToolSkipped(context.Context, Progress, string, string)               {}
func (NopHook) OnToolDisabled(context.Context, Progress, string, FailureClass)        {}
func (NopHook) OnCompaction(context.Context, Progress, CompactionStats)               {}
func (NopHook) OnBudgetExceeded(context.Context, Progress, error)                     {}
func (NopHook) OnQuestion(context.Context, Progress, string)                          {}
func (NopHook) OnPaused(context.Context, Progress)                                    {}
func (NopHook) OnResumed(context.Context, Progress)                                   {}
func (NopHook) OnRunDone(context.Context, Progress, *RunResult)                       {}
