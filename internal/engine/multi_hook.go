package engine

import "context"

// Hooks fans every callback out to each registered hook in order.
type Hooks []Hook

func (hs Hooks) OnPlanCreated(ctx context.Context, p Progress, plan *Plan) {
	for _, h := range hs {
		h.OnPlanCreated(ctx, p, plan)
	}
}
func (hs Hooks) OnStepStart(ctx context.Context, p Progress, step *PlanStep) {
	for _, h := range hs {
		h.OnStepStart(ctx, p, step)
	}
}
func (hs Hooks) OnStepDone(ctx context.Context, p Progress, step *PlanStep, err error) {
	for _, h := range hs {
		h.OnStepDone(ctx, p, step, err)
	}
}
func (hs Hooks) OnBeforeLLM(ctx context.Context, p Progress, msgs []Message, schemas []ToolSchema) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, p, msgs, schemas)
	}
}
func (hs Hooks) OnAfterLLM(ctx context.Context, p Progress, resp *MessageResponse) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, p, resp)
	}
}
func (hs Hooks) OnAssistantText(ctx context.Context, p Progress, text string) {
	for _, h := range hs {
		h.OnAssistantText(ctx, p, text)
	}
}
func (hs Hooks) OnToolCall(ctx context.Context, p Progress, call ContentBlock) {
	for _, h := range hs {
		h.OnToolCall(ctx, p, call)
	}
}
func (hs Hooks) OnToolResult(ctx context.Context, p Progress, call ContentBlock, result string, err error) {
	for _, h := range hs {
		h.OnToolResult(ctx, p, call, result, err)
	}
}
func (hs Hooks) OnToolSkipped(ctx context.Context, p Progress, name, reason string) {
	for _, h := range hs {
		h.OnToolSkipped(ctx, p, name, reason)
	}
}
func (hs Hooks) OnToolDisabled(ctx context.Context, p Progress, name string, class FailureClass) {
	for _, h := range hs {
		h.OnToolDisabled(ctx, p, name, class)
	}
}
func (hs Hooks) OnCompaction(ctx context.Context, p Progress, stats CompactionStats) {
	for _, h := range hs {
		h.OnCompaction(ctx, p, stats)
	}
}
func (hs Hooks) OnBudgetExceeded(ctx context.Context, p Progress, err error) {
	for _, h := range hs {
		h.OnBudgetExceeded(ctx, p, err)
	}
}
func (hs Hooks) OnQuestion(ctx context.Context, p Progress, text string) {
	for _, h := range hs {
		h.OnQuestion(ctx, p, text)
	}
}
func (hs Hooks) OnPaused(ctx context.Context, p Progress) {
	for _, h := range hs {
		h.OnPaused(ctx, p)
	}
}
func (hs Hooks) OnResumed(ctx context.Context, p Progress) {
	for _, h := range hs {
		h.OnResumed(ctx, p)
	}
}
func (hs Hooks) OnRunDone(ctx context.Context, p Progress, result *RunResult) {
	for _, h := range hs {
		h.OnRunDone(ctx, p, result)
	}
}
