// engine/hook_logger.go
package engine

import (
	"context"
	"log"
)

// LoggerHook writes executor progress to a standard logger. In stdio mode the
// caller points it at stderr so stdout stays a clean protocol stream.
type LoggerHook struct{ L *log.Logger }

func (h LoggerHook) OnPlanCreated(_ context.Context, p Progress, plan *Plan) {
	if plan.Fallback {
		h.L.Printf("📋 task=%s plan: fallback single step", p.TaskID)
		return
	}
	h.L.Printf("📋 task=%s plan: %d steps | %s", p.TaskID, len(plan.Steps), plan.Description)
}
func (h LoggerHook) OnStepStart(_ context.Context, p Progress, step *PlanStep) {
	h.L.Printf("▶️  task=%s step=%s: %s", p.TaskID, step.ID, preview(step.Description, 80))
}
func (h LoggerHook) OnStepDone(_ context.Context, p Progress, step *PlanStep, err error) {
	if err != nil {
		h.L.Printf("✗ task=%s step=%s failed: %v", p.TaskID, step.ID, err)
		return
	}
	h.L.Printf("✅ task=%s step=%s done", p.TaskID, step.ID)
}
func (h LoggerHook) OnBeforeLLM(_ context.Context, p Progress, msgs []Message, schemas []ToolSchema) {
	h.L.Printf("📤 task=%s iter=%d: %d msgs, %d tools | 💰 cumulative: tokens=%d cost=$%.4f",
		p.TaskID, p.Iteration, len(msgs), len(schemas), p.Totals.TotalTokens(), p.Totals.CostUSD)
}
func (h LoggerHook) OnAfterLLM(_ context.Context, p Progress, resp *MessageResponse) {
	h.L.Printf("stop=%s tokens: in=%d out=%d (cumulative=%d)",
		resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens, p.Totals.TotalTokens())
}
func (h LoggerHook) OnAssistantText(_ context.Context, p Progress, text string) {
	h.L.Printf("💬 task=%s: %s", p.TaskID, preview(text, 120))
}
func (h LoggerHook) OnToolCall(_ context.Context, _ Progress, call ContentBlock) {
	h.L.Printf("🔧 tool → %s input=%v", call.Name, call.Input)
}
func (h LoggerHook) OnToolResult(_ context.Context, _ Progress, call ContentBlock, result string, err error) {
	if err != nil {
		h.L.Printf("🔧 tool %s error: %v", call.Name, err)
		return
	}
	h.L.Printf("🔧 tool %s result: %s", call.Name, preview(result, 100))
}
func (h LoggerHook) OnToolSkipped(_ context.Context, _ Progress, name, reason string) {
	h.L.Printf("⚠️  tool %s skipped: %s", name, reason)
}
func (h LoggerHook) OnToolDisabled(_ context.Context, _ Progress, name string, class FailureClass) {
	h.L.Printf("🔌 tool %s disabled (%s)", name, class)
}
func (h LoggerHook) OnCompaction(_ context.Context, p Progress, stats CompactionStats) {
	if !stats.Changed() {
		return
	}
	h.L.Printf("📚 task=%s compaction: tokens %d → %d, dropped=%d truncated=%d",
		p.TaskID, stats.BeforeTokens, stats.AfterTokens, stats.DroppedMessages, stats.TruncatedResults)
}
func (h LoggerHook) OnBudgetExceeded(_ context.Context, p Progress, err error) {
	h.L.Printf("💰 task=%s budget exceeded: %v", p.TaskID, err)
}
func (h LoggerHook) OnQuestion(_ context.Context, p Progress, text string) {
	h.L.Printf("❓ task=%s waiting on user: %s", p.TaskID, preview(text, 120))
}
func (h LoggerHook) OnPaused(_ context.Context, p Progress) {
	h.L.Printf("⏸️  task=%s paused", p.TaskID)
}
func (h LoggerHook) OnResumed(_ context.Context, p Progress) {
	h.L.Printf("▶️  task=%s resumed", p.TaskID)
}
func (h LoggerHook) OnRunDone(_ context.Context, p Progress, result *RunResult) {
	h.L.Printf("✅ task=%s done: status=%s iterations=%d tokens=%d cost=$%.4f",
		p.TaskID, result.Status, p.Totals.Iterations, p.Totals.TotalTokens(), p.Totals.CostUSD)
}

func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
