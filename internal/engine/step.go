// Package engine drives one task through plan and step execution.
// This file contains the inner loop shared by step execution and follow-up
// messages: budget gate, compaction, the raced model call, termination rules,
// and sequential tool dispatch.

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// stepStop says why a step loop ended without an error.
type stepStop string

const (
	stopCompleted     stepStop = "completed"      // end_turn with real content
	stopQuestion      stepStop = "question"       // model is asking the user
	stopIterationCap  stepStop = "iteration_cap"  // loop bound reached
	stopEmptyCap      stepStop = "empty_cap"      // model went quiet repeatedly
	stopToolsDisabled stepStop = "tools_disabled" // every call hit an open breaker
	stopCancelled     stepStop = "cancelled"
)

// stepOutcome is the result of one loop run.
type stepOutcome struct {
	stop stepStop
	text string // final assistant text, if any
}

// runStepLoop drives model iterations until the turn terminates, a cap is
// reached, or a fault occurs. Each iteration: budget gate, compaction, one
// raced model call, usage tracking, then either termination or sequential
// tool dispatch with results appended as a single user message.
func (e *Executor) runStepLoop(ctx context.Context) (stepOutcome, error) {
	iterations := 0
	emptyResponses := 0

	for {
		if e.cancelled.Load() || ctx.Err() != nil {
			return stepOutcome{stop: stopCancelled}, nil
		}
		if iterations >= e.cfg.MaxStepIterations {
			return stepOutcome{stop: stopIterationCap, text: e.finalText}, nil
		}
		iterations++
		e.iteration++

		// Budget first: a run over its ceiling must not spend more.
		if err := CheckBudget(e.totals, e.cfg.Limits); err != nil {
			e.hooks.OnBudgetExceeded(ctx, e.progress(), err)
			return stepOutcome{}, err
		}

		msgs, stats := e.compactor.Compact(e.history, e.systemPrompt, e.cfg.Model)
		e.hooks.OnCompaction(ctx, e.progress(), stats)

		schemas := e.tools.Schemas()
		e.hooks.OnBeforeLLM(ctx, e.progress(), msgs, schemas)

		resp, err := e.callModel(ctx, MessageRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxOutputTokens,
			System:    e.systemPrompt,
			Tools:     schemas,
			Messages:  msgs,
		})
		if err != nil {
			// A cancel that lands while the call is in flight surfaces as
			// context.Canceled from the provider; that is the cancelled side
			// state, not a fault.
			if e.cancelled.Load() || errors.Is(err, context.Canceled) {
				return stepOutcome{stop: stopCancelled}, nil
			}
			return stepOutcome{}, err
		}

		e.totals.Add(e.cfg.Model, resp.Usage)
		e.hooks.OnAfterLLM(ctx, e.progress(), resp)

		// A contentless turn is replaced with a placeholder so the
		// conversation keeps its shape, bounded by the empty cap.
		if resp.IsEmpty() {
			emptyResponses++
			e.history = append(e.history, AssistantMessage(TextBlock(continuationPlaceholder)))
			e.lastAssistantText = continuationPlaceholder
			e.host.LogEvent(ctx, e.task.ID, EventAssistantMessage, map[string]any{
				"text": continuationPlaceholder, "placeholder": true,
			})
			if emptyResponses >= e.cfg.MaxEmptyResponses {
				return stepOutcome{stop: stopEmptyCap, text: e.finalText}, nil
			}
			continue
		}
		emptyResponses = 0

		e.history = append(e.history, Message{Role: RoleAssistant, Content: resp.Content})

		text := strings.TrimSpace(resp.Text())
		if text != "" {
			e.lastAssistantText = text
			if text != continuationPlaceholder {
				e.lastSubstantiveText = text
			}
			e.host.LogEvent(ctx, e.task.ID, EventAssistantMessage, map[string]any{"text": text})
			e.hooks.OnAssistantText(ctx, e.progress(), text)
		}

		toolUses := resp.ToolUses()

		// Termination: end of turn with real content. An end_turn that
		// carried nothing was already handled by the empty branch above.
		if resp.StopReason == StopEndTurn && len(toolUses) == 0 {
			e.finalText = text
			if DetectsQuestion(text) {
				return stepOutcome{stop: stopQuestion, text: text}, nil
			}
			return stepOutcome{stop: stopCompleted, text: text}, nil
		}

		// No tools requested and the turn is not over (max_tokens, stop
		// sequence): a question still hands control back to the user,
		// anything else loops for the model to continue.
		if len(toolUses) == 0 {
			if DetectsQuestion(text) {
				e.finalText = text
				return stepOutcome{stop: stopQuestion, text: text}, nil
			}
			continue
		}

		results, allBroken := e.dispatchTools(ctx, toolUses)
		e.history = append(e.history, Message{Role: RoleUser, Content: results})

		// When every requested tool sat behind an open breaker the model
		// cannot make progress; stop instead of burning iterations.
		if allBroken {
			return stepOutcome{stop: stopToolsDisabled, text: text}, nil
		}
	}
}

// dispatchTools executes the requested tool calls strictly in block order and
// returns one tool_result block per call, plus whether every call was refused
// by the circuit breaker.
func (e *Executor) dispatchTools(ctx context.Context, uses []ContentBlock) ([]ContentBlock, bool) {
	results := make([]ContentBlock, 0, len(uses))
	skipped := 0

	for _, use := range uses {
		if !e.breaker.Allows(use.Name) {
			skipped++
			reason := fmt.Sprintf("Tool %q is disabled for this task after repeated failures. Do not call it again.", use.Name)
			results = append(results, ToolResultBlock(use.ID, reason, true))
			e.hooks.OnToolSkipped(ctx, e.progress(), use.Name, "circuit breaker open")
			e.host.LogEvent(ctx, e.task.ID, EventToolError, map[string]any{
				"tool": use.Name, "skipped": true, "reason": "circuit breaker open",
			})
			continue
		}

		e.hooks.OnToolCall(ctx, e.progress(), use)
		e.host.LogEvent(ctx, e.task.ID, EventToolCall, map[string]any{
			"tool": use.Name, "tool_use_id": use.ID, "input": use.Input,
		})

		output, err := e.tools.Execute(ctx, use.Name, use.Input)
		e.toolCalls = append(e.toolCalls, ToolCallRecord{Name: use.Name, IsError: err != nil})

		if err != nil {
			class, tripped := e.breaker.RecordFailure(use.Name, err)
			if tripped {
				e.hooks.OnToolDisabled(ctx, e.progress(), use.Name, class)
			}
			results = append(results, ToolResultBlock(use.ID, "ERROR: "+err.Error(), true))
			e.hooks.OnToolResult(ctx, e.progress(), use, "", err)
			e.host.LogEvent(ctx, e.task.ID, EventToolError, map[string]any{
				"tool": use.Name, "tool_use_id": use.ID, "error": err.Error(), "class": string(class),
			})
			continue
		}

		e.breaker.RecordSuccess(use.Name)
		e.trackArtifact(use)
		results = append(results, ToolResultBlock(use.ID, output, false))
		e.hooks.OnToolResult(ctx, e.progress(), use, output, nil)
		e.host.LogEvent(ctx, e.task.ID, EventToolResult, map[string]any{
			"tool": use.Name, "tool_use_id": use.ID, "output_len": len(output),
		})
	}

	return results, len(uses) > 0 && skipped == len(uses)
}

// trackArtifact remembers files the model wrote so the completion contract
// can demand artifact evidence.
func (e *Executor) trackArtifact(use ContentBlock) {
	if use.Name != "write_file" {
		return
	}
	if path, ok := use.Input["path"].(string); ok && path != "" {
		e.createdFiles = append(e.createdFiles, path)
	}
}
