// Package engine drives one task through plan and step execution.
// This file contains deterministic conversation compaction. No model calls:
// reduction must be reproducible for snapshot/restore to behave.

package engine

import "fmt"

// Compactor shrinks conversation history to fit a model's context window
// while keeping the protocol invariants providers enforce: role alternation
// and paired tool_use/tool_result blocks.
type Compactor struct {
	// KeepRecentMessages is how many trailing messages stay verbatim.
	KeepRecentMessages int
	// MaxToolResultChars caps individual tool_result blocks outside the
	// verbatim window. Oversized results are cut head+tail with a marker.
	MaxToolResultChars int
	Tokenizer          Tokenizer
}

// DefaultCompactor returns a compactor with the standard knobs.
func DefaultCompactor() *Compactor {
	return &Compactor{
		KeepRecentMessages: 18,
		MaxToolResultChars: 3000,
		Tokenizer:          DefaultTokenizer{},
	}
}

// CompactionStats reports what one Compact call did.
type CompactionStats struct {
	BeforeTokens     int
	AfterTokens      int
	DroppedMessages  int
	TruncatedResults int
}

// Changed reports whether compaction altered the history at all.
func (s CompactionStats) Changed() bool {
	return s.DroppedMessages > 0 || s.TruncatedResults > 0
}

// Compact returns a history that fits the model's context window alongside
// the system prompt. The most recent KeepRecentMessages stay untouched; older
// tool results are truncated per block, and if the total still exceeds the
// budget, whole messages are dropped from the front in pair-preserving cuts.
func (c *Compactor) Compact(msgs []Message, systemPrompt, model string) ([]Message, CompactionStats) {
	stats := CompactionStats{}
	if len(msgs) == 0 {
		return msgs, stats
	}

	tokenizer := c.Tokenizer
	if tokenizer == nil {
		tokenizer = DefaultTokenizer{}
	}

	systemTokens, _ := tokenizer.CountTokens(systemPrompt, model)
	stats.BeforeTokens, _ = CountTokensForMessages(tokenizer, msgs, model)
	stats.BeforeTokens += systemTokens

	work := cloneMessages(msgs)

	// Pass 1: cap oversized tool results outside the verbatim window. This
	// runs whether or not the total is over budget so a single pathological
	// result cannot dominate the context.
	verbatimFrom := len(work) - c.KeepRecentMessages
	if verbatimFrom < 0 {
		verbatimFrom = 0
	}
	for i := 0; i < verbatimFrom; i++ {
		for j := range work[i].Content {
			block := &work[i].Content[j]
			if block.Type == BlockToolResult && len(block.Content) > c.MaxToolResultChars {
				block.Content = truncateMiddle(block.Content, c.MaxToolResultChars)
				stats.TruncatedResults++
			}
		}
	}

	// Pass 2: drop oldest messages until the history fits.
	window := ModelContextWindow(model)
	available := window.Budget() - systemTokens

	cut := 0
	for {
		tokens, _ := CountTokensForMessages(tokenizer, work[cut:], model)
		if tokens <= available || len(work)-cut <= c.KeepRecentMessages {
			break
		}
		cut++
	}

	// Never let the kept tail open with orphaned tool_result blocks: their
	// tool_use lives in a dropped message.
	for cut > 0 && cut < len(work) && work[cut].HasToolResult() {
		cut++
	}
	if cut >= len(work) {
		cut = len(work) - 1
	}

	if cut == 0 {
		stats.AfterTokens, _ = CountTokensForMessages(tokenizer, work, model)
		stats.AfterTokens += systemTokens
		return work, stats
	}

	stats.DroppedMessages = cut
	kept := work[cut:]

	// Replace the dropped prefix with one visible note, folded into the first
	// user message so role alternation stays valid.
	note := fmt.Sprintf("[Earlier context: %d older messages were compacted away]", cut)
	if len(kept) > 0 && kept[0].Role == RoleUser {
		kept[0].Content = append([]ContentBlock{TextBlock(note)}, kept[0].Content...)
	} else {
		kept = append([]Message{UserMessage(note)}, kept...)
	}

	stats.AfterTokens, _ = CountTokensForMessages(tokenizer, kept, model)
	stats.AfterTokens += systemTokens
	return kept, stats
}

// truncateMiddle keeps the head and tail of s and marks the cut.
func truncateMiddle(s string, max int) string {
	if len(s) <= max || max < 20 {
		return s
	}
	half := max / 2
	removed := len(s) - max
	return s[:half] + fmt.Sprintf("\n... [truncated %d chars] ...\n", removed) + s[len(s)-half:]
}

// cloneMessages copies messages and their block slices so compaction never
// mutates the executor's live history.
func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: m.Role, Content: append([]ContentBlock(nil), m.Content...)}
	}
	return out
}
