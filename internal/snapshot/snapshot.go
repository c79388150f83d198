// Package snapshot checkpoints a task's conversation so the daemon can
// resume follow-ups and survive restarts. Snapshots live in the task's
// event stream as conversation_snapshot events.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/eventlog"
)

// Size caps applied when capturing. Structure is always preserved; only
// block content is cut, with a marker appended so the model can tell.
const (
	maxStringChars     = 50000
	maxToolResultChars = 50000
	maxTextChars       = 10000
	truncationMarker   = "... [truncated]"
)

// Snapshot is the persisted payload of a conversation_snapshot event.
type Snapshot struct {
	ConversationHistory []engine.Message `json:"conversation_history"`
	SystemPrompt        string           `json:"system_prompt,omitempty"`
	Timestamp           time.Time        `json:"timestamp"`
	MessageCount        int              `json:"message_count"`
	ModelID             string           `json:"model_id,omitempty"`
	ModelKey            string           `json:"model_key,omitempty"`
}

// Capture builds a size-capped snapshot of the conversation.
func Capture(history []engine.Message, systemPrompt, modelID, modelKey string) *Snapshot {
	capped := make([]engine.Message, len(history))
	for i, msg := range history {
		capped[i] = engine.Message{Role: msg.Role, Content: capBlocks(msg.Content)}
	}
	return &Snapshot{
		ConversationHistory: capped,
		SystemPrompt:        capString(systemPrompt, maxStringChars),
		Timestamp:           time.Now().UTC(),
		MessageCount:        len(history),
		ModelID:             modelID,
		ModelKey:            modelKey,
	}
}

func capBlocks(blocks []engine.ContentBlock) []engine.ContentBlock {
	out := make([]engine.ContentBlock, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case engine.BlockText:
			b.Text = capString(b.Text, maxTextChars)
		case engine.BlockToolResult:
			b.Content = capString(b.Content, maxToolResultChars)
		case engine.BlockToolUse:
			b.Input = capInput(b.Input)
		}
		out[i] = b
	}
	return out
}

func capInput(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if s, ok := v.(string); ok {
			out[k] = capString(s, maxStringChars)
			continue
		}
		out[k] = v
	}
	return out
}

func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + truncationMarker
}

// RestoreResult reports what a restore attempt recovered.
type RestoreResult struct {
	Restored     bool
	Legacy       bool // history rebuilt from assistant_message events
	History      []engine.Message
	SystemPrompt string
	ModelID      string
	ModelKey     string
}

// candidate pairs a snapshot event with its effective timestamp.
type candidate struct {
	event   eventlog.Event
	at      time.Time
	payload restorePayload
	parsed  bool
}

// restorePayload defers conversation_history decoding so a bad history
// doesn't hide the timestamp.
type restorePayload struct {
	ConversationHistory json.RawMessage `json:"conversation_history"`
	SystemPrompt        string          `json:"system_prompt"`
	Timestamp           time.Time       `json:"timestamp"`
	ModelID             string          `json:"model_id"`
	ModelKey            string          `json:"model_key"`
}

// Restore reconstructs conversation state from a task's event stream.
// The newest snapshot by payload timestamp wins, regardless of stream
// order. A malformed winner (missing or non-array conversation_history)
// fails soft: history is rebuilt from assistant_message events, or the
// result is simply "not restored".
func Restore(events []eventlog.Event, taskPrompt string) RestoreResult {
	best := pickLatestSnapshot(events)
	if best != nil && best.parsed {
		var history []engine.Message
		if len(best.payload.ConversationHistory) > 0 &&
			json.Unmarshal(best.payload.ConversationHistory, &history) == nil &&
			history != nil {
			return RestoreResult{
				Restored:     true,
				History:      history,
				SystemPrompt: best.payload.SystemPrompt,
				ModelID:      best.payload.ModelID,
				ModelKey:     best.payload.ModelKey,
			}
		}
	}
	return legacyRestore(events, taskPrompt)
}

func pickLatestSnapshot(events []eventlog.Event) *candidate {
	var best *candidate
	for _, e := range events {
		if e.Type != engine.EventConversationSnapshot {
			continue
		}
		c := candidate{event: e, at: e.CreatedAt}
		if err := json.Unmarshal(e.Payload, &c.payload); err == nil {
			c.parsed = true
			if !c.payload.Timestamp.IsZero() {
				c.at = c.payload.Timestamp
			}
		}
		if best == nil || c.at.After(best.at) ||
			(c.at.Equal(best.at) && c.event.ID > best.event.ID) {
			b := c
			best = &b
		}
	}
	return best
}

// legacyRestore rebuilds a minimal history from assistant_message events:
// the task prompt followed by each recorded assistant turn. Providers
// merge the consecutive assistant messages on the way out.
func legacyRestore(events []eventlog.Event, taskPrompt string) RestoreResult {
	var messages []engine.Message
	for _, e := range events {
		if e.Type != engine.EventAssistantMessage {
			continue
		}
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(e.Payload, &payload); err != nil || payload.Text == "" {
			continue
		}
		messages = append(messages, engine.AssistantMessage(engine.TextBlock(payload.Text)))
	}
	if len(messages) == 0 {
		return RestoreResult{}
	}

	history := make([]engine.Message, 0, len(messages)+1)
	if taskPrompt != "" {
		history = append(history, engine.UserMessage(taskPrompt))
	}
	history = append(history, messages...)
	return RestoreResult{Restored: true, Legacy: true, History: history}
}

// Prune returns the IDs of every conversation_snapshot event except the
// newest one, for deletion.
func Prune(events []eventlog.Event) []int64 {
	best := pickLatestSnapshot(events)
	if best == nil {
		return nil
	}
	var stale []int64
	for _, e := range events {
		if e.Type != engine.EventConversationSnapshot || e.ID == best.event.ID {
			continue
		}
		stale = append(stale, e.ID)
	}
	return stale
}
