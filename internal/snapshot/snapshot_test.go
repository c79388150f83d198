package snapshot

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/eventlog"
)

func snapEvent(t *testing.T, id int64, ts time.Time, history []engine.Message) eventlog.Event {
	t.Helper()
	payload, err := json.Marshal(Snapshot{
		ConversationHistory: history,
		Timestamp:           ts,
		MessageCount:        len(history),
	})
	if err != nil {
		t.Fatal(err)
	}
	return eventlog.Event{
		ID:        id,
		TaskID:    "task-1",
		Type:      engine.EventConversationSnapshot,
		Payload:   payload,
		CreatedAt: ts,
	}
}

func assistantEvent(id int64, text string) eventlog.Event {
	payload, _ := json.Marshal(map[string]string{"text": text})
	return eventlog.Event{
		ID:      id,
		TaskID:  "task-1",
		Type:    engine.EventAssistantMessage,
		Payload: payload,
	}
}

func TestCaptureCapsContent(t *testing.T) {
	history := []engine.Message{
		{Role: engine.RoleAssistant, Content: []engine.ContentBlock{
			engine.TextBlock(strings.Repeat("t", 10005)),
			engine.ToolUseBlock("t1", "write_file", map[string]any{
				"content": strings.Repeat("i", 50005),
				"count":   7,
			}),
		}},
		{Role: engine.RoleUser, Content: []engine.ContentBlock{
			engine.ToolResultBlock("t1", strings.Repeat("r", 50005), false),
		}},
	}

	snap := Capture(history, "system", "claude-sonnet", "anthropic")
	if snap.MessageCount != 2 {
		t.Errorf("message count = %d", snap.MessageCount)
	}

	text := snap.ConversationHistory[0].Content[0].Text
	if len(text) != 10000+len(truncationMarker) || !strings.HasSuffix(text, truncationMarker) {
		t.Errorf("text not capped: %d chars", len(text))
	}

	input := snap.ConversationHistory[0].Content[1].Input
	if s := input["content"].(string); len(s) != 50000+len(truncationMarker) {
		t.Errorf("tool input not capped: %d chars", len(s))
	}
	if input["count"] != 7 {
		t.Errorf("non-string input altered: %v", input["count"])
	}

	result := snap.ConversationHistory[1].Content[0].Content
	if len(result) != 50000+len(truncationMarker) {
		t.Errorf("tool result not capped: %d chars", len(result))
	}

	// The caller's history stays full-size.
	if len(history[0].Content[0].Text) != 10005 {
		t.Error("Capture mutated the input history")
	}
}

func TestRestoreLatestTimestampWins(t *testing.T) {
	older := []engine.Message{engine.UserMessage("old state")}
	newer := []engine.Message{engine.UserMessage("new state"), engine.AssistantMessage(engine.TextBlock("reply"))}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// The newer snapshot sits earlier in the stream; payload timestamps must
	// decide, not slice order.
	events := []eventlog.Event{
		snapEvent(t, 1, base.Add(time.Hour), newer),
		snapEvent(t, 2, base, older),
	}

	res := Restore(events, "the prompt")
	if !res.Restored || res.Legacy {
		t.Fatalf("restored=%v legacy=%v", res.Restored, res.Legacy)
	}
	if len(res.History) != 2 || res.History[0].Text() != "new state" {
		t.Errorf("wrong snapshot won: %v", res.History)
	}
}

func TestRestoreMalformedWinnerFallsBackToLegacy(t *testing.T) {
	// Winner by timestamp carries a non-array conversation_history.
	broken := eventlog.Event{
		ID:      5,
		TaskID:  "task-1",
		Type:    engine.EventConversationSnapshot,
		Payload: json.RawMessage(`{"conversation_history":"oops","timestamp":"2026-08-10T00:00:00Z"}`),
	}
	events := []eventlog.Event{
		broken,
		assistantEvent(6, "first answer"),
		assistantEvent(7, "second answer"),
	}

	res := Restore(events, "build the report")
	if !res.Restored || !res.Legacy {
		t.Fatalf("restored=%v legacy=%v, want legacy restore", res.Restored, res.Legacy)
	}
	if len(res.History) != 3 {
		t.Fatalf("history = %d messages, want prompt + 2 answers", len(res.History))
	}
	if res.History[0].Role != engine.RoleUser || res.History[0].Text() != "build the report" {
		t.Errorf("history head = %+v", res.History[0])
	}
	if res.History[2].Text() != "second answer" {
		t.Errorf("history tail = %q", res.History[2].Text())
	}
}

func TestRestoreNothingToRecover(t *testing.T) {
	res := Restore(nil, "prompt")
	if res.Restored {
		t.Error("restored from empty stream")
	}

	res = Restore([]eventlog.Event{
		{ID: 1, Type: "status_changed", Payload: json.RawMessage(`{}`)},
	}, "prompt")
	if res.Restored {
		t.Error("restored from stream without snapshots or messages")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	history := []engine.Message{engine.UserMessage("state")}
	events := []eventlog.Event{
		snapEvent(t, 1, base, history),
		snapEvent(t, 2, base.Add(2*time.Hour), history), // newest
		snapEvent(t, 3, base.Add(time.Hour), history),
		assistantEvent(4, "unrelated"),
	}

	stale := Prune(events)
	if len(stale) != 2 {
		t.Fatalf("stale = %v, want 2 ids", stale)
	}
	for _, id := range stale {
		if id == 2 {
			t.Fatal("newest snapshot marked for deletion")
		}
		if id == 4 {
			t.Fatal("non-snapshot event marked for deletion")
		}
	}

	if got := Prune(nil); got != nil {
		t.Errorf("Prune(nil) = %v", got)
	}
}

func TestPruneTimestampTieBreaksOnID(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	history := []engine.Message{engine.UserMessage("state")}
	events := []eventlog.Event{
		snapEvent(t, 1, base, history),
		snapEvent(t, 2, base, history),
	}

	stale := Prune(events)
	if len(stale) != 1 || stale[0] != 1 {
		t.Errorf("stale = %v, want [1]", stale)
	}
}
