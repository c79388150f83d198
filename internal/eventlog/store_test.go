package eventlog

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mesutfelat/cowork/internal/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	retain := false
	tk := task.New("review", "review the changes")
	tk.WorkspaceDir = "/srv/project"
	tk.Model = "claude-sonnet-4-20250514"
	tk.AgentConfig = task.AgentConfig{RetainMemory: &retain, MaxTokens: 50000}

	if err := s.SaveTask(ctx, tk); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "review" || got.Prompt != "review the changes" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.WorkspaceDir != "/srv/project" || got.Model != tk.Model {
		t.Errorf("workspace/model lost: %+v", got)
	}
	if got.AgentConfig.RetainMemory == nil || *got.AgentConfig.RetainMemory {
		t.Error("agent config retain_memory lost")
	}
	if got.AgentConfig.MaxTokens != 50000 {
		t.Errorf("agent config max_tokens = %d", got.AgentConfig.MaxTokens)
	}

	// Upsert updates in place.
	tk.Status = task.StatusFailed
	tk.Error = "provider exploded"
	if err := s.SaveTask(ctx, tk); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err = s.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Status != task.StatusFailed || got.Error != "provider exploded" {
		t.Errorf("update lost: status=%s error=%q", got.Status, got.Error)
	}
}

func TestGetTaskMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetTask(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestTasksByStatusOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i, status := range []task.Status{task.StatusQueued, task.StatusExecuting, task.StatusQueued, task.StatusCompleted} {
		tk := task.New("t", "p")
		tk.Status = status
		tk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tk.ID)
	}

	// Restart recovery requeues in submission order: oldest first.
	got, err := s.TasksByStatus(ctx, task.StatusQueued, task.StatusExecuting)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("matched %d tasks, want 3", len(got))
	}
	want := []string{ids[0], ids[1], ids[2]}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want[i])
		}
	}

	if got, err := s.TasksByStatus(ctx); err != nil || got != nil {
		t.Errorf("no statuses should return nothing, got %v, %v", got, err)
	}
}

func TestEventStream(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tk := task.New("t", "p")
	if err := s.SaveTask(ctx, tk); err != nil {
		t.Fatal(err)
	}

	first, err := s.Append(ctx, tk.ID, "plan_created", map[string]any{"steps": 2})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := s.Append(ctx, tk.ID, "assistant_message", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, tk.ID, "assistant_message", nil); err != nil {
		t.Fatal(err)
	}

	events, err := s.EventsByTask(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].ID != first || events[0].Type != "plan_created" {
		t.Errorf("first event = %+v", events[0])
	}
	var payload struct {
		Steps int `json:"steps"`
	}
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil || payload.Steps != 2 {
		t.Errorf("payload round trip: %s (%v)", events[0].Payload, err)
	}
	// A nil payload stores as an empty object, never empty text.
	if string(events[2].Payload) != "{}" {
		t.Errorf("nil payload stored as %q", events[2].Payload)
	}

	byType, err := s.EventsByTaskAndType(ctx, tk.ID, "assistant_message")
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 2 {
		t.Errorf("typed events = %d, want 2", len(byType))
	}

	after, err := s.EventsAfter(ctx, tk.ID, first)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 || after[0].ID != second {
		t.Errorf("EventsAfter = %v", after)
	}

	if err := s.DeleteEvents(ctx, []int64{first, second}); err != nil {
		t.Fatal(err)
	}
	events, err = s.EventsByTask(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("events after delete = %d, want 1", len(events))
	}

	if err := s.DeleteEvents(ctx, nil); err != nil {
		t.Errorf("DeleteEvents(nil) = %v", err)
	}
}

func TestDeleteTaskRemovesStream(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tk := task.New("t", "p")
	if err := s.SaveTask(ctx, tk); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, tk.ID, "error", map[string]string{"error": "x"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTask(ctx, tk.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTask(ctx, tk.ID); err == nil {
		t.Error("task still present after delete")
	}
	events, err := s.EventsByTask(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("orphaned events remain: %d", len(events))
	}
}
