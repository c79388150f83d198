package task

import "testing"

func TestNewDefaults(t *testing.T) {
	tk := New("title", "prompt")
	if tk.ID == "" {
		t.Error("missing id")
	}
	if tk.Status != StatusQueued {
		t.Errorf("status = %s, want queued", tk.Status)
	}
	if tk.AgentType != AgentMain {
		t.Errorf("agent type = %s, want main", tk.AgentType)
	}
	if tk.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", tk.MaxAttempts)
	}

	sub := NewSub(tk.ID, "child", "child prompt")
	if sub.ParentTaskID != tk.ID || sub.AgentType != AgentSub {
		t.Errorf("sub task wiring: parent=%q type=%s", sub.ParentTaskID, sub.AgentType)
	}
	if sub.ID == tk.ID {
		t.Error("sub task shares parent id")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []Status{StatusQueued, StatusPlanning, StatusExecuting, StatusPaused}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRetainMemory(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name string
		task *Task
		want bool
	}{
		{"main default", New("t", "p"), true},
		{"sub with parent default", NewSub("parent-1", "t", "p"), false},
		{"sub without parent", &Task{AgentType: AgentSub}, true},
		{"sub explicit retain", func() *Task {
			tk := NewSub("parent-1", "t", "p")
			tk.AgentConfig.RetainMemory = &yes
			return tk
		}(), true},
		{"main explicit discard", func() *Task {
			tk := New("t", "p")
			tk.AgentConfig.RetainMemory = &no
			return tk
		}(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.RetainMemory(); got != tt.want {
				t.Errorf("RetainMemory() = %v, want %v", got, tt.want)
			}
		})
	}
}
