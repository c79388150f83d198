// Package task defines the task record the daemon schedules and the executor
// drives. It is a leaf package: everything else imports it.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusPlanning  Status = "planning"
	StatusExecuting Status = "executing"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// AgentType distinguishes top-level tasks from spawned sub-tasks.
type AgentType string

const (
	AgentMain AgentType = "main"
	AgentSub  AgentType = "sub"
)

// AgentConfig carries per-task overrides. Pointer fields mean "not set,
// use the default".
type AgentConfig struct {
	RetainMemory *bool  `json:"retain_memory,omitempty"`
	Model        string `json:"model,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
}

// Task is the unit of work the daemon queues, executes, retries, and
// persists alongside its event stream.
type Task struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Prompt         string      `json:"prompt"`
	Status         Status      `json:"status"`
	StatusMessage  string      `json:"status_message,omitempty"`
	WorkspaceDir   string      `json:"workspace_dir,omitempty"`
	Model          string      `json:"model,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	CurrentAttempt int         `json:"current_attempt"`
	MaxAttempts    int         `json:"max_attempts"`
	ParentTaskID   string      `json:"parent_task_id,omitempty"`
	AgentType      AgentType   `json:"agent_type,omitempty"`
	AgentConfig    AgentConfig `json:"agent_config,omitempty"`
	ResultSummary  string      `json:"result_summary,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// New creates a queued task with a fresh ID.
func New(title, prompt string) *Task {
	now := time.Now()
	return &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Prompt:      prompt,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
		MaxAttempts: 3,
		AgentType:   AgentMain,
	}
}

// NewSub creates a queued sub-task attached to a parent.
func NewSub(parentID, title, prompt string) *Task {
	t := New(title, prompt)
	t.ParentTaskID = parentID
	t.AgentType = AgentSub
	return t
}

// Touch updates the modification timestamp.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now()
}

// RetainMemory decides whether the finished conversation should be kept in
// the task memory index. Sub-tasks attached to a parent are ephemeral by
// default; an explicit AgentConfig.RetainMemory wins in either direction.
func (t *Task) RetainMemory() bool {
	if t.AgentConfig.RetainMemory != nil {
		return *t.AgentConfig.RetainMemory
	}
	if t.AgentType == AgentSub && t.ParentTaskID != "" {
		return false
	}
	return true
}
