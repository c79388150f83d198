// Package protocol defines the NDJSON command and event types spoken over
// the daemon's stdio bridge. Commands flow in, one JSON object per line;
// events flow out the same way.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CommandType enumerates all supported client -> daemon commands.
type CommandType string

const (
	CommandCreateTask  CommandType = "create_task"
	CommandUserMessage CommandType = "user_message"
	CommandCancelTask  CommandType = "cancel_task"
	CommandPauseTask   CommandType = "pause_task"
	CommandResumeTask  CommandType = "resume_task"
	CommandListTasks   CommandType = "list_tasks"
	CommandGetConfig   CommandType = "get_config"
	CommandSaveConfig  CommandType = "save_config"
)

// Command is a marker interface implemented by all protocol commands.
type Command interface {
	GetType() CommandType
}

// CreateTaskCommand enqueues a new task.
type CreateTaskCommand struct {
	Type         CommandType    `json:"type"`
	Title        string         `json:"title"`
	Prompt       string         `json:"prompt"`
	WorkspaceDir string         `json:"workspace_dir,omitempty"`
	Model        string         `json:"model,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// GetType implements Command.
func (c CreateTaskCommand) GetType() CommandType { return CommandCreateTask }

// UserMessageCommand answers a question or adds a follow-up to a task.
type UserMessageCommand struct {
	Type    CommandType `json:"type"`
	TaskID  string      `json:"task_id"`
	Message string      `json:"message"`
}

// GetType implements Command.
func (c UserMessageCommand) GetType() CommandType { return CommandUserMessage }

// CancelTaskCommand stops a task cooperatively.
type CancelTaskCommand struct {
	Type   CommandType `json:"type"`
	TaskID string      `json:"task_id"`
}

// GetType implements Command.
func (c CancelTaskCommand) GetType() CommandType { return CommandCancelTask }

// PauseTaskCommand holds a running task between steps.
type PauseTaskCommand struct {
	Type   CommandType `json:"type"`
	TaskID string      `json:"task_id"`
}

// GetType implements Command.
func (c PauseTaskCommand) GetType() CommandType { return CommandPauseTask }

// ResumeTaskCommand reopens a paused task.
type ResumeTaskCommand struct {
	Type   CommandType `json:"type"`
	TaskID string      `json:"task_id"`
}

// GetType implements Command.
func (c ResumeTaskCommand) GetType() CommandType { return CommandResumeTask }

// ListTasksCommand requests the current task table.
type ListTasksCommand struct {
	Type CommandType `json:"type"`
}

// GetType implements Command.
func (c ListTasksCommand) GetType() CommandType { return CommandListTasks }

// GetConfigCommand requests the persisted daemon configuration.
type GetConfigCommand struct {
	Type CommandType `json:"type"`
}

// GetType implements Command.
func (c GetConfigCommand) GetType() CommandType { return CommandGetConfig }

// SaveConfigCommand persists daemon configuration.
type SaveConfigCommand struct {
	Type   CommandType       `json:"type"`
	Config map[string]string `json:"config"`
}

// GetType implements Command.
func (c SaveConfigCommand) GetType() CommandType { return CommandSaveConfig }

type rawCommand struct {
	Type CommandType `json:"type"`
}

// DecodeCommand converts raw JSON into a strongly typed command.
func DecodeCommand(data []byte) (Command, error) {
	var base rawCommand
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch base.Type {
	case CommandCreateTask:
		var cmd CreateTaskCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode create_task: %w", err)
		}
		if cmd.Prompt == "" {
			return nil, errors.New("create_task requires prompt")
		}
		return cmd, nil
	case CommandUserMessage:
		var cmd UserMessageCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode user_message: %w", err)
		}
		if cmd.TaskID == "" {
			return nil, errors.New("user_message requires task_id")
		}
		if cmd.Message == "" {
			return nil, errors.New("user_message requires message")
		}
		return cmd, nil
	case CommandCancelTask:
		var cmd CancelTaskCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode cancel_task: %w", err)
		}
		if cmd.TaskID == "" {
			return nil, errors.New("cancel_task requires task_id")
		}
		return cmd, nil
	case CommandPauseTask:
		var cmd PauseTaskCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode pause_task: %w", err)
		}
		if cmd.TaskID == "" {
			return nil, errors.New("pause_task requires task_id")
		}
		return cmd, nil
	case CommandResumeTask:
		var cmd ResumeTaskCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode resume_task: %w", err)
		}
		if cmd.TaskID == "" {
			return nil, errors.New("resume_task requires task_id")
		}
		return cmd, nil
	case CommandListTasks:
		var cmd ListTasksCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode list_tasks: %w", err)
		}
		return cmd, nil
	case CommandGetConfig:
		var cmd GetConfigCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode get_config: %w", err)
		}
		return cmd, nil
	case CommandSaveConfig:
		var cmd SaveConfigCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode save_config: %w", err)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown command type: %s", base.Type)
	}
}

// EventType enumerates daemon -> client events.
type EventType string

const (
	EventTaskStatus     EventType = "task_status"
	EventPlan           EventType = "plan"
	EventStep           EventType = "step"
	EventAssistantText  EventType = "assistant_text"
	EventTool           EventType = "tool_event"
	EventToolOutput     EventType = "tool_output"
	EventTokenUsage     EventType = "token_usage"
	EventFilesChanged   EventType = "files_changed"
	EventQuestion       EventType = "question"
	EventRetryScheduled EventType = "retry_scheduled"
	EventDone           EventType = "done"
	EventError          EventType = "error"
	EventTaskList       EventType = "task_list"
	EventSetupRequired  EventType = "setup_required"
	EventConfigLoaded   EventType = "config_loaded"
)

// Event is implemented by every outgoing message.
type Event interface {
	isEvent()
	GetType() EventType
}

// MarshalEvent serializes an event into JSON for NDJSON transport.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

type eventBase struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id,omitempty"`
}

func (eventBase) isEvent() {}

// TaskStatusEvent reports a lifecycle transition.
type TaskStatusEvent struct {
	eventBase
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewTaskStatusEvent constructs a task_status event.
func NewTaskStatusEvent(taskID, status, message string) TaskStatusEvent {
	return TaskStatusEvent{
		eventBase: eventBase{Type: EventTaskStatus, TaskID: taskID},
		Status:    status,
		Message:   message,
	}
}

// GetType implements Event.
func (e TaskStatusEvent) GetType() EventType { return e.Type }

// PlanStepInfo is one plan step as the client sees it.
type PlanStepInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// PlanEvent carries the plan the executor produced.
type PlanEvent struct {
	eventBase
	Goal  string         `json:"goal,omitempty"`
	Steps []PlanStepInfo `json:"steps"`
}

// NewPlanEvent constructs a plan event.
func NewPlanEvent(taskID, goal string, steps []PlanStepInfo) PlanEvent {
	return PlanEvent{
		eventBase: eventBase{Type: EventPlan, TaskID: taskID},
		Goal:      goal,
		Steps:     steps,
	}
}

// GetType implements Event.
func (e PlanEvent) GetType() EventType { return e.Type }

// StepEvent tracks one plan step's lifecycle.
type StepEvent struct {
	eventBase
	StepID      string `json:"step_id"`
	Description string `json:"description,omitempty"`
	Phase       string `json:"phase"` // "started", "completed", "failed"
	Error       string `json:"error,omitempty"`
}

// NewStepEvent constructs a step event.
func NewStepEvent(taskID, stepID, description, phase, errMsg string) StepEvent {
	return StepEvent{
		eventBase:   eventBase{Type: EventStep, TaskID: taskID},
		StepID:      stepID,
		Description: description,
		Phase:       phase,
		Error:       errMsg,
	}
}

// GetType implements Event.
func (e StepEvent) GetType() EventType { return e.Type }

// AssistantTextEvent streams assistant text back to the client.
type AssistantTextEvent struct {
	eventBase
	Content string `json:"content"`
}

// NewAssistantTextEvent constructs an assistant_text event.
func NewAssistantTextEvent(taskID, content string) AssistantTextEvent {
	return AssistantTextEvent{
		eventBase: eventBase{Type: EventAssistantText, TaskID: taskID},
		Content:   content,
	}
}

// GetType implements Event.
func (e AssistantTextEvent) GetType() EventType { return e.Type }

// ToolEvent tracks tool invocation lifecycle.
type ToolEvent struct {
	eventBase
	Tool    string `json:"tool"`
	Phase   string `json:"phase"` // "started", "completed", "failed", "skipped", "disabled"
	Success *bool  `json:"success,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewToolEvent constructs a tool_event message.
func NewToolEvent(taskID, tool, phase string, success *bool, details string) ToolEvent {
	return ToolEvent{
		eventBase: eventBase{Type: EventTool, TaskID: taskID},
		Tool:      tool,
		Phase:     phase,
		Success:   success,
		Details:   details,
	}
}

// GetType implements Event.
func (e ToolEvent) GetType() EventType { return e.Type }

// ToolOutputEvent carries (possibly truncated) tool output for display.
type ToolOutputEvent struct {
	eventBase
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

// NewToolOutputEvent constructs a tool_output event.
func NewToolOutputEvent(taskID, tool, output string) ToolOutputEvent {
	return ToolOutputEvent{
		eventBase: eventBase{Type: EventToolOutput, TaskID: taskID},
		Tool:      tool,
		Output:    output,
	}
}

// GetType implements Event.
func (e ToolOutputEvent) GetType() EventType { return e.Type }

// TokenUsageEvent reports cumulative run consumption.
type TokenUsageEvent struct {
	eventBase
	Iterations   int     `json:"iterations"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// NewTokenUsageEvent constructs a token_usage event.
func NewTokenUsageEvent(taskID string, iterations, inputTokens, outputTokens int, costUSD float64) TokenUsageEvent {
	return TokenUsageEvent{
		eventBase:    eventBase{Type: EventTokenUsage, TaskID: taskID},
		Iterations:   iterations,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      costUSD,
	}
}

// GetType implements Event.
func (e TokenUsageEvent) GetType() EventType { return e.Type }

// FilesChangedEvent communicates workspace file modifications.
type FilesChangedEvent struct {
	eventBase
	Created []string `json:"created,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// NewFilesChangedEvent constructs a files_changed event.
func NewFilesChangedEvent(taskID string, created, changed []string) FilesChangedEvent {
	return FilesChangedEvent{
		eventBase: eventBase{Type: EventFilesChanged, TaskID: taskID},
		Created:   created,
		Changed:   changed,
	}
}

// GetType implements Event.
func (e FilesChangedEvent) GetType() EventType { return e.Type }

// QuestionEvent surfaces an assistant question that pauses the task.
type QuestionEvent struct {
	eventBase
	Question string `json:"question"`
}

// NewQuestionEvent constructs a question event.
func NewQuestionEvent(taskID, question string) QuestionEvent {
	return QuestionEvent{
		eventBase: eventBase{Type: EventQuestion, TaskID: taskID},
		Question:  question,
	}
}

// GetType implements Event.
func (e QuestionEvent) GetType() EventType { return e.Type }

// RetryScheduledEvent reports a transient failure and the pending retry.
type RetryScheduledEvent struct {
	eventBase
	Attempt      int    `json:"attempt"`
	MaxAttempts  int    `json:"max_attempts"`
	DelaySeconds int    `json:"delay_seconds"`
	Reason       string `json:"reason"`
}

// NewRetryScheduledEvent constructs a retry_scheduled event.
func NewRetryScheduledEvent(taskID string, attempt, maxAttempts, delaySeconds int, reason string) RetryScheduledEvent {
	return RetryScheduledEvent{
		eventBase:    eventBase{Type: EventRetryScheduled, TaskID: taskID},
		Attempt:      attempt,
		MaxAttempts:  maxAttempts,
		DelaySeconds: delaySeconds,
		Reason:       reason,
	}
}

// GetType implements Event.
func (e RetryScheduledEvent) GetType() EventType { return e.Type }

// DoneEvent signals a terminal task state with its summary.
type DoneEvent struct {
	eventBase
	Status       string   `json:"status"`
	Summary      string   `json:"summary,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	FilesChanged []string `json:"files_changed,omitempty"`
}

// NewDoneEvent constructs a done event.
func NewDoneEvent(taskID, status, summary, reason string, files []string) DoneEvent {
	return DoneEvent{
		eventBase:    eventBase{Type: EventDone, TaskID: taskID},
		Status:       status,
		Summary:      summary,
		Reason:       reason,
		FilesChanged: files,
	}
}

// GetType implements Event.
func (e DoneEvent) GetType() EventType { return e.Type }

// ErrorEvent reports recoverable protocol or daemon issues.
type ErrorEvent struct {
	eventBase
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewErrorEvent constructs an error event.
func NewErrorEvent(taskID, message, kind, details string) ErrorEvent {
	return ErrorEvent{
		eventBase: eventBase{Type: EventError, TaskID: taskID},
		Message:   message,
		Kind:      kind,
		Details:   details,
	}
}

// GetType implements Event.
func (e ErrorEvent) GetType() EventType { return e.Type }

// TaskInfo is one row of the task table.
type TaskInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	CreatedAt     string `json:"created_at"`
	ResultSummary string `json:"result_summary,omitempty"`
}

// TaskListEvent answers list_tasks.
type TaskListEvent struct {
	eventBase
	Tasks []TaskInfo `json:"tasks"`
}

// NewTaskListEvent constructs a task_list event.
func NewTaskListEvent(tasks []TaskInfo) TaskListEvent {
	return TaskListEvent{
		eventBase: eventBase{Type: EventTaskList},
		Tasks:     tasks,
	}
}

// GetType implements Event.
func (e TaskListEvent) GetType() EventType { return e.Type }

// SetupRequiredEvent tells the client no configuration exists yet.
type SetupRequiredEvent struct {
	eventBase
}

// NewSetupRequiredEvent constructs a setup_required event.
func NewSetupRequiredEvent() SetupRequiredEvent {
	return SetupRequiredEvent{eventBase: eventBase{Type: EventSetupRequired}}
}

// GetType implements Event.
func (e SetupRequiredEvent) GetType() EventType { return e.Type }

// ConfigLoadedEvent answers get_config.
type ConfigLoadedEvent struct {
	eventBase
	Config map[string]string `json:"config"`
}

// NewConfigLoadedEvent constructs a config_loaded event.
func NewConfigLoadedEvent(cfg map[string]string) ConfigLoadedEvent {
	return ConfigLoadedEvent{
		eventBase: eventBase{Type: EventConfigLoaded},
		Config:    cfg,
	}
}

// GetType implements Event.
func (e ConfigLoadedEvent) GetType() EventType { return e.Type }
