package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesutfelat/cowork/internal/task"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the content block union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a message body. Which fields are meaningful
// depends on Type: text blocks carry Text, tool_use blocks carry ID/Name/Input,
// tool_result blocks carry ToolUseID/Content/IsError. Kept as a flat struct so
// conversation snapshots round-trip through JSON without custom unmarshalers.
type ContentBlock struct {
	Type      BlockType      `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool invocation block as requested by the model.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds the result block answering a tool_use block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is one turn of the provider-agnostic conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserMessage builds a single-text-block user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// AssistantMessage builds an assistant message from the given blocks.
func AssistantMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// Validate checks structural requirements providers enforce on the wire.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	for _, b := range m.Content {
		switch b.Type {
		case BlockText, BlockToolUse, BlockToolResult:
		default:
			return fmt.Errorf("invalid content block type: %s", b.Type)
		}
		if b.Type == BlockToolUse && (b.ID == "" || b.Name == "") {
			return fmt.Errorf("tool_use block requires id and name")
		}
		if b.Type == BlockToolResult && b.ToolUseID == "" {
			return fmt.Errorf("tool_result block requires tool_use_id")
		}
	}
	return nil
}

// Text returns the concatenation of all text blocks in the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks in wire order.
func (m Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// HasToolResult reports whether any block is a tool_result.
func (m Message) HasToolResult() bool {
	for _, b := range m.Content {
		if b.Type == BlockToolResult {
			return true
		}
	}
	return false
}

// StopReason is the provider's normalized reason for ending a turn.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// Usage holds token accounting returned by providers.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// MessageRequest is one normalized chat call.
type MessageRequest struct {
	Model     string
	MaxTokens int
	System    string
	Tools     []ToolSchema
	Messages  []Message
}

// MessageResponse is the normalized result of one chat call.
type MessageResponse struct {
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Text returns the concatenated text blocks of the response.
func (r *MessageResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks of the response in wire order.
func (r *MessageResponse) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// IsEmpty reports whether the response carries no usable content: no tool
// calls and no non-whitespace text.
func (r *MessageResponse) IsEmpty() bool {
	for _, b := range r.Content {
		switch b.Type {
		case BlockToolUse:
			return false
		case BlockText:
			if strings.TrimSpace(b.Text) != "" {
				return false
			}
		}
	}
	return true
}

// Provider abstracts the chosen SDK (Anthropic, OpenAI-compatible, etc.).
type Provider interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// ToolSchema is the JSON schema the provider expects for function calling.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string // raw JSON string
}

// ToolRunner is the tool surface the executor drives. The concrete registry
// lives in internal/tools; the executor only needs schemas, dispatch, and
// teardown.
type ToolRunner interface {
	Schemas() []ToolSchema
	Descriptions() string
	Execute(ctx context.Context, name string, input map[string]any) (string, error)
	Cleanup(ctx context.Context) error
}

// TaskHost is the daemon-side surface the executor reports into: event log
// writes, task record updates, completion, and transient-failure routing.
type TaskHost interface {
	LogEvent(ctx context.Context, taskID, kind string, payload any)
	UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, message string)
	UpdateTask(ctx context.Context, t *task.Task)
	CompleteTask(ctx context.Context, taskID, summary string)
	HandleTransientTaskFailure(ctx context.Context, taskID string, cause error) bool
}

// Event kinds written to the per-task event log.
const (
	EventPlanCreated          = "plan_created"
	EventStepStarted          = "step_started"
	EventStepCompleted        = "step_completed"
	EventToolCall             = "tool_call"
	EventToolResult           = "tool_result"
	EventToolError            = "tool_error"
	EventAssistantMessage     = "assistant_message"
	EventError                = "error"
	EventConversationSnapshot = "conversation_snapshot"
	EventStatusChanged        = "status_changed"
	EventRetryScheduled       = "retry_scheduled"
	EventFilesChanged         = "files_changed"
	EventTaskCompleted        = "task_completed"
)

// ExecutionResult is the standard JSON shape command tools return. The
// protocol layer and the completion verifier unmarshal it instead of parsing
// raw stdout, which keeps them decoupled from tool internals.
type ExecutionResult struct {
	Cmd             string `json:"cmd"`
	ExitCode        int    `json:"exit_code"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	TimedOut        bool   `json:"timed_out,omitempty"`
	Status          string `json:"status,omitempty"` // "ok", "failed", "unavailable"
	Reason          string `json:"reason,omitempty"`
	Termination     string `json:"termination,omitempty"` // see TerminationReason
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
}
