package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/mesutfelat/cowork/internal/engine"
)

// AnthropicProvider implements engine.Provider by calling the Anthropic
// SDK directly.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic-backed provider.
func NewAnthropicProvider(apiKey, modelName string) (*AnthropicProvider, error) {
	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// CreateMessage implements engine.Provider.
func (p *AnthropicProvider) CreateMessage(ctx context.Context, req engine.MessageRequest) (*engine.MessageResponse, error) {
	toolDefs, err := toAnthropicTools(req.Tools)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temperature := float32(0.1)

	apiReq := anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		Messages:    toAnthropicMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if req.System != "" {
		apiReq.MultiSystem = []anthropic.MessageSystemPart{{
			Type: "text",
			Text: req.System,
		}}
	}
	if len(toolDefs) > 0 {
		apiReq.Tools = toolDefs
	}

	resp, err := p.client.CreateMessages(ctx, apiReq)
	if err != nil {
		code, httpStatus := providerErrorMeta(err)
		return nil, engine.WrapProviderError(err, code, httpStatus)
	}

	var content []engine.ContentBlock
	hasToolUse := false
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				content = append(content, engine.TextBlock(*block.Text))
			}
		case "tool_use":
			if block.MessageContentToolUse != nil && block.ID != "" && block.Name != "" {
				var args map[string]any
				if len(block.Input) > 0 {
					if err := json.Unmarshal(block.Input, &args); err != nil {
						args = make(map[string]any)
					}
				} else {
					args = make(map[string]any)
				}
				content = append(content, engine.ToolUseBlock(block.ID, block.Name, args))
				hasToolUse = true
			}
		}
	}

	return &engine.MessageResponse{
		Content:    content,
		StopReason: mapStopReason(string(resp.StopReason), hasToolUse),
		Usage: engine.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// toAnthropicMessages converts conversation history to wire format.
// Consecutive same-role messages are folded together: the API rejects
// them, and the engine legitimately produces runs of assistant messages
// (placeholder continuations, legacy-restored history).
func toAnthropicMessages(messages []engine.Message) []anthropic.Message {
	var out []anthropic.Message
	for _, msg := range messages {
		role := anthropic.RoleUser
		if msg.Role == engine.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		content := toAnthropicBlocks(msg.Content)
		if len(content) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, content...)
			continue
		}
		out = append(out, anthropic.Message{Role: role, Content: content})
	}
	return out
}

func toAnthropicBlocks(blocks []engine.ContentBlock) []anthropic.MessageContent {
	var out []anthropic.MessageContent
	for _, b := range blocks {
		switch b.Type {
		case engine.BlockText:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			out = append(out, anthropic.NewTextMessageContent(b.Text))
		case engine.BlockToolUse:
			argsJSON, _ := json.Marshal(b.Input)
			out = append(out, anthropic.NewToolUseMessageContent(b.ID, b.Name, json.RawMessage(argsJSON)))
		case engine.BlockToolResult:
			// Anthropic may reject empty content
			content := b.Content
			if content == "" {
				content = "{}"
			}
			out = append(out, anthropic.NewToolResultMessageContent(b.ToolUseID, content, b.IsError))
		}
	}
	return out
}

func toAnthropicTools(schemas []engine.ToolSchema) ([]anthropic.ToolDefinition, error) {
	var defs []anthropic.ToolDefinition
	for _, ts := range schemas {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		defs = append(defs, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schemaObj,
		})
	}
	return defs, nil
}

func mapStopReason(raw string, hasToolUse bool) engine.StopReason {
	switch raw {
	case "end_turn":
		return engine.StopEndTurn
	case "tool_use":
		return engine.StopToolUse
	case "max_tokens":
		return engine.StopMaxTokens
	case "stop_sequence":
		return engine.StopStopSequence
	}
	if hasToolUse {
		return engine.StopToolUse
	}
	return engine.StopEndTurn
}
