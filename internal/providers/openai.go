package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/mesutfelat/cowork/internal/engine"
)

// OpenAIProvider implements engine.Provider by calling the OpenAI SDK
// directly. It also serves every OpenAI-compatible gateway (Kimi,
// DeepSeek, Groq, local servers) via a custom base URL.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI-backed provider.
func NewOpenAIProvider(apiKey, modelName, baseURL string) (*OpenAIProvider, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(config),
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// CreateMessage implements engine.Provider.
func (p *OpenAIProvider) CreateMessage(ctx context.Context, req engine.MessageRequest) (*engine.MessageResponse, error) {
	tools, err := toOpenAITools(req.Tools)
	if err != nil {
		return nil, err
	}

	apiReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.System, req.Messages),
	}
	if len(tools) > 0 {
		apiReq.Tools = tools
		apiReq.ToolChoice = "auto"
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		code, httpStatus := providerErrorMeta(err)
		return nil, engine.WrapProviderError(err, code, httpStatus)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from provider")
	}

	choice := resp.Choices[0]
	var content []engine.ContentBlock
	if choice.Message.Content != "" {
		content = append(content, engine.TextBlock(choice.Message.Content))
	}
	hasToolUse := false
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = make(map[string]any)
			}
		} else {
			args = make(map[string]any)
		}
		content = append(content, engine.ToolUseBlock(tc.ID, tc.Function.Name, args))
		hasToolUse = true
	}

	stopReason := engine.StopEndTurn
	switch {
	case hasToolUse || choice.FinishReason == openai.FinishReasonToolCalls:
		stopReason = engine.StopToolUse
	case choice.FinishReason == openai.FinishReasonLength:
		stopReason = engine.StopMaxTokens
	}

	return &engine.MessageResponse{
		Content:    content,
		StopReason: stopReason,
		Usage: engine.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// toOpenAIMessages flattens block-structured history into the OpenAI
// chat shape: tool_result blocks become role-"tool" messages keyed by
// tool call ID, and they must directly follow the assistant message
// that carried the calls, so they are emitted before any user text from
// the same engine message.
func toOpenAIMessages(system string, messages []engine.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		if msg.Role == engine.RoleAssistant {
			out = append(out, assistantToOpenAI(msg)...)
			continue
		}

		var text strings.Builder
		for _, b := range msg.Content {
			switch b.Type {
			case engine.BlockText:
				if text.Len() > 0 {
					text.WriteString("\n\n")
				}
				text.WriteString(b.Text)
			case engine.BlockToolResult:
				// OpenAI rejects null/empty tool content
				content := b.Content
				if content == "" {
					content = "{}"
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: b.ToolUseID,
					Content:    content,
				})
			}
		}
		if strings.TrimSpace(text.String()) != "" {
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: text.String(),
			})
		}
	}
	return out
}

func assistantToOpenAI(msg engine.Message) []openai.ChatCompletionMessage {
	var text strings.Builder
	var toolCalls []openai.ToolCall
	for _, b := range msg.Content {
		switch b.Type {
		case engine.BlockText:
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(b.Text)
		case engine.BlockToolUse:
			argsJSON, _ := json.Marshal(b.Input)
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: openai.FunctionCall{
					Name:      b.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}

	content := text.String()
	if content == "" {
		if len(toolCalls) == 0 {
			return nil
		}
		// a single space avoids null serialization on some gateways
		content = " "
	}
	return []openai.ChatCompletionMessage{{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}}
}

func toOpenAITools(schemas []engine.ToolSchema) ([]openai.Tool, error) {
	var tools []openai.Tool
	for _, ts := range schemas {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schemaObj,
			},
		})
	}
	return tools, nil
}

// providerErrorMeta pulls a network-level error code and an HTTP status
// out of an SDK error, for transient-failure classification upstream.
func providerErrorMeta(err error) (string, int) {
	if err == nil {
		return "", 0
	}
	errStr := err.Error()
	lower := strings.ToLower(errStr)

	var code string
	switch {
	case strings.Contains(lower, "connection reset"):
		code = "ECONNRESET"
	case strings.Contains(lower, "connection refused"):
		code = "ECONNREFUSED"
	case strings.Contains(lower, "no such host"):
		code = "ENOTFOUND"
	case strings.Contains(lower, "i/o timeout") || errors.Is(err, context.DeadlineExceeded):
		code = "ETIMEDOUT"
	}

	var httpStatus int
	switch {
	case strings.Contains(errStr, "429"):
		httpStatus = http.StatusTooManyRequests
	case strings.Contains(errStr, "500"):
		httpStatus = http.StatusInternalServerError
	case strings.Contains(errStr, "502"):
		httpStatus = http.StatusBadGateway
	case strings.Contains(errStr, "503"):
		httpStatus = http.StatusServiceUnavailable
	case strings.Contains(errStr, "504"):
		httpStatus = http.StatusGatewayTimeout
	case strings.Contains(errStr, "401"):
		httpStatus = http.StatusUnauthorized
	case strings.Contains(errStr, "403"):
		httpStatus = http.StatusForbidden
	case strings.Contains(errStr, "402"):
		httpStatus = http.StatusPaymentRequired
	case strings.Contains(errStr, "400"):
		httpStatus = http.StatusBadRequest
	}

	return code, httpStatus
}
