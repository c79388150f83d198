// Package engine drives one task through plan and step execution.
// This file contains token counting interfaces and implementations.

package engine

import (
	"fmt"
	"strings"
)

// Tokenizer provides token counting for text.
// Different models use different tokenization schemes, so the model name is required.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text for the specified model.
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens provides a rough token count estimation.
// Uses a simple heuristic: ~4 characters per token for English/code.
// This is approximate but useful for compaction decisions and logging.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))

	// Whitespace-heavy text has fewer tokens per character.
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	estimated := (charCount / 4) + (whitespaceCount / 6)

	// Minimum of 1 token for non-empty text
	if estimated < 1 {
		return 1
	}

	return estimated
}

// DefaultTokenizer uses estimation as a fallback when no specific tokenizer is available.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer using estimation.
func (t DefaultTokenizer) CountTokens(text string, model string) (int, error) {
	return EstimateTokens(text), nil
}

// CountTokensForMessages counts tokens for a slice of messages.
// It includes per-block and per-message formatting overhead in the count.
func CountTokensForMessages(tokenizer Tokenizer, messages []Message, model string) (int, error) {
	total := 0

	for _, msg := range messages {
		roleTokens, err := tokenizer.CountTokens(string(msg.Role), model)
		if err != nil {
			return 0, fmt.Errorf("failed to count role tokens: %w", err)
		}
		total += roleTokens

		for _, block := range msg.Content {
			switch block.Type {
			case BlockText:
				n, err := tokenizer.CountTokens(block.Text, model)
				if err != nil {
					return 0, fmt.Errorf("failed to count text tokens: %w", err)
				}
				total += n
			case BlockToolUse:
				n, err := tokenizer.CountTokens(block.Name, model)
				if err != nil {
					return 0, fmt.Errorf("failed to count tool name tokens: %w", err)
				}
				total += n
				argsStr := fmt.Sprintf("%v", block.Input)
				n, err = tokenizer.CountTokens(argsStr, model)
				if err != nil {
					return 0, fmt.Errorf("failed to count tool input tokens: %w", err)
				}
				total += n
			case BlockToolResult:
				n, err := tokenizer.CountTokens(block.Content, model)
				if err != nil {
					return 0, fmt.Errorf("failed to count tool result tokens: %w", err)
				}
				total += n
			}
			// Per-block framing overhead
			total += 3
		}

		// Per-message formatting overhead
		total += 4
	}

	return total, nil
}

// GetTokenizerForModel returns an appropriate tokenizer for the given model.
// Currently returns DefaultTokenizer (estimation) for every model; the seam
// exists so provider-specific tokenizers can slot in without touching callers.
func GetTokenizerForModel(model string) Tokenizer {
	return DefaultTokenizer{}
}
