package engine

import "strings"

// ContextWindow describes how much conversation a model can carry.
type ContextWindow struct {
	MaxTokens     int // total context window
	ReserveTokens int // held back for the system prompt and the response
}

// Budget returns the token budget available to conversation messages.
func (w ContextWindow) Budget() int {
	return w.MaxTokens - w.ReserveTokens
}

// ModelContextWindow returns the context window for a specific model so the
// compactor can size the history to it. Matching is by substring; unknown
// models get a conservative default.
func ModelContextWindow(model string) ContextWindow {
	modelLower := strings.ToLower(model)

	switch {
	// Claude family (200k context)
	case strings.Contains(modelLower, "claude") || strings.Contains(modelLower, "sonnet") ||
		strings.Contains(modelLower, "opus") || strings.Contains(modelLower, "haiku"):
		return ContextWindow{MaxTokens: 200000, ReserveTokens: 8000}

	// Kimi K2 (200k context)
	case strings.Contains(modelLower, "kimi"):
		return ContextWindow{MaxTokens: 200000, ReserveTokens: 8000}

	// GPT-4o (128k context)
	case strings.Contains(modelLower, "gpt-4o"):
		return ContextWindow{MaxTokens: 128000, ReserveTokens: 6000}

	// DeepSeek (64k safe assumption across versions)
	case strings.Contains(modelLower, "deepseek"):
		return ContextWindow{MaxTokens: 64000, ReserveTokens: 4000}
	}

	return ContextWindow{MaxTokens: 128000, ReserveTokens: 6000}
}
