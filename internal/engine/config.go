package engine

import "time"

// Loop bounds shared by step execution and follow-up messages.
const (
	// DefaultMaxStepIterations caps model calls within a single step loop.
	DefaultMaxStepIterations = 10
	// DefaultMaxEmptyResponses caps consecutive contentless model turns.
	DefaultMaxEmptyResponses = 3
	// DefaultLLMCallTimeout is the race deadline for one provider call.
	DefaultLLMCallTimeout = 2 * time.Minute
	// DefaultMaxOutputTokens is forwarded to providers per call.
	DefaultMaxOutputTokens = 8192
)

// continuationPlaceholder stands in for empty assistant turns so the
// conversation keeps a well-formed shape.
const continuationPlaceholder = "I understand. Let me continue."

// Config carries the executor knobs. Zero fields are filled with defaults at
// build time.
type Config struct {
	Model             string
	MaxOutputTokens   int
	MaxStepIterations int
	MaxEmptyResponses int
	LLMCallTimeout    time.Duration
	Limits            Limits
}

// DefaultConfig returns the standard executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxOutputTokens:   DefaultMaxOutputTokens,
		MaxStepIterations: DefaultMaxStepIterations,
		MaxEmptyResponses: DefaultMaxEmptyResponses,
		LLMCallTimeout:    DefaultLLMCallTimeout,
		Limits:            DefaultLimits(),
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.MaxStepIterations <= 0 {
		c.MaxStepIterations = DefaultMaxStepIterations
	}
	if c.MaxEmptyResponses <= 0 {
		c.MaxEmptyResponses = DefaultMaxEmptyResponses
	}
	if c.LLMCallTimeout <= 0 {
		c.LLMCallTimeout = DefaultLLMCallTimeout
	}
	return c
}
