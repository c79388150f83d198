package engine

import "sort"

// systemicFailureThreshold is how many consecutive systemic failures a tool
// may accumulate before it is disabled for the rest of the run.
const systemicFailureThreshold = 2

// ToolBreaker tracks per-tool failures and disables tools that keep breaking,
// so the model stops burning iterations on them. It is owned by a single
// executor and is not safe for concurrent use.
type ToolBreaker struct {
	threshold int
	failures  map[string]int    // consecutive systemic failures per tool
	disabled  map[string]bool   // one-way latch for the executor lifetime
	lastError map[string]string // last failure message per tool, for reporting
}

// NewToolBreaker returns a breaker with the default threshold.
func NewToolBreaker() *ToolBreaker {
	return &ToolBreaker{
		threshold: systemicFailureThreshold,
		failures:  make(map[string]int),
		disabled:  make(map[string]bool),
		lastError: make(map[string]string),
	}
}

// Allows reports whether the tool may still be dispatched.
func (b *ToolBreaker) Allows(name string) bool {
	return !b.disabled[name]
}

// RecordSuccess clears the tool's systemic failure streak. A disabled tool
// stays disabled: the latch never reopens within a run.
func (b *ToolBreaker) RecordSuccess(name string) {
	b.failures[name] = 0
}

// RecordFailure classifies the error and updates the breaker. It returns the
// failure class and whether this failure disabled the tool.
//
// Input-dependent failures (missing files, denied paths) do not move the
// counter: the tool works, the request was wrong. Non-retryable failures
// (quota, billing, rate limits) disable immediately. Everything else counts
// toward the consecutive-failure threshold.
func (b *ToolBreaker) RecordFailure(name string, err error) (FailureClass, bool) {
	class := ClassifyToolFailure(err)
	if err != nil {
		b.lastError[name] = err.Error()
	}

	switch class {
	case FailureInputDependent:
		return class, false
	case FailureNonRetryable:
		tripped := !b.disabled[name]
		b.disabled[name] = true
		return class, tripped
	default:
		b.failures[name]++
		if b.failures[name] >= b.threshold && !b.disabled[name] {
			b.disabled[name] = true
			return class, true
		}
		return class, false
	}
}

// DisabledTools returns the disabled tool names, sorted for stable output.
func (b *ToolBreaker) DisabledTools() []string {
	names := make([]string, 0, len(b.disabled))
	for name, off := range b.disabled {
		if off {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LastError returns the most recent failure message recorded for a tool.
func (b *ToolBreaker) LastError(name string) string {
	return b.lastError[name]
}
