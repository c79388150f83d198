// Package engine drives one task through plan and step execution.
// This file contains error types and failure classification.

package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BudgetKind names the ceiling a run crossed.
type BudgetKind string

const (
	BudgetIterations BudgetKind = "iterations"
	BudgetTokens     BudgetKind = "tokens"
	BudgetCost       BudgetKind = "cost"
)

// BudgetExceededError is fatal for the run: the guardrail is checked before
// every model call and is never retried.
type BudgetExceededError struct {
	Kind  BudgetKind
	Value float64
	Limit float64
}

func (e *BudgetExceededError) Error() string {
	switch e.Kind {
	case BudgetCost:
		return fmt.Sprintf("budget exceeded: cost $%.4f over limit $%.4f", e.Value, e.Limit)
	case BudgetTokens:
		return fmt.Sprintf("budget exceeded: %d tokens over limit %d", int(e.Value), int(e.Limit))
	default:
		return fmt.Sprintf("budget exceeded: %d iterations over limit %d", int(e.Value), int(e.Limit))
	}
}

// IsBudgetExceeded checks whether err is a budget guardrail failure.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}

// TimeoutError marks an operation that lost the race against its deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// ProviderError wraps a failure returned by an LLM provider with the
// machine-readable bits the daemon's transient classifier needs.
type ProviderError struct {
	Code       string // network-level code, e.g. ECONNRESET, if known
	HTTPStatus int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider error (code=%s status=%d)", e.Code, e.HTTPStatus)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapProviderError attaches code/status metadata to a provider failure.
func WrapProviderError(err error, code string, httpStatus int) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Code: code, HTTPStatus: httpStatus, Message: err.Error(), Err: err}
}

// ToolValidationError indicates that tool arguments failed JSON schema validation.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %s validation failed: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

// FailureClass buckets a tool failure for the circuit breaker.
type FailureClass string

const (
	// FailureInputDependent means the model asked for something that does not
	// exist or is not permitted. The tool itself is healthy.
	FailureInputDependent FailureClass = "input_dependent"
	// FailureNonRetryable means quota or billing style failures that will not
	// clear on their own.
	FailureNonRetryable FailureClass = "non_retryable"
	// FailureSystemic is everything else: the tool may be broken.
	FailureSystemic FailureClass = "systemic"
)

// ClassifyToolFailure buckets a tool error. Input-dependent signals win over
// non-retryable ones, which win over the systemic default.
func ClassifyToolFailure(err error) FailureClass {
	if err == nil {
		return FailureSystemic
	}

	// Bad arguments are the model's fault, not the tool's.
	var ve *ToolValidationError
	if errors.As(err, &ve) {
		return FailureInputDependent
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "no such file") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "does not exist") ||
		strings.Contains(errStr, "enoent") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "invalid path") ||
		strings.Contains(errStr, "is a directory") ||
		strings.Contains(errStr, "outside the workspace") {
		return FailureInputDependent
	}

	if strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "billing") ||
		strings.Contains(errStr, "payment required") ||
		strings.Contains(errStr, "insufficient credit") {
		return FailureNonRetryable
	}

	return FailureSystemic
}
