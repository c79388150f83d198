package engine

import (
	"errors"
	"testing"
)

func TestBreakerSystemicThreshold(t *testing.T) {
	b := NewToolBreaker()
	boom := errors.New("connection refused by backend")

	class, tripped := b.RecordFailure("run_command", boom)
	if class != FailureSystemic || tripped {
		t.Fatalf("first failure: class=%s tripped=%v, want systemic/not tripped", class, tripped)
	}
	if !b.Allows("run_command") {
		t.Fatal("tool disabled after one systemic failure")
	}

	_, tripped = b.RecordFailure("run_command", boom)
	if !tripped {
		t.Fatal("second consecutive systemic failure did not trip the breaker")
	}
	if b.Allows("run_command") {
		t.Fatal("tool still allowed after trip")
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b := NewToolBreaker()
	boom := errors.New("unexpected EOF")

	b.RecordFailure("read_file", boom)
	b.RecordSuccess("read_file")
	_, tripped := b.RecordFailure("read_file", boom)
	if tripped {
		t.Fatal("breaker tripped although a success reset the streak")
	}
	if !b.Allows("read_file") {
		t.Fatal("tool disabled after interleaved success")
	}
}

func TestBreakerInputDependentIgnored(t *testing.T) {
	b := NewToolBreaker()

	for i := 0; i < 5; i++ {
		class, tripped := b.RecordFailure("read_file", errors.New("open foo: no such file or directory"))
		if class != FailureInputDependent {
			t.Fatalf("class = %s, want input_dependent", class)
		}
		if tripped {
			t.Fatal("input-dependent failure tripped the breaker")
		}
	}
	if !b.Allows("read_file") {
		t.Fatal("tool disabled by input-dependent failures")
	}
}

func TestBreakerNonRetryableDisablesImmediately(t *testing.T) {
	b := NewToolBreaker()

	class, tripped := b.RecordFailure("recall_tasks", errors.New("quota exceeded for project"))
	if class != FailureNonRetryable {
		t.Fatalf("class = %s, want non_retryable", class)
	}
	if !tripped {
		t.Fatal("non-retryable failure did not disable the tool")
	}
	if b.Allows("recall_tasks") {
		t.Fatal("tool still allowed after non-retryable failure")
	}
}

func TestBreakerLatchIsOneWay(t *testing.T) {
	b := NewToolBreaker()
	boom := errors.New("backend exploded")

	b.RecordFailure("run_command", boom)
	b.RecordFailure("run_command", boom)
	if b.Allows("run_command") {
		t.Fatal("breaker not open")
	}

	// A success must not reopen the latch.
	b.RecordSuccess("run_command")
	if b.Allows("run_command") {
		t.Fatal("success reopened a disabled tool")
	}

	got := b.DisabledTools()
	if len(got) != 1 || got[0] != "run_command" {
		t.Fatalf("DisabledTools = %v", got)
	}
}

func TestClassifyToolFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"nil", nil, FailureSystemic},
		{"missing file", errors.New("stat /x: no such file or directory"), FailureInputDependent},
		{"not found", errors.New("command not found: frobnicate"), FailureInputDependent},
		{"permission", errors.New("permission denied"), FailureInputDependent},
		{"escape", errors.New("path ../../etc is outside the workspace"), FailureInputDependent},
		{"directory", errors.New("src is a directory"), FailureInputDependent},
		{"validation", &ToolValidationError{ToolName: "read_file", Errors: []string{"path is required"}}, FailureInputDependent},
		{"quota", errors.New("monthly quota exhausted"), FailureNonRetryable},
		{"rate limit", errors.New("Rate Limit hit, slow down"), FailureNonRetryable},
		{"429", errors.New("HTTP 429 from upstream"), FailureNonRetryable},
		{"billing", errors.New("billing account suspended"), FailureNonRetryable},
		{"generic", errors.New("segfault in helper"), FailureSystemic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyToolFailure(tt.err); got != tt.want {
				t.Errorf("ClassifyToolFailure(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// A message carrying both input-dependent and non-retryable signals
	// classifies as input-dependent.
	err := errors.New("file not found while checking quota")
	if got := ClassifyToolFailure(err); got != FailureInputDependent {
		t.Errorf("got %s, want input_dependent to win", got)
	}
}
