package engine

import (
	"strings"
	"testing"
)

func TestSelectResultSummarySkipsPlaceholders(t *testing.T) {
	placeholders := []string{
		"Done.", "done", "Task complete.", "Task completed.",
		"All set.", "Completed.", "Finished.", "OK.",
		"I understand. Let me continue.",
		"  DONE.  ", // trimmed and case-insensitive
	}
	real := "The refactor is finished and all call sites were updated."

	for _, p := range placeholders {
		// Placeholder first, real candidate second.
		if got := SelectResultSummary(p, real); got != real {
			t.Errorf("SelectResultSummary(%q, real) = %q, want real summary", p, got)
		}
		// Placeholder in last position with nothing else.
		if got := SelectResultSummary("", p); got != "" {
			t.Errorf("SelectResultSummary(\"\", %q) = %q, want empty", p, got)
		}
	}
}

func TestSelectResultSummaryLengthBoundary(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		accepted  bool
	}{
		{"19 chars rejected", strings.Repeat("a", 19), false},
		{"20 chars accepted", strings.Repeat("a", 20), true},
		{"21 chars accepted", strings.Repeat("a", 21), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectResultSummary(tt.candidate)
			if tt.accepted && got != tt.candidate {
				t.Errorf("got %q, want candidate accepted", got)
			}
			if !tt.accepted && got != "" {
				t.Errorf("got %q, want empty", got)
			}
		})
	}
}

func TestSelectResultSummaryTruncation(t *testing.T) {
	got := SelectResultSummary(strings.Repeat("x", 5000))
	if len(got) != 4003 {
		t.Fatalf("len = %d, want 4003", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("summary does not end with ellipsis: %q", got[len(got)-10:])
	}
}

func TestSelectResultSummaryOrder(t *testing.T) {
	first := "First substantive answer with plenty of detail."
	second := "Second substantive answer with plenty of detail."
	if got := SelectResultSummary(first, second); got != first {
		t.Errorf("got %q, want first qualifying candidate", got)
	}
	if got := SelectResultSummary("short", second); got != second {
		t.Errorf("got %q, want second candidate after short first", got)
	}
}

func TestVerifyCompletionDirectAnswer(t *testing.T) {
	prompt := "Watch the talk and tell me: should I watch it or skip it?"
	evidence := []ToolCallRecord{{Name: "run_command"}}

	good := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput: "Skip it. The talk rehashes the 2023 version with no new material, and the demo fails on stage.",
		ToolCalls:   evidence,
	})
	if !good.Satisfied {
		t.Fatalf("reasoned recommendation rejected: %s", good.Reason)
	}

	bad := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput: "I've created the summary file.",
		ToolCalls:   evidence,
	})
	if bad.Satisfied {
		t.Fatal("artifact announcement accepted as a direct answer")
	}
	if bad.Reason != "missing direct answer" {
		t.Errorf("reason = %q, want missing direct answer", bad.Reason)
	}
}

func TestVerifyCompletionArtifactEvidence(t *testing.T) {
	prompt := "Create a summary.md file of the meeting notes"

	ok := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput:  "Wrote the meeting summary to summary.md covering all four agenda items.",
		FilesCreated: []string{"summary.md"},
		ToolCalls:    []ToolCallRecord{{Name: "write_file"}, {Name: "read_file"}},
	})
	if !ok.Satisfied {
		t.Fatalf("run with created file rejected: %s", ok.Reason)
	}

	missing := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput: "Here is a summary of the meeting notes: the team agreed to ship on Friday.",
		ToolCalls:   []ToolCallRecord{{Name: "read_file"}},
	})
	if missing.Satisfied {
		t.Fatal("run without created files accepted for a file prompt")
	}
	if missing.Reason != "missing artifact evidence" {
		t.Errorf("reason = %q, want missing artifact evidence", missing.Reason)
	}
}

func TestVerifyCompletionVerificationEvidence(t *testing.T) {
	prompt := "Analyze the benchmark results and recommend whether we should switch allocators"

	// Zero files created is fine when an evidence tool ran.
	ok := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput: "Switch: the new allocator wins every benchmark by 12-30% and the regression on tiny allocs is noise.",
		ToolCalls:   []ToolCallRecord{{Name: "read_file"}},
	})
	if !ok.Satisfied {
		t.Fatalf("evidence-backed recommendation rejected: %s", ok.Reason)
	}

	// Artifact-only tool usage does not count as gathered evidence.
	noEvidence := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput: "Switch: the new allocator wins every benchmark by 12-30% and the regression on tiny allocs is noise.",
		ToolCalls:   []ToolCallRecord{{Name: "write_file"}},
	})
	if noEvidence.Satisfied {
		t.Fatal("run with only artifact tools accepted for a verification prompt")
	}
	if !strings.Contains(noEvidence.Reason, "missing verification evidence") {
		t.Errorf("reason = %q, want missing verification evidence", noEvidence.Reason)
	}

	// Failed evidence calls do not count either.
	failedOnly := VerifyCompletion(prompt, CompletionEvidence{
		FinalOutput: "Switch: the new allocator wins every benchmark by 12-30% and the regression on tiny allocs is noise.",
		ToolCalls:   []ToolCallRecord{{Name: "read_file", IsError: true}},
	})
	if failedOnly.Satisfied {
		t.Fatal("run with only failed tool calls accepted")
	}
}

func TestVerifyCompletionPlainPrompt(t *testing.T) {
	// A prompt implying no contract completes unconditionally.
	res := VerifyCompletion("say hello", CompletionEvidence{FinalOutput: "Hello!"})
	if !res.Satisfied {
		t.Fatalf("plain prompt rejected: %s", res.Reason)
	}
}
