// Package engine drives one task through plan and step execution.
// This file gates task completion: a run that claims success must show the
// evidence its prompt implies, and the stored summary must say something.

package engine

import (
	"regexp"
	"strings"
)

// ToolCallRecord is what the executor remembers about each dispatched call,
// enough for the verifier to judge whether real evidence was gathered.
type ToolCallRecord struct {
	Name    string `json:"name"`
	IsError bool   `json:"is_error"`
}

// CompletionEvidence is everything the verifier sees about a finished run.
type CompletionEvidence struct {
	FinalOutput  string
	FilesCreated []string
	ToolCalls    []ToolCallRecord
}

// ContractResult is the verifier's decision. A violated contract is a
// decision, not an error: the caller marks the task failed with the reason.
type ContractResult struct {
	Satisfied bool
	Reason    string
}

var (
	directAnswerPrompt = regexp.MustCompile(`(?i)\b(should (i|we)|recommend|recommendation|is it worth|worth (watching|reading|buying|it)|yes or no|which (one|option) (should|would)|do you think)\b`)
	fileArtifactPrompt = regexp.MustCompile(`(?i)\b(create|write|save|generate|produce)\b[^.\n]{0,60}\b(file|report|document|summary file|notes?|csv|markdown)\b|\.(md|txt|json|csv)\b`)
	verificationPrompt = regexp.MustCompile(`(?i)\b(watch|read|listen to|transcribe|analyze|analyse|verify|check|research|look up|fetch|review|investigate|inspect|compare|based on the)\b`)

	// A bare artifact announcement is not a direct answer to a question.
	artifactOnlyOutput = regexp.MustCompile(`(?i)^(i('ve| have)? |the task is |)?(created|wrote|saved|generated|done creating)\b[^\n]*$`)
)

// artifactTools write or remove workspace files; their results do not count
// as gathered evidence.
var artifactTools = map[string]bool{
	"write_file":  true,
	"delete_file": true,
}

// VerifyCompletion runs the completion contract checks against the prompt's
// implied requirements. Checks are independent; the first violated one wins.
// A prompt that implies none of them completes unconditionally.
func VerifyCompletion(prompt string, ev CompletionEvidence) ContractResult {
	if directAnswerPrompt.MatchString(prompt) && !containsDirectAnswer(ev.FinalOutput) {
		return ContractResult{Reason: "missing direct answer"}
	}
	if fileArtifactPrompt.MatchString(prompt) && len(ev.FilesCreated) == 0 {
		return ContractResult{Reason: "missing artifact evidence"}
	}
	if verificationPrompt.MatchString(prompt) && !hasEvidenceToolCall(ev.ToolCalls) {
		return ContractResult{Reason: "missing verification evidence"}
	}
	return ContractResult{Satisfied: true}
}

// containsDirectAnswer judges whether the final output actually answers a
// question rather than pointing at a file or trailing off.
func containsDirectAnswer(output string) bool {
	trimmed := strings.TrimSpace(output)
	if len(trimmed) < 40 {
		return false
	}
	if artifactOnlyOutput.MatchString(trimmed) {
		return false
	}
	return true
}

// hasEvidenceToolCall reports whether at least one successful call went to a
// tool that gathers information rather than writing artifacts.
func hasEvidenceToolCall(calls []ToolCallRecord) bool {
	for _, c := range calls {
		if !c.IsError && !artifactTools[c.Name] {
			return true
		}
	}
	return false
}

// placeholderSummaries are filler phrases that carry no information; matching
// is case-insensitive against the trimmed candidate.
var placeholderSummaries = map[string]bool{
	"done.":                          true,
	"done":                           true,
	"task complete.":                 true,
	"task completed.":                true,
	"all set.":                       true,
	"completed.":                     true,
	"finished.":                      true,
	"ok.":                            true,
	"i understand. let me continue.": true,
}

const (
	minSummaryLength = 20
	maxSummaryLength = 4000
)

// SelectResultSummary picks the first candidate that says something: trimmed,
// not a known placeholder, and at least minSummaryLength chars. Oversized
// summaries are cut at maxSummaryLength with an ellipsis. Returns "" when no
// candidate qualifies.
func SelectResultSummary(candidates ...string) string {
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		if placeholderSummaries[strings.ToLower(trimmed)] {
			continue
		}
		if len(trimmed) < minSummaryLength {
			continue
		}
		if len(trimmed) > maxSummaryLength {
			return trimmed[:maxSummaryLength] + "..."
		}
		return trimmed
	}
	return ""
}
