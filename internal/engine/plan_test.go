package engine

import (
	"strings"
	"testing"
)

func TestParsePlanResponseFencedBlock(t *testing.T) {
	text := "Here is my plan:\n```json\n{\"description\":\"Fix the bug\",\"steps\":[{\"id\":\"step-1\",\"description\":\"Reproduce it\"},{\"id\":\"step-2\",\"description\":\"Patch and test\"}]}\n```\nLet me know."

	plan, err := ParsePlanResponse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if plan.Description != "Fix the bug" {
		t.Errorf("description = %q", plan.Description)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Status != StepPending {
		t.Errorf("step status = %s, want pending", plan.Steps[0].Status)
	}
	if plan.Fallback {
		t.Error("parsed plan flagged as fallback")
	}
}

func TestParsePlanResponseBareJSON(t *testing.T) {
	text := `Plan: {"description":"Do it","steps":[{"description":"Only step"}]} trailing prose`

	plan, err := ParsePlanResponse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(plan.Steps))
	}
	// Missing step ids are filled in deterministically.
	if plan.Steps[0].ID != "step-1" {
		t.Errorf("step id = %q, want step-1", plan.Steps[0].ID)
	}
}

func TestParsePlanResponseBracesInStrings(t *testing.T) {
	text := `{"description":"Tricky {braces}","steps":[{"description":"Handle \"quoted } brace\""}]}`

	plan, err := ParsePlanResponse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if plan.Description != "Tricky {braces}" {
		t.Errorf("description = %q", plan.Description)
	}
}

func TestParsePlanResponseFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no json", "I'll just start working on it."},
		{"empty", ""},
		{"zero steps", `{"description":"idle","steps":[]}`},
		{"step without description", `{"steps":[{"id":"a","description":"  "}]}`},
		{"broken json", "```json\n{\"steps\": [\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePlanResponse(tt.text); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestFallbackPlan(t *testing.T) {
	plan := FallbackPlan("just wing it", "original prompt")
	if !plan.Fallback {
		t.Error("fallback flag not set")
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(plan.Steps))
	}
	if plan.Steps[0].Description != "just wing it" {
		t.Errorf("description = %q", plan.Steps[0].Description)
	}

	// Empty response falls back to the task prompt.
	plan = FallbackPlan("  ", "original prompt")
	if plan.Steps[0].Description != "original prompt" {
		t.Errorf("description = %q, want task prompt", plan.Steps[0].Description)
	}

	// Oversized responses are cut.
	plan = FallbackPlan(strings.Repeat("z", 600), "p")
	if len(plan.Steps[0].Description) != 500 {
		t.Errorf("description length = %d, want 500", len(plan.Steps[0].Description))
	}
}

func TestPlanStepTransitions(t *testing.T) {
	plan := &Plan{Steps: []PlanStep{
		{ID: "a", Status: StepPending},
		{ID: "b", Status: StepPending},
	}}

	if err := plan.MarkInProgress("a"); err != nil {
		t.Fatal(err)
	}
	if plan.AllDone() {
		t.Error("AllDone with a step in progress")
	}
	if err := plan.MarkCompleted("a"); err != nil {
		t.Fatal(err)
	}
	if err := plan.MarkFailed("b", "boom"); err != nil {
		t.Fatal(err)
	}
	if !plan.AllDone() {
		t.Error("AllDone false after all steps settled")
	}
	if plan.Steps[1].Error != "boom" {
		t.Errorf("error = %q", plan.Steps[1].Error)
	}
	if err := plan.MarkCompleted("nope"); err == nil {
		t.Error("expected error for unknown step")
	}
}
