package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PlanStepStatus represents the status of a plan step.
type PlanStepStatus string

const (
	StepPending    PlanStepStatus = "pending"
	StepInProgress PlanStepStatus = "in_progress"
	StepCompleted  PlanStepStatus = "completed"
	StepFailed     PlanStepStatus = "failed"
)

// PlanStep is a single unit of the execution plan.
type PlanStep struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Status      PlanStepStatus `json:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Plan is the ordered step list produced by the planning call.
type Plan struct {
	Description string     `json:"description"`
	Steps       []PlanStep `json:"steps"`
	Fallback    bool       `json:"fallback,omitempty"` // true when built without a parsable model plan
	CreatedAt   time.Time  `json:"created_at"`
}

// NextPending returns the next pending step, or nil when all steps are done.
func (p *Plan) NextPending() *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			return &p.Steps[i]
		}
	}
	return nil
}

// MarkInProgress transitions a step to in_progress and stamps its start time.
func (p *Plan) MarkInProgress(stepID string) error {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			now := time.Now()
			p.Steps[i].Status = StepInProgress
			p.Steps[i].StartedAt = &now
			return nil
		}
	}
	return fmt.Errorf("step not found: %s", stepID)
}

// MarkCompleted transitions a step to completed and stamps its end time.
func (p *Plan) MarkCompleted(stepID string) error {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			now := time.Now()
			p.Steps[i].Status = StepCompleted
			p.Steps[i].CompletedAt = &now
			return nil
		}
	}
	return fmt.Errorf("step not found: %s", stepID)
}

// MarkFailed transitions a step to failed, recording the cause.
func (p *Plan) MarkFailed(stepID string, cause string) error {
	for i := range p.Steps {
		if p.Steps[i].ID == stepID {
			now := time.Now()
			p.Steps[i].Status = StepFailed
			p.Steps[i].CompletedAt = &now
			p.Steps[i].Error = cause
			return nil
		}
	}
	return fmt.Errorf("step not found: %s", stepID)
}

// AllDone reports whether no step is left pending or running.
func (p *Plan) AllDone() bool {
	for _, s := range p.Steps {
		if s.Status == StepPending || s.Status == StepInProgress {
			return false
		}
	}
	return true
}

// FormatForPrompt returns a compact representation for context injection so
// the model can track its own progress between steps.
func (p *Plan) FormatForPrompt() string {
	var sb strings.Builder

	sb.WriteString("[PLAN]\n")
	sb.WriteString(fmt.Sprintf("Goal: %s\n", p.Description))
	sb.WriteString("Steps:\n")
	for i, step := range p.Steps {
		var icon string
		switch step.Status {
		case StepCompleted:
			icon = "✓"
		case StepInProgress:
			icon = "→"
		case StepFailed:
			icon = "✗"
		default:
			icon = " "
		}

		desc := step.Description
		if len(desc) > 80 {
			desc = desc[:77] + "..."
		}
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, icon, desc))
	}
	sb.WriteString("[/PLAN]")

	return sb.String()
}

// planPayload is the JSON shape the planning prompt asks the model for.
type planPayload struct {
	Description string `json:"description"`
	Steps       []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Status      string `json:"status"`
	} `json:"steps"`
}

var planJSONBlockRegex = regexp.MustCompile("```json\\s*\\n([\\s\\S]*?)\\n```")

// ParsePlanResponse extracts the execution plan from free-form model output.
// It looks for a ```json fenced block first, then for the first balanced JSON
// object anywhere in the text. Callers convert failure into a fallback plan;
// planning never hard-fails.
func ParsePlanResponse(text string) (*Plan, error) {
	var jsonText string
	if matches := planJSONBlockRegex.FindStringSubmatch(text); len(matches) > 1 {
		jsonText = strings.TrimSpace(matches[1])
	} else if extracted, ok := extractFirstJSONObject(text); ok {
		jsonText = extracted
	}

	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found in planning response")
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if len(payload.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}

	plan := &Plan{
		Description: strings.TrimSpace(payload.Description),
		CreatedAt:   time.Now(),
	}
	if plan.Description == "" {
		plan.Description = "Execute the task"
	}
	for i, s := range payload.Steps {
		desc := strings.TrimSpace(s.Description)
		if desc == "" {
			return nil, fmt.Errorf("plan step %d has no description", i+1)
		}
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = fmt.Sprintf("step-%d", i+1)
		}
		plan.Steps = append(plan.Steps, PlanStep{
			ID:          id,
			Description: desc,
			Status:      StepPending,
		})
	}

	return plan, nil
}

// extractFirstJSONObject scans text to find the first JSON object (starting at
// '{'). It tolerates leading labels or prose before the payload; the decoder
// handles brace balancing inside string literals and escapes.
func extractFirstJSONObject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	start := strings.Index(trimmed, "{")
	if start == -1 {
		return "", false
	}

	decoder := json.NewDecoder(strings.NewReader(trimmed[start:]))
	decoder.UseNumber()

	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return "", false
	}

	return strings.TrimSpace(string(raw)), true
}

// FallbackPlan builds a single-step plan when the model did not produce a
// parsable one. The step description comes from the raw response, truncated,
// or from the task prompt when the response carried no text.
func FallbackPlan(rawResponse, taskPrompt string) *Plan {
	desc := strings.TrimSpace(rawResponse)
	if desc == "" {
		desc = strings.TrimSpace(taskPrompt)
	}
	if len(desc) > 500 {
		desc = desc[:500]
	}

	return &Plan{
		Description: "Execute the task",
		Steps: []PlanStep{{
			ID:          "step-1",
			Description: desc,
			Status:      StepPending,
		}},
		Fallback:  true,
		CreatedAt: time.Now(),
	}
}
