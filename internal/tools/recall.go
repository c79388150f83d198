package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesutfelat/cowork/internal/memory"
)

const defaultRecallLimit = 5

// NewRecallTasksTool searches the retained-task memory index so the model
// can pull in outcomes from earlier tasks in the same workspace.
func NewRecallTasksTool(mem *memory.Index) Tool {
	return Tool{
		Name:        "recall_tasks",
		Description: "Search previously completed tasks in this workspace by keyword. Returns task titles, prompts, and result summaries, most relevant first.",
		SchemaJSON:  `{"type":"object","properties":{"query":{"type":"string","description":"Keywords to search for"},"limit":{"type":"integer","minimum":1,"maximum":20,"description":"Maximum results to return (default: 5)"}},"required":["query"]}`,
		Metadata:    Metadata{Category: "memory", Tags: []string{"read-only", "idempotent"}},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			query, ok := args["query"].(string)
			if !ok || query == "" {
				return "", fmt.Errorf("query must be a non-empty string")
			}
			limit := defaultRecallLimit
			if v, ok := args["limit"].(float64); ok && v > 0 {
				limit = int(v)
			}

			results, err := mem.Search(query, limit)
			if err != nil {
				return "", fmt.Errorf("memory search failed: %w", err)
			}

			type hit struct {
				TaskID      string  `json:"task_id"`
				Title       string  `json:"title"`
				Prompt      string  `json:"prompt"`
				Summary     string  `json:"summary"`
				Status      string  `json:"status"`
				CompletedAt string  `json:"completed_at,omitempty"`
				Score       float64 `json:"score"`
			}
			hits := make([]hit, 0, len(results))
			for _, r := range results {
				h := hit{
					TaskID:  r.Entry.TaskID,
					Title:   r.Entry.Title,
					Prompt:  r.Entry.Prompt,
					Summary: r.Entry.Summary,
					Status:  r.Entry.Status,
					Score:   r.Score,
				}
				if !r.Entry.CompletedAt.IsZero() {
					h.CompletedAt = r.Entry.CompletedAt.Format("2006-01-02")
				}
				hits = append(hits, h)
			}

			out, err := json.Marshal(map[string]any{
				"query":   query,
				"results": hits,
			})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
