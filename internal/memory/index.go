// Package memory keeps a searchable index of retained completed tasks so the
// recall_tasks tool can surface what the agent has done before.
package memory

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mesutfelat/cowork/internal/task"
)

// Entry is one retained task in the index.
type Entry struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	Prompt      string    `json:"prompt"`
	Summary     string    `json:"summary"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
}

// Result is one search hit.
type Result struct {
	Entry Entry
	Score float64
}

// Index wraps a bleve index over retained task entries.
type Index struct {
	index bleve.Index
	path  string
}

// Open creates or opens the index at path. A corrupted index is deleted and
// recreated rather than failing the daemon.
func Open(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create memory index: %w", err)
		}
		log.Println("📚 task memory index created")
	} else if err != nil {
		log.Printf("⚠️  task memory index appears corrupted (%v), recreating", err)
		if index != nil {
			index.Close()
		}
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("failed to remove corrupted memory index: %w", rmErr)
		}
		index, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate memory index: %w", err)
		}
		log.Println("✅ task memory index recreated")
	}

	return &Index{index: index, path: path}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	entryMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	entryMapping.AddFieldMappingsAt("task_id", idField)

	statusField := bleve.NewTextFieldMapping()
	statusField.Analyzer = keyword.Name
	statusField.Store = true
	entryMapping.AddFieldMappingsAt("status", statusField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	entryMapping.AddFieldMappingsAt("title", textField)
	entryMapping.AddFieldMappingsAt("prompt", textField)
	entryMapping.AddFieldMappingsAt("summary", textField)

	indexMapping.DefaultMapping = entryMapping
	return indexMapping
}

// IndexTask stores a finished task. Callers gate this on Task.RetainMemory.
func (m *Index) IndexTask(t *task.Task) error {
	entry := Entry{
		TaskID:      t.ID,
		Title:       t.Title,
		Prompt:      t.Prompt,
		Summary:     t.ResultSummary,
		Status:      string(t.Status),
		CompletedAt: t.UpdatedAt,
	}
	if err := m.index.Index(t.ID, entry); err != nil {
		return fmt.Errorf("failed to index task %s: %w", t.ID, err)
	}
	return nil
}

// Search matches the query against title, prompt, and summary.
func (m *Index) Search(queryText string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	var q query.Query = bleve.NewMatchQuery(queryText)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"task_id", "title", "prompt", "summary", "status", "completed_at"}

	res, err := m.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		entry := Entry{TaskID: hit.ID}
		if v, ok := hit.Fields["title"].(string); ok {
			entry.Title = v
		}
		if v, ok := hit.Fields["prompt"].(string); ok {
			entry.Prompt = v
		}
		if v, ok := hit.Fields["summary"].(string); ok {
			entry.Summary = v
		}
		if v, ok := hit.Fields["status"].(string); ok {
			entry.Status = v
		}
		if v, ok := hit.Fields["completed_at"].(string); ok {
			if ts, perr := time.Parse(time.RFC3339, v); perr == nil {
				entry.CompletedAt = ts
			}
		}
		results = append(results, Result{Entry: entry, Score: hit.Score})
	}
	return results, nil
}

// Remove deletes a task from the index.
func (m *Index) Remove(taskID string) error {
	return m.index.Delete(taskID)
}

// Close releases the underlying index.
func (m *Index) Close() error {
	return m.index.Close()
}
