// Package eventlog persists task records and their append-only event
// streams in a local SQLite database.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesutfelat/cowork/internal/task"
)

// Event is one row of a task's append-only event stream.
type Event struct {
	ID        int64
	TaskID    string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Store provides database operations for tasks and task events.
type Store struct {
	db *sql.DB
}

// Open creates the database connection and initializes the schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	// WAL mode allows concurrent readers while the daemon writes
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	-- Task records
	CREATE TABLE IF NOT EXISTS tasks (
		task_id         TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		prompt          TEXT NOT NULL,
		status          TEXT NOT NULL,
		status_message  TEXT,
		workspace_dir   TEXT,
		model           TEXT,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL,
		current_attempt INTEGER NOT NULL DEFAULT 0,
		max_attempts    INTEGER NOT NULL DEFAULT 3,
		parent_task_id  TEXT,
		agent_type      TEXT NOT NULL DEFAULT 'main',
		agent_config    TEXT,
		result_summary  TEXT,
		error           TEXT
	);

	-- Append-only event stream, one row per execution event
	CREATE TABLE IF NOT EXISTS task_events (
		event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(task_id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);
	CREATE INDEX IF NOT EXISTS idx_events_task ON task_events(task_id);
	CREATE INDEX IF NOT EXISTS idx_events_task_type ON task_events(task_id, type);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveTask inserts or updates a task record.
func (s *Store) SaveTask(ctx context.Context, t *task.Task) error {
	agentConfig, err := json.Marshal(t.AgentConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal agent config: %w", err)
	}

	query := `
		INSERT INTO tasks (task_id, title, prompt, status, status_message, workspace_dir, model,
			created_at, updated_at, current_attempt, max_attempts, parent_task_id, agent_type,
			agent_config, result_summary, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			title = excluded.title,
			prompt = excluded.prompt,
			status = excluded.status,
			status_message = excluded.status_message,
			workspace_dir = excluded.workspace_dir,
			model = excluded.model,
			updated_at = excluded.updated_at,
			current_attempt = excluded.current_attempt,
			max_attempts = excluded.max_attempts,
			parent_task_id = excluded.parent_task_id,
			agent_type = excluded.agent_type,
			agent_config = excluded.agent_config,
			result_summary = excluded.result_summary,
			error = excluded.error
	`

	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Prompt, string(t.Status), t.StatusMessage, t.WorkspaceDir, t.Model,
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(), t.CurrentAttempt, t.MaxAttempts,
		t.ParentTaskID, string(t.AgentType), string(agentConfig), t.ResultSummary, t.Error)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task record by ID.
func (s *Store) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	query := `
		SELECT task_id, title, prompt, status, status_message, workspace_dir, model,
			created_at, updated_at, current_attempt, max_attempts, parent_task_id, agent_type,
			agent_config, result_summary, error
		FROM tasks WHERE task_id = ?
	`
	t, err := scanTask(s.db.QueryRowContext(ctx, query, taskID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return t, nil
}

// ListTasks returns all task records, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]*task.Task, error) {
	query := `
		SELECT task_id, title, prompt, status, status_message, workspace_dir, model,
			created_at, updated_at, current_attempt, max_attempts, parent_task_id, agent_type,
			agent_config, result_summary, error
		FROM tasks ORDER BY created_at DESC
	`
	return s.queryTasks(ctx, query)
}

// TasksByStatus returns all tasks in any of the given states, oldest first
// so restart requeueing preserves submission order.
func (s *Store) TasksByStatus(ctx context.Context, statuses ...task.Status) ([]*task.Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	query := fmt.Sprintf(`
		SELECT task_id, title, prompt, status, status_message, workspace_dir, model,
			created_at, updated_at, current_attempt, max_attempts, parent_task_id, agent_type,
			agent_config, result_summary, error
		FROM tasks WHERE status IN (%s) ORDER BY created_at ASC
	`, placeholders)

	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return s.queryTasks(ctx, query, args...)
}

// DeleteTask removes a task record and its whole event stream.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_events WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete task events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task
	var status, agentType string
	var statusMessage, workspaceDir, model, parentTaskID, agentConfig, resultSummary, taskErr sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&t.ID, &t.Title, &t.Prompt, &status, &statusMessage, &workspaceDir, &model,
		&createdAt, &updatedAt, &t.CurrentAttempt, &t.MaxAttempts, &parentTaskID, &agentType,
		&agentConfig, &resultSummary, &taskErr)
	if err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	t.AgentType = task.AgentType(agentType)
	t.StatusMessage = statusMessage.String
	t.WorkspaceDir = workspaceDir.String
	t.Model = model.String
	t.ParentTaskID = parentTaskID.String
	t.ResultSummary = resultSummary.String
	t.Error = taskErr.String
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updatedAt)
	if agentConfig.Valid && agentConfig.String != "" {
		if err := json.Unmarshal([]byte(agentConfig.String), &t.AgentConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent config: %w", err)
		}
	}
	return &t, nil
}

// Append writes one event to a task's stream and returns its ID. The
// payload is marshaled to JSON; nil becomes an empty object.
func (s *Store) Append(ctx context.Context, taskID, eventType string, payload any) (int64, error) {
	data := []byte("{}")
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal event payload: %w", err)
		}
	}

	query := `INSERT INTO task_events (task_id, type, payload, created_at) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, taskID, eventType, string(data), time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event id: %w", err)
	}
	return id, nil
}

// EventsByTask returns a task's full event stream in append order.
func (s *Store) EventsByTask(ctx context.Context, taskID string) ([]Event, error) {
	query := `
		SELECT event_id, task_id, type, payload, created_at
		FROM task_events WHERE task_id = ? ORDER BY event_id ASC
	`
	return s.queryEvents(ctx, query, taskID)
}

// EventsByTaskAndType returns a task's events of one type in append order.
func (s *Store) EventsByTaskAndType(ctx context.Context, taskID, eventType string) ([]Event, error) {
	query := `
		SELECT event_id, task_id, type, payload, created_at
		FROM task_events WHERE task_id = ? AND type = ? ORDER BY event_id ASC
	`
	return s.queryEvents(ctx, query, taskID, eventType)
}

// EventsAfter returns a task's events with IDs greater than afterID, in
// append order. Used by stream consumers polling for new events.
func (s *Store) EventsAfter(ctx context.Context, taskID string, afterID int64) ([]Event, error) {
	query := `
		SELECT event_id, task_id, type, payload, created_at
		FROM task_events WHERE task_id = ? AND event_id > ? ORDER BY event_id ASC
	`
	return s.queryEvents(ctx, query, taskID, afterID)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var payload string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Type, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = time.UnixMilli(createdAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// DeleteEvents removes events by ID. Used by snapshot pruning.
func (s *Store) DeleteEvents(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`DELETE FROM task_events WHERE event_id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
