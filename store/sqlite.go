package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"foreman/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_tasks (
    workflow_id TEXT NOT NULL REFERENCES workflows(id),
    id TEXT NOT NULL,
    description TEXT NOT NULL,
    task_type TEXT NOT NULL,
    status TEXT NOT NULL,
    dependencies TEXT NOT NULL DEFAULT '[]',
    result TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',
    seq INTEGER,
    created_at DATETIME NOT NULL,
    started_at DATETIME,
    completed_at DATETIME,
    PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS workflow_events (
    id TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL,
    task_id TEXT,
    event_type TEXT NOT NULL,
    data_json TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_events_workflow ON workflow_events(workflow_id);
`

// NewSQLiteBundle creates a Bundle backed by SQLite at the given path
func NewSQLiteBundle(dbPath string) (*Bundle, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Bundle{
		Workflows: &SQLiteWorkflowStore{db: db},
		Events:    &SQLiteEventStore{db: db},
		closer:    db.Close,
	}, nil
}

// =============================================================================
// SQLiteWorkflowStore
// =============================================================================

type SQLiteWorkflowStore struct {
	db *sql.DB
}

func (s *SQLiteWorkflowStore) CreateWorkflow(id, description string, createdAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO workflows (id, description, created_at) VALUES (?, ?, ?)`,
		id, description, createdAt,
	)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

func (s *SQLiteWorkflowStore) SaveTask(workflowID string, t *task.Task) error {
	deps, err := json.Marshal(t.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	var result *string
	if t.Result != nil {
		raw, err := json.Marshal(t.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		str := string(raw)
		result = &str
	}

	// seq preserves insertion order across reloads; keep the existing value
	// on upsert so status updates do not reorder the workflow.
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO workflow_tasks
		    (workflow_id, id, description, task_type, status, dependencies, result, metadata, seq, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?,
		    COALESCE((SELECT seq FROM workflow_tasks WHERE workflow_id = ? AND id = ?),
		             (SELECT COALESCE(MAX(seq), 0) + 1 FROM workflow_tasks WHERE workflow_id = ?)),
		    ?, ?, ?)`,
		workflowID, t.ID, t.Description, string(t.Type), string(t.Status),
		string(deps), result, string(meta),
		workflowID, t.ID, workflowID,
		t.CreatedAt, nullTime(t.StartedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *SQLiteWorkflowStore) LoadWorkflow(workflowID string) ([]*task.Task, bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM workflows WHERE id = ?`, workflowID).Scan(&exists)
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}

	rows, err := s.db.Query(
		`SELECT id, description, task_type, status, dependencies, result, metadata, created_at, started_at, completed_at
		 FROM workflow_tasks WHERE workflow_id = ? ORDER BY seq`,
		workflowID,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanWorkflowTask(rows)
		if err != nil {
			return nil, false, err
		}
		tasks = append(tasks, t)
	}
	return tasks, true, rows.Err()
}

func (s *SQLiteWorkflowStore) GetWorkflow(workflowID string) (WorkflowMeta, bool, error) {
	var meta WorkflowMeta
	err := s.db.QueryRow(
		`SELECT id, description, created_at FROM workflows WHERE id = ?`, workflowID,
	).Scan(&meta.ID, &meta.Description, &meta.CreatedAt)
	if err == sql.ErrNoRows {
		return WorkflowMeta{}, false, nil
	}
	if err != nil {
		return WorkflowMeta{}, false, err
	}
	return meta, true, nil
}

func (s *SQLiteWorkflowStore) ListWorkflows() ([]WorkflowMeta, error) {
	rows, err := s.db.Query(`SELECT id, description, created_at FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []WorkflowMeta
	for rows.Next() {
		var m WorkflowMeta
		if err := rows.Scan(&m.ID, &m.Description, &m.CreatedAt); err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func scanWorkflowTask(rows *sql.Rows) (*task.Task, error) {
	var t task.Task
	var taskType, status, depsJSON, metaJSON string
	var resultJSON sql.NullString
	var startedAt, completedAt sql.NullTime

	err := rows.Scan(
		&t.ID, &t.Description, &taskType, &status,
		&depsJSON, &resultJSON, &metaJSON,
		&t.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = task.Type(taskType)
	t.Status = task.Status(status)

	if err := json.Unmarshal([]byte(depsJSON), &t.Dependencies); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if resultJSON.Valid {
		var r task.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		t.Result = &r
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// =============================================================================
// SQLiteEventStore
// =============================================================================

type SQLiteEventStore struct {
	db *sql.DB
}

func (s *SQLiteEventStore) StoreEvent(e WorkflowEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO workflow_events (id, workflow_id, task_id, event_type, data_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkflowID, e.TaskID, e.EventType, e.DataJSON, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

func (s *SQLiteEventStore) EventsByWorkflow(workflowID string, limit, offset int) ([]WorkflowEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, workflow_id, task_id, event_type, data_json, created_at
		 FROM workflow_events WHERE workflow_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`,
		workflowID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []WorkflowEvent
	for rows.Next() {
		var e WorkflowEvent
		var taskID sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkflowID, &taskID, &e.EventType, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			e.TaskID = &taskID.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
