package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"foreman/task"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS workflows (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_tasks (
    workflow_id TEXT NOT NULL REFERENCES workflows(id),
    id TEXT NOT NULL,
    description TEXT NOT NULL,
    task_type TEXT NOT NULL,
    status TEXT NOT NULL,
    dependencies JSONB NOT NULL DEFAULT '[]',
    result JSONB,
    metadata JSONB NOT NULL DEFAULT '{}',
    seq BIGSERIAL,
    created_at TIMESTAMPTZ NOT NULL,
    started_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS workflow_events (
    id TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL,
    task_id TEXT,
    event_type TEXT NOT NULL,
    data_json TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_events_workflow ON workflow_events(workflow_id);
`

// NewPostgresBundle creates a Bundle backed by PostgreSQL at the given DSN.
// Intended for deployments where several foreman instances share one
// database; addressing stays strictly workflow id + task id, so instances
// never contend on each other's rows.
func NewPostgresBundle(ctx context.Context, dsn string) (*Bundle, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Bundle{
		Workflows: &PostgresWorkflowStore{pool: pool},
		Events:    &PostgresEventStore{pool: pool},
		closer: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// =============================================================================
// PostgresWorkflowStore
// =============================================================================

type PostgresWorkflowStore struct {
	pool *pgxpool.Pool
}

func (s *PostgresWorkflowStore) CreateWorkflow(id, description string, createdAt time.Time) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO workflows (id, description, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET description = EXCLUDED.description`,
		id, description, createdAt,
	)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

func (s *PostgresWorkflowStore) SaveTask(workflowID string, t *task.Task) error {
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

	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO workflow_tasks
		    (workflow_id, id, description, task_type, status, dependencies, result, metadata, created_at, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (workflow_id, id) DO UPDATE SET
		    description = EXCLUDED.description,
		    task_type = EXCLUDED.task_type,
		    status = EXCLUDED.status,
		    dependencies = EXCLUDED.dependencies,
		    result = EXCLUDED.result,
		    metadata = EXCLUDED.metadata,
		    started_at = EXCLUDED.started_at,
		    completed_at = EXCLUDED.completed_at`,
		workflowID, t.ID, t.Description, string(t.Type), string(t.Status),
		string(deps), result, string(meta),
		t.CreatedAt, t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *PostgresWorkflowStore) LoadWorkflow(workflowID string) ([]*task.Task, bool, error) {
	ctx := context.Background()

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workflows WHERE id = $1)`, workflowID).Scan(&exists)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, description, task_type, status, dependencies, result, metadata, created_at, started_at, completed_at
		 FROM workflow_tasks WHERE workflow_id = $1 ORDER BY seq`,
		workflowID,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var t task.Task
		var taskType, status string
		var depsJSON, metaJSON []byte
		var resultJSON *[]byte
		if err := rows.Scan(
			&t.ID, &t.Description, &taskType, &status,
			&depsJSON, &resultJSON, &metaJSON,
			&t.CreatedAt, &t.StartedAt, &t.CompletedAt,
		); err != nil {
			return nil, false, err
		}
		t.Type = task.Type(taskType)
		t.Status = task.Status(status)
		if err := json.Unmarshal(depsJSON, &t.Dependencies); err != nil {
			return nil, false, fmt.Errorf("unmarshal dependencies: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &t.Metadata); err != nil {
			return nil, false, fmt.Errorf("unmarshal metadata: %w", err)
		}
		if resultJSON != nil {
			var r task.Result
			if err := json.Unmarshal(*resultJSON, &r); err != nil {
				return nil, false, fmt.Errorf("unmarshal result: %w", err)
			}
			t.Result = &r
		}
		tasks = append(tasks, &t)
	}
	return tasks, true, rows.Err()
}

func (s *PostgresWorkflowStore) GetWorkflow(workflowID string) (WorkflowMeta, bool, error) {
	var meta WorkflowMeta
	err := s.pool.QueryRow(context.Background(),
		`SELECT id, description, created_at FROM workflows WHERE id = $1`, workflowID,
	).Scan(&meta.ID, &meta.Description, &meta.CreatedAt)
	if err == pgx.ErrNoRows {
		return WorkflowMeta{}, false, nil
	}
	if err != nil {
		return WorkflowMeta{}, false, err
	}
	return meta, true, nil
}

func (s *PostgresWorkflowStore) ListWorkflows() ([]WorkflowMeta, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, description, created_at FROM workflows ORDER BY created_at DESC`)
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

// =============================================================================
// PostgresEventStore
// =============================================================================

type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func (s *PostgresEventStore) StoreEvent(e WorkflowEvent) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO workflow_events (id, workflow_id, task_id, event_type, data_json, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.WorkflowID, e.TaskID, e.EventType, e.DataJSON, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) EventsByWorkflow(workflowID string, limit, offset int) ([]WorkflowEvent, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, workflow_id, task_id, event_type, data_json, created_at
		 FROM workflow_events WHERE workflow_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		workflowID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []WorkflowEvent
	for rows.Next() {
		var e WorkflowEvent
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.TaskID, &e.EventType, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
