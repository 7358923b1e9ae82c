package store

import (
	"time"

	"foreman/task"
)

// Bundle groups the stores backing workflow execution.
type Bundle struct {
	Workflows WorkflowStore
	Events    EventStore
	closer    func() error
}

// Close cleans up the bundle resources
func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// WorkflowMeta describes a persisted workflow. Status is intentionally
// absent: the aggregate status is derived from the tasks, never stored.
type WorkflowMeta struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WorkflowStore persists tasks keyed by workflow id. Each task is saved
// independently; there are no cross-task transactions, so a crash
// mid-workflow leaves a consistent partial snapshot.
type WorkflowStore interface {
	// CreateWorkflow persists workflow metadata under a fresh id.
	CreateWorkflow(id, description string, createdAt time.Time) error

	// SaveTask upserts a task record. Every field, including the nested
	// result and the status tag, must round-trip.
	SaveTask(workflowID string, t *task.Task) error

	// LoadWorkflow returns all persisted tasks for a workflow in insertion
	// order. found is false when the workflow id is unknown.
	LoadWorkflow(workflowID string) (tasks []*task.Task, found bool, err error)

	// GetWorkflow returns the workflow metadata.
	GetWorkflow(workflowID string) (meta WorkflowMeta, found bool, err error)

	// ListWorkflows returns metadata for every persisted workflow, newest
	// first.
	ListWorkflows() ([]WorkflowMeta, error)
}

// WorkflowEvent is one lifecycle event emitted during planning or execution.
type WorkflowEvent struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflowId"`
	TaskID     *string   `json:"taskId,omitempty"`
	EventType  string    `json:"eventType"`
	DataJSON   string    `json:"dataJson"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EventStore is an append-only log of workflow events.
type EventStore interface {
	StoreEvent(e WorkflowEvent) error
	EventsByWorkflow(workflowID string, limit, offset int) ([]WorkflowEvent, error)
}
