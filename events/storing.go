package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"foreman/store"
	"foreman/task"
	"foreman/workflow"
)

// Event type tags persisted to the event store.
const (
	TypeWorkflowStarted    = "workflow_started"
	TypeWorkflowCompleted  = "workflow_completed"
	TypeWorkflowDeadlocked = "workflow_deadlocked"
	TypeTaskStarted        = "task_started"
	TypeTaskCompleted      = "task_completed"
	TypeTaskFailed         = "task_failed"
	TypeTaskReassigned     = "task_reassigned"
)

// StoringHandler is a WorkflowHandler decorator that persists every event to
// the EventStore, then delegates to an inner handler (e.g. CLI or
// websocket).
type StoringHandler struct {
	inner  WorkflowHandler
	events store.EventStore
	logger hclog.Logger
}

// NewStoringHandler wraps an existing WorkflowHandler with event
// persistence. Store failures are logged, never propagated; the run must
// not die because the event log hiccuped.
func NewStoringHandler(inner WorkflowHandler, events store.EventStore, logger hclog.Logger) *StoringHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &StoringHandler{inner: inner, events: events, logger: logger}
}

func (h *StoringHandler) storeEvent(workflowID, eventType string, taskID *string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("marshal event data", "event_type", eventType, "error", err)
		return
	}
	event := store.WorkflowEvent{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		TaskID:     taskID,
		EventType:  eventType,
		DataJSON:   string(dataJSON),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.events.StoreEvent(event); err != nil {
		h.logger.Warn("store event", "event_type", eventType, "error", err)
	}
}

func (h *StoringHandler) WorkflowStarted(workflowID, description string, taskCount int) {
	h.storeEvent(workflowID, TypeWorkflowStarted, nil, map[string]any{
		"description": description,
		"taskCount":   taskCount,
	})
	h.inner.WorkflowStarted(workflowID, description, taskCount)
}

func (h *StoringHandler) WorkflowCompleted(workflowID string, status workflow.Status) {
	h.storeEvent(workflowID, TypeWorkflowCompleted, nil, map[string]any{
		"overall":  status.Overall,
		"progress": status.Progress,
	})
	h.inner.WorkflowCompleted(workflowID, status)
}

func (h *StoringHandler) WorkflowDeadlocked(workflowID string, stuckTaskIDs []string) {
	h.storeEvent(workflowID, TypeWorkflowDeadlocked, nil, map[string]any{
		"stuckTaskIds": stuckTaskIDs,
	})
	h.inner.WorkflowDeadlocked(workflowID, stuckTaskIDs)
}

func (h *StoringHandler) TaskStarted(workflowID string, t task.Task, objective string) {
	h.storeEvent(workflowID, TypeTaskStarted, &t.ID, map[string]any{
		"taskType":  t.Type,
		"objective": objective,
	})
	h.inner.TaskStarted(workflowID, t, objective)
}

func (h *StoringHandler) TaskCompleted(workflowID string, t task.Task, output string) {
	h.storeEvent(workflowID, TypeTaskCompleted, &t.ID, map[string]any{
		"taskType": t.Type,
		"output":   output,
	})
	h.inner.TaskCompleted(workflowID, t, output)
}

func (h *StoringHandler) TaskFailed(workflowID string, t task.Task, err error) {
	h.storeEvent(workflowID, TypeTaskFailed, &t.ID, map[string]any{
		"taskType": t.Type,
		"error":    err.Error(),
	})
	h.inner.TaskFailed(workflowID, t, err)
}

func (h *StoringHandler) TaskReassigned(workflowID string, t task.Task, from, to task.Type) {
	h.storeEvent(workflowID, TypeTaskReassigned, &t.ID, map[string]any{
		"from": from,
		"to":   to,
	})
	h.inner.TaskReassigned(workflowID, t, from, to)
}
