package wsbridge

import (
	"encoding/json"
	"time"

	"foreman/task"
	"foreman/workflow"
)

// Envelope is the wire format for one broadcast event.
type Envelope struct {
	Event      string    `json:"event"`
	WorkflowID string    `json:"workflow_id"`
	Timestamp  time.Time `json:"timestamp"`
	Data       any       `json:"data,omitempty"`
}

type taskData struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Type        string `json:"task_type"`
	Status      string `json:"status"`
}

func toTaskData(t task.Task) taskData {
	return taskData{
		ID:          t.ID,
		Description: t.Description,
		Type:        string(t.Type),
		Status:      string(t.Status),
	}
}

// EventHandler broadcasts workflow lifecycle events over a hub. It
// implements events.WorkflowHandler.
type EventHandler struct {
	hub *Hub
}

// NewEventHandler creates a handler that publishes to hub.
func NewEventHandler(hub *Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

func (h *EventHandler) publish(event, workflowID string, data any) {
	payload, err := json.Marshal(Envelope{
		Event:      event,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		h.hub.logger.Warn("failed to encode event", "event", event, "error", err)
		return
	}
	h.hub.Broadcast(payload)
}

func (h *EventHandler) WorkflowStarted(workflowID, description string, taskCount int) {
	h.publish("workflow_started", workflowID, map[string]any{
		"description": description,
		"task_count":  taskCount,
	})
}

func (h *EventHandler) WorkflowCompleted(workflowID string, status workflow.Status) {
	h.publish("workflow_completed", workflowID, map[string]any{
		"overall":  string(status.Overall),
		"total":    status.Total,
		"progress": status.Progress,
	})
}

func (h *EventHandler) WorkflowDeadlocked(workflowID string, stuckTaskIDs []string) {
	h.publish("workflow_deadlocked", workflowID, map[string]any{
		"stuck_task_ids": stuckTaskIDs,
	})
}

func (h *EventHandler) TaskStarted(workflowID string, t task.Task, objective string) {
	h.publish("task_started", workflowID, map[string]any{
		"task":      toTaskData(t),
		"objective": objective,
	})
}

func (h *EventHandler) TaskCompleted(workflowID string, t task.Task, output string) {
	h.publish("task_completed", workflowID, map[string]any{
		"task":   toTaskData(t),
		"output": output,
	})
}

func (h *EventHandler) TaskFailed(workflowID string, t task.Task, err error) {
	h.publish("task_failed", workflowID, map[string]any{
		"task":  toTaskData(t),
		"error": err.Error(),
	})
}

func (h *EventHandler) TaskReassigned(workflowID string, t task.Task, from, to task.Type) {
	h.publish("task_reassigned", workflowID, map[string]any{
		"task": toTaskData(t),
		"from": string(from),
		"to":   string(to),
	})
}
