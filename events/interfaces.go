// Package events defines the handler interface workflow execution reports
// through. Different implementations can write to the terminal, persist to
// the event store, or push to websocket clients.
package events

import (
	"foreman/task"
	"foreman/workflow"
)

// WorkflowHandler receives lifecycle events while a workflow executes.
// Implementations must be safe for concurrent use; the executor calls them
// from worker goroutines.
type WorkflowHandler interface {
	// Workflow lifecycle
	WorkflowStarted(workflowID, description string, taskCount int)
	WorkflowCompleted(workflowID string, status workflow.Status)
	WorkflowDeadlocked(workflowID string, stuckTaskIDs []string)

	// Task lifecycle
	TaskStarted(workflowID string, t task.Task, objective string)
	TaskCompleted(workflowID string, t task.Task, output string)
	TaskFailed(workflowID string, t task.Task, err error)

	// TaskReassigned fires when the executor retags a task for the
	// reclassification retry.
	TaskReassigned(workflowID string, t task.Task, from, to task.Type)
}

// Nop is a WorkflowHandler that discards every event.
type Nop struct{}

func (Nop) WorkflowStarted(string, string, int)                 {}
func (Nop) WorkflowCompleted(string, workflow.Status)           {}
func (Nop) WorkflowDeadlocked(string, []string)                 {}
func (Nop) TaskStarted(string, task.Task, string)               {}
func (Nop) TaskCompleted(string, task.Task, string)             {}
func (Nop) TaskFailed(string, task.Task, error)                 {}
func (Nop) TaskReassigned(string, task.Task, task.Type, task.Type) {}
