package events

import (
	"foreman/task"
	"foreman/workflow"
)

// Fanout delivers every event to each handler in order.
type Fanout []WorkflowHandler

func (f Fanout) WorkflowStarted(workflowID, description string, taskCount int) {
	for _, h := range f {
		h.WorkflowStarted(workflowID, description, taskCount)
	}
}

func (f Fanout) WorkflowCompleted(workflowID string, status workflow.Status) {
	for _, h := range f {
		h.WorkflowCompleted(workflowID, status)
	}
}

func (f Fanout) WorkflowDeadlocked(workflowID string, stuckTaskIDs []string) {
	for _, h := range f {
		h.WorkflowDeadlocked(workflowID, stuckTaskIDs)
	}
}

func (f Fanout) TaskStarted(workflowID string, t task.Task, objective string) {
	for _, h := range f {
		h.TaskStarted(workflowID, t, objective)
	}
}

func (f Fanout) TaskCompleted(workflowID string, t task.Task, output string) {
	for _, h := range f {
		h.TaskCompleted(workflowID, t, output)
	}
}

func (f Fanout) TaskFailed(workflowID string, t task.Task, err error) {
	for _, h := range f {
		h.TaskFailed(workflowID, t, err)
	}
}

func (f Fanout) TaskReassigned(workflowID string, t task.Task, from, to task.Type) {
	for _, h := range f {
		h.TaskReassigned(workflowID, t, from, to)
	}
}
