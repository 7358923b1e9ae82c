// Package cli renders workflow events to a terminal.
package cli

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"foreman/events"
	"foreman/task"
	"foreman/workflow"
)

// WorkflowHandler implements events.WorkflowHandler for CLI output
type WorkflowHandler struct {
	mu sync.Mutex
}

var _ events.WorkflowHandler = (*WorkflowHandler)(nil)

// NewWorkflowHandler creates a new CLI workflow handler
func NewWorkflowHandler() *WorkflowHandler {
	return &WorkflowHandler{}
}

func (h *WorkflowHandler) WorkflowStarted(workflowID, description string, taskCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Printf("\n%s%s=== Workflow: %s ===%s\n", ColorBold, ColorCyan, truncate(description, 80), ColorReset)
	fmt.Printf("%sID: %s  Tasks: %d%s\n\n", ColorGray, workflowID, taskCount, ColorReset)
}

func (h *WorkflowHandler) WorkflowCompleted(workflowID string, status workflow.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	color := ColorGreen
	if status.Overall != workflow.OverallCompleted {
		color = ColorYellow
	}
	fmt.Printf("\n%s%s=== Workflow finished: %s ===%s\n", ColorBold, color, status.Overall, ColorReset)
	fmt.Print(renderSummary(status))
}

func (h *WorkflowHandler) WorkflowDeadlocked(workflowID string, stuckTaskIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Printf("\n%s%s=== Workflow deadlocked ===%s\n", ColorBold, ColorRed, ColorReset)
	fmt.Printf("%sUnrunnable tasks: %s%s\n", ColorGray, strings.Join(stuckTaskIDs, ", "), ColorReset)
}

func (h *WorkflowHandler) TaskStarted(workflowID string, t task.Task, objective string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Printf("\n%s%s--- Task [%s]: %s ---%s\n", ColorBold, ColorCyan, t.Type, truncate(t.Description, 80), ColorReset)
	if objective != t.Description {
		fmt.Printf("%s%s%s\n", ColorGray, truncate(objective, 300), ColorReset)
	}
}

func (h *WorkflowHandler) TaskCompleted(workflowID string, t task.Task, output string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Printf("%s%s[Task completed: %s]%s\n", ColorBold, ColorGreen, truncate(t.Description, 60), ColorReset)
	if output != "" {
		fmt.Printf("%s%s%s\n", ColorGray, truncate(output, 300), ColorReset)
	}
}

func (h *WorkflowHandler) TaskFailed(workflowID string, t task.Task, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Printf("%s%s[Task FAILED: %s: %v]%s\n", ColorBold, ColorRed, truncate(t.Description, 60), err, ColorReset)
}

func (h *WorkflowHandler) TaskReassigned(workflowID string, t task.Task, from, to task.Type) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Printf("%s[Retrying task as %s (was %s)]%s\n", ColorYellow, to, from, ColorReset)
}

// renderSummary formats the final status as markdown and renders it with
// glamour, falling back to the raw markdown when the terminal renderer
// fails.
func renderSummary(status workflow.Status) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Progress:** %.0f%% (%d tasks)\n\n", status.Progress, status.Total))
	for _, st := range []task.Status{
		task.StatusCompleted, task.StatusFailed, task.StatusInProgress,
		task.StatusPending, task.StatusBlocked,
	} {
		if n := status.Counts[st]; n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", st, n))
		}
	}

	rendered, err := glamour.Render(sb.String(), "auto")
	if err != nil {
		return sb.String()
	}
	return rendered
}
