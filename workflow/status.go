package workflow

import "foreman/task"

// Overall is the derived aggregate state of a workflow.
type Overall string

const (
	OverallPending            Overall = "pending"
	OverallInProgress         Overall = "in_progress"
	OverallCompleted          Overall = "completed"
	OverallFailed             Overall = "failed"
	OverallPartiallyCompleted Overall = "partially_completed"
)

// Status is a point-in-time summary of a workflow. It is always derived
// from the task set, never stored.
type Status struct {
	Overall  Overall             `json:"overall"`
	Total    int                 `json:"total"`
	Counts   map[task.Status]int `json:"counts"`
	Progress float64             `json:"progress"` // percent of tasks completed
}

// deriveStatus computes the aggregate from per-status counts.
//
// Precedence: any failure with no completions is Failed; a failure alongside
// at least one completion is PartiallyCompleted; all tasks completed is
// Completed; anything running is InProgress; otherwise Pending.
func deriveStatus(counts map[task.Status]int, total int) Status {
	st := Status{Total: total, Counts: counts}

	completed := counts[task.StatusCompleted]
	failed := counts[task.StatusFailed]

	switch {
	case failed > 0 && completed == 0:
		st.Overall = OverallFailed
	case failed > 0:
		st.Overall = OverallPartiallyCompleted
	case total > 0 && completed == total:
		st.Overall = OverallCompleted
	case counts[task.StatusInProgress] > 0:
		st.Overall = OverallInProgress
	default:
		st.Overall = OverallPending
	}

	if total > 0 {
		st.Progress = float64(completed) / float64(total) * 100
	}
	return st
}
