// Package task defines the task model shared by the workflow manager,
// planner, and executor.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusBlocked    Status = "blocked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Type selects which handler a task is dispatched to.
type Type string

const (
	TypeFileCreation     Type = "file_creation"
	TypeWebBrowsing      Type = "web_browsing"
	TypeImageAnalysis    Type = "image_analysis"
	TypeImageSearch      Type = "image_search"
	TypeFileOrganization Type = "file_organization"
	TypeFileDeletion     Type = "file_deletion"
	TypeGeneral          Type = "general_task"
)

// Types lists every known task type in a stable order.
func Types() []Type {
	return []Type{
		TypeFileCreation,
		TypeWebBrowsing,
		TypeImageAnalysis,
		TypeImageSearch,
		TypeFileOrganization,
		TypeFileDeletion,
		TypeGeneral,
	}
}

// ParseType maps a tag to a known type, falling back to TypeGeneral for
// anything it does not recognize.
func ParseType(tag string) Type {
	for _, t := range Types() {
		if string(t) == tag {
			return t
		}
	}
	return TypeGeneral
}

// Result is the outcome of one execution attempt.
type Result struct {
	Success   bool           `json:"success"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Artifacts map[string]any `json:"artifacts,omitempty"`
}

// Task is one schedulable unit of work within a workflow.
type Task struct {
	ID           string            `json:"id"`
	Description  string            `json:"description"`
	Type         Type              `json:"task_type"`
	Status       Status            `json:"status"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Result       *Result           `json:"result,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers can hand tasks across goroutines
// without sharing mutable state.
func (t *Task) Clone() *Task {
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.Result != nil {
		r := *t.Result
		if t.Result.Artifacts != nil {
			r.Artifacts = make(map[string]any, len(t.Result.Artifacts))
			for k, v := range t.Result.Artifacts {
				r.Artifacts[k] = v
			}
		}
		c.Result = &r
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

// Artifacts returns the named outputs of the task's result, or an empty map
// when the task has not produced one.
func (t *Task) Artifacts() map[string]any {
	if t.Result == nil || t.Result.Artifacts == nil {
		return map[string]any{}
	}
	return t.Result.Artifacts
}
