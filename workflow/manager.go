// Package workflow owns the live task DAG for a workflow and is the only
// component allowed to mutate task status.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"foreman/store"
	"foreman/task"
)

var (
	// ErrDependencyNotFound is returned when a task references a dependency
	// id that is not part of the workflow.
	ErrDependencyNotFound = errors.New("dependency not found")

	// ErrTaskNotFound is returned when an operation names an unknown task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a status update would move a
	// task backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TaskSpec describes one task in an atomic graph build. LocalID and the
// Dependencies entries are caller-local identifiers (e.g. planner ids) with
// no relation to the real task ids assigned on materialization.
type TaskSpec struct {
	LocalID      string
	Description  string
	Type         task.Type
	Dependencies []string
	Metadata     map[string]string
}

// Manager validates dependency references, computes the executable frontier,
// and applies status transitions, persisting every mutation through the
// store. It holds no workflow state itself; each workflow lives in an
// explicit Context so multiple workflows never cross-talk.
type Manager struct {
	store  store.WorkflowStore
	logger hclog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for unblocking and persistence warnings.
func WithLogger(l hclog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager backed by the given workflow store.
func NewManager(ws store.WorkflowStore, opts ...Option) *Manager {
	m := &Manager{
		store:  ws,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateWorkflow allocates a fresh workflow and persists its metadata.
func (m *Manager) CreateWorkflow(description string) (*Context, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()
	if err := m.store.CreateWorkflow(id, description, createdAt); err != nil {
		return nil, fmt.Errorf("persist workflow meta: %w", err)
	}
	m.logger.Debug("workflow created", "workflow_id", id)
	return newContext(id, description, createdAt), nil
}

// LoadWorkflow rehydrates a workflow from the store, rebuilding the
// reverse-dependency index from each task's dependency list. Tasks persisted
// as InProgress were orphaned by an interrupted run and are reset to Pending
// so they can be claimed again. found is false when the workflow id is
// unknown.
func (m *Manager) LoadWorkflow(id string) (*Context, bool, error) {
	meta, found, err := m.store.GetWorkflow(id)
	if err != nil {
		return nil, false, fmt.Errorf("load workflow meta: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	tasks, found, err := m.store.LoadWorkflow(id)
	if err != nil {
		return nil, false, fmt.Errorf("load workflow tasks: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	wf := newContext(meta.ID, meta.Description, meta.CreatedAt)
	for _, t := range tasks {
		if t.Status == task.StatusInProgress {
			t.Status = task.StatusPending
			t.StartedAt = nil
			if err := m.store.SaveTask(wf.id, t); err != nil {
				m.logger.Warn("persist reset task", "task_id", t.ID, "error", err)
			}
			m.logger.Debug("reset orphaned task", "task_id", t.ID)
		}
		wf.tasks[t.ID] = t
		wf.order = append(wf.order, t.ID)
		wf.registerDependents(t)
	}
	return wf, true, nil
}

// AddTask appends a single task to the workflow. Every dependency must
// already exist in the workflow; a forward reference fails with
// ErrDependencyNotFound and leaves the workflow unchanged. Tasks with
// dependencies start Blocked, others start Pending.
func (m *Manager) AddTask(wf *Context, description string, typ task.Type, deps []string, metadata map[string]string) (string, error) {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	for _, dep := range deps {
		if _, ok := wf.tasks[dep]; !ok {
			return "", fmt.Errorf("task %q: %w: %s", description, ErrDependencyNotFound, dep)
		}
	}

	t := &task.Task{
		ID:           uuid.NewString(),
		Description:  description,
		Type:         typ,
		Status:       task.StatusPending,
		Dependencies: append([]string(nil), deps...),
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if len(deps) > 0 {
		t.Status = task.StatusBlocked
	}

	if err := m.store.SaveTask(wf.id, t); err != nil {
		return "", fmt.Errorf("persist task: %w", err)
	}

	wf.tasks[t.ID] = t
	wf.order = append(wf.order, t.ID)
	wf.registerDependents(t)
	return t.ID, nil
}

// AddTaskGraph materializes a whole batch of tasks with caller-local
// dependency ids in one atomic call. Internally it is a two-pass build:
// tasks are created first, then their edges are resolved through the
// local-id mapping. The resolved graph must be acyclic and every referenced
// local id must resolve; otherwise the entire batch is rejected and the
// workflow is unchanged.
func (m *Manager) AddTaskGraph(wf *Context, specs []TaskSpec) ([]string, error) {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	// Pass 1: assign real ids for every spec.
	now := time.Now().UTC()
	idByLocal := make(map[string]string, len(specs))
	staged := make([]*task.Task, 0, len(specs))
	for _, spec := range specs {
		if _, dup := idByLocal[spec.LocalID]; dup {
			return nil, fmt.Errorf("duplicate local id %q", spec.LocalID)
		}
		t := &task.Task{
			ID:          uuid.NewString(),
			Description: spec.Description,
			Type:        spec.Type,
			Status:      task.StatusPending,
			Metadata:    spec.Metadata,
			CreatedAt:   now,
		}
		idByLocal[spec.LocalID] = t.ID
		staged = append(staged, t)
	}

	// Pass 2: resolve edges. Dependencies may point at staged tasks or at
	// tasks already in the workflow.
	for i, spec := range specs {
		for _, dep := range spec.Dependencies {
			real, ok := idByLocal[dep]
			if !ok {
				if _, exists := wf.tasks[dep]; exists {
					real = dep
				} else {
					return nil, fmt.Errorf("task %q: %w: %s", spec.LocalID, ErrDependencyNotFound, dep)
				}
			}
			staged[i].Dependencies = append(staged[i].Dependencies, real)
		}
		if len(staged[i].Dependencies) > 0 {
			staged[i].Status = task.StatusBlocked
		}
	}

	deps := make(map[string][]string, len(staged))
	for _, t := range staged {
		deps[t.ID] = t.Dependencies
	}
	if err := validateAcyclic(deps); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(staged))
	for _, t := range staged {
		if err := m.store.SaveTask(wf.id, t); err != nil {
			return nil, fmt.Errorf("persist task: %w", err)
		}
		wf.tasks[t.ID] = t
		wf.order = append(wf.order, t.ID)
		wf.registerDependents(t)
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// SetDependencies rewires an existing task's dependency list, recomputes its
// Blocked/Pending status, and persists the change. This is a graph
// construction primitive: unlike UpdateTaskStatus it may move a task from
// Pending back to Blocked, and it performs no cycle check.
func (m *Manager) SetDependencies(wf *Context, taskID string, deps []string) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	t, ok := wf.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	for _, dep := range deps {
		if _, ok := wf.tasks[dep]; !ok {
			return fmt.Errorf("task %s: %w: %s", taskID, ErrDependencyNotFound, dep)
		}
	}
	if t.Status.Terminal() || t.Status == task.StatusInProgress {
		return fmt.Errorf("task %s: %w: cannot rewire a %s task", taskID, ErrInvalidTransition, t.Status)
	}

	wf.unregisterDependents(t)
	t.Dependencies = append([]string(nil), deps...)
	wf.registerDependents(t)

	if len(t.Dependencies) == 0 || wf.depsCompleted(t) {
		t.Status = task.StatusPending
	} else {
		t.Status = task.StatusBlocked
	}

	if err := m.store.SaveTask(wf.id, t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	return nil
}

// ExecutableTasks returns the current frontier: every Pending task whose
// dependencies are all Completed. Tasks already InProgress are excluded.
func (m *Manager) ExecutableTasks(wf *Context) []*task.Task {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	var frontier []*task.Task
	for _, id := range wf.order {
		t := wf.tasks[id]
		if t.Status == task.StatusPending && wf.depsCompleted(t) {
			frontier = append(frontier, t.Clone())
		}
	}
	return frontier
}

// ClaimExecutable returns the frontier with every returned task already
// transitioned to InProgress. Query and transition happen under one lock so
// that no two callers can claim the same task.
func (m *Manager) ClaimExecutable(wf *Context) []*task.Task {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	now := time.Now().UTC()
	var claimed []*task.Task
	for _, id := range wf.order {
		t := wf.tasks[id]
		if t.Status != task.StatusPending || !wf.depsCompleted(t) {
			continue
		}
		t.Status = task.StatusInProgress
		if t.StartedAt == nil {
			ts := now
			t.StartedAt = &ts
		}
		if err := m.store.SaveTask(wf.id, t); err != nil {
			m.logger.Warn("persist claimed task", "task_id", t.ID, "error", err)
		}
		claimed = append(claimed, t.Clone())
	}
	return claimed
}

// UpdateTaskStatus applies a forward status transition, records the result,
// and persists. A transition to Completed walks the task's direct dependents
// and moves every Blocked dependent whose entire dependency set is now
// Completed to Pending; that walk is the only path a task is unblocked on,
// and it happens atomically with the triggering completion.
//
// Transitive propagation is deliberately one generation at a time: a
// dependent only becomes eligible once all of its own dependencies are done,
// so later generations unblock as each generation completes.
func (m *Manager) UpdateTaskStatus(wf *Context, taskID string, status task.Status, result *task.Result) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	t, ok := wf.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !validTransition(t.Status, status) {
		return fmt.Errorf("task %s: %w: %s -> %s", taskID, ErrInvalidTransition, t.Status, status)
	}

	now := time.Now().UTC()
	t.Status = status
	if status == task.StatusInProgress && t.StartedAt == nil {
		ts := now
		t.StartedAt = &ts
	}
	if status.Terminal() {
		if t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
		if result != nil {
			t.Result = result
		}
	}

	if err := m.store.SaveTask(wf.id, t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}

	if status == task.StatusCompleted {
		m.unblockDependents(wf, t)
	}
	return nil
}

// unblockDependents moves Blocked direct dependents of t to Pending when
// their whole dependency set is Completed. Caller holds wf.mu.
func (m *Manager) unblockDependents(wf *Context, t *task.Task) {
	for _, depID := range wf.dependents[t.ID] {
		d, ok := wf.tasks[depID]
		if !ok || d.Status != task.StatusBlocked {
			continue
		}
		if !wf.depsCompleted(d) {
			continue
		}
		d.Status = task.StatusPending
		m.logger.Debug("task unblocked", "workflow_id", wf.id, "task_id", d.ID)
		if err := m.store.SaveTask(wf.id, d); err != nil {
			m.logger.Warn("persist unblocked task", "task_id", d.ID, "error", err)
		}
	}
}

// FailUnrunnable marks every task that can no longer run because one of its
// dependencies failed. The walk repeats until a fixpoint so failures cascade
// down the whole chain. Returns the newly failed tasks in insertion order.
func (m *Manager) FailUnrunnable(wf *Context) []*task.Task {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	now := time.Now().UTC()
	var failed []*task.Task
	for changed := true; changed; {
		changed = false
		for _, id := range wf.order {
			t := wf.tasks[id]
			if t.Status != task.StatusPending && t.Status != task.StatusBlocked {
				continue
			}
			dead := ""
			for _, dep := range t.Dependencies {
				if d, ok := wf.tasks[dep]; ok && d.Status == task.StatusFailed {
					dead = dep
					break
				}
			}
			if dead == "" {
				continue
			}
			t.Status = task.StatusFailed
			ts := now
			t.CompletedAt = &ts
			t.Result = &task.Result{Error: fmt.Sprintf("dependency %s failed", dead)}
			if err := m.store.SaveTask(wf.id, t); err != nil {
				m.logger.Warn("persist cascaded failure", "task_id", t.ID, "error", err)
			}
			failed = append(failed, t.Clone())
			changed = true
		}
	}
	return failed
}

func validTransition(from, to task.Status) bool {
	switch from {
	case task.StatusBlocked:
		return to == task.StatusPending
	case task.StatusPending:
		return to == task.StatusInProgress
	case task.StatusInProgress:
		return to == task.StatusCompleted || to == task.StatusFailed
	default:
		return false
	}
}

// ReassignType retags a task so a different handler dispatches it. The
// executor uses this for the one-shot reclassification retry.
func (m *Manager) ReassignType(wf *Context, taskID string, typ task.Type) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	t, ok := wf.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	t.Type = typ
	if err := m.store.SaveTask(wf.id, t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	return nil
}

// Status derives the aggregate workflow status from the task set.
func (m *Manager) Status(wf *Context) Status {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	counts := make(map[task.Status]int)
	for _, id := range wf.order {
		counts[wf.tasks[id].Status]++
	}
	return deriveStatus(counts, len(wf.order))
}

// Tasks returns every task in insertion order.
func (m *Manager) Tasks(wf *Context) []*task.Task {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	tasks := make([]*task.Task, 0, len(wf.order))
	for _, id := range wf.order {
		tasks = append(tasks, wf.tasks[id].Clone())
	}
	return tasks
}

// Task returns one task by id.
func (m *Manager) Task(wf *Context, taskID string) (*task.Task, bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	t, ok := wf.tasks[taskID]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// TaskArtifacts returns the named outputs of a completed task, or an empty
// map when the task has no result yet.
func (m *Manager) TaskArtifacts(wf *Context, taskID string) map[string]any {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	t, ok := wf.tasks[taskID]
	if !ok {
		return map[string]any{}
	}
	return t.Clone().Artifacts()
}

// TopologicalOrder returns the tasks in dependency order. Tasks caught in a
// dependency cycle are appended at the end in insertion order.
func (m *Manager) TopologicalOrder(wf *Context) []*task.Task {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	deps := make(map[string][]string, len(wf.order))
	for _, id := range wf.order {
		deps[id] = wf.tasks[id].Dependencies
	}
	sorted := topologicalOrder(wf.order, deps)

	seen := make(map[string]bool, len(sorted))
	tasks := make([]*task.Task, 0, len(wf.order))
	for _, id := range sorted {
		seen[id] = true
		tasks = append(tasks, wf.tasks[id].Clone())
	}
	for _, id := range wf.order {
		if !seen[id] {
			tasks = append(tasks, wf.tasks[id].Clone())
		}
	}
	return tasks
}
