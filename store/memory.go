package store

import (
	"sort"
	"sync"
	"time"

	"foreman/task"
)

// NewMemoryBundle creates a Bundle backed entirely by in-memory stores
func NewMemoryBundle() *Bundle {
	return &Bundle{
		Workflows: &MemoryWorkflowStore{workflows: make(map[string]*memWorkflow)},
		Events:    &MemoryEventStore{},
	}
}

type memWorkflow struct {
	meta  WorkflowMeta
	tasks map[string]*task.Task
	order []string
}

// MemoryWorkflowStore keeps workflows in process memory. Useful for tests
// and one-shot runs where durability does not matter.
type MemoryWorkflowStore struct {
	mu        sync.Mutex
	workflows map[string]*memWorkflow
}

func (s *MemoryWorkflowStore) CreateWorkflow(id, description string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[id] = &memWorkflow{
		meta:  WorkflowMeta{ID: id, Description: description, CreatedAt: createdAt},
		tasks: make(map[string]*task.Task),
	}
	return nil
}

func (s *MemoryWorkflowStore) SaveTask(workflowID string, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		// Tolerate tasks arriving before the meta record; the layout is
		// keyed by workflow id either way.
		wf = &memWorkflow{
			meta:  WorkflowMeta{ID: workflowID},
			tasks: make(map[string]*task.Task),
		}
		s.workflows[workflowID] = wf
	}
	if _, exists := wf.tasks[t.ID]; !exists {
		wf.order = append(wf.order, t.ID)
	}
	wf.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryWorkflowStore) LoadWorkflow(workflowID string) ([]*task.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		return nil, false, nil
	}
	tasks := make([]*task.Task, 0, len(wf.order))
	for _, id := range wf.order {
		tasks = append(tasks, wf.tasks[id].Clone())
	}
	return tasks, true, nil
}

func (s *MemoryWorkflowStore) GetWorkflow(workflowID string) (WorkflowMeta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[workflowID]
	if !ok {
		return WorkflowMeta{}, false, nil
	}
	return wf.meta, true, nil
}

func (s *MemoryWorkflowStore) ListWorkflows() ([]WorkflowMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metas := make([]WorkflowMeta, 0, len(s.workflows))
	for _, wf := range s.workflows {
		metas = append(metas, wf.meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// MemoryEventStore keeps events in an append-only slice.
type MemoryEventStore struct {
	mu     sync.Mutex
	events []WorkflowEvent
}

func (s *MemoryEventStore) StoreEvent(e WorkflowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryEventStore) EventsByWorkflow(workflowID string, limit, offset int) ([]WorkflowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []WorkflowEvent
	for _, e := range s.events {
		if e.WorkflowID == workflowID {
			matched = append(matched, e)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}
