package workflow

import (
	"sync"
	"time"

	"foreman/task"
)

// Context holds the live DAG for one workflow. All access goes through
// Manager methods, which serialize on the context's mutex; that mutex is the
// single synchronization point between concurrent dispatch and graph
// mutation.
type Context struct {
	mu sync.Mutex

	id          string
	description string
	createdAt   time.Time

	tasks map[string]*task.Task
	order []string // task ids in insertion order

	// dependents is the reverse-dependency index: dependency id -> ids of
	// tasks waiting on it. Rebuilt from each task's Dependencies on load.
	dependents map[string][]string
}

func newContext(id, description string, createdAt time.Time) *Context {
	return &Context{
		id:          id,
		description: description,
		createdAt:   createdAt,
		tasks:       make(map[string]*task.Task),
		dependents:  make(map[string][]string),
	}
}

// ID returns the workflow id.
func (c *Context) ID() string { return c.id }

// Description returns the human description the workflow was created with.
func (c *Context) Description() string { return c.description }

// CreatedAt returns the workflow creation time.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// registerDependents records t as a dependent of each of its dependencies.
// Caller holds c.mu.
func (c *Context) registerDependents(t *task.Task) {
	for _, dep := range t.Dependencies {
		c.dependents[dep] = append(c.dependents[dep], t.ID)
	}
}

// unregisterDependents removes t from the reverse index. Caller holds c.mu.
func (c *Context) unregisterDependents(t *task.Task) {
	for _, dep := range t.Dependencies {
		ids := c.dependents[dep]
		for i, id := range ids {
			if id == t.ID {
				c.dependents[dep] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(c.dependents[dep]) == 0 {
			delete(c.dependents, dep)
		}
	}
}

// depsCompleted reports whether every dependency of t is Completed.
// Caller holds c.mu.
func (c *Context) depsCompleted(t *task.Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := c.tasks[dep]
		if !ok || d.Status != task.StatusCompleted {
			return false
		}
	}
	return true
}
