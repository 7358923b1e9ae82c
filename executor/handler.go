package executor

import (
	"context"

	"foreman/task"
)

// Request carries everything a handler needs for one execution attempt.
type Request struct {
	// Task is a snapshot of the task being executed.
	Task task.Task

	// Description is the task's own description with a rendering of the
	// dependency artifacts appended. This is the sole channel by which data
	// flows from a producer task into a consumer.
	Description string

	// Artifacts is the merged artifact map of the task's dependencies.
	Artifacts map[string]any
}

// Response is what a handler produced on success.
type Response struct {
	// Output is the raw, handler-specific result payload.
	Output string

	// Artifacts are named outputs the handler wants to expose directly.
	// They take precedence over the per-type extraction rules.
	Artifacts map[string]any
}

// Handler executes one task. A nil error means success; the executor is
// agnostic to what the handler actually did.
type Handler interface {
	Handle(ctx context.Context, req Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Registry maps task types to handlers, resolved once at startup. Unknown
// types route to an explicit fallback rather than failing dispatch.
type Registry struct {
	handlers map[task.Type]Handler
	fallback Handler
}

// NewRegistry creates a registry with the given fallback handler.
func NewRegistry(fallback Handler) *Registry {
	return &Registry{
		handlers: make(map[task.Type]Handler),
		fallback: fallback,
	}
}

// Register binds a handler to a task type, replacing any previous binding.
func (r *Registry) Register(t task.Type, h Handler) {
	r.handlers[t] = h
}

// For returns the handler for a task type, or the fallback when none is
// registered.
func (r *Registry) For(t task.Type) Handler {
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.fallback
}
