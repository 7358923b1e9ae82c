package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"foreman/events"
	"foreman/task"
	"foreman/workflow"
)

// DeadlockError reports a workflow that can make no further progress while
// unfinished tasks remain.
type DeadlockError struct {
	WorkflowID string
	Stuck      []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("workflow %s deadlocked with tasks stuck: %s", e.WorkflowID, strings.Join(e.Stuck, ", "))
}

// Executor drives a workflow to a terminal overall status by repeatedly
// claiming executable tasks and dispatching them to handlers.
type Executor struct {
	manager      *workflow.Manager
	registry     *Registry
	strategy     Strategy
	events       events.WorkflowHandler
	classifiers  []Classifier
	retry        RetryPolicy
	pollInterval time.Duration
	logger       hclog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithStrategy replaces the default serial dispatch strategy.
func WithStrategy(s Strategy) Option {
	return func(e *Executor) {
		e.strategy = s
	}
}

// WithEvents installs a lifecycle event handler.
func WithEvents(h events.WorkflowHandler) Option {
	return func(e *Executor) {
		e.events = h
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger hclog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClassifiers replaces the default misclassification chain. An empty
// chain disables reclassification retries.
func WithClassifiers(cs []Classifier) Option {
	return func(e *Executor) {
		e.classifiers = cs
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Executor) {
		e.retry = p
	}
}

// WithPollInterval sets how long Run sleeps when all remaining work is
// in flight on other dispatchers.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.pollInterval = d
	}
}

// NewExecutor creates an executor over the given manager and handler
// registry.
func NewExecutor(manager *workflow.Manager, registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		manager:      manager,
		registry:     registry,
		strategy:     Serial{},
		events:       events.Nop{},
		classifiers:  DefaultClassifiers(),
		retry:        DefaultRetryPolicy(),
		pollInterval: 100 * time.Millisecond,
		logger:       hclog.New(&hclog.LoggerOptions{Name: "executor"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the workflow until no task is Pending, Blocked, or
// InProgress, then returns the final derived status. A task failure marks
// that task Failed and continues; only a deadlock or context cancellation
// aborts the loop early.
func (e *Executor) Run(ctx context.Context, wf *workflow.Context) (workflow.Status, error) {
	e.events.WorkflowStarted(wf.ID(), wf.Description(), e.manager.Status(wf).Total)

	for {
		if err := ctx.Err(); err != nil {
			return e.manager.Status(wf), nil
		}

		batch := e.manager.ClaimExecutable(wf)

		if len(batch) == 0 {
			status := e.manager.Status(wf)
			if status.Counts[task.StatusInProgress] > 0 {
				select {
				case <-ctx.Done():
					return status, nil
				case <-time.After(e.pollInterval):
				}
				continue
			}
			if status.Counts[task.StatusPending]+status.Counts[task.StatusBlocked] > 0 {
				// Tasks downstream of a failure can never run; fail them and
				// re-evaluate. Whatever remains stuck is a real deadlock.
				if cascaded := e.manager.FailUnrunnable(wf); len(cascaded) > 0 {
					for _, t := range cascaded {
						e.events.TaskFailed(wf.ID(), *t, errors.New(t.Result.Error))
					}
					continue
				}
				stuck := e.stuckTasks(wf)
				e.events.WorkflowDeadlocked(wf.ID(), stuck)
				return status, &DeadlockError{WorkflowID: wf.ID(), Stuck: stuck}
			}
			e.events.WorkflowCompleted(wf.ID(), status)
			return status, nil
		}

		e.strategy.Dispatch(ctx, batch, func(ctx context.Context, t *task.Task) {
			e.runTask(ctx, wf, t)
		})
	}
}

// runTask executes one claimed task, retrying once under a corrected type
// when the classifier chain recognizes a misclassification.
func (e *Executor) runTask(ctx context.Context, wf *workflow.Context, t *task.Task) {
	artifacts := mergeArtifacts(e.manager, wf, t)
	enhanced := renderEnhanced(t.Description, artifacts)
	e.events.TaskStarted(wf.ID(), *t, enhanced)

	resp, err := e.attempt(ctx, *t, enhanced, artifacts)
	attempts := 1

	for err != nil && attempts < e.retry.MaxAttempts {
		newType, ok := reclassify(e.classifiers, *t, err.Error())
		if !ok {
			break
		}
		from := t.Type
		if rerr := e.manager.ReassignType(wf, t.ID, newType); rerr != nil {
			e.logger.Warn("type reassignment failed", "task", t.ID, "error", rerr)
			break
		}
		t.Type = newType
		e.events.TaskReassigned(wf.ID(), *t, from, newType)
		e.logger.Info("retrying task under corrected type", "task", t.ID, "from", from, "to", newType)

		resp, err = e.attempt(ctx, *t, enhanced, artifacts)
		attempts++
	}

	if err != nil {
		result := &task.Result{Success: false, Error: err.Error()}
		if uerr := e.manager.UpdateTaskStatus(wf, t.ID, task.StatusFailed, result); uerr != nil {
			e.logger.Error("failed to record task failure", "task", t.ID, "error", uerr)
		}
		e.events.TaskFailed(wf.ID(), *t, err)
		return
	}

	result := &task.Result{
		Success:   true,
		Output:    resp.Output,
		Artifacts: deriveArtifacts(t, resp),
	}
	if uerr := e.manager.UpdateTaskStatus(wf, t.ID, task.StatusCompleted, result); uerr != nil {
		e.logger.Error("failed to record task completion", "task", t.ID, "error", uerr)
		return
	}
	e.events.TaskCompleted(wf.ID(), *t, resp.Output)
}

func (e *Executor) attempt(ctx context.Context, t task.Task, enhanced string, artifacts map[string]any) (*Response, error) {
	handler := e.registry.For(t.Type)
	resp, err := handler.Handle(ctx, Request{Task: t, Description: enhanced, Artifacts: artifacts})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

func (e *Executor) stuckTasks(wf *workflow.Context) []string {
	var stuck []string
	for _, t := range e.manager.Tasks(wf) {
		if t.Status == task.StatusPending || t.Status == task.StatusBlocked {
			stuck = append(stuck, t.ID)
		}
	}
	return stuck
}
