// Package planner turns a free-text request into a validated workflow by
// asking a completion service for a subtask breakdown.
package planner

import (
	_ "embed"
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"foreman/llm"
	"foreman/task"
	"foreman/workflow"
)

//go:embed planner.md
var systemPromptTemplate string

// metadataPlanID records the planner-local id a task was materialized from.
const metadataPlanID = "plan_id"

// Planner builds workflows from natural-language requests. The completion
// service may fail; it is not retried here.
type Planner struct {
	provider llm.Provider
	model    string
	manager  *workflow.Manager
	logger   hclog.Logger

	// allowUnresolved drops dependency ids that do not resolve to a plan
	// subtask instead of rejecting the plan. Off by default: a dangling edge
	// usually means the model produced garbage, and silently dropping it
	// makes the dependent task unconditionally runnable.
	allowUnresolved bool
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the planner's logger.
func WithLogger(l hclog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// AllowUnresolvedDependencies makes the planner drop (with a warning)
// dependency ids that do not resolve, instead of failing the plan.
func AllowUnresolvedDependencies() Option {
	return func(p *Planner) { p.allowUnresolved = true }
}

// NewPlanner creates a Planner that materializes plans through the given
// workflow manager.
func NewPlanner(provider llm.Provider, model string, manager *workflow.Manager, opts ...Option) *Planner {
	p := &Planner{
		provider: provider,
		model:    model,
		manager:  manager,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan asks the completion service to decompose the request and materializes
// the result into a new workflow. The whole plan is rejected if its edges do
// not form a DAG.
func (p *Planner) Plan(ctx context.Context, request string) (*workflow.Context, error) {
	content, err := llm.Complete(ctx, p.provider, p.model, request, p.systemPrompt())
	if err != nil {
		return nil, fmt.Errorf("completion service: %w", err)
	}

	pl, err := parsePlan(content)
	if err != nil {
		return nil, err
	}

	specs, err := p.buildSpecs(pl)
	if err != nil {
		return nil, err
	}

	description := pl.MainTask
	if strings.TrimSpace(description) == "" {
		description = request
	}

	wf, err := p.manager.CreateWorkflow(description)
	if err != nil {
		return nil, err
	}
	if _, err := p.manager.AddTaskGraph(wf, specs); err != nil {
		return nil, fmt.Errorf("materialize plan: %w", err)
	}

	p.logger.Info("plan materialized",
		"workflow_id", wf.ID(), "subtasks", len(specs))
	return wf, nil
}

// buildSpecs converts plan subtasks into task specs, resolving planner-local
// dependency ids against the plan itself.
func (p *Planner) buildSpecs(pl *plan) ([]workflow.TaskSpec, error) {
	known := make(map[localID]bool, len(pl.Subtasks))
	for _, st := range pl.Subtasks {
		known[st.ID] = true
	}

	specs := make([]workflow.TaskSpec, 0, len(pl.Subtasks))
	for _, st := range pl.Subtasks {
		var deps []string
		for _, dep := range st.Dependencies {
			if !known[dep] {
				if !p.allowUnresolved {
					return nil, fmt.Errorf("subtask %q: %w: %s",
						st.ID, workflow.ErrDependencyNotFound, dep)
				}
				p.logger.Warn("dropping unresolved plan dependency",
					"subtask", string(st.ID), "dependency", string(dep))
				continue
			}
			deps = append(deps, string(dep))
		}

		specs = append(specs, workflow.TaskSpec{
			LocalID:      string(st.ID),
			Description:  st.Description,
			Type:         task.ParseType(st.TaskType),
			Dependencies: deps,
			Metadata:     map[string]string{metadataPlanID: string(st.ID)},
		})
	}
	return specs, nil
}

func (p *Planner) systemPrompt() string {
	var types []string
	for _, t := range task.Types() {
		types = append(types, "- `"+string(t)+"`")
	}
	return strings.Replace(systemPromptTemplate, "{{TASK_TYPES}}", strings.Join(types, "\n"), 1)
}
