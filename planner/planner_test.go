package planner_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"foreman/planner"
	"foreman/store"
	"foreman/task"
	"foreman/workflow"
)

const newsPlanJSON = `{
  "main_task": "Create a summary of today's AI news",
  "subtasks": [
    {"id": 1, "description": "Find today's top AI headlines", "task_type": "web_browsing", "dependencies": []},
    {"id": 2, "description": "Summarize the headlines", "task_type": "general_task", "dependencies": [1]},
    {"id": 3, "description": "Write the summary to news.md", "task_type": "file_creation", "dependencies": [2]}
  ]
}`

var _ = Describe("Planner", func() {
	var (
		provider *fakeProvider
		manager  *workflow.Manager
	)

	BeforeEach(func() {
		provider = &fakeProvider{Content: newsPlanJSON}
		manager = workflow.NewManager(store.NewMemoryBundle().Workflows)
	})

	plan := func(opts ...planner.Option) (*workflow.Context, error) {
		p := planner.NewPlanner(provider, "test-model", manager, opts...)
		return p.Plan(context.Background(), "summarize today's AI news")
	}

	It("materializes a plan into a workflow with resolved dependencies", func() {
		wf, err := plan()
		Expect(err).NotTo(HaveOccurred())
		Expect(wf.Description()).To(Equal("Create a summary of today's AI news"))

		tasks := manager.TopologicalOrder(wf)
		Expect(tasks).To(HaveLen(3))
		Expect(tasks[0].Type).To(Equal(task.TypeWebBrowsing))
		Expect(tasks[0].Status).To(Equal(task.StatusPending))
		Expect(tasks[1].Dependencies).To(Equal([]string{tasks[0].ID}))
		Expect(tasks[2].Type).To(Equal(task.TypeFileCreation))
		Expect(tasks[2].Status).To(Equal(task.StatusBlocked))
	})

	It("records the planner-local id in task metadata", func() {
		wf, err := plan()
		Expect(err).NotTo(HaveOccurred())

		tasks := manager.TopologicalOrder(wf)
		Expect(tasks[0].Metadata).To(HaveKeyWithValue("plan_id", "1"))
	})

	It("sends the task type vocabulary to the model", func() {
		_, err := plan()
		Expect(err).NotTo(HaveOccurred())
		Expect(provider.Requests).To(HaveLen(1))

		system := provider.Requests[0].Messages[0]
		Expect(system.Content).To(ContainSubstring("web_browsing"))
		Expect(system.Content).To(ContainSubstring("file_creation"))
	})

	It("accepts a plan wrapped in a fenced code block", func() {
		provider.Content = "Here is the plan:\n```json\n" + newsPlanJSON + "\n```\nDone."
		wf, err := plan()
		Expect(err).NotTo(HaveOccurred())
		Expect(manager.Tasks(wf)).To(HaveLen(3))
	})

	It("maps unknown task types to the general type", func() {
		provider.Content = `{"main_task": "x", "subtasks": [
			{"id": "a", "description": "do something exotic", "task_type": "teleportation", "dependencies": []}
		]}`
		wf, err := plan()
		Expect(err).NotTo(HaveOccurred())
		Expect(manager.Tasks(wf)[0].Type).To(Equal(task.TypeGeneral))
	})

	It("falls back to the request as description when main_task is empty", func() {
		provider.Content = `{"subtasks": [
			{"id": "a", "description": "only step", "task_type": "general_task", "dependencies": []}
		]}`
		wf, err := plan()
		Expect(err).NotTo(HaveOccurred())
		Expect(wf.Description()).To(Equal("summarize today's AI news"))
	})

	It("propagates completion service failures", func() {
		provider.Err = errors.New("rate limited")
		_, err := plan()
		Expect(err).To(MatchError(ContainSubstring("rate limited")))
	})

	It("returns a ParseError for a completion with no JSON", func() {
		provider.Content = "I could not produce a plan."
		_, err := plan()
		var parseErr *planner.ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
	})

	It("returns a ParseError for a plan with no subtasks", func() {
		provider.Content = `{"main_task": "x", "subtasks": []}`
		_, err := plan()
		var parseErr *planner.ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
	})

	Context("with an unresolved dependency reference", func() {
		BeforeEach(func() {
			provider.Content = `{"main_task": "x", "subtasks": [
				{"id": "a", "description": "first", "task_type": "general_task", "dependencies": []},
				{"id": "b", "description": "second", "task_type": "general_task", "dependencies": ["a", "ghost"]}
			]}`
		})

		It("rejects the plan by default", func() {
			_, err := plan()
			Expect(err).To(MatchError(workflow.ErrDependencyNotFound))
		})

		It("drops the dangling edge when allowed", func() {
			wf, err := plan(planner.AllowUnresolvedDependencies())
			Expect(err).NotTo(HaveOccurred())

			tasks := manager.TopologicalOrder(wf)
			Expect(tasks).To(HaveLen(2))
			Expect(tasks[1].Dependencies).To(Equal([]string{tasks[0].ID}))
		})
	})

	It("rejects a plan whose edges form a cycle", func() {
		provider.Content = `{"main_task": "x", "subtasks": [
			{"id": "a", "description": "first", "task_type": "general_task", "dependencies": ["b"]},
			{"id": "b", "description": "second", "task_type": "general_task", "dependencies": ["a"]}
		]}`
		_, err := plan()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("cycle"))
	})
})
