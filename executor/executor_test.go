package executor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"foreman/executor"
	"foreman/store"
	"foreman/task"
	"foreman/workflow"
)

// echoHandler succeeds with a fixed output.
func echoHandler(output string) executor.Handler {
	return executor.HandlerFunc(func(ctx context.Context, req executor.Request) (*executor.Response, error) {
		return &executor.Response{Output: output}, nil
	})
}

func idsOf(tasks []*task.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// failHandler always fails.
func failHandler(msg string) executor.Handler {
	return executor.HandlerFunc(func(ctx context.Context, req executor.Request) (*executor.Response, error) {
		return nil, errors.New(msg)
	})
}

var _ = Describe("Executor", func() {
	var (
		m      *workflow.Manager
		wf     *workflow.Context
		events *spyEvents
	)

	BeforeEach(func() {
		m = workflow.NewManager(store.NewMemoryBundle().Workflows)
		var err error
		wf, err = m.CreateWorkflow("test run")
		Expect(err).NotTo(HaveOccurred())
		events = &spyEvents{}
	})

	newExec := func(reg *executor.Registry, opts ...executor.Option) *executor.Executor {
		opts = append([]executor.Option{executor.WithEvents(events)}, opts...)
		return executor.NewExecutor(m, reg, opts...)
	}

	It("runs a linear chain to completion in dependency order", func() {
		a, _ := m.AddTask(wf, "first", task.TypeGeneral, nil, nil)
		b, _ := m.AddTask(wf, "second", task.TypeGeneral, []string{a}, nil)

		var order []string
		var mu sync.Mutex
		reg := executor.NewRegistry(executor.HandlerFunc(func(ctx context.Context, req executor.Request) (*executor.Response, error) {
			mu.Lock()
			order = append(order, req.Task.ID)
			mu.Unlock()
			return &executor.Response{Output: "ok"}, nil
		}))

		status, err := newExec(reg).Run(context.Background(), wf)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Overall).To(Equal(workflow.OverallCompleted))
		Expect(order).To(Equal([]string{a, b}))
		Expect(events.Names()).To(ContainElement("workflow_completed"))
	})

	It("completes a resumed workflow whose claimed task was interrupted mid-run", func() {
		bundle := store.NewMemoryBundle()
		mgr := workflow.NewManager(bundle.Workflows)
		created, err := mgr.CreateWorkflow("interrupted run")
		Expect(err).NotTo(HaveOccurred())

		a, _ := mgr.AddTask(created, "first", task.TypeGeneral, nil, nil)
		b, _ := mgr.AddTask(created, "second", task.TypeGeneral, []string{a}, nil)

		// The previous run claimed a and died before the handler finished.
		Expect(idsOf(mgr.ClaimExecutable(created))).To(ConsistOf(a))

		loaded, found, err := mgr.LoadWorkflow(created.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())

		reg := executor.NewRegistry(echoHandler("ok"))
		exec := executor.NewExecutor(mgr, reg, executor.WithEvents(events))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		status, err := exec.Run(ctx, loaded)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Overall).To(Equal(workflow.OverallCompleted))

		ta, _ := mgr.Task(loaded, a)
		Expect(ta.Status).To(Equal(task.StatusCompleted))
		tb, _ := mgr.Task(loaded, b)
		Expect(tb.Status).To(Equal(task.StatusCompleted))
	})

	It("feeds dependency artifacts into the dependent's description", func() {
		a, _ := m.AddTask(wf, "research topic", task.TypeWebBrowsing, nil, nil)
		_, err := m.AddTask(wf, "summarize findings", task.TypeGeneral, []string{a}, nil)
		Expect(err).NotTo(HaveOccurred())

		var secondDescription string
		reg := executor.NewRegistry(executor.HandlerFunc(func(ctx context.Context, req executor.Request) (*executor.Response, error) {
			if req.Task.ID == a {
				return &executor.Response{Output: "Findings at https://example.com/report"}, nil
			}
			secondDescription = req.Description
			return &executor.Response{Output: "summary"}, nil
		}))

		_, err = newExec(reg).Run(context.Background(), wf)
		Expect(err).NotTo(HaveOccurred())
		Expect(secondDescription).To(ContainSubstring("summarize findings"))
		Expect(secondDescription).To(ContainSubstring("https://example.com/report"))
	})

	It("keeps truncated multibyte artifact values valid UTF-8", func() {
		a, _ := m.AddTask(wf, "collect notes", task.TypeGeneral, nil, nil)
		_, err := m.AddTask(wf, "compile notes", task.TypeGeneral, []string{a}, nil)
		Expect(err).NotTo(HaveOccurred())

		long := strings.Repeat("日本語の見出し ", 120)
		var secondDescription string
		reg := executor.NewRegistry(executor.HandlerFunc(func(ctx context.Context, req executor.Request) (*executor.Response, error) {
			if req.Task.ID == a {
				return &executor.Response{Output: long}, nil
			}
			secondDescription = req.Description
			return &executor.Response{Output: "done"}, nil
		}))

		_, err = newExec(reg).Run(context.Background(), wf)
		Expect(err).NotTo(HaveOccurred())
		Expect(secondDescription).To(ContainSubstring("日本語"))
		Expect(utf8.ValidString(secondDescription)).To(BeTrue())

		summary, ok := m.TaskArtifacts(wf, a)["summary"].(string)
		Expect(ok).To(BeTrue())
		Expect(utf8.ValidString(summary)).To(BeTrue())
	})

	It("extracts typed artifacts from a completed task", func() {
		a, _ := m.AddTask(wf, "browse the news", task.TypeWebBrowsing, nil, nil)
		reg := executor.NewRegistry(echoHandler("Top story today. Read more at https://news.example/story"))

		_, err := newExec(reg).Run(context.Background(), wf)
		Expect(err).NotTo(HaveOccurred())

		artifacts := m.TaskArtifacts(wf, a)
		Expect(artifacts).To(HaveKeyWithValue("url", "https://news.example/story"))
		Expect(artifacts).To(HaveKey("information"))
	})

	It("continues past a task failure and reports partial completion", func() {
		a, _ := m.AddTask(wf, "will fail", task.TypeGeneral, nil, nil)
		b, _ := m.AddTask(wf, "independent", task.TypeWebBrowsing, nil, nil)
		c, _ := m.AddTask(wf, "downstream of failure", task.TypeGeneral, []string{a}, nil)

		reg := executor.NewRegistry(echoHandler("ok"))
		reg.Register(task.TypeGeneral, failHandler("boom"))

		status, err := newExec(reg, executor.WithClassifiers(nil)).Run(context.Background(), wf)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Overall).To(Equal(workflow.OverallPartiallyCompleted))

		ta, _ := m.Task(wf, a)
		tb, _ := m.Task(wf, b)
		tc, _ := m.Task(wf, c)
		Expect(ta.Status).To(Equal(task.StatusFailed))
		Expect(ta.Result.Error).To(ContainSubstring("boom"))
		Expect(tb.Status).To(Equal(task.StatusCompleted))
		Expect(tc.Status).To(Equal(task.StatusFailed))
		Expect(events.Names()).To(ContainElement("task_failed"))
	})

	It("detects a dependency cycle as a deadlock", func() {
		a, _ := m.AddTask(wf, "a", task.TypeGeneral, nil, nil)
		b, _ := m.AddTask(wf, "b", task.TypeGeneral, nil, nil)
		Expect(m.SetDependencies(wf, a, []string{b})).To(Succeed())
		Expect(m.SetDependencies(wf, b, []string{a})).To(Succeed())

		reg := executor.NewRegistry(echoHandler("ok"))
		_, err := newExec(reg).Run(context.Background(), wf)

		var deadlock *executor.DeadlockError
		Expect(errors.As(err, &deadlock)).To(BeTrue())
		Expect(deadlock.Stuck).To(ConsistOf(a, b))
		Expect(events.Names()).To(ContainElement("workflow_deadlocked"))
		Expect(events.stuck).To(ConsistOf(a, b))
	})

	Describe("reclassification retry", func() {
		It("retries once under the corrected type", func() {
			id, _ := m.AddTask(wf, "save the results to report.txt", task.TypeWebBrowsing, nil, nil)

			reg := executor.NewRegistry(echoHandler("fallback"))
			reg.Register(task.TypeWebBrowsing, failHandler("cannot browse"))
			reg.Register(task.TypeFileCreation, echoHandler("file written"))

			status, err := newExec(reg).Run(context.Background(), wf)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Overall).To(Equal(workflow.OverallCompleted))

			t, _ := m.Task(wf, id)
			Expect(t.Type).To(Equal(task.TypeFileCreation))
			Expect(t.Status).To(Equal(task.StatusCompleted))
			Expect(events.reassigned).To(Equal([]task.Type{task.TypeFileCreation}))
		})

		It("reclassifies in the opposite direction too", func() {
			id, _ := m.AddTask(wf, "look up the website for pricing", task.TypeFileCreation, nil, nil)

			reg := executor.NewRegistry(echoHandler("fallback"))
			reg.Register(task.TypeFileCreation, failHandler("nothing to write"))
			reg.Register(task.TypeWebBrowsing, echoHandler("found pricing"))

			_, err := newExec(reg).Run(context.Background(), wf)
			Expect(err).NotTo(HaveOccurred())

			t, _ := m.Task(wf, id)
			Expect(t.Type).To(Equal(task.TypeWebBrowsing))
			Expect(t.Status).To(Equal(task.StatusCompleted))
		})

		It("fails without retrying when no classifier matches", func() {
			id, _ := m.AddTask(wf, "completely opaque objective", task.TypeGeneral, nil, nil)

			reg := executor.NewRegistry(failHandler("no idea"))
			_, err := newExec(reg).Run(context.Background(), wf)
			Expect(err).NotTo(HaveOccurred())

			t, _ := m.Task(wf, id)
			Expect(t.Status).To(Equal(task.StatusFailed))
			Expect(events.reassigned).To(BeEmpty())
		})

		It("does not retry when the retry policy allows a single attempt", func() {
			id, _ := m.AddTask(wf, "save results to report.txt", task.TypeWebBrowsing, nil, nil)

			reg := executor.NewRegistry(echoHandler("ok"))
			reg.Register(task.TypeWebBrowsing, failHandler("cannot browse"))

			_, err := newExec(reg, executor.WithRetryPolicy(executor.RetryPolicy{MaxAttempts: 1})).Run(context.Background(), wf)
			Expect(err).NotTo(HaveOccurred())

			t, _ := m.Task(wf, id)
			Expect(t.Status).To(Equal(task.StatusFailed))
			Expect(t.Type).To(Equal(task.TypeWebBrowsing))
		})
	})

	Describe("pooled dispatch", func() {
		It("executes every independent task exactly once", func() {
			const n = 8
			for i := 0; i < n; i++ {
				_, err := m.AddTask(wf, fmt.Sprintf("task %d", i), task.TypeGeneral, nil, nil)
				Expect(err).NotTo(HaveOccurred())
			}

			var mu sync.Mutex
			seen := map[string]int{}
			reg := executor.NewRegistry(executor.HandlerFunc(func(ctx context.Context, req executor.Request) (*executor.Response, error) {
				mu.Lock()
				seen[req.Task.ID]++
				mu.Unlock()
				return &executor.Response{Output: "ok"}, nil
			}))

			status, err := newExec(reg, executor.WithStrategy(executor.Pool{Workers: 4})).Run(context.Background(), wf)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Overall).To(Equal(workflow.OverallCompleted))
			Expect(seen).To(HaveLen(n))
			for _, count := range seen {
				Expect(count).To(Equal(1))
			}
		})
	})

	It("stops claiming new work when the context is cancelled", func() {
		a, _ := m.AddTask(wf, "first", task.TypeGeneral, nil, nil)
		_, err := m.AddTask(wf, "second", task.TypeGeneral, []string{a}, nil)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		reg := executor.NewRegistry(executor.HandlerFunc(func(hctx context.Context, req executor.Request) (*executor.Response, error) {
			cancel()
			return &executor.Response{Output: "ok"}, nil
		}))

		status, err := newExec(reg, executor.WithPollInterval(time.Millisecond)).Run(ctx, wf)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Counts[task.StatusCompleted]).To(Equal(1))
		Expect(status.Overall).NotTo(Equal(workflow.OverallCompleted))
	})
})
