package store_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"foreman/store"
	"foreman/task"
)

// describeBundle runs the backend-independent store contract against a
// bundle factory. Both backends must behave identically.
func describeBundle(name string, factory func() *store.Bundle) bool {
	return Describe(name, func() {
		var bundle *store.Bundle

		BeforeEach(func() {
			bundle = factory()
			DeferCleanup(func() {
				Expect(bundle.Close()).To(Succeed())
			})
		})

		newTask := func(id string) *task.Task {
			started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			return &task.Task{
				ID:           id,
				Description:  "fetch headlines",
				Type:         task.TypeWebBrowsing,
				Status:       task.StatusCompleted,
				Dependencies: []string{"dep-1", "dep-2"},
				Metadata:     map[string]string{"plan_id": "3"},
				Result: &task.Result{
					Success: true,
					Output:  "three headlines",
					Artifacts: map[string]any{
						"url":       "https://example.com",
						"headlines": []any{"one", "two"},
					},
				},
				CreatedAt:   started.Add(-time.Minute),
				StartedAt:   &started,
				CompletedAt: &started,
			}
		}

		Describe("workflows", func() {
			It("round-trips a task with every optional field set", func() {
				Expect(bundle.Workflows.CreateWorkflow("wf-1", "news digest", time.Now().UTC())).To(Succeed())
				Expect(bundle.Workflows.SaveTask("wf-1", newTask("t1"))).To(Succeed())

				tasks, found, err := bundle.Workflows.LoadWorkflow("wf-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeTrue())
				Expect(tasks).To(HaveLen(1))

				got := tasks[0]
				Expect(got.Type).To(Equal(task.TypeWebBrowsing))
				Expect(got.Status).To(Equal(task.StatusCompleted))
				Expect(got.Dependencies).To(Equal([]string{"dep-1", "dep-2"}))
				Expect(got.Metadata).To(HaveKeyWithValue("plan_id", "3"))
				Expect(got.Result.Success).To(BeTrue())
				Expect(got.Result.Artifacts).To(HaveKeyWithValue("url", "https://example.com"))
				Expect(got.StartedAt).NotTo(BeNil())
				Expect(got.CompletedAt).NotTo(BeNil())
			})

			It("round-trips a minimal task", func() {
				Expect(bundle.Workflows.CreateWorkflow("wf-1", "minimal", time.Now().UTC())).To(Succeed())
				Expect(bundle.Workflows.SaveTask("wf-1", &task.Task{
					ID:          "bare",
					Description: "nothing optional",
					Type:        task.TypeGeneral,
					Status:      task.StatusPending,
					CreatedAt:   time.Now().UTC(),
				})).To(Succeed())

				tasks, found, err := bundle.Workflows.LoadWorkflow("wf-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeTrue())
				Expect(tasks[0].Result).To(BeNil())
				Expect(tasks[0].StartedAt).To(BeNil())
				Expect(tasks[0].Dependencies).To(BeEmpty())
			})

			It("upserts on repeated saves of the same task id", func() {
				Expect(bundle.Workflows.CreateWorkflow("wf-1", "upsert", time.Now().UTC())).To(Succeed())
				t := newTask("t1")
				t.Status = task.StatusPending
				t.Result = nil
				Expect(bundle.Workflows.SaveTask("wf-1", t)).To(Succeed())

				t.Status = task.StatusCompleted
				t.Result = &task.Result{Success: true, Output: "done"}
				Expect(bundle.Workflows.SaveTask("wf-1", t)).To(Succeed())

				tasks, _, err := bundle.Workflows.LoadWorkflow("wf-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(tasks).To(HaveLen(1))
				Expect(tasks[0].Status).To(Equal(task.StatusCompleted))
				Expect(tasks[0].Result.Output).To(Equal("done"))
			})

			It("preserves insertion order across saves", func() {
				Expect(bundle.Workflows.CreateWorkflow("wf-1", "ordered", time.Now().UTC())).To(Succeed())
				for i := 0; i < 5; i++ {
					t := newTask(fmt.Sprintf("t%d", i))
					Expect(bundle.Workflows.SaveTask("wf-1", t)).To(Succeed())
				}
				// Re-save an early task; its position must not change.
				Expect(bundle.Workflows.SaveTask("wf-1", newTask("t1"))).To(Succeed())

				tasks, _, err := bundle.Workflows.LoadWorkflow("wf-1")
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, len(tasks))
				for i, t := range tasks {
					ids[i] = t.ID
				}
				Expect(ids).To(Equal([]string{"t0", "t1", "t2", "t3", "t4"}))
			})

			It("reports found=false for an unknown workflow", func() {
				_, found, err := bundle.Workflows.LoadWorkflow("missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeFalse())

				_, found, err = bundle.Workflows.GetWorkflow("missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeFalse())
			})

			It("isolates tasks between workflows", func() {
				Expect(bundle.Workflows.CreateWorkflow("wf-1", "one", time.Now().UTC())).To(Succeed())
				Expect(bundle.Workflows.CreateWorkflow("wf-2", "two", time.Now().UTC())).To(Succeed())
				Expect(bundle.Workflows.SaveTask("wf-1", newTask("t1"))).To(Succeed())

				tasks, found, err := bundle.Workflows.LoadWorkflow("wf-2")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeTrue())
				Expect(tasks).To(BeEmpty())
			})

			It("lists workflows with their metadata", func() {
				Expect(bundle.Workflows.CreateWorkflow("wf-1", "first", time.Now().UTC().Add(-time.Hour))).To(Succeed())
				Expect(bundle.Workflows.CreateWorkflow("wf-2", "second", time.Now().UTC())).To(Succeed())

				metas, err := bundle.Workflows.ListWorkflows()
				Expect(err).NotTo(HaveOccurred())
				Expect(metas).To(HaveLen(2))
				Expect(metas[0].ID).To(Equal("wf-2"))
				Expect(metas[1].Description).To(Equal("first"))
			})
		})

		Describe("events", func() {
			storeEvents := func(n int) {
				for i := 0; i < n; i++ {
					taskID := fmt.Sprintf("t%d", i)
					Expect(bundle.Events.StoreEvent(store.WorkflowEvent{
						ID:         fmt.Sprintf("e%d", i),
						WorkflowID: "wf-1",
						TaskID:     &taskID,
						EventType:  "task_completed",
						DataJSON:   `{"output":"x"}`,
						CreatedAt:  time.Now().UTC(),
					})).To(Succeed())
				}
			}

			It("returns events for a workflow in append order", func() {
				storeEvents(3)
				events, err := bundle.Events.EventsByWorkflow("wf-1", 10, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(events).To(HaveLen(3))
				Expect(events[0].ID).To(Equal("e0"))
				Expect(*events[2].TaskID).To(Equal("t2"))
			})

			It("applies limit and offset", func() {
				storeEvents(5)
				events, err := bundle.Events.EventsByWorkflow("wf-1", 2, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(events).To(HaveLen(2))
				Expect(events[0].ID).To(Equal("e2"))
				Expect(events[1].ID).To(Equal("e3"))
			})

			It("returns nothing for an unknown workflow", func() {
				storeEvents(2)
				events, err := bundle.Events.EventsByWorkflow("other", 10, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(events).To(BeEmpty())
			})
		})
	})
}

var _ = describeBundle("MemoryBundle", store.NewMemoryBundle)

var _ = describeBundle("SQLiteBundle", newSQLiteBundle)
