package events_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"foreman/events"
	"foreman/store"
	"foreman/task"
	"foreman/workflow"
)

// countingHandler verifies delegation to the wrapped handler.
type countingHandler struct {
	events.Nop
	completed int
}

func (c *countingHandler) TaskCompleted(workflowID string, t task.Task, output string) {
	c.completed++
}

// failingEventStore rejects every write.
type failingEventStore struct{}

func (failingEventStore) StoreEvent(e store.WorkflowEvent) error {
	return errors.New("disk full")
}

func (failingEventStore) EventsByWorkflow(workflowID string, limit, offset int) ([]store.WorkflowEvent, error) {
	return nil, nil
}

var _ = Describe("StoringHandler", func() {
	var (
		bundle *store.Bundle
		inner  *countingHandler
	)

	BeforeEach(func() {
		bundle = store.NewMemoryBundle()
		inner = &countingHandler{}
	})

	It("persists one event per callback with the task id attached", func() {
		h := events.NewStoringHandler(inner, bundle.Events, nil)

		t := task.Task{ID: "t1", Type: task.TypeGeneral}
		h.WorkflowStarted("wf-1", "digest", 2)
		h.TaskStarted("wf-1", t, "do the thing")
		h.TaskCompleted("wf-1", t, "done")
		h.WorkflowCompleted("wf-1", workflow.Status{Overall: workflow.OverallCompleted})

		stored, err := bundle.Events.EventsByWorkflow("wf-1", 10, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(4))
		Expect(stored[0].EventType).To(Equal(events.TypeWorkflowStarted))
		Expect(stored[1].TaskID).NotTo(BeNil())
		Expect(*stored[1].TaskID).To(Equal("t1"))
		Expect(stored[2].DataJSON).To(ContainSubstring("done"))
		Expect(stored[3].EventType).To(Equal(events.TypeWorkflowCompleted))
	})

	It("delegates to the wrapped handler", func() {
		h := events.NewStoringHandler(inner, bundle.Events, nil)
		h.TaskCompleted("wf-1", task.Task{ID: "t1"}, "out")
		Expect(inner.completed).To(Equal(1))
	})

	It("still delegates when the store rejects the write", func() {
		h := events.NewStoringHandler(inner, failingEventStore{}, nil)
		h.TaskCompleted("wf-1", task.Task{ID: "t1"}, "out")
		Expect(inner.completed).To(Equal(1))
	})
})
