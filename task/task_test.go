package task_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"foreman/task"
)

var _ = Describe("Status", func() {
	It("marks only completed and failed as terminal", func() {
		Expect(task.StatusCompleted.Terminal()).To(BeTrue())
		Expect(task.StatusFailed.Terminal()).To(BeTrue())
		Expect(task.StatusPending.Terminal()).To(BeFalse())
		Expect(task.StatusBlocked.Terminal()).To(BeFalse())
		Expect(task.StatusInProgress.Terminal()).To(BeFalse())
	})
})

var _ = Describe("ParseType", func() {
	It("maps known tags to their type", func() {
		Expect(task.ParseType("file_creation")).To(Equal(task.TypeFileCreation))
		Expect(task.ParseType("web_browsing")).To(Equal(task.TypeWebBrowsing))
	})

	It("falls back to the general type for unknown tags", func() {
		Expect(task.ParseType("quantum_compute")).To(Equal(task.TypeGeneral))
		Expect(task.ParseType("")).To(Equal(task.TypeGeneral))
	})
})

var _ = Describe("Task", func() {
	newTask := func() *task.Task {
		started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		return &task.Task{
			ID:           "t1",
			Description:  "fetch the news",
			Type:         task.TypeWebBrowsing,
			Status:       task.StatusInProgress,
			Dependencies: []string{"t0"},
			Metadata:     map[string]string{"plan_id": "1"},
			Result: &task.Result{
				Success:   true,
				Output:    "headlines",
				Artifacts: map[string]any{"url": "https://example.com"},
			},
			CreatedAt: started.Add(-time.Minute),
			StartedAt: &started,
		}
	}

	Describe("Clone", func() {
		It("copies slices, maps, and the result", func() {
			original := newTask()
			clone := original.Clone()

			clone.Dependencies[0] = "other"
			clone.Metadata["plan_id"] = "2"
			clone.Result.Artifacts["url"] = "https://changed.example"
			*clone.StartedAt = clone.StartedAt.Add(time.Hour)

			Expect(original.Dependencies[0]).To(Equal("t0"))
			Expect(original.Metadata["plan_id"]).To(Equal("1"))
			Expect(original.Result.Artifacts["url"]).To(Equal("https://example.com"))
			Expect(original.StartedAt.Hour()).To(Equal(12))
		})

		It("handles a task with no optional fields", func() {
			t := &task.Task{ID: "bare", Status: task.StatusPending}
			clone := t.Clone()
			Expect(clone.ID).To(Equal("bare"))
			Expect(clone.Result).To(BeNil())
			Expect(clone.StartedAt).To(BeNil())
		})
	})

	Describe("Artifacts", func() {
		It("returns the result artifacts when present", func() {
			Expect(newTask().Artifacts()).To(HaveKeyWithValue("url", "https://example.com"))
		})

		It("returns an empty map when there is no result", func() {
			t := &task.Task{ID: "t2"}
			Expect(t.Artifacts()).To(BeEmpty())
		})
	})

	Describe("JSON encoding", func() {
		It("round-trips a full task", func() {
			original := newTask()
			data, err := json.Marshal(original)
			Expect(err).NotTo(HaveOccurred())

			var decoded task.Task
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(decoded.ID).To(Equal(original.ID))
			Expect(decoded.Type).To(Equal(task.TypeWebBrowsing))
			Expect(decoded.Status).To(Equal(task.StatusInProgress))
			Expect(decoded.Dependencies).To(Equal([]string{"t0"}))
			Expect(decoded.Result.Output).To(Equal("headlines"))
			Expect(decoded.StartedAt).NotTo(BeNil())
		})

		It("uses the task_type field name", func() {
			data, err := json.Marshal(newTask())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"task_type":"web_browsing"`))
		})
	})
})
