package executor

import (
	"strings"

	"foreman/task"
)

// Classifier inspects a failed task and proposes a better type for a
// retry. Classifiers are consulted in order; the first match wins.
type Classifier interface {
	Classify(t task.Task, failure string) (task.Type, bool)
}

// KeywordClassifier proposes Target for tasks currently typed From whose
// description contains any of the keywords.
type KeywordClassifier struct {
	From     task.Type
	Target   task.Type
	Keywords []string
}

func (c KeywordClassifier) Classify(t task.Task, failure string) (task.Type, bool) {
	if t.Type != c.From {
		return "", false
	}
	haystack := strings.ToLower(t.Description)
	for _, kw := range c.Keywords {
		if strings.Contains(haystack, kw) {
			return c.Target, true
		}
	}
	return "", false
}

// RetryPolicy bounds how many execution attempts a task gets, counting the
// first one. MaxAttempts of 2 allows a single reclassified retry.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy allows one reclassified retry per task.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

// DefaultClassifiers covers the common planner confusions between fetching
// content and writing it to disk.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		KeywordClassifier{
			From:     task.TypeWebBrowsing,
			Target:   task.TypeFileCreation,
			Keywords: []string{"create", "write", "save", "file", ".txt", ".md", ".csv", ".json"},
		},
		KeywordClassifier{
			From:     task.TypeFileCreation,
			Target:   task.TypeWebBrowsing,
			Keywords: []string{"fetch", "browse", "search the web", "look up", "website", "url", "http"},
		},
	}
}

// reclassify runs the chain and returns the first proposed type that
// differs from the task's current one.
func reclassify(classifiers []Classifier, t task.Task, failure string) (task.Type, bool) {
	for _, c := range classifiers {
		if typ, ok := c.Classify(t, failure); ok && typ != t.Type {
			return typ, true
		}
	}
	return "", false
}
