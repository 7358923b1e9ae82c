package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that the completion text contained no usable plan.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse plan: %s", e.Reason)
}

// localID is a planner-local task identifier. Models emit these as strings
// or bare numbers depending on mood, so accept both.
type localID string

func (l *localID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*l = localID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*l = localID(n.String())
	return nil
}

type subtask struct {
	ID           localID   `json:"id"`
	Description  string    `json:"description"`
	TaskType     string    `json:"task_type"`
	Dependencies []localID `json:"dependencies"`
}

type plan struct {
	MainTask string    `json:"main_task"`
	Subtasks []subtask `json:"subtasks"`
}

// extractJSON pulls the JSON object out of a completion. Models wrap their
// output in fenced code blocks about as often as they emit bare objects, so
// both forms are supported.
func extractJSON(content string) (string, error) {
	if fenced, ok := extractFenced(content); ok {
		content = fenced
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", &ParseError{Reason: "no JSON object in completion", Raw: content}
	}
	return content[start : end+1], nil
}

func extractFenced(content string) (string, bool) {
	for _, marker := range []string{"```json", "```"} {
		open := strings.Index(content, marker)
		if open == -1 {
			continue
		}
		rest := content[open+len(marker):]
		close := strings.Index(rest, "```")
		if close == -1 {
			continue
		}
		return rest[:close], true
	}
	return "", false
}

// parsePlan decodes and minimally validates a plan.
func parsePlan(content string) (*plan, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var p plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: content}
	}
	if len(p.Subtasks) == 0 {
		return nil, &ParseError{Reason: "plan has no subtasks", Raw: content}
	}
	for i, st := range p.Subtasks {
		if st.ID == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("subtask %d has no id", i), Raw: content}
		}
		if strings.TrimSpace(st.Description) == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("subtask %q has no description", st.ID), Raw: content}
		}
	}
	return &p, nil
}
