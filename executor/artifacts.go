package executor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"foreman/task"
	"foreman/workflow"
)

var urlPattern = regexp.MustCompile(`https?://[^\s)"']+`)

// mergeArtifacts collects the artifacts of every dependency of t in
// declaration order. When two dependencies expose the same key the later
// dependency wins.
func mergeArtifacts(mgr *workflow.Manager, wf *workflow.Context, t *task.Task) map[string]any {
	merged := map[string]any{}
	for _, depID := range t.Dependencies {
		for k, v := range mgr.TaskArtifacts(wf, depID) {
			merged[k] = v
		}
	}
	return merged
}

// renderEnhanced appends a readable summary of the dependency artifacts to
// the task description so a handler sees its inputs without any side
// channel.
func renderEnhanced(description string, artifacts map[string]any) string {
	if len(artifacts) == 0 {
		return description
	}
	keys := make([]string, 0, len(artifacts))
	for k := range artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\nContext from completed dependencies:\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("- %s: %s\n", k, renderValue(artifacts[k])))
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return truncateValue(val, 500)
	case []string:
		return truncateValue(strings.Join(val, "; "), 500)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return truncateValue(strings.Join(parts, "; "), 500)
	default:
		return truncateValue(fmt.Sprintf("%v", v), 500)
	}
}

// truncateValue shortens s to max runes, appending an ellipsis when cut.
func truncateValue(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// deriveArtifacts builds the artifact map recorded on a completed task.
// Handler-provided artifacts win; the rest is extracted from the output
// according to the task type.
func deriveArtifacts(t *task.Task, resp *Response) map[string]any {
	artifacts := map[string]any{}

	switch t.Type {
	case task.TypeFileCreation:
		name := FileNameFrom(t.Description)
		if name != "" {
			artifacts["filename"] = name
			if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
				artifacts["file_type"] = name[idx+1:]
			}
		}
		artifacts["content_preview"] = truncateValue(resp.Output, 200)
	case task.TypeWebBrowsing:
		if urls := urlPattern.FindAllString(resp.Output, -1); len(urls) > 0 {
			artifacts["url"] = urls[0]
		}
		if lines := headlineLines(resp.Output); len(lines) > 0 {
			artifacts["headlines"] = lines
		}
		artifacts["information"] = truncateValue(resp.Output, 500)
	case task.TypeImageSearch:
		if urls := urlPattern.FindAllString(resp.Output, -1); len(urls) > 0 {
			artifacts["urls"] = urls
		}
	case task.TypeImageAnalysis:
		artifacts["analysis"] = truncateValue(resp.Output, 500)
	default:
		artifacts["summary"] = truncateValue(resp.Output, 500)
	}

	for k, v := range resp.Artifacts {
		artifacts[k] = v
	}
	return artifacts
}

// FileNameFrom pulls a plausible file name out of a task description. A word
// qualifies when it carries a short, digit-free extension. Handlers that need
// a target name share this heuristic.
func FileNameFrom(description string) string {
	for _, word := range strings.Fields(description) {
		word = strings.Trim(word, `"'.,;:()`)
		if idx := strings.LastIndex(word, "."); idx > 0 && idx < len(word)-1 {
			ext := word[idx+1:]
			if len(ext) <= 5 && !strings.ContainsAny(ext, "0123456789") {
				return word
			}
		}
	}
	return ""
}

// headlineLines treats short leading lines of the output as headlines.
func headlineLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line == "" {
			continue
		}
		if len(line) <= 120 {
			lines = append(lines, line)
		}
		if len(lines) == 5 {
			break
		}
	}
	return lines
}
