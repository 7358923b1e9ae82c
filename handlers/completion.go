// Package handlers provides the built-in task handlers wired into the
// executor registry: LLM-backed handlers for research and analysis work,
// and a filesystem handler for file creation tasks.
package handlers

import (
	"context"
	"fmt"

	"foreman/executor"
	"foreman/llm"
)

// CompletionHandler executes a task as a single LLM completion over the
// enhanced task description. It serves the general, analysis, and
// research-flavored task types.
type CompletionHandler struct {
	provider llm.Provider
	model    string
	system   string
}

// NewCompletionHandler creates a handler backed by the given provider and
// model. The system prompt frames how the model should treat the task.
func NewCompletionHandler(provider llm.Provider, model, systemPrompt string) *CompletionHandler {
	return &CompletionHandler{
		provider: provider,
		model:    model,
		system:   systemPrompt,
	}
}

func (h *CompletionHandler) Handle(ctx context.Context, req executor.Request) (*executor.Response, error) {
	output, err := llm.Complete(ctx, h.provider, h.model, req.Description, h.system)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return &executor.Response{Output: output}, nil
}

const generalSystemPrompt = `You are a capable assistant executing one task from a larger workflow.
The task description may include context produced by earlier tasks; use it.
Respond with the direct result of the task only, no preamble.`

const researchSystemPrompt = `You are a research assistant executing one task from a larger workflow.
Summarize the most relevant findings as short lines, and include source URLs
when you know them. Respond with the findings only, no preamble.`

const analysisSystemPrompt = `You are an analyst executing one task from a larger workflow.
The task description includes the material to analyze. Respond with a concise
analysis only, no preamble.`

// GeneralSystemPrompt returns the prompt used for general tasks.
func GeneralSystemPrompt() string { return generalSystemPrompt }

// ResearchSystemPrompt returns the prompt used for web research tasks.
func ResearchSystemPrompt() string { return researchSystemPrompt }

// AnalysisSystemPrompt returns the prompt used for analysis tasks.
func AnalysisSystemPrompt() string { return analysisSystemPrompt }
