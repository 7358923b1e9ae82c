package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"foreman/executor"
	"foreman/llm"
)

const fileSystemPrompt = `You are executing a file creation task from a larger workflow.
The task description may include content produced by earlier tasks; that content
is what the file should hold. Respond with the exact file contents only, no
preamble, no code fences.`

// FileHandler executes file creation tasks. Content comes either from
// dependency artifacts or from an LLM completion, and is written under a
// fixed workspace directory.
type FileHandler struct {
	provider  llm.Provider
	model     string
	workspace string
}

// NewFileHandler creates a file handler rooted at workspace. The directory
// is created on first use.
func NewFileHandler(provider llm.Provider, model, workspace string) *FileHandler {
	return &FileHandler{
		provider:  provider,
		model:     model,
		workspace: workspace,
	}
}

func (h *FileHandler) Handle(ctx context.Context, req executor.Request) (*executor.Response, error) {
	name := fileName(req)
	if name == "" {
		name = "output.txt"
	}

	content, err := h.content(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(h.workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	path := filepath.Join(h.workspace, filepath.Base(name))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return &executor.Response{
		Output: content,
		Artifacts: map[string]any{
			"filename": filepath.Base(name),
			"path":     path,
		},
	}, nil
}

// content prefers material already produced by dependencies over asking the
// model to invent it.
func (h *FileHandler) content(ctx context.Context, req executor.Request) (string, error) {
	for _, key := range []string{"information", "summary", "analysis", "content_preview"} {
		if v, ok := req.Artifacts[key].(string); ok && strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	output, err := llm.Complete(ctx, h.provider, h.model, req.Description, fileSystemPrompt)
	if err != nil {
		return "", fmt.Errorf("generating file content: %w", err)
	}
	return output, nil
}

// fileName extracts a target file name from artifacts or the description.
func fileName(req executor.Request) string {
	if v, ok := req.Artifacts["filename"].(string); ok && v != "" {
		return v
	}
	return executor.FileNameFrom(req.Task.Description)
}
