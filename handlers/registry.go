package handlers

import (
	"foreman/executor"
	"foreman/llm"
	"foreman/task"
)

// NewDefaultRegistry wires the built-in handlers for every known task
// type. General tasks are the fallback for anything unregistered.
func NewDefaultRegistry(provider llm.Provider, model, workspace string) *executor.Registry {
	general := NewCompletionHandler(provider, model, generalSystemPrompt)
	research := NewCompletionHandler(provider, model, researchSystemPrompt)
	analysis := NewCompletionHandler(provider, model, analysisSystemPrompt)
	file := NewFileHandler(provider, model, workspace)

	reg := executor.NewRegistry(general)
	reg.Register(task.TypeGeneral, general)
	reg.Register(task.TypeWebBrowsing, research)
	reg.Register(task.TypeImageSearch, research)
	reg.Register(task.TypeImageAnalysis, analysis)
	reg.Register(task.TypeFileOrganization, general)
	reg.Register(task.TypeFileDeletion, general)
	reg.Register(task.TypeFileCreation, file)
	return reg
}
