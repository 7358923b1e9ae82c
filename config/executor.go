package config

import "fmt"

// ExecutorConfig controls how workflows are executed.
type ExecutorConfig struct {
	// Parallelism is the worker count for concurrent dispatch. 1 means
	// serial execution.
	Parallelism int `hcl:"parallelism,optional"`

	// Workspace is the directory file creation tasks write into.
	Workspace string `hcl:"workspace,optional"`

	// StrictPlanning rejects plans that reference unknown dependencies
	// instead of dropping them.
	StrictPlanning *bool `hcl:"strict_planning,optional"`
}

// Defaults fills in default values for unset fields
func (e *ExecutorConfig) Defaults() {
	if e.Parallelism == 0 {
		e.Parallelism = 1
	}
	if e.Workspace == "" {
		e.Workspace = ".foreman/workspace"
	}
	if e.StrictPlanning == nil {
		strict := true
		e.StrictPlanning = &strict
	}
}

func (e *ExecutorConfig) Validate() error {
	if e.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}
	return nil
}
