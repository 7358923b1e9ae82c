package config

import "fmt"

// StorageConfig defines the storage backend for workflow state
type StorageConfig struct {
	Backend string `hcl:"backend,optional"` // "memory", "sqlite", or "postgres"
	Path    string `hcl:"path,optional"`    // SQLite file path
	DSN     string `hcl:"dsn,optional"`     // Postgres connection string
}

// Defaults fills in default values for unset fields
func (s *StorageConfig) Defaults() {
	if s.Backend == "" {
		s.Backend = "memory"
	}
	if s.Path == "" {
		s.Path = ".foreman/store.db"
	}
}

func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "memory", "sqlite":
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("backend 'postgres' requires dsn")
		}
	default:
		return fmt.Errorf("unknown backend '%s'", s.Backend)
	}
	return nil
}
