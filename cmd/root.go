package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foreman/config"
	"foreman/llm"
	"foreman/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Foreman plans and executes dependency-aware task workflows",
	Long: `Foreman turns a natural language request into a dependency graph of
typed tasks and executes them in dependency order, feeding each task the
outputs of the tasks it depends on.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the config at configPath. A missing path
// falls back to an all-defaults config so memory-backed commands still work.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &config.Config{}
		cfg.Defaults()
		return cfg, nil
	}
	return config.LoadAndValidate(configPath)
}

// openStores builds the store bundle for the configured backend.
func openStores(cfg *config.Config) (*store.Bundle, error) {
	return store.NewBundle(cfg.Storage)
}

// buildProvider constructs the LLM provider for the named model block, or
// the first block when name is empty.
func buildProvider(ctx context.Context, cfg *config.Config, name string) (llm.Provider, string, error) {
	var m *config.Model
	var ok bool
	if name == "" {
		m, ok = cfg.DefaultModel()
		if !ok {
			return nil, "", fmt.Errorf("no model blocks configured; add a model block to %s", configPath)
		}
	} else {
		m, ok = cfg.Model(name)
		if !ok {
			return nil, "", fmt.Errorf("unknown model '%s'", name)
		}
	}

	switch m.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicProvider(m.APIKey), m.ModelID, nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(m.APIKey), m.ModelID, nil
	case config.ProviderGemini:
		p, err := llm.NewGeminiProvider(ctx, m.APIKey)
		if err != nil {
			return nil, "", err
		}
		return p, m.ModelID, nil
	default:
		return nil, "", fmt.Errorf("unsupported provider '%s'", m.Provider)
	}
}
