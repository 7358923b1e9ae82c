package config

import "fmt"

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// Model represents a model provider configuration
type Model struct {
	Name     string   `hcl:"name,label"`
	Provider Provider `hcl:"provider"`
	ModelID  string   `hcl:"model_id"`
	APIKey   string   `hcl:"api_key"`
}

func (m *Model) Validate() error {
	switch m.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("Unsupported provider; Provider '%s' is not supported", m.Provider)
	}
	if m.ModelID == "" {
		return fmt.Errorf("model_id is required")
	}
	if m.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return nil
}
