package config

import (
	"fmt"
	"os"
	"strings"
)

type Variable struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default,optional"`
	Env     string `hcl:"env,optional"`
	Secret  bool   `hcl:"secret,optional"`
}

func (v *Variable) Validate() error {
	if v.Secret && v.Default != "" {
		return fmt.Errorf("Invalid secret; Secret variable '%s' cannot have a default value set in config", v.Name)
	}
	return nil
}

// Resolve returns the effective value for a variable.
// Priority: explicit env binding > FOREMAN_VAR_<NAME> > default.
func (v *Variable) Resolve() string {
	if v.Env != "" {
		if val, ok := os.LookupEnv(v.Env); ok {
			return val
		}
	}
	if val, ok := os.LookupEnv("FOREMAN_VAR_" + strings.ToUpper(v.Name)); ok {
		return val
	}
	return v.Default
}
