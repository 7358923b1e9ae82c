package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config holds all configuration
type Config struct {
	Variables []Variable      `hcl:"variable,block"`
	Models    []Model         `hcl:"model,block"`
	Storage   *StorageConfig  `hcl:"storage,block"`
	Executor  *ExecutorConfig `hcl:"executor,block"`

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value `hcl:"-"`
}

func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config, applies defaults, and validates all
// components.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	return loadFromFiles(files)
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables []*hcl.Block
	Models    []*hcl.Block
	Storage   []*hcl.Block
	Executor  []*hcl.Block
}

// loadFromFiles implements staged loading: variables first, then every
// other block with the vars context available.
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var allParsedBlocks []parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}

		content, _, diags := hclFile.Body.PartialContent(&hcl.BodySchema{
			Blocks: []hcl.BlockHeaderSchema{
				{Type: "variable", LabelNames: []string{"name"}},
				{Type: "model", LabelNames: []string{"name"}},
				{Type: "storage"},
				{Type: "executor"},
			},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("partial content %s: %w", file, diags)
		}

		var pb parsedBlocks
		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				pb.Variables = append(pb.Variables, block)
			case "model":
				pb.Models = append(pb.Models, block)
			case "storage":
				pb.Storage = append(pb.Storage, block)
			case "executor":
				pb.Executor = append(pb.Executor, block)
			}
		}
		allParsedBlocks = append(allParsedBlocks, pb)
	}

	// Stage 1: Load variables (no context needed)
	var allVars []Variable
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Variables {
			var v Variable
			v.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, nil, &v)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode variable %s: %w", v.Name, diags)
			}
			allVars = append(allVars, v)
		}
	}

	varsCtx, resolvedVars := buildVarsContext(allVars)

	// Stage 2: Load everything else with the vars context
	var allModels []Model
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Models {
			var m Model
			m.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &m)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode model %s: %w", m.Name, diags)
			}
			allModels = append(allModels, m)
		}
	}

	var storage *StorageConfig
	var executorCfg *ExecutorConfig
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Storage {
			if storage != nil {
				return nil, fmt.Errorf("duplicate storage block")
			}
			var s StorageConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode storage: %w", diags)
			}
			storage = &s
		}
		for _, block := range pb.Executor {
			if executorCfg != nil {
				return nil, fmt.Errorf("duplicate executor block")
			}
			var e ExecutorConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &e)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode executor: %w", diags)
			}
			executorCfg = &e
		}
	}

	return &Config{
		Variables:    allVars,
		Models:       allModels,
		Storage:      storage,
		Executor:     executorCfg,
		ResolvedVars: resolvedVars,
	}, nil
}

// buildVarsContext resolves variable values and exposes them as vars.<name>.
// Environment wins over the config default.
func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value) {
	varsMap := make(map[string]cty.Value)
	for _, v := range vars {
		varsMap[v.Name] = cty.StringVal(v.Resolve())
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap
}

// Defaults fills in default values for unset blocks and fields.
func (c *Config) Defaults() {
	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	c.Storage.Defaults()
	if c.Executor == nil {
		c.Executor = &ExecutorConfig{}
	}
	c.Executor.Defaults()
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	for _, m := range c.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model '%s': %w", m.Name, err)
		}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if c.Executor != nil {
		if err := c.Executor.Validate(); err != nil {
			return fmt.Errorf("executor: %w", err)
		}
	}

	return nil
}

// Model returns the named model block.
func (c *Config) Model(name string) (*Model, bool) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}

// DefaultModel returns the first model block, which acts as the default
// when no model is named on the command line.
func (c *Config) DefaultModel() (*Model, bool) {
	if len(c.Models) == 0 {
		return nil, false
	}
	return &c.Models[0], true
}
