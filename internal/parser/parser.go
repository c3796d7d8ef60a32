// Package parser reads module bundle files into their in-memory form.
// Bundles are YAML; JSON bundles parse through the same path since YAML
// is a superset of JSON (and yaml.v3 keeps integers integral, which the
// property codec relies on).
package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type ModuleFile struct {
	ModuleKey  string      `yaml:"module_key"`
	Name       string      `yaml:"name"`
	GameSystem string      `yaml:"game_system"`
	Author     string      `yaml:"author"`
	Entities   []EntityDoc `yaml:"entities"`
	SourceFile string      `yaml:"-"`
}

type EntityDoc struct {
	Key        string         `yaml:"key"`
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name"`
	Tags       []string       `yaml:"tags"`
	Properties map[string]any `yaml:"properties"`
}

var (
	ErrMissingModuleKey  = errors.New("module file missing required 'module_key' field")
	ErrMissingName       = errors.New("module file missing required 'name' field")
	ErrMissingGameSystem = errors.New("module file missing required 'game_system' field")
)

func ParseFile(path string) (*ModuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	module, err := Parse(data)
	if err != nil {
		return nil, err
	}
	module.SourceFile = path
	return module, nil
}

func Parse(content []byte) (*ModuleFile, error) {
	var module ModuleFile
	if err := yaml.Unmarshal(content, &module); err != nil {
		return nil, fmt.Errorf("parsing module file: %w", err)
	}

	if strings.TrimSpace(module.ModuleKey) == "" {
		return nil, ErrMissingModuleKey
	}
	if strings.TrimSpace(module.Name) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(module.GameSystem) == "" {
		return nil, ErrMissingGameSystem
	}

	for i, entity := range module.Entities {
		if strings.TrimSpace(entity.Key) == "" {
			return nil, fmt.Errorf("entity %d missing required 'key' field", i)
		}
		if strings.TrimSpace(entity.Type) == "" {
			return nil, fmt.Errorf("entity %s missing required 'type' field", entity.Key)
		}
		if strings.TrimSpace(entity.Name) == "" {
			return nil, fmt.Errorf("entity %s missing required 'name' field", entity.Key)
		}
	}

	return &module, nil
}
