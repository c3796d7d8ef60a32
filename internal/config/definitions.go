package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"grimvault/internal/store"
)

// Definitions is the parsed definitions file: the property schema each
// entity type is validated against. It is synced into the store on load
// and read-only for the rest of the core.
type Definitions struct {
	Version     int              `yaml:"version"`
	EntityTypes []EntityTypeDefs `yaml:"entity_types"`
}

type EntityTypeDefs struct {
	Name       string        `yaml:"name"`
	Properties []PropertyDef `yaml:"properties"`
}

type PropertyDef struct {
	Key      string   `yaml:"key"`
	Kind     string   `yaml:"kind"`
	Required bool     `yaml:"required"`
	Default  any      `yaml:"default"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	RefType  string   `yaml:"ref_type"`
}

var definitionKinds = map[string]store.DefinitionKind{
	"string":    store.DefString,
	"int":       store.DefInt,
	"float":     store.DefFloat,
	"bool":      store.DefBool,
	"json":      store.DefJSON,
	"reference": store.DefReference,
}

func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading definitions: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("loading definitions: %w", err)
	}

	if err := validateDefinitions(&defs); err != nil {
		return nil, fmt.Errorf("loading definitions: %w", err)
	}

	return &defs, nil
}

func validateDefinitions(defs *Definitions) error {
	if defs.Version != 1 {
		return fmt.Errorf("unsupported version: %d", defs.Version)
	}
	if len(defs.EntityTypes) == 0 {
		return fmt.Errorf("at least one entity type is required")
	}

	typeNames := make(map[string]struct{})
	for i, entityType := range defs.EntityTypes {
		if strings.TrimSpace(entityType.Name) == "" {
			return fmt.Errorf("entity type %d name is required", i)
		}
		key := strings.ToLower(entityType.Name)
		if _, exists := typeNames[key]; exists {
			return fmt.Errorf("duplicate entity type: %s", entityType.Name)
		}
		typeNames[key] = struct{}{}

		propKeys := make(map[string]struct{})
		for _, prop := range entityType.Properties {
			name := strings.TrimSpace(prop.Key)
			if name == "" {
				return fmt.Errorf("entity type %s has property with empty key", entityType.Name)
			}
			if _, exists := propKeys[name]; exists {
				return fmt.Errorf("entity type %s has duplicate property: %s", entityType.Name, prop.Key)
			}
			propKeys[name] = struct{}{}

			kind, ok := definitionKinds[prop.Kind]
			if !ok {
				return fmt.Errorf("entity type %s property %s has unknown kind: %s", entityType.Name, prop.Key, prop.Kind)
			}
			if kind == store.DefReference && strings.TrimSpace(prop.RefType) == "" {
				return fmt.Errorf("entity type %s property %s is a reference without ref_type", entityType.Name, prop.Key)
			}
			if prop.Min != nil && prop.Max != nil && *prop.Min > *prop.Max {
				return fmt.Errorf("entity type %s property %s has min greater than max", entityType.Name, prop.Key)
			}
		}
	}

	return nil
}

// StoreDefinitions converts the file into the rows synced into the
// property_definitions table for the given game system.
func (d *Definitions) StoreDefinitions(gameSystem string) ([]store.PropertyDefinition, error) {
	var out []store.PropertyDefinition
	for _, entityType := range d.EntityTypes {
		for order, prop := range entityType.Properties {
			var defaultValue json.RawMessage
			if prop.Default != nil {
				raw, err := json.Marshal(prop.Default)
				if err != nil {
					return nil, fmt.Errorf("encoding default for %s/%s: %w", entityType.Name, prop.Key, err)
				}
				defaultValue = raw
			}
			out = append(out, store.PropertyDefinition{
				GameSystem:    gameSystem,
				EntityType:    strings.ToLower(entityType.Name),
				PropertyKey:   prop.Key,
				Kind:          definitionKinds[prop.Kind],
				Required:      prop.Required,
				Default:       defaultValue,
				MinValue:      prop.Min,
				MaxValue:      prop.Max,
				RefEntityType: prop.RefType,
				SortOrder:     order,
			})
		}
	}
	return out, nil
}
