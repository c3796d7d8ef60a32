// Package loader owns the module lifecycle: parsing a bundle, flattening
// entity properties through the codec, and persisting the result in a
// single transaction. It is the write path the route layer calls.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"grimvault/internal/parser"
	"grimvault/internal/property"
	"grimvault/internal/store"
	"grimvault/internal/validate"
)

// Store is the slice of the persistence layer the loader needs.
type Store interface {
	CreateModule(ctx context.Context, input store.ModuleInput, entities []store.EntityInput) (*store.Module, error)
	ReplaceModuleEntities(ctx context.Context, moduleID uuid.UUID, input store.ModuleInput, entities []store.EntityInput) (*store.Module, error)
	DeleteModule(ctx context.Context, moduleID uuid.UUID) error
	GetModule(ctx context.Context, moduleID uuid.UUID) (*store.Module, error)
	GetEntity(ctx context.Context, entityID uuid.UUID) (*store.Entity, error)
	ListEntityProperties(ctx context.Context, entityID uuid.UUID) ([]property.Row, error)
	ListValidationErrors(ctx context.Context, moduleID uuid.UUID, includeResolved bool) ([]store.ValidationError, error)
	ListDefinitions(ctx context.Context, gameSystem, entityType string) ([]store.PropertyDefinition, error)
}

type Loader struct {
	db     Store
	logger zerolog.Logger
}

func New(db Store, logger zerolog.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

type Options struct {
	// Validate runs each entity through the validator before insert.
	Validate bool
	// SkipInvalid omits failing entities from the persisted set instead
	// of aborting the whole load. Only meaningful with Validate.
	SkipInvalid bool
	AuthorID    string
}

// Result reports what a load or reload persisted and what it left out.
type Result struct {
	Module   *store.Module
	Loaded   int
	Skipped  int
	Errors   []error
	Findings []store.ErrorInput
}

// LoadModule parses the bundle at path and persists it as a new module.
// Without SkipInvalid any failing entity aborts the whole load and
// nothing persists.
func (l *Loader) LoadModule(ctx context.Context, path string, opts Options) (*Result, error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading module from %s: %w", path, err)
	}

	input := store.ModuleInput{
		ModuleKey:  doc.ModuleKey,
		Name:       doc.Name,
		GameSystem: doc.GameSystem,
		SourcePath: path,
		AuthorID:   opts.AuthorID,
	}

	result, entities, err := l.prepareEntities(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	module, err := l.db.CreateModule(ctx, input, entities)
	if err != nil {
		return nil, fmt.Errorf("persisting module %s: %w", doc.ModuleKey, err)
	}
	result.Module = module

	l.logger.Info().
		Str("module", module.ModuleKey).
		Int("loaded", result.Loaded).
		Int("skipped", result.Skipped).
		Msg("module loaded")
	return result, nil
}

// ReloadModule re-parses the bundle and atomically replaces the module's
// entity set. The module row keeps its identity, so campaign links
// survive the reload.
func (l *Loader) ReloadModule(ctx context.Context, moduleID uuid.UUID, sourcePath string, opts Options) (*Result, error) {
	module, err := l.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", moduleID, err)
	}
	if sourcePath == "" {
		sourcePath = module.SourcePath
	}
	if sourcePath == "" {
		return nil, fmt.Errorf("module %s has no source path to reload from", module.ModuleKey)
	}

	doc, err := parser.ParseFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("reloading module from %s: %w", sourcePath, err)
	}

	input := store.ModuleInput{
		ModuleKey:  module.ModuleKey,
		Name:       doc.Name,
		GameSystem: doc.GameSystem,
		SourcePath: sourcePath,
	}

	result, entities, err := l.prepareEntities(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	updated, err := l.db.ReplaceModuleEntities(ctx, moduleID, input, entities)
	if err != nil {
		return nil, fmt.Errorf("replacing entities for %s: %w", module.ModuleKey, err)
	}
	result.Module = updated

	l.logger.Info().
		Str("module", updated.ModuleKey).
		Int("loaded", result.Loaded).
		Int("skipped", result.Skipped).
		Msg("module reloaded")
	return result, nil
}

func (l *Loader) prepareEntities(ctx context.Context, doc *parser.ModuleFile, opts Options) (*Result, []store.EntityInput, error) {
	var defs []store.PropertyDefinition
	var keys validate.EntityKeys
	if opts.Validate {
		var err error
		defs, err = l.db.ListDefinitions(ctx, doc.GameSystem, "")
		if err != nil {
			return nil, nil, fmt.Errorf("listing definitions: %w", err)
		}
		candidates := make([]validate.Candidate, 0, len(doc.Entities))
		for _, entity := range doc.Entities {
			candidates = append(candidates, validate.Candidate{
				EntityKey:  entity.Key,
				EntityType: strings.ToLower(entity.Type),
			})
		}
		keys = validate.BuildEntityKeys(candidates)
	}

	result := &Result{}
	seen := make(map[string]bool, len(doc.Entities))
	entities := make([]store.EntityInput, 0, len(doc.Entities))

	for _, entity := range doc.Entities {
		entityType := strings.ToLower(entity.Type)
		identity := entityType + "/" + entity.Key
		if seen[identity] {
			err := fmt.Errorf("duplicate entity key: %s", identity)
			if !opts.SkipInvalid {
				return nil, nil, fmt.Errorf("loading module %s: %w", doc.ModuleKey, err)
			}
			result.Skipped++
			result.Errors = append(result.Errors, err)
			continue
		}
		seen[identity] = true

		rows, err := property.Flatten(entity.Properties)
		if err != nil {
			err = fmt.Errorf("entity %s: %w", entity.Key, err)
			if !opts.SkipInvalid {
				return nil, nil, fmt.Errorf("loading module %s: %w", doc.ModuleKey, err)
			}
			result.Skipped++
			result.Errors = append(result.Errors, err)
			continue
		}

		status := store.StatusUnvalidated
		if opts.Validate {
			findings := validate.ValidateEntity(validate.Candidate{
				EntityKey:  entity.Key,
				EntityType: entityType,
				Name:       entity.Name,
				Rows:       rows,
			}, defs, keys)
			result.Findings = append(result.Findings, findings...)

			status = store.StatusValid
			for _, finding := range findings {
				if finding.Severity == store.SeverityError {
					status = store.StatusInvalid
					break
				}
			}
			if status == store.StatusInvalid {
				if !opts.SkipInvalid {
					return nil, nil, fmt.Errorf("loading module %s: entity %s failed validation", doc.ModuleKey, entity.Key)
				}
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Errorf("entity %s failed validation", entity.Key))
				continue
			}
		}

		entities = append(entities, store.EntityInput{
			EntityKey:  entity.Key,
			EntityType: entityType,
			Name:       entity.Name,
			SearchText: buildSearchText(entity),
			Tags:       entity.Tags,
			Rows:       rows,
			Status:     status,
		})
		result.Loaded++
	}

	return result, entities, nil
}

// UnloadModule deletes the module and cascades to its entities and
// properties. Lock and campaign-usage policy belongs to the caller.
func (l *Loader) UnloadModule(ctx context.Context, moduleID uuid.UUID) error {
	if err := l.db.DeleteModule(ctx, moduleID); err != nil {
		return fmt.Errorf("unloading module %s: %w", moduleID, err)
	}
	l.logger.Info().Str("module", moduleID.String()).Msg("module unloaded")
	return nil
}

// Status is a module's last-known validation state and its open errors.
// Reading it never triggers revalidation.
type Status struct {
	Module *store.Module
	Errors []store.ValidationError
}

func (l *Loader) GetModuleStatus(ctx context.Context, moduleID uuid.UUID) (*Status, error) {
	module, err := l.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", moduleID, err)
	}
	errs, err := l.db.ListValidationErrors(ctx, moduleID, false)
	if err != nil {
		return nil, fmt.Errorf("listing errors for %s: %w", moduleID, err)
	}
	return &Status{Module: module, Errors: errs}, nil
}

// EntityWithProperties is an entity row plus its reconstructed bag.
type EntityWithProperties struct {
	Entity     store.Entity
	Properties map[string]any
}

func (l *Loader) ReconstructEntity(ctx context.Context, entityID uuid.UUID) (*EntityWithProperties, error) {
	entity, err := l.db.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading entity %s: %w", entityID, err)
	}
	rows, err := l.db.ListEntityProperties(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading properties for %s: %w", entityID, err)
	}
	props, err := property.Reconstruct(rows)
	if err != nil {
		return nil, fmt.Errorf("reconstructing entity %s: %w", entityID, err)
	}
	return &EntityWithProperties{Entity: *entity, Properties: props}, nil
}

func buildSearchText(entity parser.EntityDoc) string {
	parts := []string{entity.Name}

	tags := append([]string{}, entity.Tags...)
	sort.Strings(tags)
	parts = append(parts, tags...)

	keys := make([]string, 0, len(entity.Properties))
	for key := range entity.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch value := entity.Properties[key].(type) {
		case string:
			parts = append(parts, value)
		case []any:
			for _, elem := range value {
				if s, ok := elem.(string); ok {
					parts = append(parts, s)
				}
			}
		}
	}

	return strings.Join(parts, " ")
}
