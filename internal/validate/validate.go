// Package validate checks entities and modules against the property
// definitions of their game system. Findings are data, not errors: they
// are returned and persisted, never thrown. Only a run that cannot
// execute at all (store unavailable, module missing) returns a Go error.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"grimvault/internal/property"
	"grimvault/internal/store"
)

// Store is the slice of the persistence layer the validator needs.
type Store interface {
	GetModule(ctx context.Context, moduleID uuid.UUID) (*store.Module, error)
	ListModuleEntities(ctx context.Context, moduleID uuid.UUID) ([]store.Entity, error)
	ListModuleProperties(ctx context.Context, moduleID uuid.UUID) (map[uuid.UUID][]property.Row, error)
	ListDefinitions(ctx context.Context, gameSystem, entityType string) ([]store.PropertyDefinition, error)
	ReplaceValidationErrors(ctx context.Context, moduleID uuid.UUID, status store.ValidationStatus, entityStatuses map[uuid.UUID]store.ValidationStatus, errs []store.ErrorInput) error
	ListValidationErrors(ctx context.Context, moduleID uuid.UUID, includeResolved bool) ([]store.ValidationError, error)
	ResolveValidationError(ctx context.Context, errorID uuid.UUID, resolvedBy, note string) error
	CountEntityIssues(ctx context.Context, moduleID uuid.UUID) ([]store.EntityIssueCount, error)
	GetCampaignGameSystem(ctx context.Context, campaignID uuid.UUID) (string, error)
}

type Validator struct {
	db Store
}

func New(db Store) *Validator {
	return &Validator{db: db}
}

// Candidate is one entity under validation, persisted or not. Rows are
// its flattened properties.
type Candidate struct {
	EntityKey  string
	EntityType string
	Name       string
	Rows       []property.Row
}

// EntityKeys indexes the entity keys present in a module by entity type,
// for reference checks.
type EntityKeys map[string]map[string]bool

func BuildEntityKeys(candidates []Candidate) EntityKeys {
	keys := make(EntityKeys)
	for _, candidate := range candidates {
		byType := keys[candidate.EntityType]
		if byType == nil {
			byType = make(map[string]bool)
			keys[candidate.EntityType] = byType
		}
		byType[candidate.EntityKey] = true
	}
	return keys
}

// ValidateEntity checks one candidate against the definitions for its
// entity type. Definitions for other entity types are ignored; optional
// definitions with no matching property do not error.
func ValidateEntity(candidate Candidate, defs []store.PropertyDefinition, keys EntityKeys) []store.ErrorInput {
	grouped := make(map[string][]property.Row)
	for _, row := range candidate.Rows {
		grouped[row.Key] = append(grouped[row.Key], row)
	}

	var findings []store.ErrorInput
	for _, def := range defs {
		if def.EntityType != candidate.EntityType {
			continue
		}

		rows, present := grouped[def.PropertyKey]
		if !present {
			if def.Required && len(def.Default) == 0 {
				findings = append(findings, store.ErrorInput{
					EntityName:  candidate.Name,
					PropertyKey: def.PropertyKey,
					Kind:        store.KindMissingRequired,
					Severity:    store.SeverityError,
					Message:     fmt.Sprintf("missing required property: %s", def.PropertyKey),
				})
			}
			continue
		}

		for _, row := range rows {
			findings = append(findings, checkRow(candidate, def, row, keys)...)
		}
	}

	return findings
}

func checkRow(candidate Candidate, def store.PropertyDefinition, row property.Row, keys EntityKeys) []store.ErrorInput {
	kind := row.Value.Kind()

	switch def.Kind {
	case store.DefString:
		if kind != property.KindString {
			return []store.ErrorInput{mismatch(candidate, def, row)}
		}
	case store.DefInt:
		if kind != property.KindInt {
			return []store.ErrorInput{mismatch(candidate, def, row)}
		}
	case store.DefFloat:
		// Integer values satisfy float definitions.
		if kind != property.KindFloat && kind != property.KindInt {
			return []store.ErrorInput{mismatch(candidate, def, row)}
		}
	case store.DefBool:
		if kind != property.KindBool {
			return []store.ErrorInput{mismatch(candidate, def, row)}
		}
	case store.DefJSON:
		if kind != property.KindJSON {
			return []store.ErrorInput{mismatch(candidate, def, row)}
		}
	case store.DefReference:
		if kind != property.KindString {
			return []store.ErrorInput{mismatch(candidate, def, row)}
		}
		target := row.Value.AsString()
		if !keys[def.RefEntityType][target] {
			return []store.ErrorInput{{
				EntityName:  candidate.Name,
				PropertyKey: def.PropertyKey,
				Kind:        store.KindUnknownReference,
				Severity:    store.SeverityWarn,
				Message:     fmt.Sprintf("property %s references unknown %s: %s", def.PropertyKey, def.RefEntityType, target),
				Details:     map[string]any{"target": target, "target_type": def.RefEntityType},
			}}
		}
		return nil
	}

	if value, ok := row.Value.Numeric(); ok {
		if def.MinValue != nil && value < *def.MinValue {
			return []store.ErrorInput{rangeViolation(candidate, def, value)}
		}
		if def.MaxValue != nil && value > *def.MaxValue {
			return []store.ErrorInput{rangeViolation(candidate, def, value)}
		}
	}
	return nil
}

func mismatch(candidate Candidate, def store.PropertyDefinition, row property.Row) store.ErrorInput {
	return store.ErrorInput{
		EntityName:  candidate.Name,
		PropertyKey: def.PropertyKey,
		Kind:        store.KindTypeMismatch,
		Severity:    store.SeverityError,
		Message:     fmt.Sprintf("property %s expects %s, got %s", def.PropertyKey, def.Kind, row.Value.Kind()),
		Details:     map[string]any{"expected": string(def.Kind), "actual": row.Value.Kind().String()},
	}
}

func rangeViolation(candidate Candidate, def store.PropertyDefinition, value float64) store.ErrorInput {
	details := map[string]any{"value": value}
	if def.MinValue != nil {
		details["min"] = *def.MinValue
	}
	if def.MaxValue != nil {
		details["max"] = *def.MaxValue
	}
	return store.ErrorInput{
		EntityName:  candidate.Name,
		PropertyKey: def.PropertyKey,
		Kind:        store.KindSchemaViolation,
		Severity:    store.SeverityError,
		Message:     fmt.Sprintf("property %s violates its numeric range", def.PropertyKey),
		Details:     details,
	}
}

// ModuleReport is the outcome of one full validation run.
type ModuleReport struct {
	ModuleID uuid.UUID
	Valid    bool
	Findings []store.ErrorInput
}

// ValidateModule runs a full validation of every entity in the module,
// persists the fresh finding set (replacing the unresolved set, leaving
// resolved rows as history), and records the resulting statuses.
// Re-running on unchanged content produces the same finding set.
func (v *Validator) ValidateModule(ctx context.Context, moduleID uuid.UUID) (*ModuleReport, error) {
	module, err := v.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("loading module: %w", err)
	}

	entities, err := v.db.ListModuleEntities(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	props, err := v.db.ListModuleProperties(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defs, err := v.db.ListDefinitions(ctx, module.GameSystem, "")
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}

	var findings []store.ErrorInput

	// Duplicate entity identity inside the module is a module-level
	// structural finding, not attached to a single entity row.
	seen := make(map[string]bool, len(entities))
	for _, entity := range entities {
		identity := entity.EntityType + "/" + entity.EntityKey
		if seen[identity] {
			findings = append(findings, store.ErrorInput{
				Kind:     store.KindDuplicateEntity,
				Severity: store.SeverityError,
				Message:  fmt.Sprintf("duplicate entity key in module: %s", identity),
			})
		}
		seen[identity] = true
	}

	candidates := make([]Candidate, 0, len(entities))
	for _, entity := range entities {
		candidates = append(candidates, Candidate{
			EntityKey:  entity.EntityKey,
			EntityType: entity.EntityType,
			Name:       entity.Name,
			Rows:       props[entity.ID],
		})
	}
	keys := BuildEntityKeys(candidates)

	entityStatuses := make(map[uuid.UUID]store.ValidationStatus, len(entities))
	for i, entity := range entities {
		entityFindings := ValidateEntity(candidates[i], defs, keys)
		status := store.StatusValid
		for j := range entityFindings {
			entityID := entity.ID
			entityFindings[j].EntityID = &entityID
			if entityFindings[j].Severity == store.SeverityError {
				status = store.StatusInvalid
			}
		}
		entityStatuses[entity.ID] = status
		findings = append(findings, entityFindings...)
	}

	status := store.StatusValid
	for _, finding := range findings {
		if finding.Severity == store.SeverityError {
			status = store.StatusInvalid
			break
		}
	}

	if err := v.db.ReplaceValidationErrors(ctx, moduleID, status, entityStatuses, findings); err != nil {
		return nil, fmt.Errorf("persisting validation run: %w", err)
	}

	return &ModuleReport{
		ModuleID: moduleID,
		Valid:    status == store.StatusValid,
		Findings: findings,
	}, nil
}

// ResolveError marks one finding resolved. History is append-only: a
// later run reopens an equivalent finding as a new row instead of
// flipping this one back.
func (v *Validator) ResolveError(ctx context.Context, errorID uuid.UUID, resolverID, note string) error {
	if resolverID == "" {
		return fmt.Errorf("resolver id is required")
	}
	return v.db.ResolveValidationError(ctx, errorID, resolverID, note)
}

// CheckCampaignCompatibility is the cheap pre-check: game system equality
// only, independent of full validation.
func (v *Validator) CheckCampaignCompatibility(ctx context.Context, moduleID, campaignID uuid.UUID) (bool, error) {
	module, err := v.db.GetModule(ctx, moduleID)
	if err != nil {
		return false, fmt.Errorf("loading module: %w", err)
	}
	gameSystem, err := v.db.GetCampaignGameSystem(ctx, campaignID)
	if err != nil {
		return false, fmt.Errorf("loading campaign: %w", err)
	}
	return module.GameSystem == gameSystem, nil
}

// Summary is the read-only rollup for display; building one never
// triggers revalidation.
type Summary struct {
	Status            store.ValidationStatus
	LastValidatedAt   *time.Time
	ModuleIssues      []store.ValidationError
	EntityIssueCounts []store.EntityIssueCount
}

func (v *Validator) GetValidationSummary(ctx context.Context, moduleID uuid.UUID) (*Summary, error) {
	module, err := v.db.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("loading module: %w", err)
	}

	open, err := v.db.ListValidationErrors(ctx, moduleID, false)
	if err != nil {
		return nil, fmt.Errorf("listing open errors: %w", err)
	}
	moduleIssues := make([]store.ValidationError, 0)
	for _, issue := range open {
		if issue.EntityID == nil {
			moduleIssues = append(moduleIssues, issue)
		}
	}

	counts, err := v.db.CountEntityIssues(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("counting entity issues: %w", err)
	}

	return &Summary{
		Status:            module.ValidationStatus,
		LastValidatedAt:   module.LastValidatedAt,
		ModuleIssues:      moduleIssues,
		EntityIssueCounts: counts,
	}, nil
}
