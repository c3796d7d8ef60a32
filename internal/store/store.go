package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"grimvault/internal/property"
)

// ErrNotFound is returned for lookups of modules, entities, errors, and
// campaigns that do not exist.
var ErrNotFound = errors.New("not found")

type Store interface {
	Close()
	EnsureSchema(ctx context.Context) error

	// Module lifecycle. CreateModule and ReplaceModuleEntities each run
	// inside a single transaction: either the whole entity/property set
	// persists or none of it does.
	CreateModule(ctx context.Context, input ModuleInput, entities []EntityInput) (*Module, error)
	ReplaceModuleEntities(ctx context.Context, moduleID uuid.UUID, input ModuleInput, entities []EntityInput) (*Module, error)
	DeleteModule(ctx context.Context, moduleID uuid.UUID) error
	GetModule(ctx context.Context, moduleID uuid.UUID) (*Module, error)
	GetModuleByKey(ctx context.Context, moduleKey string) (*Module, error)
	ListModules(ctx context.Context) ([]Module, error)
	SetModuleLocked(ctx context.Context, moduleID uuid.UUID, locked bool) error

	// Entity access.
	GetEntity(ctx context.Context, entityID uuid.UUID) (*Entity, error)
	ListEntityProperties(ctx context.Context, entityID uuid.UUID) ([]property.Row, error)
	ListModuleEntities(ctx context.Context, moduleID uuid.UUID) ([]Entity, error)
	ListModuleProperties(ctx context.Context, moduleID uuid.UUID) (map[uuid.UUID][]property.Row, error)

	// Property definitions.
	SyncDefinitions(ctx context.Context, gameSystem string, defs []PropertyDefinition) error
	ListDefinitions(ctx context.Context, gameSystem, entityType string) ([]PropertyDefinition, error)

	// Validation errors. ReplaceValidationErrors swaps the unresolved
	// error set and updates module/entity statuses in one transaction;
	// resolved rows stay untouched as history.
	ReplaceValidationErrors(ctx context.Context, moduleID uuid.UUID, status ValidationStatus, entityStatuses map[uuid.UUID]ValidationStatus, errs []ErrorInput) error
	ListValidationErrors(ctx context.Context, moduleID uuid.UUID, includeResolved bool) ([]ValidationError, error)
	GetValidationError(ctx context.Context, errorID uuid.UUID) (*ValidationError, error)
	ResolveValidationError(ctx context.Context, errorID uuid.UUID, resolvedBy, note string) error
	CountEntityIssues(ctx context.Context, moduleID uuid.UUID) ([]EntityIssueCount, error)

	// Search and grouping.
	Search(ctx context.Context, filter SearchFilter) (*SearchResult, error)
	ListGroupValues(ctx context.Context, filter SearchFilter, keys []string) ([]GroupValueRow, error)

	// Campaign links.
	GetCampaignGameSystem(ctx context.Context, campaignID uuid.UUID) (string, error)
	AttachCampaignModule(ctx context.Context, campaignID, moduleID uuid.UUID, loadOrder int) (*CampaignModule, error)
	DetachCampaignModule(ctx context.Context, campaignID, moduleID uuid.UUID) error
	ListCampaignModules(ctx context.Context, campaignID uuid.UUID) ([]CampaignModule, error)
	ModuleInUse(ctx context.Context, moduleID uuid.UUID) (bool, error)
}
