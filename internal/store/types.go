package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"grimvault/internal/property"
)

// ValidationStatus tracks where a module or entity is in the validation
// state machine: unvalidated until a run happens, then valid or invalid
// until the next run.
type ValidationStatus string

const (
	StatusUnvalidated ValidationStatus = "unvalidated"
	StatusValid       ValidationStatus = "valid"
	StatusInvalid     ValidationStatus = "invalid"
)

// ParseValidationStatus maps user-supplied text onto the closed status set.
func ParseValidationStatus(s string) (ValidationStatus, error) {
	switch ValidationStatus(s) {
	case StatusUnvalidated, StatusValid, StatusInvalid:
		return ValidationStatus(s), nil
	}
	return "", fmt.Errorf("unknown validation status: %q", s)
}

// Severity of a validation finding.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

// ErrorKind is the closed taxonomy of validation findings.
type ErrorKind string

const (
	KindMissingRequired  ErrorKind = "missing_required_property"
	KindTypeMismatch     ErrorKind = "type_mismatch"
	KindUnknownReference ErrorKind = "unknown_reference"
	KindSchemaViolation  ErrorKind = "schema_violation"
	KindDuplicateEntity  ErrorKind = "duplicate_entity"
)

// Module is one importable bundle of game content. ModuleKey is stable
// across reloads; ID identifies the persisted row.
type Module struct {
	ID               uuid.UUID
	ModuleKey        string
	Name             string
	GameSystem       string
	SourcePath       string
	AuthorID         string
	Locked           bool
	Active           bool
	ValidationStatus ValidationStatus
	LastValidatedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Entity is one content item inside a module.
type Entity struct {
	ID               uuid.UUID
	ModuleID         uuid.UUID
	EntityKey        string
	EntityType       string
	Name             string
	SearchText       string
	Tags             []string
	ValidationStatus ValidationStatus
}

// ModuleInput carries the module-level fields of a load or reload.
type ModuleInput struct {
	ModuleKey  string
	Name       string
	GameSystem string
	SourcePath string
	AuthorID   string
}

// EntityInput carries one entity and its flattened property rows into a
// load or reload transaction.
type EntityInput struct {
	EntityKey  string
	EntityType string
	Name       string
	SearchText string
	Tags       []string
	Rows       []property.Row
	Status     ValidationStatus
}

// DefinitionKind is the expected shape a PropertyDefinition declares.
// It extends the codec kinds with "reference", a string value naming
// another entity key within the same module.
type DefinitionKind string

const (
	DefString    DefinitionKind = "string"
	DefInt       DefinitionKind = "int"
	DefFloat     DefinitionKind = "float"
	DefBool      DefinitionKind = "bool"
	DefJSON      DefinitionKind = "json"
	DefReference DefinitionKind = "reference"
)

// PropertyDefinition declares, for a (game system, entity type) pair,
// that a property with a given key must or may exist. Read-only to this
// core at runtime; synced from the definitions file.
type PropertyDefinition struct {
	ID            int64
	GameSystem    string
	EntityType    string
	PropertyKey   string
	Kind          DefinitionKind
	Required      bool
	Default       json.RawMessage
	MinValue      *float64
	MaxValue      *float64
	RefEntityType string
	SortOrder     int
}

// ValidationError is one persisted finding against a module or one of
// its entities. Rows are append-only history: a resolved error is never
// reopened, a later run writes a fresh row instead.
type ValidationError struct {
	ID             uuid.UUID
	ModuleID       uuid.UUID
	EntityID       *uuid.UUID
	EntityName     string
	PropertyKey    string
	Kind           ErrorKind
	Severity       Severity
	Message        string
	Details        map[string]any
	Resolved       bool
	ResolvedBy     string
	ResolvedAt     *time.Time
	ResolutionNote string
	CreatedAt      time.Time
}

// ErrorInput is one finding produced by a validation run, before it has
// a persisted identity.
type ErrorInput struct {
	EntityID    *uuid.UUID
	EntityName  string
	PropertyKey string
	Kind        ErrorKind
	Severity    Severity
	Message     string
	Details     map[string]any
}

// CampaignModule links a module into a campaign's active content set.
// Its existence blocks deletion of the module.
type CampaignModule struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	ModuleID   uuid.UUID
	LoadOrder  int
	Active     bool
	Overrides  map[string]any
	CreatedAt  time.Time
}

// SortOrder for search results.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SearchFilter narrows a search to one module plus optional predicates.
// When Query is set, results are ordered by full-text relevance and
// SortBy is ignored.
type SearchFilter struct {
	ModuleID         uuid.UUID
	Query            string
	EntityTypes      []string
	Tags             []string
	ValidationStatus *ValidationStatus
	SortBy           string
	SortOrder        SortOrder
	Offset           int
	Limit            int
}

// SearchResult is one page of entities plus the pre-pagination total.
type SearchResult struct {
	Entities []Entity
	Total    int
}

// GroupValueRow is one (entity, property) pair from a grouping scan over
// the filtered entity set. Entities holding none of the requested keys
// appear once with an empty PropertyKey so callers can bucket them into
// a sentinel group.
type GroupValueRow struct {
	EntityID    uuid.UUID
	PropertyKey string
	Value       property.Value
}

// EntityIssueCount is the number of unresolved findings against one
// entity, for summary rollups.
type EntityIssueCount struct {
	EntityID   uuid.UUID
	EntityName string
	Count      int
}
