package validate

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"grimvault/internal/property"
	"grimvault/internal/store"
)

type mockStore struct {
	module         *store.Module
	entities       []store.Entity
	props          map[uuid.UUID][]property.Row
	defs           []store.PropertyDefinition
	openErrors     []store.ValidationError
	counts         []store.EntityIssueCount
	campaignSystem string

	replacedStatus         store.ValidationStatus
	replacedEntityStatuses map[uuid.UUID]store.ValidationStatus
	replacedErrors         []store.ErrorInput
	resolved               []uuid.UUID
}

func (m *mockStore) GetModule(ctx context.Context, moduleID uuid.UUID) (*store.Module, error) {
	if m.module == nil {
		return nil, store.ErrNotFound
	}
	return m.module, nil
}

func (m *mockStore) ListModuleEntities(ctx context.Context, moduleID uuid.UUID) ([]store.Entity, error) {
	return m.entities, nil
}

func (m *mockStore) ListModuleProperties(ctx context.Context, moduleID uuid.UUID) (map[uuid.UUID][]property.Row, error) {
	return m.props, nil
}

func (m *mockStore) ListDefinitions(ctx context.Context, gameSystem, entityType string) ([]store.PropertyDefinition, error) {
	return m.defs, nil
}

func (m *mockStore) ReplaceValidationErrors(ctx context.Context, moduleID uuid.UUID, status store.ValidationStatus, entityStatuses map[uuid.UUID]store.ValidationStatus, errs []store.ErrorInput) error {
	m.replacedStatus = status
	m.replacedEntityStatuses = entityStatuses
	m.replacedErrors = errs
	return nil
}

func (m *mockStore) ListValidationErrors(ctx context.Context, moduleID uuid.UUID, includeResolved bool) ([]store.ValidationError, error) {
	return m.openErrors, nil
}

func (m *mockStore) ResolveValidationError(ctx context.Context, errorID uuid.UUID, resolvedBy, note string) error {
	m.resolved = append(m.resolved, errorID)
	return nil
}

func (m *mockStore) CountEntityIssues(ctx context.Context, moduleID uuid.UUID) ([]store.EntityIssueCount, error) {
	return m.counts, nil
}

func (m *mockStore) GetCampaignGameSystem(ctx context.Context, campaignID uuid.UUID) (string, error) {
	if m.campaignSystem == "" {
		return "", store.ErrNotFound
	}
	return m.campaignSystem, nil
}

func intDef(entityType, key string, required bool) store.PropertyDefinition {
	return store.PropertyDefinition{
		EntityType: entityType, PropertyKey: key, Kind: store.DefInt, Required: required,
	}
}

func TestValidateEntity_MissingRequired(t *testing.T) {
	candidate := Candidate{EntityKey: "goblin", EntityType: "monster", Name: "Goblin"}
	defs := []store.PropertyDefinition{intDef("monster", "hp", true)}

	findings := ValidateEntity(candidate, defs, nil)
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Kind != store.KindMissingRequired || f.Severity != store.SeverityError || f.PropertyKey != "hp" {
		t.Fatalf("unexpected finding: %+v", f)
	}
}

func TestValidateEntity_DefaultSuppressesMissing(t *testing.T) {
	candidate := Candidate{EntityKey: "goblin", EntityType: "monster", Name: "Goblin"}
	def := intDef("monster", "hp", true)
	def.Default = []byte("1")

	if findings := ValidateEntity(candidate, []store.PropertyDefinition{def}, nil); len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestValidateEntity_TypeMismatch(t *testing.T) {
	candidate := Candidate{
		EntityKey: "goblin", EntityType: "monster", Name: "Goblin",
		Rows: []property.Row{{Key: "hp", ArrayIndex: property.ScalarIndex, Value: property.String("seven")}},
	}
	defs := []store.PropertyDefinition{intDef("monster", "hp", true)}

	findings := ValidateEntity(candidate, defs, nil)
	if len(findings) != 1 || findings[0].Kind != store.KindTypeMismatch {
		t.Fatalf("expected one type_mismatch, got %+v", findings)
	}
	if findings[0].Details["expected"] != "int" || findings[0].Details["actual"] != "string" {
		t.Fatalf("unexpected details: %+v", findings[0].Details)
	}
}

func TestValidateEntity_IntSatisfiesFloat(t *testing.T) {
	candidate := Candidate{
		EntityKey: "dagger", EntityType: "item", Name: "Dagger",
		Rows: []property.Row{{Key: "weight", ArrayIndex: property.ScalarIndex, Value: property.Int(1)}},
	}
	defs := []store.PropertyDefinition{{EntityType: "item", PropertyKey: "weight", Kind: store.DefFloat}}

	if findings := ValidateEntity(candidate, defs, nil); len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestValidateEntity_RangeViolation(t *testing.T) {
	min, max := 0.0, 9.0
	defs := []store.PropertyDefinition{{
		EntityType: "spell", PropertyKey: "level", Kind: store.DefInt,
		MinValue: &min, MaxValue: &max,
	}}
	candidate := Candidate{
		EntityKey: "wish", EntityType: "spell", Name: "Wish",
		Rows: []property.Row{{Key: "level", ArrayIndex: property.ScalarIndex, Value: property.Int(12)}},
	}

	findings := ValidateEntity(candidate, defs, nil)
	if len(findings) != 1 || findings[0].Kind != store.KindSchemaViolation {
		t.Fatalf("expected one schema_violation, got %+v", findings)
	}
}

func TestValidateEntity_References(t *testing.T) {
	defs := []store.PropertyDefinition{{
		EntityType: "spell", PropertyKey: "summons", Kind: store.DefReference, RefEntityType: "monster",
	}}
	keys := EntityKeys{"monster": {"goblin": true}}

	known := Candidate{
		EntityKey: "summon-goblin", EntityType: "spell", Name: "Summon Goblin",
		Rows: []property.Row{{Key: "summons", ArrayIndex: property.ScalarIndex, Value: property.String("goblin")}},
	}
	if findings := ValidateEntity(known, defs, keys); len(findings) != 0 {
		t.Fatalf("expected no findings for known reference, got %+v", findings)
	}

	unknown := Candidate{
		EntityKey: "summon-dragon", EntityType: "spell", Name: "Summon Dragon",
		Rows: []property.Row{{Key: "summons", ArrayIndex: property.ScalarIndex, Value: property.String("dragon")}},
	}
	findings := ValidateEntity(unknown, defs, keys)
	if len(findings) != 1 || findings[0].Kind != store.KindUnknownReference {
		t.Fatalf("expected one unknown_reference, got %+v", findings)
	}
	if findings[0].Severity != store.SeverityWarn {
		t.Fatalf("expected warning severity, got %s", findings[0].Severity)
	}
}

func TestValidateEntity_ArrayElementsCheckedIndividually(t *testing.T) {
	defs := []store.PropertyDefinition{{EntityType: "spell", PropertyKey: "damage", Kind: store.DefInt}}
	candidate := Candidate{
		EntityKey: "magic-missile", EntityType: "spell", Name: "Magic Missile",
		Rows: []property.Row{
			{Key: "damage", ArrayIndex: 0, Value: property.Int(1)},
			{Key: "damage", ArrayIndex: 1, Value: property.String("two")},
			{Key: "damage", ArrayIndex: 2, Value: property.Int(3)},
		},
	}

	findings := ValidateEntity(candidate, defs, nil)
	if len(findings) != 1 || findings[0].Kind != store.KindTypeMismatch {
		t.Fatalf("expected one type_mismatch for the bad element, got %+v", findings)
	}
}

func TestValidateEntity_IgnoresOtherEntityTypes(t *testing.T) {
	candidate := Candidate{EntityKey: "goblin", EntityType: "monster", Name: "Goblin"}
	defs := []store.PropertyDefinition{intDef("spell", "level", true)}

	if findings := ValidateEntity(candidate, defs, nil); len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func moduleFixture() (*mockStore, uuid.UUID, uuid.UUID) {
	moduleID := uuid.New()
	goblinID := uuid.New()
	ogreID := uuid.New()
	db := &mockStore{
		module: &store.Module{ID: moduleID, ModuleKey: "srd", GameSystem: "dnd5e"},
		entities: []store.Entity{
			{ID: goblinID, ModuleID: moduleID, EntityKey: "goblin", EntityType: "monster", Name: "Goblin"},
			{ID: ogreID, ModuleID: moduleID, EntityKey: "ogre", EntityType: "monster", Name: "Ogre"},
		},
		props: map[uuid.UUID][]property.Row{
			goblinID: {{Key: "hp", ArrayIndex: property.ScalarIndex, Value: property.Int(7)}},
			ogreID:   {},
		},
		defs: []store.PropertyDefinition{intDef("monster", "hp", true)},
	}
	return db, goblinID, ogreID
}

func TestValidateModule(t *testing.T) {
	db, goblinID, ogreID := moduleFixture()
	validator := New(db)

	report, err := validator.ValidateModule(context.Background(), db.module.ID)
	if err != nil {
		t.Fatalf("validate module: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid module")
	}
	if len(report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(report.Findings))
	}
	f := report.Findings[0]
	if f.Kind != store.KindMissingRequired || f.EntityID == nil || *f.EntityID != ogreID {
		t.Fatalf("unexpected finding: %+v", f)
	}

	if db.replacedStatus != store.StatusInvalid {
		t.Errorf("expected module status invalid, got %s", db.replacedStatus)
	}
	if db.replacedEntityStatuses[goblinID] != store.StatusValid {
		t.Errorf("expected goblin valid, got %s", db.replacedEntityStatuses[goblinID])
	}
	if db.replacedEntityStatuses[ogreID] != store.StatusInvalid {
		t.Errorf("expected ogre invalid, got %s", db.replacedEntityStatuses[ogreID])
	}
}

func TestValidateModule_Idempotent(t *testing.T) {
	db, _, _ := moduleFixture()
	validator := New(db)

	first, err := validator.ValidateModule(context.Background(), db.module.ID)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := validator.ValidateModule(context.Background(), db.module.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first.Findings, second.Findings) {
		t.Fatalf("runs differ:\nfirst  %+v\nsecond %+v", first.Findings, second.Findings)
	}
}

func TestValidateModule_DuplicateEntities(t *testing.T) {
	moduleID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	db := &mockStore{
		module: &store.Module{ID: moduleID, ModuleKey: "srd", GameSystem: "dnd5e"},
		entities: []store.Entity{
			{ID: first, ModuleID: moduleID, EntityKey: "goblin", EntityType: "monster", Name: "Goblin"},
			{ID: second, ModuleID: moduleID, EntityKey: "goblin", EntityType: "monster", Name: "Goblin (copy)"},
		},
		props: map[uuid.UUID][]property.Row{},
	}
	validator := New(db)

	report, err := validator.ValidateModule(context.Background(), moduleID)
	if err != nil {
		t.Fatalf("validate module: %v", err)
	}

	var duplicate *store.ErrorInput
	for i := range report.Findings {
		if report.Findings[i].Kind == store.KindDuplicateEntity {
			duplicate = &report.Findings[i]
		}
	}
	if duplicate == nil {
		t.Fatal("expected duplicate_entity finding")
	}
	if duplicate.EntityID != nil {
		t.Fatal("duplicate finding should be module-level")
	}
	if report.Valid {
		t.Fatal("expected invalid module")
	}
}

func TestValidateModule_NotFound(t *testing.T) {
	validator := New(&mockStore{})
	if _, err := validator.ValidateModule(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for missing module")
	}
}

func TestResolveError_RequiresResolver(t *testing.T) {
	db := &mockStore{}
	validator := New(db)
	if err := validator.ResolveError(context.Background(), uuid.New(), "", ""); err == nil {
		t.Fatal("expected error without resolver id")
	}
	if err := validator.ResolveError(context.Background(), uuid.New(), "gm-1", "fixed upstream"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(db.resolved) != 1 {
		t.Fatalf("expected one resolution, got %d", len(db.resolved))
	}
}

func TestCheckCampaignCompatibility(t *testing.T) {
	moduleID := uuid.New()
	db := &mockStore{
		module:         &store.Module{ID: moduleID, GameSystem: "dnd5e"},
		campaignSystem: "dnd5e",
	}
	validator := New(db)

	ok, err := validator.CheckCampaignCompatibility(context.Background(), moduleID, uuid.New())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ok {
		t.Fatal("expected compatible")
	}

	db.campaignSystem = "pf2e"
	ok, err = validator.CheckCampaignCompatibility(context.Background(), moduleID, uuid.New())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatal("expected incompatible")
	}
}

func TestGetValidationSummary(t *testing.T) {
	moduleID := uuid.New()
	entityID := uuid.New()
	db := &mockStore{
		module: &store.Module{ID: moduleID, ValidationStatus: store.StatusInvalid},
		openErrors: []store.ValidationError{
			{ID: uuid.New(), ModuleID: moduleID, Kind: store.KindDuplicateEntity},
			{ID: uuid.New(), ModuleID: moduleID, EntityID: &entityID, Kind: store.KindMissingRequired},
		},
		counts: []store.EntityIssueCount{{EntityID: entityID, EntityName: "Goblin", Count: 1}},
	}
	validator := New(db)

	summary, err := validator.GetValidationSummary(context.Background(), moduleID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Status != store.StatusInvalid {
		t.Errorf("expected invalid status, got %s", summary.Status)
	}
	if len(summary.ModuleIssues) != 1 {
		t.Errorf("expected 1 module-level issue, got %d", len(summary.ModuleIssues))
	}
	if len(summary.EntityIssueCounts) != 1 || summary.EntityIssueCounts[0].Count != 1 {
		t.Errorf("unexpected entity counts: %+v", summary.EntityIssueCounts)
	}
}
