//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"grimvault/internal/property"
	"grimvault/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("GRIMVAULT_TEST_DSN")
	if dsn == "" {
		t.Skip("GRIMVAULT_TEST_DSN not set")
	}
	client, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(client.Close)
	if err := client.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return client
}

func clearDatabase(t *testing.T, client *Client) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{"campaign_modules", "campaigns", "validation_errors", "entity_properties", "module_entities", "modules", "property_definitions"} {
		if _, err := client.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clearing %s: %v", table, err)
		}
	}
}

func loadFixtureModule(t *testing.T, client *Client) *store.Module {
	t.Helper()
	rows, err := property.Flatten(map[string]any{
		"damage": []any{1, 2, 3},
		"level":  3,
	})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	module, err := client.CreateModule(context.Background(),
		store.ModuleInput{ModuleKey: "it-spells", Name: "IT Spells", GameSystem: "dnd5e", SourcePath: "/tmp/spells.yaml"},
		[]store.EntityInput{{
			EntityKey:  "fireball",
			EntityType: "spell",
			Name:       "Fireball",
			SearchText: "Fireball evocation fire",
			Tags:       []string{"evocation"},
			Rows:       rows,
			Status:     store.StatusUnvalidated,
		}})
	if err != nil {
		t.Fatalf("creating module: %v", err)
	}
	return module
}

func TestLoadAndReconstruct(t *testing.T) {
	client := testClient(t)
	clearDatabase(t, client)
	ctx := context.Background()

	module := loadFixtureModule(t, client)
	entities, err := client.ListModuleEntities(ctx, module.ID)
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}

	rows, err := client.ListEntityProperties(ctx, entities[0].ID)
	if err != nil {
		t.Fatalf("listing properties: %v", err)
	}
	// One scalar level row plus three damage array rows.
	if len(rows) != 4 {
		t.Fatalf("expected 4 property rows, got %d", len(rows))
	}

	props, err := property.Reconstruct(rows)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	damage, ok := props["damage"].([]any)
	if !ok || len(damage) != 3 || damage[0] != int64(1) || damage[2] != int64(3) {
		t.Fatalf("unexpected damage: %v", props["damage"])
	}
}

func TestReplaceModuleEntities(t *testing.T) {
	client := testClient(t)
	clearDatabase(t, client)
	ctx := context.Background()

	module := loadFixtureModule(t, client)
	replaced, err := client.ReplaceModuleEntities(ctx, module.ID,
		store.ModuleInput{ModuleKey: module.ModuleKey, Name: "IT Spells v2", GameSystem: "dnd5e", SourcePath: module.SourcePath},
		[]store.EntityInput{{EntityKey: "frostbolt", EntityType: "spell", Name: "Frostbolt"}})
	if err != nil {
		t.Fatalf("replacing entities: %v", err)
	}
	if replaced.ID != module.ID {
		t.Fatal("module identity must survive a reload")
	}
	if replaced.ValidationStatus != store.StatusUnvalidated {
		t.Fatalf("reload must reset validation status, got %s", replaced.ValidationStatus)
	}

	entities, err := client.ListModuleEntities(ctx, module.ID)
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(entities) != 1 || entities[0].EntityKey != "frostbolt" {
		t.Fatalf("expected only the new entity, got %+v", entities)
	}
}

func TestCreateModule_SameKeyAcrossTypes(t *testing.T) {
	client := testClient(t)
	clearDatabase(t, client)
	ctx := context.Background()

	// Entity identity is (type, key): a spell and an item may share a key.
	module, err := client.CreateModule(ctx,
		store.ModuleInput{ModuleKey: "it-shared-keys", Name: "Shared Keys", GameSystem: "dnd5e"},
		[]store.EntityInput{
			{EntityKey: "flametongue", EntityType: "spell", Name: "Flametongue"},
			{EntityKey: "flametongue", EntityType: "item", Name: "Flametongue Sword"},
		})
	if err != nil {
		t.Fatalf("creating module: %v", err)
	}

	entities, err := client.ListModuleEntities(ctx, module.ID)
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected both entities to persist, got %d", len(entities))
	}
}

func TestReplaceModuleEntities_RollsBackOnFailure(t *testing.T) {
	client := testClient(t)
	clearDatabase(t, client)
	ctx := context.Background()

	module := loadFixtureModule(t, client)

	// Two entities with the same identity violate the unique constraint
	// mid-insert; the whole replace must roll back.
	_, err := client.ReplaceModuleEntities(ctx, module.ID,
		store.ModuleInput{ModuleKey: module.ModuleKey, Name: "Broken Reload", GameSystem: "dnd5e", SourcePath: module.SourcePath},
		[]store.EntityInput{
			{EntityKey: "frostbolt", EntityType: "spell", Name: "Frostbolt"},
			{EntityKey: "frostbolt", EntityType: "spell", Name: "Frostbolt Again"},
		})
	if err == nil {
		t.Fatal("expected duplicate-identity replace to fail")
	}

	entities, err := client.ListModuleEntities(ctx, module.ID)
	if err != nil {
		t.Fatalf("listing entities: %v", err)
	}
	if len(entities) != 1 || entities[0].EntityKey != "fireball" {
		t.Fatalf("failed reload must leave the prior entity set intact, got %+v", entities)
	}

	reloaded, err := client.GetModule(ctx, module.ID)
	if err != nil {
		t.Fatalf("getting module: %v", err)
	}
	if reloaded.Name != module.Name {
		t.Fatalf("failed reload must leave module metadata intact, got %q", reloaded.Name)
	}
}

func TestSearchAndGroupValues(t *testing.T) {
	client := testClient(t)
	clearDatabase(t, client)
	ctx := context.Background()

	module := loadFixtureModule(t, client)
	result, err := client.Search(ctx, store.SearchFilter{ModuleID: module.ID, Query: "fire"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || len(result.Entities) != 1 {
		t.Fatalf("expected fireball hit, got %+v", result)
	}

	values, err := client.ListGroupValues(ctx, store.SearchFilter{ModuleID: module.ID}, []string{"level"})
	if err != nil {
		t.Fatalf("group values: %v", err)
	}
	if len(values) != 1 || values[0].PropertyKey != "level" || values[0].Value.AsInt() != 3 {
		t.Fatalf("unexpected group values: %+v", values)
	}

	// An entity without the key still yields a sentinel row.
	values, err = client.ListGroupValues(ctx, store.SearchFilter{ModuleID: module.ID}, []string{"challenge_rating"})
	if err != nil {
		t.Fatalf("group values: %v", err)
	}
	if len(values) != 1 || values[0].PropertyKey != "" {
		t.Fatalf("expected sentinel row, got %+v", values)
	}
}

func TestValidationErrorHistory(t *testing.T) {
	client := testClient(t)
	clearDatabase(t, client)
	ctx := context.Background()

	module := loadFixtureModule(t, client)
	finding := store.ErrorInput{
		EntityName:  "Fireball",
		PropertyKey: "level",
		Kind:        store.KindSchemaViolation,
		Severity:    store.SeverityError,
		Message:     "property level violates its numeric range",
	}
	if err := client.ReplaceValidationErrors(ctx, module.ID, store.StatusInvalid, nil, []store.ErrorInput{finding}); err != nil {
		t.Fatalf("replacing errors: %v", err)
	}

	open, err := client.ListValidationErrors(ctx, module.ID, false)
	if err != nil {
		t.Fatalf("listing errors: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open error, got %d", len(open))
	}

	if err := client.ResolveValidationError(ctx, open[0].ID, "gm-1", "fixed upstream"); err != nil {
		t.Fatalf("resolving: %v", err)
	}

	// A fresh run replaces unresolved rows but keeps the resolved one.
	if err := client.ReplaceValidationErrors(ctx, module.ID, store.StatusInvalid, nil, []store.ErrorInput{finding}); err != nil {
		t.Fatalf("replacing errors again: %v", err)
	}
	all, err := client.ListValidationErrors(ctx, module.ID, true)
	if err != nil {
		t.Fatalf("listing all errors: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected resolved history plus fresh row, got %d", len(all))
	}

	if _, err := client.GetValidationError(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
