package mcp

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"grimvault/internal/property"
	"grimvault/internal/scheduler"
	"grimvault/internal/search"
	"grimvault/internal/store"
	"grimvault/internal/validate"
)

type mockSearchStore struct {
	result    *store.SearchResult
	groupRows []store.GroupValueRow
}

func (m *mockSearchStore) Search(_ context.Context, filter store.SearchFilter) (*store.SearchResult, error) {
	return m.result, nil
}

func (m *mockSearchStore) ListGroupValues(_ context.Context, filter store.SearchFilter, keys []string) ([]store.GroupValueRow, error) {
	return m.groupRows, nil
}

type okValidator struct{}

func (okValidator) ValidateModule(_ context.Context, moduleID uuid.UUID) (*validate.ModuleReport, error) {
	return &validate.ModuleReport{ModuleID: moduleID, Valid: true}, nil
}

func newTestServer(searchStore *mockSearchStore) (*Server, *scheduler.Scheduler) {
	sched := scheduler.New(okValidator{}, 1, zerolog.Nop())
	server := NewServer(nil, nil, search.New(searchStore), nil, sched, "test")
	return server, sched
}

func TestHandleSearchEntities(t *testing.T) {
	entityID := uuid.New()
	searchStore := &mockSearchStore{
		result: &store.SearchResult{
			Entities: []store.Entity{{
				ID:               entityID,
				EntityKey:        "fireball",
				EntityType:       "spell",
				Name:             "Fireball",
				Tags:             []string{"evocation"},
				ValidationStatus: store.StatusValid,
			}},
			Total: 1,
		},
		groupRows: []store.GroupValueRow{
			{EntityID: entityID, PropertyKey: "level", Value: property.Int(3)},
		},
	}
	server, sched := newTestServer(searchStore)
	defer sched.Stop()

	_, out, err := server.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{
		ModuleID:   uuid.New().String(),
		EntityType: "spell",
		GroupBy:    "level",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out.Total != 1 || len(out.Entities) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.Entities[0].GroupKey != "3" {
		t.Fatalf("expected group key 3, got %q", out.Entities[0].GroupKey)
	}
	if len(out.Groups) != 1 || out.Groups[0].Label != "3rd Level" {
		t.Fatalf("unexpected groups: %+v", out.Groups)
	}
}

func TestHandleSearchEntities_BadInput(t *testing.T) {
	server, sched := newTestServer(&mockSearchStore{result: &store.SearchResult{}})
	defer sched.Stop()

	if _, _, err := server.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{ModuleID: "nope"}); err == nil {
		t.Fatal("expected invalid module id error")
	}
	if _, _, err := server.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{
		ModuleID: uuid.New().String(),
		GroupBy:  "entity_type",
	}); err == nil {
		t.Fatal("expected unknown groupBy error")
	}
}

func TestHandleScheduleValidation(t *testing.T) {
	server, sched := newTestServer(&mockSearchStore{result: &store.SearchResult{}})
	defer sched.Stop()

	moduleID := uuid.New()
	_, out, err := server.handleScheduleValidation(context.Background(), nil, ScheduleValidationInput{ModuleID: moduleID.String()})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if out.ModuleID != moduleID.String() || out.JobID == "" {
		t.Fatalf("unexpected job output: %+v", out)
	}

	_, got, err := server.handleGetJob(context.Background(), nil, GetJobInput{JobID: out.JobID})
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.JobID != out.JobID {
		t.Fatalf("unexpected job: %+v", got)
	}

	if _, _, err := server.handleGetJob(context.Background(), nil, GetJobInput{JobID: uuid.New().String()}); err == nil {
		t.Fatal("expected job not found")
	}
}
