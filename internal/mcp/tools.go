package mcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"grimvault/internal/scheduler"
	"grimvault/internal/search"
	"grimvault/internal/store"
)

type SearchEntitiesInput struct {
	ModuleID   string   `json:"module_id" jsonschema:"module to search"`
	Query      string   `json:"query,omitempty" jsonschema:"full-text search terms"`
	EntityType string   `json:"type,omitempty" jsonschema:"restrict to one entity type"`
	Tags       []string `json:"tags,omitempty" jsonschema:"require all of these tags"`
	GroupBy    string   `json:"group_by,omitempty" jsonschema:"level, challenge_rating, or subtype"`
	Page       int      `json:"page,omitempty" jsonschema:"1-based result page"`
	PageSize   int      `json:"page_size,omitempty" jsonschema:"entities per page"`
}

type GetEntityInput struct {
	EntityID string `json:"entity_id" jsonschema:"entity to reconstruct"`
}

type ListModulesInput struct{}

type ModuleStatusInput struct {
	ModuleID string `json:"module_id" jsonschema:"module to inspect"`
}

type ScheduleValidationInput struct {
	ModuleID string `json:"module_id" jsonschema:"module to validate"`
	Force    bool   `json:"force,omitempty" jsonschema:"enqueue even if a run is already queued"`
}

type GetJobInput struct {
	JobID string `json:"job_id" jsonschema:"validation job to inspect"`
}

type EntitySummaryOutput struct {
	ID         string   `json:"id"`
	EntityKey  string   `json:"key"`
	EntityType string   `json:"type"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
	Status     string   `json:"validation_status"`
	GroupKey   string   `json:"group_key,omitempty"`
}

type GroupOutput struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

type SearchEntitiesOutput struct {
	Entities []EntitySummaryOutput `json:"entities"`
	Total    int                   `json:"total"`
	Groups   []GroupOutput         `json:"groups,omitempty"`
}

type EntityOutput struct {
	ID         string         `json:"id"`
	EntityKey  string         `json:"key"`
	EntityType string         `json:"type"`
	Name       string         `json:"name"`
	Tags       []string       `json:"tags"`
	Properties map[string]any `json:"properties"`
}

type ModuleOutput struct {
	ID         string `json:"id"`
	ModuleKey  string `json:"module_key"`
	Name       string `json:"name"`
	GameSystem string `json:"game_system"`
	Status     string `json:"validation_status"`
	Locked     bool   `json:"locked"`
}

type ListModulesOutput struct {
	Modules []ModuleOutput `json:"modules"`
}

type ValidationErrorOutput struct {
	ID          string `json:"id"`
	EntityName  string `json:"entity_name,omitempty"`
	PropertyKey string `json:"property_key,omitempty"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
}

type ModuleStatusOutput struct {
	Module ModuleOutput            `json:"module"`
	Errors []ValidationErrorOutput `json:"open_errors"`
}

type JobOutput struct {
	JobID    string `json:"job_id"`
	ModuleID string `json:"module_id"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_entities",
		Description: "Search a module's entities with filters and optional grouping",
	}, s.handleSearchEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entity",
		Description: "Reconstruct one entity with its full property bag",
	}, s.handleGetEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_modules",
		Description: "List loaded modules and their validation status",
	}, s.handleListModules)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_module_status",
		Description: "Return a module's validation status and open errors",
	}, s.handleModuleStatus)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "schedule_validation",
		Description: "Queue a background validation run for a module",
	}, s.handleScheduleValidation)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_validation_job",
		Description: "Return the state of a scheduled validation job",
	}, s.handleGetJob)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "cancel_validation",
		Description: "Cancel a pending validation job",
	}, s.handleCancelJob)
}

func (s *Server) handleSearchEntities(ctx context.Context, req *sdk.CallToolRequest, input SearchEntitiesInput) (*sdk.CallToolResult, SearchEntitiesOutput, error) {
	moduleID, err := uuid.Parse(input.ModuleID)
	if err != nil {
		return nil, SearchEntitiesOutput{}, fmt.Errorf("invalid module id: %w", err)
	}
	groupBy, err := search.ParseGroupBy(input.GroupBy)
	if err != nil {
		return nil, SearchEntitiesOutput{}, err
	}

	params := search.Params{
		Query:    input.Query,
		Tags:     input.Tags,
		Page:     input.Page,
		PageSize: input.PageSize,
		GroupBy:  groupBy,
	}
	if input.EntityType != "" {
		params.EntityTypes = []string{input.EntityType}
	}

	page, err := s.engine.Search(ctx, moduleID, params)
	if err != nil {
		return nil, SearchEntitiesOutput{}, err
	}

	out := SearchEntitiesOutput{Total: page.Total}
	for _, entity := range page.Entities {
		summary := entitySummaryOutput(entity)
		summary.GroupKey = page.EntityGroupKeys[entity.ID]
		out.Entities = append(out.Entities, summary)
	}
	for _, group := range page.Groups {
		out.Groups = append(out.Groups, GroupOutput{Key: group.Key, Label: group.Label, Count: group.Count})
	}
	return nil, out, nil
}

func (s *Server) handleGetEntity(ctx context.Context, req *sdk.CallToolRequest, input GetEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	entityID, err := uuid.Parse(input.EntityID)
	if err != nil {
		return nil, EntityOutput{}, fmt.Errorf("invalid entity id: %w", err)
	}
	entity, err := s.loader.ReconstructEntity(ctx, entityID)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, EntityOutput{
		ID:         entity.Entity.ID.String(),
		EntityKey:  entity.Entity.EntityKey,
		EntityType: entity.Entity.EntityType,
		Name:       entity.Entity.Name,
		Tags:       append([]string{}, entity.Entity.Tags...),
		Properties: entity.Properties,
	}, nil
}

func (s *Server) handleListModules(ctx context.Context, req *sdk.CallToolRequest, input ListModulesInput) (*sdk.CallToolResult, ListModulesOutput, error) {
	modules, err := s.db.ListModules(ctx)
	if err != nil {
		return nil, ListModulesOutput{}, err
	}
	out := ListModulesOutput{Modules: make([]ModuleOutput, 0, len(modules))}
	for _, module := range modules {
		out.Modules = append(out.Modules, moduleOutput(module))
	}
	return nil, out, nil
}

func (s *Server) handleModuleStatus(ctx context.Context, req *sdk.CallToolRequest, input ModuleStatusInput) (*sdk.CallToolResult, ModuleStatusOutput, error) {
	moduleID, err := uuid.Parse(input.ModuleID)
	if err != nil {
		return nil, ModuleStatusOutput{}, fmt.Errorf("invalid module id: %w", err)
	}
	status, err := s.loader.GetModuleStatus(ctx, moduleID)
	if err != nil {
		return nil, ModuleStatusOutput{}, err
	}

	out := ModuleStatusOutput{Module: moduleOutput(*status.Module)}
	for _, issue := range status.Errors {
		out.Errors = append(out.Errors, ValidationErrorOutput{
			ID:          issue.ID.String(),
			EntityName:  issue.EntityName,
			PropertyKey: issue.PropertyKey,
			Kind:        string(issue.Kind),
			Severity:    string(issue.Severity),
			Message:     issue.Message,
		})
	}
	return nil, out, nil
}

func (s *Server) handleScheduleValidation(ctx context.Context, req *sdk.CallToolRequest, input ScheduleValidationInput) (*sdk.CallToolResult, JobOutput, error) {
	moduleID, err := uuid.Parse(input.ModuleID)
	if err != nil {
		return nil, JobOutput{}, fmt.Errorf("invalid module id: %w", err)
	}
	jobID := s.scheduler.Schedule(moduleID, input.Force)
	job, _ := s.scheduler.Job(jobID)
	return nil, jobOutput(job), nil
}

func (s *Server) handleGetJob(ctx context.Context, req *sdk.CallToolRequest, input GetJobInput) (*sdk.CallToolResult, JobOutput, error) {
	jobID, err := uuid.Parse(input.JobID)
	if err != nil {
		return nil, JobOutput{}, fmt.Errorf("invalid job id: %w", err)
	}
	job, ok := s.scheduler.Job(jobID)
	if !ok {
		return nil, JobOutput{}, fmt.Errorf("job not found")
	}
	return nil, jobOutput(job), nil
}

type CancelJobInput struct {
	JobID string `json:"job_id" jsonschema:"validation job to cancel"`
}

type CancelJobOutput struct {
	Cancelled bool   `json:"cancelled"`
	State     string `json:"state"`
}

func (s *Server) handleCancelJob(ctx context.Context, req *sdk.CallToolRequest, input CancelJobInput) (*sdk.CallToolResult, CancelJobOutput, error) {
	jobID, err := uuid.Parse(input.JobID)
	if err != nil {
		return nil, CancelJobOutput{}, fmt.Errorf("invalid job id: %w", err)
	}
	cancelled := s.scheduler.Cancel(jobID)
	job, ok := s.scheduler.Job(jobID)
	if !ok {
		return nil, CancelJobOutput{}, fmt.Errorf("job not found")
	}
	return nil, CancelJobOutput{Cancelled: cancelled, State: string(job.State)}, nil
}

func entitySummaryOutput(entity store.Entity) EntitySummaryOutput {
	return EntitySummaryOutput{
		ID:         entity.ID.String(),
		EntityKey:  entity.EntityKey,
		EntityType: entity.EntityType,
		Name:       entity.Name,
		Tags:       append([]string{}, entity.Tags...),
		Status:     string(entity.ValidationStatus),
	}
}

func moduleOutput(module store.Module) ModuleOutput {
	return ModuleOutput{
		ID:         module.ID.String(),
		ModuleKey:  module.ModuleKey,
		Name:       module.Name,
		GameSystem: module.GameSystem,
		Status:     string(module.ValidationStatus),
		Locked:     module.Locked,
	}
}

func jobOutput(job scheduler.Job) JobOutput {
	return JobOutput{
		JobID:    job.ID.String(),
		ModuleID: job.ModuleID.String(),
		State:    string(job.State),
		Error:    job.Error,
	}
}
