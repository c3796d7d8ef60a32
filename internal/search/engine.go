// Package search answers filtered, ranked, and grouped queries over a
// module's entities. Filtering and ranking run in the store; group keys
// are derived here from the property values the store hands back.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"grimvault/internal/property"
	"grimvault/internal/store"
)

// Store is the slice of the persistence layer the engine needs.
type Store interface {
	Search(ctx context.Context, filter store.SearchFilter) (*store.SearchResult, error)
	ListGroupValues(ctx context.Context, filter store.SearchFilter, keys []string) ([]store.GroupValueRow, error)
}

type Engine struct {
	db Store
}

func New(db Store) *Engine {
	return &Engine{db: db}
}

const defaultPageSize = 50

// Params narrows and shapes one search request. Page is 1-based; when
// Query is set results are ordered by relevance and SortBy is ignored.
type Params struct {
	Query            string
	EntityTypes      []string
	Tags             []string
	ValidationStatus *store.ValidationStatus
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        store.SortOrder
	GroupBy          GroupBy
}

// Group is one bucket of the grouped summary, counted over the full
// filtered set, not just the returned page.
type Group struct {
	Key   string
	Label string
	Count int
}

// Page is one page of results plus the pre-pagination total. Groups and
// EntityGroupKeys are populated only when GroupBy was requested;
// EntityGroupKeys covers every matching entity so a caller can render
// grouped pages without a second query.
type Page struct {
	Entities        []store.Entity
	Total           int
	Groups          []Group
	EntityGroupKeys map[uuid.UUID]string
}

func (e *Engine) Search(ctx context.Context, moduleID uuid.UUID, params Params) (*Page, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := params.Page
	if page < 1 {
		page = 1
	}

	filter := store.SearchFilter{
		ModuleID:         moduleID,
		Query:            params.Query,
		EntityTypes:      params.EntityTypes,
		Tags:             params.Tags,
		ValidationStatus: params.ValidationStatus,
		SortBy:           params.SortBy,
		SortOrder:        params.SortOrder,
		Offset:           (page - 1) * pageSize,
		Limit:            pageSize,
	}

	result, err := e.db.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching module %s: %w", moduleID, err)
	}

	out := &Page{Entities: result.Entities, Total: result.Total}
	if params.GroupBy == GroupByNone {
		return out, nil
	}

	rows, err := e.db.ListGroupValues(ctx, filter, params.GroupBy.propertyKeys())
	if err != nil {
		return nil, fmt.Errorf("listing group values: %w", err)
	}
	out.Groups, out.EntityGroupKeys = buildGroups(params.GroupBy, rows)
	return out, nil
}

// buildGroups buckets every matching entity. The store emits one row per
// (entity, present key) pair, and a single row with an empty key for
// entities holding none of the grouped properties.
func buildGroups(groupBy GroupBy, rows []store.GroupValueRow) ([]Group, map[uuid.UUID]string) {
	perEntity := make(map[uuid.UUID]map[string]property.Value)
	for _, row := range rows {
		values := perEntity[row.EntityID]
		if values == nil {
			values = make(map[string]property.Value)
			perEntity[row.EntityID] = values
		}
		if row.PropertyKey != "" {
			values[row.PropertyKey] = row.Value
		}
	}

	entityKeys := make(map[uuid.UUID]string, len(perEntity))
	counts := make(map[string]derivedGroup)
	tally := make(map[string]int)
	for entityID, values := range perEntity {
		group := deriveGroup(groupBy, values)
		entityKeys[entityID] = group.key
		counts[group.key] = group
		tally[group.key]++
	}

	groups := make([]Group, 0, len(counts))
	for key, group := range counts {
		groups = append(groups, Group{Key: key, Label: group.label, Count: tally[key]})
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := counts[groups[i].Key], counts[groups[j].Key]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.key < b.key
	})
	return groups, entityKeys
}
