package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"grimvault/internal/store"
)

// conditions is a minimal parameterized WHERE builder. Filter values are
// always bound as query arguments, never interpolated; only fixed column
// names reach the SQL text.
type conditions struct {
	exprs []string
	args  []any
}

func (c *conditions) bind(value any) string {
	c.args = append(c.args, value)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *conditions) where(expr string) {
	c.exprs = append(c.exprs, expr)
}

func (c *conditions) clause() string {
	if len(c.exprs) == 0 {
		return "TRUE"
	}
	return strings.Join(c.exprs, "\n  AND ")
}

var sortColumns = map[string]string{
	"name":        "e.name",
	"entity_type": "e.entity_type",
	"entity_key":  "e.entity_key",
}

func searchConditions(filter store.SearchFilter) *conditions {
	cond := &conditions{}
	cond.where("e.module_id = " + cond.bind(filter.ModuleID))

	switch len(filter.EntityTypes) {
	case 0:
	case 1:
		cond.where("e.entity_type = " + cond.bind(filter.EntityTypes[0]))
	default:
		cond.where("e.entity_type = ANY(" + cond.bind(filter.EntityTypes) + ")")
	}

	if len(filter.Tags) > 0 {
		cond.where("e.tags @> " + cond.bind(filter.Tags))
	}

	if filter.ValidationStatus != nil {
		cond.where("e.validation_status = " + cond.bind(string(*filter.ValidationStatus)))
	}

	if filter.Query != "" {
		cond.where("e.search_vector @@ websearch_to_tsquery('english', " + cond.bind(filter.Query) + ")")
	}

	return cond
}

func (c *Client) Search(ctx context.Context, filter store.SearchFilter) (*store.SearchResult, error) {
	cond := searchConditions(filter)
	clause := cond.clause()

	var total int
	countSQL := "SELECT count(*) FROM module_entities e WHERE " + clause
	if err := c.pool.QueryRow(ctx, countSQL, cond.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting search results: %w", err)
	}

	// Full-text queries are always ranked by relevance; SortBy only applies
	// to non-query filtering.
	var orderBy string
	if filter.Query != "" {
		orderBy = "ts_rank(e.search_vector, websearch_to_tsquery('english', " + cond.bind(filter.Query) + ")) DESC, e.name ASC"
	} else {
		column, ok := sortColumns[filter.SortBy]
		if !ok {
			column = "e.name"
		}
		direction := "ASC"
		if filter.SortOrder == store.SortDesc {
			direction = "DESC"
		}
		orderBy = column + " " + direction + ", e.entity_key ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	pageSQL := "SELECT e.id, e.module_id, e.entity_key, e.entity_type, e.name, e.search_text, e.tags, e.validation_status" +
		"\nFROM module_entities e WHERE " + clause +
		"\nORDER BY " + orderBy +
		"\nLIMIT " + cond.bind(limit) + " OFFSET " + cond.bind(offset)

	rows, err := c.pool.Query(ctx, pageSQL, cond.args...)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	entities := make([]store.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return &store.SearchResult{Entities: entities, Total: total}, nil
}

// ListGroupValues scans the scalar values of the requested property keys
// across the whole filtered entity set (no pagination). Entities holding
// none of the keys still yield one row, with a NULL property key, so the
// grouping layer can bucket them into its sentinel group.
func (c *Client) ListGroupValues(ctx context.Context, filter store.SearchFilter, keys []string) ([]store.GroupValueRow, error) {
	cond := searchConditions(filter)

	sql := `
SELECT e.id, p.property_key, p.value_string, p.value_int, p.value_float, p.value_bool, p.value_json
FROM module_entities e
LEFT JOIN entity_properties p
  ON p.entity_id = e.id
 AND p.array_index IS NULL
 AND p.property_key = ANY(` + cond.bind(keys) + `)
WHERE ` + cond.clause()

	rows, err := c.pool.Query(ctx, sql, cond.args...)
	if err != nil {
		return nil, fmt.Errorf("scanning group values: %w", err)
	}
	defer rows.Close()

	values := make([]store.GroupValueRow, 0)
	for rows.Next() {
		var row store.GroupValueRow
		var key *string
		var valueString *string
		var valueInt *int64
		var valueFloat *float64
		var valueBool *bool
		var valueJSON []byte
		if err := rows.Scan(&row.EntityID, &key, &valueString, &valueInt, &valueFloat, &valueBool, &valueJSON); err != nil {
			return nil, fmt.Errorf("scanning group value row: %w", err)
		}
		if key != nil {
			row.PropertyKey = *key
			value, err := scanValue(valueString, valueInt, valueFloat, valueBool, valueJSON)
			if err != nil {
				return nil, fmt.Errorf("decoding group value for %s: %w", *key, err)
			}
			row.Value = value
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group value rows: %w", err)
	}
	return values, nil
}
