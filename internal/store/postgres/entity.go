package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"grimvault/internal/property"
	"grimvault/internal/store"
)

const entityColumns = `id, module_id, entity_key, entity_type, name, search_text, tags, validation_status`

func (c *Client) GetEntity(ctx context.Context, entityID uuid.UUID) (*store.Entity, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM module_entities WHERE id = $1`, entityID)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting entity %s: %w", entityID, err)
	}
	return entity, nil
}

func (c *Client) ListEntityProperties(ctx context.Context, entityID uuid.UUID) ([]property.Row, error) {
	rows, err := c.pool.Query(ctx, `
SELECT property_key, array_index, value_string, value_int, value_float, value_bool, value_json
FROM entity_properties
WHERE entity_id = $1
ORDER BY property_key, array_index NULLS FIRST
`, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing properties for entity %s: %w", entityID, err)
	}
	defer rows.Close()

	props := make([]property.Row, 0)
	for rows.Next() {
		propRow, err := scanPropertyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property row: %w", err)
		}
		props = append(props, propRow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property rows: %w", err)
	}
	return props, nil
}

func (c *Client) ListModuleEntities(ctx context.Context, moduleID uuid.UUID) ([]store.Entity, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM module_entities WHERE module_id = $1 ORDER BY entity_key`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("listing entities for module %s: %w", moduleID, err)
	}
	defer rows.Close()

	entities := make([]store.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

func (c *Client) ListModuleProperties(ctx context.Context, moduleID uuid.UUID) (map[uuid.UUID][]property.Row, error) {
	rows, err := c.pool.Query(ctx, `
SELECT p.entity_id, p.property_key, p.array_index, p.value_string, p.value_int, p.value_float, p.value_bool, p.value_json
FROM entity_properties p
JOIN module_entities e ON e.id = p.entity_id
WHERE e.module_id = $1
ORDER BY p.entity_id, p.property_key, p.array_index NULLS FIRST
`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("listing properties for module %s: %w", moduleID, err)
	}
	defer rows.Close()

	props := make(map[uuid.UUID][]property.Row)
	for rows.Next() {
		var entityID uuid.UUID
		var key string
		var arrayIndex *int
		var valueString *string
		var valueInt *int64
		var valueFloat *float64
		var valueBool *bool
		var valueJSON []byte
		if err := rows.Scan(&entityID, &key, &arrayIndex, &valueString, &valueInt, &valueFloat, &valueBool, &valueJSON); err != nil {
			return nil, fmt.Errorf("scanning property row: %w", err)
		}
		value, err := scanValue(valueString, valueInt, valueFloat, valueBool, valueJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding property %s: %w", key, err)
		}
		props[entityID] = append(props[entityID], property.Row{
			Key:        key,
			ArrayIndex: rowIndex(arrayIndex),
			Value:      value,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property rows: %w", err)
	}
	return props, nil
}

func scanEntity(row pgx.Row) (*store.Entity, error) {
	var e store.Entity
	err := row.Scan(&e.ID, &e.ModuleID, &e.EntityKey, &e.EntityType, &e.Name,
		&e.SearchText, &e.Tags, &e.ValidationStatus)
	if err != nil {
		return nil, err
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

func scanPropertyRow(rows pgx.Rows) (property.Row, error) {
	var key string
	var arrayIndex *int
	var valueString *string
	var valueInt *int64
	var valueFloat *float64
	var valueBool *bool
	var valueJSON []byte
	if err := rows.Scan(&key, &arrayIndex, &valueString, &valueInt, &valueFloat, &valueBool, &valueJSON); err != nil {
		return property.Row{}, err
	}
	value, err := scanValue(valueString, valueInt, valueFloat, valueBool, valueJSON)
	if err != nil {
		return property.Row{}, fmt.Errorf("decoding property %s: %w", key, err)
	}
	return property.Row{Key: key, ArrayIndex: rowIndex(arrayIndex), Value: value}, nil
}

func rowIndex(arrayIndex *int) int {
	if arrayIndex == nil {
		return property.ScalarIndex
	}
	return *arrayIndex
}
