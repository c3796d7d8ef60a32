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

const moduleColumns = `id, module_key, name, game_system, source_path, author_id,
	is_locked, is_active, validation_status, last_validated_at, created_at, updated_at`

const insertEntitySQL = `
INSERT INTO module_entities (module_id, entity_key, entity_type, name, search_text, tags, validation_status, search_vector)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, '{}'::text[]), $7,
    setweight(to_tsvector('simple', coalesce($4, '')), 'A') ||
    setweight(to_tsvector('english', coalesce(array_to_string(COALESCE($6, '{}'::text[]), ' '), '')), 'B') ||
    setweight(to_tsvector('english', coalesce($5, '')), 'C')
)
RETURNING id
`

func (c *Client) CreateModule(ctx context.Context, input store.ModuleInput, entities []store.EntityInput) (*store.Module, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
INSERT INTO modules (module_key, name, game_system, source_path, author_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+moduleColumns,
		input.ModuleKey, input.Name, input.GameSystem, input.SourcePath, input.AuthorID)

	module, err := scanModule(row)
	if err != nil {
		return nil, fmt.Errorf("inserting module %s: %w", input.ModuleKey, err)
	}

	if err := insertEntities(ctx, tx, module.ID, entities); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing module load: %w", err)
	}
	return module, nil
}

func (c *Client) ReplaceModuleEntities(ctx context.Context, moduleID uuid.UUID, input store.ModuleInput, entities []store.EntityInput) (*store.Module, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning reload transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
UPDATE modules
SET name = $2, game_system = $3, source_path = $4,
    validation_status = 'unvalidated', last_validated_at = NULL, updated_at = now()
WHERE id = $1
RETURNING `+moduleColumns,
		moduleID, input.Name, input.GameSystem, input.SourcePath)

	module, err := scanModule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("updating module %s: %w", moduleID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM module_entities WHERE module_id = $1`, moduleID); err != nil {
		return nil, fmt.Errorf("deleting entities for reload: %w", err)
	}

	if err := insertEntities(ctx, tx, moduleID, entities); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing module reload: %w", err)
	}
	return module, nil
}

func insertEntities(ctx context.Context, tx pgx.Tx, moduleID uuid.UUID, entities []store.EntityInput) error {
	var propertyRows [][]any
	for _, entity := range entities {
		tags := entity.Tags
		if len(tags) == 0 {
			tags = nil
		}
		status := entity.Status
		if status == "" {
			status = store.StatusUnvalidated
		}

		var entityID uuid.UUID
		err := tx.QueryRow(ctx, insertEntitySQL,
			moduleID, entity.EntityKey, entity.EntityType, entity.Name,
			entity.SearchText, tags, status,
		).Scan(&entityID)
		if err != nil {
			return fmt.Errorf("inserting entity %s: %w", entity.EntityKey, err)
		}

		for _, propRow := range entity.Rows {
			valueString, valueInt, valueFloat, valueBool, valueJSON := valueArgs(propRow.Value)
			propertyRows = append(propertyRows, []any{
				entityID, propRow.Key, arrayIndexArg(propRow.ArrayIndex),
				valueString, valueInt, valueFloat, valueBool, valueJSON,
			})
		}
	}

	if len(propertyRows) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"entity_properties"},
		[]string{"entity_id", "property_key", "array_index", "value_string", "value_int", "value_float", "value_bool", "value_json"},
		pgx.CopyFromRows(propertyRows),
	)
	if err != nil {
		return fmt.Errorf("inserting entity properties: %w", err)
	}
	return nil
}

func (c *Client) DeleteModule(ctx context.Context, moduleID uuid.UUID) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, moduleID)
	if err != nil {
		return fmt.Errorf("deleting module %s: %w", moduleID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) GetModule(ctx context.Context, moduleID uuid.UUID) (*store.Module, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, moduleID)
	module, err := scanModule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting module %s: %w", moduleID, err)
	}
	return module, nil
}

func (c *Client) GetModuleByKey(ctx context.Context, moduleKey string) (*store.Module, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE module_key = $1`, moduleKey)
	module, err := scanModule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting module %s: %w", moduleKey, err)
	}
	return module, nil
}

func (c *Client) ListModules(ctx context.Context) ([]store.Module, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	modules := make([]store.Module, 0)
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning module: %w", err)
		}
		modules = append(modules, *module)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating modules: %w", err)
	}
	return modules, nil
}

func (c *Client) SetModuleLocked(ctx context.Context, moduleID uuid.UUID, locked bool) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE modules SET is_locked = $2, updated_at = now() WHERE id = $1`, moduleID, locked)
	if err != nil {
		return fmt.Errorf("setting module lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanModule(row pgx.Row) (*store.Module, error) {
	var m store.Module
	err := row.Scan(
		&m.ID, &m.ModuleKey, &m.Name, &m.GameSystem, &m.SourcePath, &m.AuthorID,
		&m.Locked, &m.Active, &m.ValidationStatus, &m.LastValidatedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func valueArgs(v property.Value) (*string, *int64, *float64, *bool, []byte) {
	switch v.Kind() {
	case property.KindString:
		s := v.AsString()
		return &s, nil, nil, nil, nil
	case property.KindInt:
		i := v.AsInt()
		return nil, &i, nil, nil, nil
	case property.KindFloat:
		f := v.AsFloat()
		return nil, nil, &f, nil, nil
	case property.KindBool:
		b := v.AsBool()
		return nil, nil, nil, &b, nil
	case property.KindJSON:
		return nil, nil, nil, nil, v.AsJSON()
	default:
		return nil, nil, nil, nil, nil
	}
}

func arrayIndexArg(index int) *int {
	if index == property.ScalarIndex {
		return nil
	}
	return &index
}

func scanValue(valueString *string, valueInt *int64, valueFloat *float64, valueBool *bool, valueJSON []byte) (property.Value, error) {
	switch {
	case valueString != nil:
		return property.String(*valueString), nil
	case valueInt != nil:
		return property.Int(*valueInt), nil
	case valueFloat != nil:
		return property.Float(*valueFloat), nil
	case valueBool != nil:
		return property.Bool(*valueBool), nil
	case valueJSON != nil:
		return property.JSON(valueJSON), nil
	default:
		return property.Value{}, fmt.Errorf("property row has no populated value column")
	}
}
