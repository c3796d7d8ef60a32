package postgres

import (
	"context"
	"fmt"

	"grimvault/internal/store"
)

// SyncDefinitions replaces the definition set for a game system with the
// contents of the definitions file. Runs in one transaction so readers
// never see a half-synced schema.
func (c *Client) SyncDefinitions(ctx context.Context, gameSystem string, defs []store.PropertyDefinition) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning definition sync: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM property_definitions WHERE game_system = $1`, gameSystem); err != nil {
		return fmt.Errorf("clearing definitions: %w", err)
	}

	for _, def := range defs {
		var defaultValue []byte
		if len(def.Default) > 0 {
			defaultValue = def.Default
		}
		_, err := tx.Exec(ctx, `
INSERT INTO property_definitions
    (game_system, entity_type, property_key, kind, required, default_value, min_value, max_value, ref_entity_type, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, gameSystem, def.EntityType, def.PropertyKey, string(def.Kind), def.Required,
			defaultValue, def.MinValue, def.MaxValue, def.RefEntityType, def.SortOrder)
		if err != nil {
			return fmt.Errorf("inserting definition %s/%s: %w", def.EntityType, def.PropertyKey, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing definition sync: %w", err)
	}
	return nil
}

func (c *Client) ListDefinitions(ctx context.Context, gameSystem, entityType string) ([]store.PropertyDefinition, error) {
	sql := `
SELECT id, game_system, entity_type, property_key, kind, required, default_value,
       min_value, max_value, ref_entity_type, sort_order
FROM property_definitions
WHERE game_system = $1
  AND ($2 = '' OR entity_type = $2)
ORDER BY entity_type, sort_order, property_key
`
	rows, err := c.pool.Query(ctx, sql, gameSystem, entityType)
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]store.PropertyDefinition, 0)
	for rows.Next() {
		var def store.PropertyDefinition
		var kind string
		var defaultValue []byte
		err := rows.Scan(&def.ID, &def.GameSystem, &def.EntityType, &def.PropertyKey,
			&kind, &def.Required, &defaultValue, &def.MinValue, &def.MaxValue,
			&def.RefEntityType, &def.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("scanning definition: %w", err)
		}
		def.Kind = store.DefinitionKind(kind)
		def.Default = defaultValue
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating definitions: %w", err)
	}
	return defs, nil
}
