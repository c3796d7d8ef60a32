package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All DDL runs in a single call, which PostgreSQL executes inside one
	// implicit transaction. "IF NOT EXISTS" keeps this idempotent; once the
	// schema needs destructive changes a real migration tool should take over.
	ddl := `
CREATE TABLE IF NOT EXISTS modules (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    module_key        TEXT NOT NULL UNIQUE,
    name              TEXT NOT NULL,
    game_system       TEXT NOT NULL,
    source_path       TEXT DEFAULT '',
    author_id         TEXT DEFAULT '',
    is_locked         BOOLEAN NOT NULL DEFAULT FALSE,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    validation_status TEXT NOT NULL DEFAULT 'unvalidated',
    last_validated_at TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS module_entities (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    module_id         UUID NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
    entity_key        TEXT NOT NULL,
    entity_type       TEXT NOT NULL,
    name              TEXT NOT NULL,
    search_text       TEXT DEFAULT '',
    search_vector     TSVECTOR,
    tags              TEXT[] DEFAULT '{}',
    validation_status TEXT NOT NULL DEFAULT 'unvalidated',
    CONSTRAINT uq_entity_identity UNIQUE (module_id, entity_type, entity_key)
);

CREATE TABLE IF NOT EXISTS entity_properties (
    id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    entity_id       UUID NOT NULL REFERENCES module_entities(id) ON DELETE CASCADE,
    property_key    TEXT NOT NULL,
    array_index     INTEGER,
    value_string    TEXT,
    value_int       BIGINT,
    value_float     DOUBLE PRECISION,
    value_bool      BOOLEAN,
    value_json      JSONB,
    CONSTRAINT uq_property_slot UNIQUE NULLS NOT DISTINCT (entity_id, property_key, array_index)
);

CREATE TABLE IF NOT EXISTS property_definitions (
    id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    game_system     TEXT NOT NULL,
    entity_type     TEXT NOT NULL,
    property_key    TEXT NOT NULL,
    kind            TEXT NOT NULL,
    required        BOOLEAN NOT NULL DEFAULT FALSE,
    default_value   JSONB,
    min_value       DOUBLE PRECISION,
    max_value       DOUBLE PRECISION,
    ref_entity_type TEXT DEFAULT '',
    sort_order      INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT uq_definition UNIQUE (game_system, entity_type, property_key)
);

CREATE TABLE IF NOT EXISTS validation_errors (
    id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    module_id       UUID NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
    entity_id       UUID,
    entity_name     TEXT DEFAULT '',
    property_key    TEXT DEFAULT '',
    kind            TEXT NOT NULL,
    severity        TEXT NOT NULL,
    message         TEXT NOT NULL,
    details         JSONB,
    resolved        BOOLEAN NOT NULL DEFAULT FALSE,
    resolved_by     TEXT DEFAULT '',
    resolved_at     TIMESTAMPTZ,
    resolution_note TEXT DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaigns (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name        TEXT NOT NULL,
    game_system TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_modules (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    module_id   UUID NOT NULL REFERENCES modules(id) ON DELETE RESTRICT,
    load_order  INTEGER NOT NULL DEFAULT 0,
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    overrides   JSONB DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_campaign_module UNIQUE (campaign_id, module_id)
);

CREATE INDEX IF NOT EXISTS idx_entities_module ON module_entities (module_id);
CREATE INDEX IF NOT EXISTS idx_entities_type ON module_entities (entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_search ON module_entities USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_entities_tags ON module_entities USING GIN (tags);
CREATE INDEX IF NOT EXISTS idx_properties_entity_key ON entity_properties (entity_id, property_key);
CREATE INDEX IF NOT EXISTS idx_definitions_system_type ON property_definitions (game_system, entity_type);
CREATE INDEX IF NOT EXISTS idx_errors_module ON validation_errors (module_id);
CREATE INDEX IF NOT EXISTS idx_errors_unresolved ON validation_errors (module_id) WHERE resolved = FALSE;
CREATE INDEX IF NOT EXISTS idx_campaign_modules_module ON campaign_modules (module_id);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
