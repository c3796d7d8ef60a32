package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"grimvault/internal/store"
)

const errorColumns = `id, module_id, entity_id, entity_name, property_key, kind, severity,
	message, details, resolved, resolved_by, resolved_at, resolution_note, created_at`

// ReplaceValidationErrors swaps the unresolved error set for a module with
// the findings of a fresh run and records the resulting statuses, all in
// one transaction. Resolved rows are history and stay untouched.
func (c *Client) ReplaceValidationErrors(ctx context.Context, moduleID uuid.UUID, status store.ValidationStatus, entityStatuses map[uuid.UUID]store.ValidationStatus, errs []store.ErrorInput) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning validation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM validation_errors WHERE module_id = $1 AND resolved = FALSE`, moduleID); err != nil {
		return fmt.Errorf("clearing unresolved errors: %w", err)
	}

	for _, input := range errs {
		var details []byte
		if input.Details != nil {
			details, err = json.Marshal(input.Details)
			if err != nil {
				return fmt.Errorf("encoding error details: %w", err)
			}
		}
		_, err := tx.Exec(ctx, `
INSERT INTO validation_errors (module_id, entity_id, entity_name, property_key, kind, severity, message, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, moduleID, input.EntityID, input.EntityName, input.PropertyKey,
			string(input.Kind), string(input.Severity), input.Message, details)
		if err != nil {
			return fmt.Errorf("inserting validation error: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
UPDATE modules SET validation_status = $2, last_validated_at = now(), updated_at = now()
WHERE id = $1
`, moduleID, string(status))
	if err != nil {
		return fmt.Errorf("updating module status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	for entityID, entityStatus := range entityStatuses {
		if _, err := tx.Exec(ctx,
			`UPDATE module_entities SET validation_status = $2 WHERE id = $1`,
			entityID, string(entityStatus)); err != nil {
			return fmt.Errorf("updating entity status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing validation run: %w", err)
	}
	return nil
}

func (c *Client) ListValidationErrors(ctx context.Context, moduleID uuid.UUID, includeResolved bool) ([]store.ValidationError, error) {
	sql := `SELECT ` + errorColumns + ` FROM validation_errors WHERE module_id = $1`
	if !includeResolved {
		sql += ` AND resolved = FALSE`
	}
	sql += ` ORDER BY created_at, id`

	rows, err := c.pool.Query(ctx, sql, moduleID)
	if err != nil {
		return nil, fmt.Errorf("listing validation errors: %w", err)
	}
	defer rows.Close()

	errs := make([]store.ValidationError, 0)
	for rows.Next() {
		e, err := scanValidationError(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning validation error: %w", err)
		}
		errs = append(errs, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating validation errors: %w", err)
	}
	return errs, nil
}

func (c *Client) GetValidationError(ctx context.Context, errorID uuid.UUID) (*store.ValidationError, error) {
	row := c.pool.QueryRow(ctx,
		`SELECT `+errorColumns+` FROM validation_errors WHERE id = $1`, errorID)
	e, err := scanValidationError(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting validation error %s: %w", errorID, err)
	}
	return e, nil
}

func (c *Client) ResolveValidationError(ctx context.Context, errorID uuid.UUID, resolvedBy, note string) error {
	tag, err := c.pool.Exec(ctx, `
UPDATE validation_errors
SET resolved = TRUE, resolved_by = $2, resolved_at = now(), resolution_note = $3
WHERE id = $1 AND resolved = FALSE
`, errorID, resolvedBy, note)
	if err != nil {
		return fmt.Errorf("resolving validation error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) CountEntityIssues(ctx context.Context, moduleID uuid.UUID) ([]store.EntityIssueCount, error) {
	rows, err := c.pool.Query(ctx, `
SELECT entity_id, max(entity_name), count(*)
FROM validation_errors
WHERE module_id = $1 AND resolved = FALSE AND entity_id IS NOT NULL
GROUP BY entity_id
ORDER BY max(entity_name)
`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("counting entity issues: %w", err)
	}
	defer rows.Close()

	counts := make([]store.EntityIssueCount, 0)
	for rows.Next() {
		var c store.EntityIssueCount
		if err := rows.Scan(&c.EntityID, &c.EntityName, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning issue count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating issue counts: %w", err)
	}
	return counts, nil
}

func scanValidationError(row pgx.Row) (*store.ValidationError, error) {
	var e store.ValidationError
	var details []byte
	err := row.Scan(&e.ID, &e.ModuleID, &e.EntityID, &e.EntityName, &e.PropertyKey,
		&e.Kind, &e.Severity, &e.Message, &details,
		&e.Resolved, &e.ResolvedBy, &e.ResolvedAt, &e.ResolutionNote, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decoding error details: %w", err)
		}
	}
	return &e, nil
}
