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

func (c *Client) GetCampaignGameSystem(ctx context.Context, campaignID uuid.UUID) (string, error) {
	var gameSystem string
	err := c.pool.QueryRow(ctx,
		`SELECT game_system FROM campaigns WHERE id = $1`, campaignID).Scan(&gameSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("getting campaign %s: %w", campaignID, err)
	}
	return gameSystem, nil
}

// AttachCampaignModule links a module into a campaign's load order. The
// link row blocks module deletion until detached.
func (c *Client) AttachCampaignModule(ctx context.Context, campaignID, moduleID uuid.UUID, loadOrder int) (*store.CampaignModule, error) {
	row := c.pool.QueryRow(ctx, `
INSERT INTO campaign_modules (campaign_id, module_id, load_order)
VALUES ($1, $2, $3)
ON CONFLICT (campaign_id, module_id) DO UPDATE SET load_order = EXCLUDED.load_order, is_active = TRUE
RETURNING id, campaign_id, module_id, load_order, is_active, overrides, created_at
`, campaignID, moduleID, loadOrder)

	link, err := scanCampaignModule(row)
	if err != nil {
		return nil, fmt.Errorf("attaching module to campaign: %w", err)
	}
	return link, nil
}

func (c *Client) DetachCampaignModule(ctx context.Context, campaignID, moduleID uuid.UUID) error {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM campaign_modules WHERE campaign_id = $1 AND module_id = $2`,
		campaignID, moduleID)
	if err != nil {
		return fmt.Errorf("detaching module from campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) ListCampaignModules(ctx context.Context, campaignID uuid.UUID) ([]store.CampaignModule, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id, campaign_id, module_id, load_order, is_active, overrides, created_at
FROM campaign_modules
WHERE campaign_id = $1
ORDER BY load_order, created_at
`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing campaign modules: %w", err)
	}
	defer rows.Close()

	links := make([]store.CampaignModule, 0)
	for rows.Next() {
		link, err := scanCampaignModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning campaign module: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating campaign modules: %w", err)
	}
	return links, nil
}

func (c *Client) ModuleInUse(ctx context.Context, moduleID uuid.UUID) (bool, error) {
	var inUse bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaign_modules WHERE module_id = $1)`, moduleID).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("checking module usage: %w", err)
	}
	return inUse, nil
}

func scanCampaignModule(row pgx.Row) (*store.CampaignModule, error) {
	var link store.CampaignModule
	var overrides []byte
	err := row.Scan(&link.ID, &link.CampaignID, &link.ModuleID, &link.LoadOrder,
		&link.Active, &overrides, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &link.Overrides); err != nil {
			return nil, fmt.Errorf("decoding overrides: %w", err)
		}
	}
	return &link, nil
}
