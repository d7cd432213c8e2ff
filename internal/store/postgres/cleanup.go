package postgres

import (
	"context"
	"fmt"
)

// PruneReports deletes all but the newest keep reports of storyworld.
func (c *Client) PruneReports(ctx context.Context, storyworld string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
DELETE FROM reports
WHERE storyworld = $1
  AND id NOT IN (
    SELECT id FROM reports
    WHERE storyworld = $1
    ORDER BY created_at DESC, id
    LIMIT $2
  )
`
	tag, err := c.pool.Exec(ctx, query, storyworld, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}
	return tag.RowsAffected(), nil
}
