package sqlite

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
	WHERE storyworld = ?
	  AND id NOT IN (
		SELECT id FROM reports
		WHERE storyworld = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	  )
	`
	result, err := c.db.ExecContext(ctx, query, storyworld, storyworld, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected, nil
}
