package sqlite

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS reports (
		id            TEXT PRIMARY KEY,
		created_at    TEXT NOT NULL,
		storyworld    TEXT NOT NULL,
		runs          INTEGER NOT NULL,
		seed          INTEGER NOT NULL,
		dead_end_rate REAL NOT NULL,
		entropy_bits  REAL NOT NULL,
		report        TEXT NOT NULL,
		diagnosis     TEXT NOT NULL DEFAULT 'null'
	);

	CREATE INDEX IF NOT EXISTS idx_reports_storyworld ON reports (storyworld);
	CREATE INDEX IF NOT EXISTS idx_reports_storyworld_created ON reports (storyworld, created_at);
	`
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
