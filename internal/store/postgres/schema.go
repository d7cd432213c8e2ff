package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS reports (
    id            TEXT PRIMARY KEY,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    storyworld    TEXT NOT NULL,
    runs          INTEGER NOT NULL,
    seed          BIGINT NOT NULL,
    dead_end_rate DOUBLE PRECISION NOT NULL,
    entropy_bits  DOUBLE PRECISION NOT NULL,
    report        JSONB NOT NULL,
    diagnosis     JSONB NOT NULL DEFAULT 'null'
);

CREATE INDEX IF NOT EXISTS idx_reports_storyworld ON reports (storyworld);
CREATE INDEX IF NOT EXISTS idx_reports_storyworld_created ON reports (storyworld, created_at DESC);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
