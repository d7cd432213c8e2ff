package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storyweave/internal/store"
)

func (c *Client) SaveReport(ctx context.Context, r *store.StoredReport) error {
	query := `
INSERT INTO reports (id, created_at, storyworld, runs, seed, dead_end_rate, entropy_bits, report, diagnosis)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := c.pool.Exec(ctx, query,
		r.ID,
		r.CreatedAt,
		r.Storyworld,
		r.Runs,
		r.Seed,
		r.DeadEndRate,
		r.Entropy,
		string(r.Report),
		string(r.Diagnosis),
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*store.StoredReport, error) {
	query := `
SELECT id, created_at, storyworld, runs, seed, dead_end_rate, entropy_bits, report::text, diagnosis::text
FROM reports
WHERE id = $1
`
	var (
		r                 store.StoredReport
		report, diagnosis string
	)
	err := c.pool.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&r.CreatedAt,
		&r.Storyworld,
		&r.Runs,
		&r.Seed,
		&r.DeadEndRate,
		&r.Entropy,
		&report,
		&diagnosis,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	r.Report = []byte(report)
	r.Diagnosis = []byte(diagnosis)
	return &r, nil
}

func (c *Client) ListReports(ctx context.Context, storyworld string, limit int) ([]store.ReportSummary, error) {
	query := `
SELECT id, created_at, storyworld, runs, seed, dead_end_rate, entropy_bits
FROM reports
WHERE ($1 = '' OR storyworld = $1)
ORDER BY created_at DESC, id
LIMIT $2
`
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	rows, err := c.pool.Query(ctx, query, storyworld, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	results := make([]store.ReportSummary, 0)
	for rows.Next() {
		var s store.ReportSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Storyworld, &s.Runs, &s.Seed, &s.DeadEndRate, &s.Entropy); err != nil {
			return nil, fmt.Errorf("scanning report summary: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return results, nil
}
