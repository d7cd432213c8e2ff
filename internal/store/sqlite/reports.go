package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storyweave/internal/store"
)

// reportRow mirrors the reports table. Timestamps are stored as RFC 3339
// text so they sort lexically.
type reportRow struct {
	ID          string  `db:"id"`
	CreatedAt   string  `db:"created_at"`
	Storyworld  string  `db:"storyworld"`
	Runs        int     `db:"runs"`
	Seed        int64   `db:"seed"`
	DeadEndRate float64 `db:"dead_end_rate"`
	Entropy     float64 `db:"entropy_bits"`
	Report      string  `db:"report"`
	Diagnosis   string  `db:"diagnosis"`
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (c *Client) SaveReport(ctx context.Context, r *store.StoredReport) error {
	row := reportRow{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt.UTC().Format(timeLayout),
		Storyworld:  r.Storyworld,
		Runs:        r.Runs,
		Seed:        r.Seed,
		DeadEndRate: r.DeadEndRate,
		Entropy:     r.Entropy,
		Report:      string(r.Report),
		Diagnosis:   string(r.Diagnosis),
	}
	if row.Diagnosis == "" {
		row.Diagnosis = "null"
	}

	query := `
	INSERT INTO reports (id, created_at, storyworld, runs, seed, dead_end_rate, entropy_bits, report, diagnosis)
	VALUES (:id, :created_at, :storyworld, :runs, :seed, :dead_end_rate, :entropy_bits, :report, :diagnosis)
	`
	if _, err := c.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*store.StoredReport, error) {
	var row reportRow
	err := c.db.GetContext(ctx, &row, `SELECT * FROM reports WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", id, err)
	}
	return &store.StoredReport{
		ID:          row.ID,
		CreatedAt:   created,
		Storyworld:  row.Storyworld,
		Runs:        row.Runs,
		Seed:        row.Seed,
		DeadEndRate: row.DeadEndRate,
		Entropy:     row.Entropy,
		Report:      []byte(row.Report),
		Diagnosis:   []byte(row.Diagnosis),
	}, nil
}

func (c *Client) ListReports(ctx context.Context, storyworld string, limit int) ([]store.ReportSummary, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	query := `
	SELECT id, created_at, storyworld, runs, seed, dead_end_rate, entropy_bits
	FROM reports
	WHERE (? = '' OR storyworld = ?)
	ORDER BY created_at DESC, id
	LIMIT ?
	`
	var rows []reportRow
	if err := c.db.SelectContext(ctx, &rows, query, storyworld, storyworld, limit); err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	results := make([]store.ReportSummary, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at of %s: %w", row.ID, err)
		}
		results = append(results, store.ReportSummary{
			ID:          row.ID,
			CreatedAt:   created,
			Storyworld:  row.Storyworld,
			Runs:        row.Runs,
			Seed:        row.Seed,
			DeadEndRate: row.DeadEndRate,
			Entropy:     row.Entropy,
		})
	}
	return results, nil
}
