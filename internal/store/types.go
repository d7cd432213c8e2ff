package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyweave/internal/diagnose"
	"storyweave/internal/rehearsal"
)

// StoredReport is one saved rehearsal with its diagnosis. Report and
// Diagnosis hold the JSON encodings of the originals.
type StoredReport struct {
	ID          string          `db:"id" json:"id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Storyworld  string          `db:"storyworld" json:"storyworld"`
	Runs        int             `db:"runs" json:"runs"`
	Seed        int64           `db:"seed" json:"seed"`
	DeadEndRate float64         `db:"dead_end_rate" json:"dead_end_rate"`
	Entropy     float64         `db:"entropy_bits" json:"entropy_bits"`
	Report      json.RawMessage `db:"report" json:"report"`
	Diagnosis   json.RawMessage `db:"diagnosis" json:"diagnosis"`
}

type ReportSummary struct {
	ID          string    `db:"id" json:"id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Storyworld  string    `db:"storyworld" json:"storyworld"`
	Runs        int       `db:"runs" json:"runs"`
	Seed        int64     `db:"seed" json:"seed"`
	DeadEndRate float64   `db:"dead_end_rate" json:"dead_end_rate"`
	Entropy     float64   `db:"entropy_bits" json:"entropy_bits"`
}

// NewStoredReport assigns a fresh id and encodes r and d for storage. d may
// be nil.
func NewStoredReport(r *rehearsal.Report, d *diagnose.Diagnosis) (*StoredReport, error) {
	report, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	diagnosis := json.RawMessage("null")
	if d != nil {
		diagnosis, err = json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encoding diagnosis: %w", err)
		}
	}
	return &StoredReport{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Storyworld:  r.Storyworld,
		Runs:        r.Runs,
		Seed:        r.Seed,
		DeadEndRate: r.DeadEndRate,
		Entropy:     r.Entropy,
		Report:      report,
		Diagnosis:   diagnosis,
	}, nil
}

// Decode unmarshals the stored report and diagnosis.
func (s *StoredReport) Decode() (*rehearsal.Report, *diagnose.Diagnosis, error) {
	var r rehearsal.Report
	if err := json.Unmarshal(s.Report, &r); err != nil {
		return nil, nil, fmt.Errorf("decoding report %s: %w", s.ID, err)
	}
	var d *diagnose.Diagnosis
	if len(s.Diagnosis) > 0 && string(s.Diagnosis) != "null" {
		d = &diagnose.Diagnosis{}
		if err := json.Unmarshal(s.Diagnosis, d); err != nil {
			return nil, nil, fmt.Errorf("decoding diagnosis %s: %w", s.ID, err)
		}
	}
	return &r, d, nil
}

func (s *StoredReport) Summary() ReportSummary {
	return ReportSummary{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		Storyworld:  s.Storyworld,
		Runs:        s.Runs,
		Seed:        s.Seed,
		DeadEndRate: s.DeadEndRate,
		Entropy:     s.Entropy,
	}
}
