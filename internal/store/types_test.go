package store

import (
	"testing"

	"github.com/google/uuid"

	"storyweave/internal/diagnose"
	"storyweave/internal/rehearsal"
)

func TestNewStoredReport(t *testing.T) {
	r := &rehearsal.Report{Storyworld: "harbor", Runs: 100, Seed: 9, DeadEndRate: 0.02, Entropy: 1.25}

	t.Run("without diagnosis", func(t *testing.T) {
		s, err := NewStoredReport(r, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := uuid.Parse(s.ID); err != nil {
			t.Fatalf("expected uuid id, got %q", s.ID)
		}
		if s.Storyworld != "harbor" || s.Runs != 100 || s.Seed != 9 || s.Entropy != 1.25 {
			t.Fatalf("unexpected summary columns %+v", s.Summary())
		}
		got, d, err := s.Decode()
		if err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if d != nil {
			t.Fatalf("expected nil diagnosis, got %+v", d)
		}
		if got.Storyworld != "harbor" || got.DeadEndRate != 0.02 {
			t.Fatalf("unexpected decoded report %+v", got)
		}
	})

	t.Run("with diagnosis", func(t *testing.T) {
		diag := &diagnose.Diagnosis{Findings: []diagnose.Finding{{Code: diagnose.CodeDeadEndRate, Subject: "harbor"}}}
		s, err := NewStoredReport(r, diag)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, d, err := s.Decode()
		if err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if d == nil || len(d.Findings) != 1 || d.Findings[0].Code != diagnose.CodeDeadEndRate {
			t.Fatalf("unexpected decoded diagnosis %+v", d)
		}
	})

	t.Run("distinct ids", func(t *testing.T) {
		a, _ := NewStoredReport(r, nil)
		b, _ := NewStoredReport(r, nil)
		if a.ID == b.ID {
			t.Fatalf("expected distinct ids, got %q twice", a.ID)
		}
	})
}
