package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"storyweave/internal/config"
	"storyweave/internal/store"
)

type mockStore struct {
	saved    []*store.StoredReport
	listErr  error
	lastList string
	lastN    int
}

func (m *mockStore) Close(ctx context.Context) error        { return nil }
func (m *mockStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *mockStore) SaveReport(ctx context.Context, r *store.StoredReport) error {
	m.saved = append(m.saved, r)
	return nil
}

func (m *mockStore) GetReport(ctx context.Context, id string) (*store.StoredReport, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) ListReports(ctx context.Context, storyworld string, limit int) ([]store.ReportSummary, error) {
	m.lastList = storyworld
	m.lastN = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]store.ReportSummary, 0, len(m.saved))
	for _, r := range m.saved {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (m *mockStore) PruneReports(ctx context.Context, storyworld string, keep int) (int64, error) {
	return 0, nil
}

func (m *mockStore) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func newHarborServer(t *testing.T, db store.Store) *Server {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "storyworld", "testdata", "harbor.json"))
	if err != nil {
		t.Fatalf("read harbor: %v", err)
	}
	cfg := config.Default("harbor")
	cfg.Rehearsal.Runs = 400
	server, err := NewServer("harbor.json", data, &cfg, db, "test")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func TestNewServer_InvalidDocument(t *testing.T) {
	if _, err := NewServer("bad.json", []byte(`{"encounters": [{"id": "a"}, {"id": "a"}]}`), nil, nil, "test"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateStoryworld(t *testing.T) {
	server := newHarborServer(t, nil)

	_, output, err := server.handleValidate(context.Background(), nil, ValidateInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Errors) != 0 {
		t.Fatalf("expected no errors, got %+v", output.Errors)
	}
}

func TestStoryworldMetrics(t *testing.T) {
	server := newHarborServer(t, nil)

	_, output, err := server.handleMetrics(context.Background(), nil, MetricsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Encounters != 6 || output.Endings != 4 {
		t.Fatalf("unexpected metrics output: %+v", output)
	}
}

func TestPlaythrough(t *testing.T) {
	server := newHarborServer(t, nil)
	ctx := context.Background()

	_, start, err := server.handleStartPlaythrough(ctx, nil, StartPlaythroughInput{Seed: ptr(int64(3))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Session == "" || start.Encounter != "enc_dock" || start.Done {
		t.Fatalf("unexpected start output: %+v", start)
	}
	if len(start.Options) != 2 || start.Options[0].ID != "opt_help" {
		t.Fatalf("expected dock options, got %+v", start.Options)
	}

	_, next, err := server.handleChooseOption(ctx, nil, ChooseOptionInput{Session: start.Session, Option: "opt_help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Encounter != "enc_tavern" || next.Step == nil || next.Step.Next != "enc_tavern" {
		t.Fatalf("unexpected step output: %+v", next)
	}

	_, end, err := server.handleChooseOption(ctx, nil, ChooseOptionInput{Session: start.Session, Option: "opt_confide"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !end.Done || end.Outcome != "ended" || end.Ending != "page_end_alliance" {
		t.Fatalf("expected alliance ending, got %+v", end)
	}
	if len(end.Options) != 0 {
		t.Fatalf("expected no options after the ending, got %+v", end.Options)
	}

	if _, _, err := server.handleChooseOption(ctx, nil, ChooseOptionInput{Session: start.Session, Option: "opt_confide"}); err == nil {
		t.Fatalf("expected finished session to be dropped")
	}
}

func TestChooseOption_Errors(t *testing.T) {
	server := newHarborServer(t, nil)
	ctx := context.Background()

	if _, _, err := server.handleChooseOption(ctx, nil, ChooseOptionInput{Option: "opt_help"}); err == nil {
		t.Fatalf("expected missing session error")
	}
	if _, _, err := server.handleChooseOption(ctx, nil, ChooseOptionInput{Session: "nope", Option: "opt_help"}); err == nil {
		t.Fatalf("expected unknown session error")
	}

	_, start, err := server.handleStartPlaythrough(ctx, nil, StartPlaythroughInput{Seed: ptr(int64(1))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := server.handleChooseOption(ctx, nil, ChooseOptionInput{Session: start.Session, Option: "opt_threaten"}); err == nil {
		t.Fatalf("expected closed option error")
	}
}

func TestSessionsAreBounded(t *testing.T) {
	server := newHarborServer(t, nil)
	ctx := context.Background()

	var first string
	for i := 0; i < maxSessions+1; i++ {
		_, out, err := server.handleStartPlaythrough(ctx, nil, StartPlaythroughInput{Seed: ptr(int64(i + 1))})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i == 0 {
			first = out.Session
		}
	}
	if len(server.sessions) != maxSessions {
		t.Fatalf("expected %d sessions, got %d", maxSessions, len(server.sessions))
	}
	if _, ok := server.session(first); ok {
		t.Fatalf("expected oldest session to be evicted")
	}
}

func TestRehearseAndReports(t *testing.T) {
	db := &mockStore{}
	server := newHarborServer(t, db)
	ctx := context.Background()

	_, output, err := server.handleRehearse(ctx, nil, RehearseInput{Runs: ptr(200), Seed: ptr(int64(5)), Save: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Report.Runs != 200 || output.Report.Seed != 5 {
		t.Fatalf("expected input overrides, got runs %d seed %d", output.Report.Runs, output.Report.Seed)
	}
	if output.SavedID == "" || len(db.saved) != 1 || db.saved[0].ID != output.SavedID {
		t.Fatalf("expected report to be saved, got %q and %d saved", output.SavedID, len(db.saved))
	}

	_, list, err := server.handleListReports(ctx, nil, ListReportsInput{Storyworld: "harbor", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Reports) != 1 || db.lastList != "harbor" || db.lastN != 5 {
		t.Fatalf("unexpected list output: %+v", list)
	}

	_, got, err := server.handleGetReport(ctx, nil, GetReportInput{ID: output.SavedID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Report.Runs != 200 || got.Diagnosis == nil {
		t.Fatalf("unexpected report output: %+v", got)
	}

	if _, _, err := server.handleGetReport(ctx, nil, GetReportInput{ID: "missing"}); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestReportsWithoutDatabase(t *testing.T) {
	server := newHarborServer(t, nil)
	ctx := context.Background()

	if _, _, err := server.handleListReports(ctx, nil, ListReportsInput{}); err == nil {
		t.Fatalf("expected error without database")
	}
	if _, _, err := server.handleRehearse(ctx, nil, RehearseInput{Runs: ptr(10), Save: true}); err == nil {
		t.Fatalf("expected save to fail without database")
	}
}

func TestRehearseSeedZero(t *testing.T) {
	server := newHarborServer(t, nil)
	ctx := context.Background()

	_, output, err := server.handleRehearse(ctx, nil, RehearseInput{Runs: ptr(20), Seed: ptr(int64(0))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Report.Seed != 0 {
		t.Fatalf("expected seed 0, got %d", output.Report.Seed)
	}

	_, output, err = server.handleRehearse(ctx, nil, RehearseInput{Runs: ptr(20)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Report.Seed != server.cfg.Rehearsal.Seed {
		t.Fatalf("expected configured seed %d, got %d", server.cfg.Rehearsal.Seed, output.Report.Seed)
	}
}

func ptr[T any](v T) *T { return &v }
