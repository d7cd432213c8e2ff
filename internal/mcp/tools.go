package mcp

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"storyweave/internal/config"
	"storyweave/internal/diagnose"
	"storyweave/internal/engine"
	"storyweave/internal/metrics"
	"storyweave/internal/rehearsal"
	"storyweave/internal/store"
	"storyweave/internal/validate"
)

// RehearseInput fields left nil fall back to the project settings.
type RehearseInput struct {
	Runs     *int   `json:"runs,omitempty" jsonschema:"number of trajectories, defaults to the project setting"`
	Seed     *int64 `json:"seed,omitempty" jsonschema:"base seed, defaults to the project setting"`
	MaxSteps *int   `json:"max_steps,omitempty" jsonschema:"encounter budget per trajectory"`
	Save     bool   `json:"save,omitempty" jsonschema:"store the report in the project database"`
}

type RehearseOutput struct {
	Report    *rehearsal.Report  `json:"report"`
	Diagnosis diagnose.Diagnosis `json:"diagnosis"`
	SavedID   string             `json:"saved_id,omitempty"`
}

type ValidateInput struct{}

type ValidateOutput struct {
	Errors   []validate.Issue `json:"errors"`
	Warnings []validate.Issue `json:"warnings"`
}

type MetricsInput struct{}

type StartPlaythroughInput struct {
	Seed *int64 `json:"seed,omitempty" jsonschema:"seed for tie-breaking, random when omitted"`
}

type ChooseOptionInput struct {
	Session string `json:"session" jsonschema:"session id returned by start_playthrough"`
	Option  string `json:"option" jsonschema:"id of an open option"`
}

type OptionOutput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type PlaythroughOutput struct {
	Session   string         `json:"session"`
	Turn      int            `json:"turn"`
	Encounter string         `json:"encounter,omitempty"`
	Title     string         `json:"title,omitempty"`
	Text      string         `json:"text,omitempty"`
	Options   []OptionOutput `json:"options"`
	Step      *engine.Step   `json:"step,omitempty"`
	Reaction  string         `json:"reaction_text,omitempty"`
	Done      bool           `json:"done"`
	Outcome   string         `json:"outcome,omitempty"`
	Ending    string         `json:"ending,omitempty"`
	Error     string         `json:"error,omitempty"`
	Path      []string       `json:"path"`
}

type ListReportsInput struct {
	Storyworld string `json:"storyworld,omitempty" jsonschema:"storyworld title filter"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of reports"`
}

type ListReportsOutput struct {
	Reports []store.ReportSummary `json:"reports"`
}

type GetReportInput struct {
	ID string `json:"id" jsonschema:"report id"`
}

type GetReportOutput struct {
	Summary   store.ReportSummary `json:"summary"`
	Report    *rehearsal.Report   `json:"report"`
	Diagnosis *diagnose.Diagnosis `json:"diagnosis,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "rehearse",
		Description: "Run Monte Carlo playthroughs and report ending distribution and diagnostics",
	}, s.handleRehearse)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "validate_storyworld",
		Description: "Check the storyworld document for errors and authoring warnings",
	}, s.handleValidate)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "storyworld_metrics",
		Description: "Measure structural richness against polish targets",
	}, s.handleMetrics)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "start_playthrough",
		Description: "Begin an interactive playthrough and return the opening encounter",
	}, s.handleStartPlaythrough)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "choose_option",
		Description: "Choose an open option in a playthrough",
	}, s.handleChooseOption)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_reports",
		Description: "List saved rehearsal reports, newest first",
	}, s.handleListReports)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_report",
		Description: "Retrieve a saved rehearsal report with its diagnosis",
	}, s.handleGetReport)
}

func (s *Server) handleRehearse(ctx context.Context, req *sdk.CallToolRequest, input RehearseInput) (*sdk.CallToolResult, RehearseOutput, error) {
	cfg := rehearsal.Config{
		Runs:          s.cfg.Rehearsal.Runs,
		Seed:          s.cfg.Rehearsal.Seed,
		MaxSteps:      s.cfg.Rehearsal.MaxSteps,
		Workers:       s.cfg.Rehearsal.Workers,
		SecretEndings: s.cfg.Rehearsal.SecretEndings,
		Logger:        s.logger,
	}
	if input.Runs != nil {
		cfg.Runs = *input.Runs
	}
	if input.Seed != nil {
		cfg.Seed = *input.Seed
	}
	if input.MaxSteps != nil {
		cfg.MaxSteps = *input.MaxSteps
	}

	report, err := rehearsal.Run(ctx, s.world, cfg)
	if err != nil {
		return nil, RehearseOutput{}, err
	}
	diagnosis := diagnose.Run(report, thresholds(s.cfg.Diagnostics))
	out := RehearseOutput{Report: report, Diagnosis: diagnosis}

	if input.Save {
		if s.db == nil {
			return nil, RehearseOutput{}, fmt.Errorf("no database configured")
		}
		stored, err := store.NewStoredReport(report, &diagnosis)
		if err != nil {
			return nil, RehearseOutput{}, err
		}
		if err := s.db.SaveReport(ctx, stored); err != nil {
			return nil, RehearseOutput{}, err
		}
		out.SavedID = stored.ID
	}
	s.logger.Debug("rehearsal complete", "runs", report.Runs, "seed", report.Seed, "dead_end_rate", report.DeadEndRate)
	return nil, out, nil
}

func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, input ValidateInput) (*sdk.CallToolResult, ValidateOutput, error) {
	report, _, err := validate.Run(s.data, validate.Options{
		FilePath:      s.source,
		SecretEndings: s.cfg.Rehearsal.SecretEndings,
	})
	if err != nil {
		return nil, ValidateOutput{}, err
	}
	return nil, ValidateOutput{Errors: report.Errors(), Warnings: report.Warnings()}, nil
}

func (s *Server) handleMetrics(ctx context.Context, req *sdk.CallToolRequest, input MetricsInput) (*sdk.CallToolResult, metrics.Metrics, error) {
	return nil, metrics.Compute(s.world), nil
}

func (s *Server) handleStartPlaythrough(ctx context.Context, req *sdk.CallToolRequest, input StartPlaythroughInput) (*sdk.CallToolResult, PlaythroughOutput, error) {
	seed := time.Now().UnixNano()
	if input.Seed != nil {
		seed = *input.Seed
	}
	sess := &session{
		id:          uuid.NewString(),
		playthrough: engine.Start(s.world, rand.New(rand.NewSource(seed)), s.cfg.Rehearsal.MaxSteps),
	}
	out := playthroughOutput(sess, nil)
	if !out.Done {
		s.addSession(sess)
	}
	return nil, out, nil
}

func (s *Server) handleChooseOption(ctx context.Context, req *sdk.CallToolRequest, input ChooseOptionInput) (*sdk.CallToolResult, PlaythroughOutput, error) {
	if input.Session == "" {
		return nil, PlaythroughOutput{}, fmt.Errorf("session is required")
	}
	if input.Option == "" {
		return nil, PlaythroughOutput{}, fmt.Errorf("option is required")
	}
	sess, ok := s.session(input.Session)
	if !ok {
		return nil, PlaythroughOutput{}, fmt.Errorf("unknown session %q", input.Session)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	step, err := sess.playthrough.Choose(input.Option)
	if err != nil {
		return nil, PlaythroughOutput{}, err
	}
	out := playthroughOutput(sess, &step)
	if out.Done {
		s.dropSession(sess.id)
	}
	return nil, out, nil
}

func (s *Server) handleListReports(ctx context.Context, req *sdk.CallToolRequest, input ListReportsInput) (*sdk.CallToolResult, ListReportsOutput, error) {
	if s.db == nil {
		return nil, ListReportsOutput{}, fmt.Errorf("no database configured")
	}
	reports, err := s.db.ListReports(ctx, input.Storyworld, input.Limit)
	if err != nil {
		return nil, ListReportsOutput{}, err
	}
	return nil, ListReportsOutput{Reports: reports}, nil
}

func (s *Server) handleGetReport(ctx context.Context, req *sdk.CallToolRequest, input GetReportInput) (*sdk.CallToolResult, GetReportOutput, error) {
	if input.ID == "" {
		return nil, GetReportOutput{}, fmt.Errorf("id is required")
	}
	if s.db == nil {
		return nil, GetReportOutput{}, fmt.Errorf("no database configured")
	}
	stored, err := s.db.GetReport(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, GetReportOutput{}, fmt.Errorf("report not found")
	}
	if err != nil {
		return nil, GetReportOutput{}, err
	}
	report, diagnosis, err := stored.Decode()
	if err != nil {
		return nil, GetReportOutput{}, err
	}
	return nil, GetReportOutput{Summary: stored.Summary(), Report: report, Diagnosis: diagnosis}, nil
}

func playthroughOutput(sess *session, step *engine.Step) PlaythroughOutput {
	p := sess.playthrough
	if step != nil && step.Applied == nil {
		cp := *step
		cp.Applied = []engine.AppliedEffect{}
		step = &cp
	}
	out := PlaythroughOutput{
		Session: sess.id,
		Turn:    p.Turn(),
		Options: make([]OptionOutput, 0),
		Step:    step,
		Done:    p.Done(),
		Path:    p.Path(),
	}
	if out.Path == nil {
		out.Path = []string{}
	}
	if e := p.Encounter(); e != nil {
		out.Encounter = e.ID
		out.Title = e.Title
		out.Text = e.Text
	}
	if step != nil {
		out.Reaction = reactionText(p, step)
	}
	if out.Done {
		o := p.Outcome()
		out.Outcome = o.Kind.String()
		out.Ending = o.Ending
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		return out
	}
	for _, o := range p.OpenOptions() {
		out.Options = append(out.Options, OptionOutput{ID: o.ID, Text: o.Text})
	}
	return out
}

func reactionText(p *engine.Playthrough, step *engine.Step) string {
	e, err := p.World().Encounter(step.Encounter)
	if err != nil {
		return ""
	}
	for _, o := range e.Options {
		if o.ID != step.Option {
			continue
		}
		for _, r := range o.Reactions {
			if r.ID == step.Reaction {
				return r.Text
			}
		}
	}
	return ""
}

func thresholds(d config.DiagnosticsConfig) diagnose.Thresholds {
	return diagnose.Thresholds{
		DeadEndMax:    d.DeadEndMax,
		DominantShare: d.DominantShare,
		StarvedShare:  d.StarvedShare,
		SecretMin:     d.SecretMin,
		SecretMax:     d.SecretMax,
	}
}
