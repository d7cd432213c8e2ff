package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"storyweave/internal/config"
	"storyweave/internal/diagnose"
	"storyweave/internal/rehearsal"
	"storyweave/internal/store"
	"storyweave/internal/storyworld"
	"storyweave/internal/telemetry"
)

type rehearseOptions struct {
	runs     int
	seed     int64
	maxSteps int
	workers  int
	secrets  []string
	asJSON   bool
	save     bool
	keep     int
	strict   bool

	// changed records which of runs, seed, max-steps and workers were
	// given on the command line.
	changed map[string]bool
}

func rehearseCmd() *cobra.Command {
	var opts rehearseOptions
	cmd := &cobra.Command{
		Use:   "rehearse [storyworld.json]",
		Short: "Simulate many playthroughs and diagnose the ending distribution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changed = make(map[string]bool)
			for _, name := range []string{"runs", "seed", "max-steps", "workers"} {
				opts.changed[name] = cmd.Flags().Changed(name)
			}
			return runRehearse(cmd, args, opts)
		},
	}
	cmd.Flags().IntVar(&opts.runs, "runs", 0, "Number of trajectories (default from config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Base seed; trajectory i uses seed+i (default from config)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Encounter budget per trajectory (default from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel workers, 0 for GOMAXPROCS (default from config)")
	cmd.Flags().StringSliceVar(&opts.secrets, "secret", nil, "Ending id to treat as secret (repeatable)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the report and diagnosis as JSON")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the report in the project database")
	cmd.Flags().IntVar(&opts.keep, "keep", 0, "After saving, keep only the newest N reports of this storyworld")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when the diagnosis has errors")
	return cmd
}

func runRehearse(cmd *cobra.Command, args []string, opts rehearseOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := storyworldPath(cfg, args)
	if err != nil {
		return err
	}
	w, err := storyworld.Load(path)
	if err != nil {
		return err
	}
	for _, warning := range w.Warnings {
		slog.Warn("storyworld warning", "path", warning.Path, "code", warning.Code, "message", warning.Message)
	}

	shutdown, err := telemetry.Setup(ctx, "storyweave")
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer shutdown(context.Background())

	rcfg := rehearsalConfig(cfg, opts)
	report, err := rehearsal.Run(ctx, w, rcfg)
	if err != nil {
		return err
	}
	diagnosis := diagnose.Run(report, thresholds(cfg.Diagnostics))

	var savedID string
	if opts.save {
		savedID, err = saveReport(ctx, cfg, report, &diagnosis, opts.keep)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		payload, err := json.MarshalIndent(struct {
			Report    *rehearsal.Report  `json:"report"`
			Diagnosis diagnose.Diagnosis `json:"diagnosis"`
			SavedID   string             `json:"saved_id,omitempty"`
		}{report, diagnosis, savedID}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Fprintln(out, string(payload))
	} else {
		printReport(out, report)
		printDiagnosis(out, diagnosis)
		if savedID != "" {
			fmt.Fprintf(out, "\nSaved report %s\n", savedID)
		}
	}

	if opts.strict && diagnosis.HasErrors() {
		return fmt.Errorf("diagnosis found errors")
	}
	return nil
}

func rehearsalConfig(cfg *config.ProjectConfig, opts rehearseOptions) rehearsal.Config {
	rc := rehearsal.Config{
		Runs:          cfg.Rehearsal.Runs,
		Seed:          cfg.Rehearsal.Seed,
		MaxSteps:      cfg.Rehearsal.MaxSteps,
		Workers:       cfg.Rehearsal.Workers,
		SecretEndings: cfg.Rehearsal.SecretEndings,
		Logger:        slog.Default(),
	}
	if opts.changed["runs"] {
		rc.Runs = opts.runs
	}
	if opts.changed["seed"] {
		rc.Seed = opts.seed
	}
	if opts.changed["max-steps"] {
		rc.MaxSteps = opts.maxSteps
	}
	if opts.changed["workers"] {
		rc.Workers = opts.workers
	}
	if len(opts.secrets) > 0 {
		rc.SecretEndings = opts.secrets
	}
	return rc
}

func saveReport(ctx context.Context, cfg *config.ProjectConfig, report *rehearsal.Report, diagnosis *diagnose.Diagnosis, keep int) (string, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer db.Close(ctx)

	stored, err := store.NewStoredReport(report, diagnosis)
	if err != nil {
		return "", err
	}
	if err := db.SaveReport(ctx, stored); err != nil {
		return "", err
	}
	if keep > 0 {
		removed, err := db.PruneReports(ctx, report.Storyworld, keep)
		if err != nil {
			return "", err
		}
		slog.Info("pruned reports", "storyworld", report.Storyworld, "removed", removed)
	}
	return stored.ID, nil
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
