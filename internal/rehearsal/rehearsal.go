// Package rehearsal estimates the ending distribution of a storyworld by
// running many independent playthroughs with a uniform random player.
package rehearsal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"storyweave/internal/engine"
	"storyweave/internal/state"
	"storyweave/internal/storyworld"
)

const (
	DefaultRuns     = 10000
	DefaultSeed     = 42
	DefaultMaxSteps = engine.DefaultMaxSteps
)

var ErrInvalidConfig = errors.New("invalid rehearsal config")

// Config controls a rehearsal. Trajectory i is seeded with Seed+i, so the
// report depends on Runs, Seed and MaxSteps but never on Workers.
type Config struct {
	Runs     int
	Seed     int64
	MaxSteps int
	// Workers bounds parallelism; zero uses GOMAXPROCS.
	Workers int
	// SecretEndings lists the endings to report reachability for. Empty
	// selects every ending whose id starts with page_secret_.
	SecretEndings []string
	Logger        *slog.Logger
}

func DefaultConfig() Config {
	return Config{Runs: DefaultRuns, Seed: DefaultSeed, MaxSteps: DefaultMaxSteps}
}

func (c Config) validate(w *storyworld.World) error {
	if c.Runs <= 0 {
		return fmt.Errorf("%w: runs must be positive, got %d", ErrInvalidConfig, c.Runs)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	for _, id := range c.SecretEndings {
		if _, err := w.Encounter(id); err != nil {
			return fmt.Errorf("%w: secret ending: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

type trajectory struct {
	outcome engine.Outcome
	path    []string
	final   *state.Store
}

// Run executes cfg.Runs trajectories over w and aggregates them. Cancelling
// ctx stops scheduling new trajectories; trajectories already started run to
// completion.
func Run(ctx context.Context, w *storyworld.World, cfg Config) (*Report, error) {
	if err := cfg.validate(w); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ctx, span := otel.Tracer("storyweave/rehearsal").Start(ctx, "rehearsal.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("storyworld.title", w.Title),
		attribute.Int("rehearsal.runs", cfg.Runs),
		attribute.Int64("rehearsal.seed", cfg.Seed),
		attribute.Int("rehearsal.max_steps", cfg.MaxSteps),
		attribute.Int("rehearsal.workers", workers),
	)

	start := time.Now()
	results := make([]trajectory, cfg.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < cfg.Runs; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			results[i] = runOne(w, cfg.Seed+int64(i), cfg.MaxSteps)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("running rehearsal: %w", err)
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, fmt.Errorf("running rehearsal: %w", err)
	}

	report := aggregate(w, cfg, results)
	logger.Debug("rehearsal complete",
		"storyworld", w.Title,
		"runs", cfg.Runs,
		"workers", workers,
		"aborted", report.Aborted,
		"dead_end_rate", report.DeadEndRate,
		"elapsed", time.Since(start),
	)
	span.SetAttributes(
		attribute.Int("rehearsal.aborted", report.Aborted),
		attribute.Float64("rehearsal.dead_end_rate", report.DeadEndRate),
	)
	return report, nil
}

func runOne(w *storyworld.World, seed int64, maxSteps int) trajectory {
	p := engine.Start(w, rand.New(rand.NewSource(seed)), maxSteps)
	out := p.Run(engine.Uniform)
	t := trajectory{outcome: out, path: p.Path()}
	if out.Kind != engine.OutcomeAborted {
		t.final = p.Values()
	}
	return t
}
