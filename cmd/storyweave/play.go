package main

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storyweave/internal/engine"
	"storyweave/internal/storyworld"
	"storyweave/internal/tui"
)

func playCmd() *cobra.Command {
	var (
		seed   int64
		choose []string
		auto   bool
	)
	cmd := &cobra.Command{
		Use:   "play [storyworld.json]",
		Short: "Play a storyworld interactively, or replay a fixed list of choices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			maxSteps := cfg.Rehearsal.MaxSteps
			switch {
			case auto:
				p := engine.Start(w, rand.New(rand.NewSource(seed)), maxSteps)
				p.Run(engine.Uniform)
				printTranscript(cmd.OutOrStdout(), p, nil)
				return nil
			case len(choose) > 0:
				p := engine.Start(w, rand.New(rand.NewSource(seed)), maxSteps)
				steps, err := replay(p, choose)
				printTranscript(cmd.OutOrStdout(), p, steps)
				return err
			default:
				return tui.Run(w, seed, maxSteps)
			}
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for tie-breaking (random when unset)")
	cmd.Flags().StringSliceVar(&choose, "choose", nil, "Option ids to take in order, comma separated")
	cmd.Flags().BoolVar(&auto, "auto", false, "Choose uniformly at random among open options")
	return cmd
}

// replay takes each option in turn and stops at the first failure.
func replay(p *engine.Playthrough, choices []string) ([]engine.Step, error) {
	var steps []engine.Step
	for _, id := range choices {
		if p.Done() {
			return steps, fmt.Errorf("playthrough ended before choosing %q", id)
		}
		step, err := p.Choose(strings.TrimSpace(id))
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func printTranscript(out io.Writer, p *engine.Playthrough, steps []engine.Step) {
	fmt.Fprintf(out, "Path: %s\n", strings.Join(p.Path(), " > "))
	for _, s := range steps {
		fmt.Fprintf(out, "  %s: %s -> %s", s.Encounter, s.Option, s.Reaction)
		if s.Next != "" {
			fmt.Fprintf(out, " -> %s", s.Next)
		}
		fmt.Fprintln(out)
		for _, a := range s.Applied {
			clamped := ""
			if a.Clamped {
				clamped = " (clamped)"
			}
			fmt.Fprintf(out, "      %s: %.3f -> %.3f%s\n", a.Target, a.Before, a.After, clamped)
		}
	}

	if !p.Done() {
		fmt.Fprintf(out, "At %s, open options:\n", p.Encounter().ID)
		for _, o := range p.OpenOptions() {
			fmt.Fprintf(out, "  - %s: %s\n", o.ID, o.Text)
		}
		return
	}
	o := p.Outcome()
	switch o.Kind {
	case engine.OutcomeEnded:
		fmt.Fprintf(out, "Outcome: %s at %s\n", o.Kind, o.Ending)
	case engine.OutcomeAborted:
		fmt.Fprintf(out, "Outcome: %s: %v\n", o.Kind, o.Err)
	default:
		fmt.Fprintf(out, "Outcome: %s\n", o.Kind)
	}
}
