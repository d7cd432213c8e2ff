package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"storyweave/internal/metrics"
	"storyweave/internal/storyworld"
)

func metricsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "metrics [storyworld.json]",
		Short: "Measure structural richness against polish targets",
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
			m := metrics.Compute(w)

			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := json.MarshalIndent(m, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}

			fmt.Fprintf(out, "Encounters %d (%d endings), options %d, reactions %d, effects %d\n",
				m.Encounters, m.Endings, m.Options, m.Reactions, m.Effects)
			for _, c := range m.Checks {
				fmt.Fprintf(out, "  %-32s %6.2f  target %.1f  %s\n", c.Name, c.Value, c.Target, c.Status())
			}
			fmt.Fprintf(out, "  %-32s %5.0f%%  mean %.2f vars\n", "gated options", m.VisibilityGated*100, m.VisibilityVars)
			for _, s := range m.Secrets {
				status := "OK"
				if !s.OK {
					status = "WEAK"
				}
				fmt.Fprintf(out, "  secret %s: %d vars, distance term %t  %s\n", s.ID, s.Vars, s.UsesDistance, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print metrics as JSON")
	return cmd
}
