package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved rehearsal reports",
	}
	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyPruneCmd())
	cmd.AddCommand(historySQLCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	var (
		storyworld string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			reports, err := db.ListReports(ctx, storyworld, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "No reports saved.")
				return nil
			}
			for _, r := range reports {
				fmt.Fprintf(out, "%s  %-14s  %s  %s runs  dead-end %s  %.3f bits\n",
					r.ID, humanize.Time(r.CreatedAt), r.Storyworld, humanize.Comma(int64(r.Runs)), percent(r.DeadEndRate), r.Entropy)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&storyworld, "storyworld", "", "Only reports of this storyworld title")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of reports")
	return cmd
}

func historyShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved report and its diagnosis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			stored, err := db.GetReport(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := json.MarshalIndent(stored, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}

			report, diagnosis, err := stored.Decode()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Report %s, saved %s\n\n", stored.ID, humanize.Time(stored.CreatedAt))
			printReport(out, report)
			if diagnosis != nil {
				printDiagnosis(out, *diagnosis)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored record as JSON")
	return cmd
}

func historyPruneCmd() *cobra.Command {
	var (
		storyworld string
		keep       int
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest reports of a storyworld",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(storyworld) == "" {
				return fmt.Errorf("--storyworld is required")
			}
			ctx := context.Background()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			removed, err := db.PruneReports(ctx, storyworld, keep)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d reports.\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&storyworld, "storyworld", "", "Storyworld title")
	cmd.Flags().IntVar(&keep, "keep", 10, "Number of newest reports to keep")
	return cmd
}

func historySQLCmd() *cobra.Command {
	var paramPairs []string
	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Execute a raw SQL query against the report store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			params, err := parseParamPairs(paramPairs)
			if err != nil {
				return err
			}
			return runSQL(cmd, query, params)
		},
	}
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "Query parameter as key=value, keys 1..n (repeatable)")
	return cmd
}

func runSQL(cmd *cobra.Command, query string, params map[string]any) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	rows, err := db.RunSQL(ctx, query, params)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}

func parseParamPairs(pairs []string) (map[string]any, error) {
	params := make(map[string]any)
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("invalid param %q: empty key", pair)
		}
		params[key] = strings.TrimSpace(parts[1])
	}
	return params, nil
}
