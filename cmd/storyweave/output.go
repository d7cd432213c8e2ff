package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"storyweave/internal/diagnose"
	"storyweave/internal/rehearsal"
)

func printReport(out io.Writer, r *rehearsal.Report) {
	fmt.Fprintf(out, "%s: %s runs, seed %d, max %d steps\n", r.Storyworld, humanize.Comma(int64(r.Runs)), r.Seed, r.MaxSteps)
	fmt.Fprintf(out, "Completed %s, ended %s, dead ends %s, over budget %s, aborted %s\n",
		humanize.Comma(int64(r.Completed)),
		humanize.Comma(int64(r.Ended())),
		humanize.Comma(int64(r.DeadEnds)),
		humanize.Comma(int64(r.BudgetExceeded)),
		humanize.Comma(int64(r.Aborted)),
	)
	fmt.Fprintf(out, "Dead-end rate %s, mean path %.1f encounters\n", percent(r.DeadEndRate), r.MeanPathLength)
	fmt.Fprintf(out, "Entropy %.3f bits (%.2f effective endings)\n", r.Entropy, r.EffectiveEndings)

	fmt.Fprintf(out, "\nEndings (%d):\n", len(r.Endings))
	for _, e := range r.Endings {
		tags := make([]string, 0, 2)
		if e.Secret {
			tags = append(tags, "secret")
		}
		if !e.Gated {
			tags = append(tags, "ungated")
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintf(out, "  - %s: %s (%s), %s distinct paths%s\n",
			e.ID, percent(e.Share), humanize.Comma(int64(e.Count)), humanize.Comma(int64(e.DistinctPaths)), suffix)
		for _, p := range e.TopPaths {
			fmt.Fprintf(out, "      %s  %s\n", percent(p.Share), p.Signature)
		}
	}
	if len(r.Unreachable) > 0 {
		fmt.Fprintf(out, "\nUnreachable (%d):\n", len(r.Unreachable))
		for _, id := range r.Unreachable {
			fmt.Fprintf(out, "  - %s\n", id)
		}
	}
	if len(r.Secrets) > 0 {
		fmt.Fprintf(out, "\nSecrets (%d):\n", len(r.Secrets))
		for _, s := range r.Secrets {
			fmt.Fprintf(out, "  - %s: %s of runs\n", s.ID, percent(s.Reachability))
		}
	}
	if len(r.Properties) > 0 {
		fmt.Fprintf(out, "\nFinal state:\n")
		for _, p := range r.Properties {
			fmt.Fprintf(out, "  - %s: mean %+.3f, std %.3f\n", p.Key, p.Mean, p.Std)
		}
	}
	for _, a := range r.AbortSamples {
		fmt.Fprintf(out, "  ! run %d aborted: %s\n", a.Run, a.Error)
	}
}

func printDiagnosis(out io.Writer, d diagnose.Diagnosis) {
	if len(d.Findings) == 0 {
		fmt.Fprintln(out, "\nNo findings.")
		return
	}
	fmt.Fprintf(out, "\nFindings (%d):\n", len(d.Findings))
	for _, f := range d.Findings {
		fmt.Fprintf(out, "  - [%s] %s (%s)\n", f.Severity, f.Message, f.Code)
	}
	if len(d.Suggestions) > 0 {
		fmt.Fprintf(out, "\nSuggestions (%d):\n", len(d.Suggestions))
		for _, s := range d.Suggestions {
			fmt.Fprintf(out, "  - %s\n", s.Message)
		}
	}
}

func percent(f float64) string {
	return humanize.FormatFloat("#,###.##", f*100) + "%"
}
