// Package diagnose checks a rehearsal report against balance thresholds and
// suggests how to retune the endings that miss them. It never changes a
// document.
package diagnose

import (
	"fmt"
	"math"

	"storyweave/internal/rehearsal"
	"storyweave/internal/state"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	CodeDeadEndRate       = "dead_end_rate"
	CodeDominantEnding    = "dominant_ending"
	CodeStarvedEnding     = "starved_ending"
	CodeUnreachableEnding = "unreachable_ending"
	CodeSecretTooRare     = "secret_too_rare"
	CodeSecretTooCommon   = "secret_too_common"
	CodeAbortedRuns       = "aborted_runs"
)

// minStep is the smallest threshold move suggested when the gated property
// does not vary.
const minStep = 0.05

type Thresholds struct {
	DeadEndMax    float64 `json:"dead_end_max"`
	DominantShare float64 `json:"dominant_share"`
	StarvedShare  float64 `json:"starved_share"`
	SecretMin     float64 `json:"secret_min"`
	SecretMax     float64 `json:"secret_max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DeadEndMax:    0.05,
		DominantShare: 0.30,
		StarvedShare:  0.01,
		SecretMin:     0.05,
		SecretMax:     0.12,
	}
}

type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Subject  string   `json:"subject,omitempty"`
	Message  string   `json:"message"`
	Value    float64  `json:"value"`
	Limit    float64  `json:"limit"`
}

// Suggestion is an advisory retuning of one ending. Field is
// "acceptability" when a gate threshold should move and "desirability"
// otherwise.
type Suggestion struct {
	Ending    string  `json:"ending"`
	Field     string  `json:"field"`
	Key       string  `json:"key,omitempty"`
	Direction string  `json:"direction"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
	Message   string  `json:"message"`
}

type Diagnosis struct {
	Findings    []Finding    `json:"findings"`
	Suggestions []Suggestion `json:"suggestions"`
}

func (d Diagnosis) HasErrors() bool {
	for _, f := range d.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Run checks r against th. It depends on the report only.
func Run(r *rehearsal.Report, th Thresholds) Diagnosis {
	d := Diagnosis{Findings: []Finding{}, Suggestions: []Suggestion{}}

	if r.Aborted > 0 {
		d.Findings = append(d.Findings, Finding{
			Severity: SeverityError,
			Code:     CodeAbortedRuns,
			Message:  fmt.Sprintf("%d of %d runs aborted while applying effects and were excluded", r.Aborted, r.Runs),
			Value:    float64(r.Aborted),
		})
	}
	if r.DeadEndRate > th.DeadEndMax {
		d.Findings = append(d.Findings, Finding{
			Severity: SeverityError,
			Code:     CodeDeadEndRate,
			Message: fmt.Sprintf("dead-end rate %.1f%% exceeds %.1f%% (%d without an eligible encounter, %d over the step budget)",
				100*r.DeadEndRate, 100*th.DeadEndMax, r.DeadEnds, r.BudgetExceeded),
			Value: r.DeadEndRate,
			Limit: th.DeadEndMax,
		})
	}

	for _, e := range r.Endings {
		switch {
		case e.Count == 0:
			d.Findings = append(d.Findings, Finding{
				Severity: SeverityError,
				Code:     CodeUnreachableEnding,
				Subject:  e.ID,
				Message:  fmt.Sprintf("ending %s was never reached in %d runs", e.ID, r.Completed),
			})
			d.Suggestions = append(d.Suggestions, suggest(r, e, false)...)
		case e.Share > th.DominantShare:
			d.Findings = append(d.Findings, Finding{
				Severity: SeverityWarn,
				Code:     CodeDominantEnding,
				Subject:  e.ID,
				Message:  fmt.Sprintf("ending %s takes %.1f%% of runs, above %.1f%%", e.ID, 100*e.Share, 100*th.DominantShare),
				Value:    e.Share,
				Limit:    th.DominantShare,
			})
			d.Suggestions = append(d.Suggestions, suggest(r, e, true)...)
		case e.Share < th.StarvedShare && e.Gated:
			d.Findings = append(d.Findings, Finding{
				Severity: SeverityWarn,
				Code:     CodeStarvedEnding,
				Subject:  e.ID,
				Message:  fmt.Sprintf("gated ending %s takes %.2f%% of runs, below %.2f%%", e.ID, 100*e.Share, 100*th.StarvedShare),
				Value:    e.Share,
				Limit:    th.StarvedShare,
			})
			d.Suggestions = append(d.Suggestions, suggest(r, e, false)...)
		}
	}

	for _, s := range r.Secrets {
		switch {
		case s.Reachability < th.SecretMin:
			d.Findings = append(d.Findings, Finding{
				Severity: SeverityWarn,
				Code:     CodeSecretTooRare,
				Subject:  s.ID,
				Message:  fmt.Sprintf("secret ending %s reached in %.1f%% of runs, below %.1f%%", s.ID, 100*s.Reachability, 100*th.SecretMin),
				Value:    s.Reachability,
				Limit:    th.SecretMin,
			})
		case s.Reachability > th.SecretMax:
			d.Findings = append(d.Findings, Finding{
				Severity: SeverityWarn,
				Code:     CodeSecretTooCommon,
				Subject:  s.ID,
				Message:  fmt.Sprintf("secret ending %s reached in %.1f%% of runs, above %.1f%%", s.ID, 100*s.Reachability, 100*th.SecretMax),
				Value:    s.Reachability,
				Limit:    th.SecretMax,
			})
		}
	}
	return d
}

// suggest proposes threshold moves for every gate term of e: tightening when
// the ending dominates, loosening when it is starved. Endings without a
// threshold term get a desirability suggestion instead.
func suggest(r *rehearsal.Report, e rehearsal.EndingStat, tighten bool) []Suggestion {
	var out []Suggestion
	for _, g := range e.Gates {
		if !g.LowerBound() && !g.UpperBound() {
			continue
		}
		prop, ok := r.Property(g.Key)
		if !ok {
			// no run observed the key, so there is no distribution to aim at
			continue
		}
		step := math.Max(prop.Std, minStep)

		// Raising a lower bound or lowering an upper bound tightens.
		raise := g.LowerBound() == tighten
		to := prop.Mean + prop.Std
		if g.UpperBound() {
			to = prop.Mean - prop.Std
		}
		switch {
		case raise && to <= g.Threshold:
			to = g.Threshold + step
		case !raise && to >= g.Threshold:
			to = g.Threshold - step
		}
		to = round(state.Clamp(to))
		if to == g.Threshold {
			continue
		}
		direction := "lower"
		if raise {
			direction = "raise"
		}
		out = append(out, Suggestion{
			Ending:    e.ID,
			Field:     "acceptability",
			Key:       g.Key,
			Direction: direction,
			From:      g.Threshold,
			To:        to,
			Message: fmt.Sprintf("%s the %s gate of %s from %s %.3f to %.3f (observed mean %.3f, std %.3f)",
				direction, g.Key, e.ID, g.Op, g.Threshold, to, prop.Mean, prop.Std),
		})
	}
	if len(out) > 0 {
		return out
	}

	direction := "raise"
	if tighten {
		direction = "lower"
	}
	return []Suggestion{{
		Ending:    e.ID,
		Field:     "desirability",
		Direction: direction,
		Message:   fmt.Sprintf("%s the desirability of %s relative to the endings it competes with", direction, e.ID),
	}}
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
