package validate

import (
	"fmt"

	"storyweave/internal/metrics"
	"storyweave/internal/script"
	"storyweave/internal/state"
	"storyweave/internal/storyworld"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeNoEndings           = "no_endings"
	codeUnsatisfiableEnding = "unsatisfiable_ending"
	codeOptionNeverVisible  = "option_never_visible"
	codeWeakSecretGate      = "weak_secret_gate"
	codeUnknownSecretEnding = "unknown_secret_ending"
	codeSecretNotEnding     = "secret_not_ending"
)

type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Entity   string   `json:"entity,omitempty"`
	FilePath string   `json:"file_path,omitempty"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// Errors returns the issues that keep the document from loading.
func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarn)
}

func (r *Report) HasErrors() bool {
	return len(r.Errors()) > 0
}

func (r *Report) filter(s Severity) []Issue {
	out := make([]Issue, 0)
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

type Options struct {
	// FilePath is attached to every issue.
	FilePath string
	// SecretEndings lists ending ids that must be treated as secret in
	// addition to the page_secret_ prefix.
	SecretEndings []string
}

// Run checks a storyworld document. Load problems are errors; the authoring
// lints only run once the document loads. The error is reserved for input
// that is not a JSON object.
func Run(data []byte, opts Options) (*Report, *storyworld.World, error) {
	w, problems, err := storyworld.Decode(data)
	if err != nil {
		return nil, nil, err
	}

	issues := make([]Issue, 0)
	for _, p := range problems {
		issues = append(issues, issueFromProblem(p, SeverityError, opts.FilePath))
	}
	for _, p := range w.Warnings {
		issues = append(issues, issueFromProblem(p, SeverityWarn, opts.FilePath))
	}
	if len(problems) > 0 {
		return &Report{Issues: issues}, nil, nil
	}

	issues = append(issues, lintEndings(w)...)
	issues = append(issues, lintOptions(w)...)
	issues = append(issues, lintSecrets(w, opts.SecretEndings)...)
	for i := range issues {
		if issues[i].FilePath == "" {
			issues[i].FilePath = opts.FilePath
		}
	}
	return &Report{Issues: issues}, w, nil
}

func lintEndings(w *storyworld.World) []Issue {
	endings := w.Endings()
	if len(endings) == 0 {
		return []Issue{{
			Severity: SeverityWarn,
			Code:     codeNoEndings,
			Message:  "no encounter ends a playthrough; every run will dead-end or exhaust its step budget",
		}}
	}

	var issues []Issue
	blank := state.New(nil)
	for _, e := range endings {
		if script.IsConstant(e.Acceptability) && !script.EvalBool(e.Acceptability, blank) {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeUnsatisfiableEnding,
				Message:  fmt.Sprintf("ending %q has a constant false acceptability script", e.ID),
				Path:     "encounters[" + e.ID + "].acceptability_script",
				Entity:   e.ID,
			})
		}
	}
	return issues
}

func lintOptions(w *storyworld.World) []Issue {
	var issues []Issue
	blank := state.New(nil)
	for _, e := range w.Encounters {
		for _, o := range e.Options {
			for _, gate := range []script.Expr{o.Visibility, o.Performability} {
				if script.IsConstant(gate) && !script.EvalBool(gate, blank) {
					issues = append(issues, Issue{
						Severity: SeverityWarn,
						Code:     codeOptionNeverVisible,
						Message:  fmt.Sprintf("option %q can never be chosen", o.ID),
						Path:     "encounters[" + e.ID + "].options[" + o.ID + "]",
						Entity:   o.ID,
					})
					break
				}
			}
		}
	}
	return issues
}

func lintSecrets(w *storyworld.World, configured []string) []Issue {
	var issues []Issue
	for _, id := range configured {
		e, err := w.Encounter(id)
		if err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeUnknownSecretEnding,
				Message:  fmt.Sprintf("configured secret ending %q does not exist", id),
				Entity:   id,
			})
			continue
		}
		if !e.IsEnding() {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeSecretNotEnding,
				Message:  fmt.Sprintf("configured secret ending %q offers options and is not flagged as an ending", id),
				Entity:   id,
			})
		}
	}

	for _, g := range metrics.Compute(w).Secrets {
		if g.OK {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeWeakSecretGate,
			Message:  fmt.Sprintf("secret ending %q gate reads %d variables (distance term: %t); expected at least 2 and a distance term", g.ID, g.Vars, g.UsesDistance),
			Path:     "encounters[" + g.ID + "].acceptability_script",
			Entity:   g.ID,
		})
	}
	return issues
}

func issueFromProblem(p storyworld.Problem, severity Severity, filePath string) Issue {
	return Issue{
		Severity: severity,
		Code:     p.Code,
		Message:  p.Message,
		Path:     p.Path,
		FilePath: filePath,
	}
}
