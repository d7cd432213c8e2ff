// Package metrics measures the structural richness of a storyworld against
// the polish targets authors tune towards.
package metrics

import (
	"storyweave/internal/script"
	"storyweave/internal/storyworld"
)

const (
	TargetEffectsPerReaction  = 4.5
	TargetReactionsPerOption  = 2.5
	TargetOptionsPerEncounter = 3.2
	TargetDesirabilityVars    = 1.6
	minSecretGateVars         = 2
)

type Metrics struct {
	Encounters int `json:"encounters"`
	Endings    int `json:"endings"`
	Options    int `json:"options"`
	Reactions  int `json:"reactions"`
	Effects    int `json:"effects"`

	EffectsPerReaction  float64 `json:"effects_per_reaction"`
	ReactionsPerOption  float64 `json:"reactions_per_option"`
	OptionsPerEncounter float64 `json:"options_per_encounter"`
	DesirabilityVars    float64 `json:"desirability_vars"`

	// VisibilityGated is the fraction of options whose visibility reads
	// state; VisibilityVars is the mean number of keys those gates read.
	VisibilityGated float64 `json:"visibility_gated"`
	VisibilityVars  float64 `json:"visibility_vars"`

	Secrets []SecretGate `json:"secrets"`
	Checks  []Check      `json:"checks"`
}

// SecretGate describes the acceptability gate of one secret ending.
type SecretGate struct {
	ID           string `json:"id"`
	Vars         int    `json:"vars"`
	UsesDistance bool   `json:"uses_distance"`
	OK           bool   `json:"ok"`
}

// Check compares one metric with its polish target.
type Check struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	OK     bool    `json:"ok"`
}

func (c Check) Status() string {
	if c.OK {
		return "OK"
	}
	return "LOW"
}

// Compute measures w.
func Compute(w *storyworld.World) Metrics {
	var m Metrics
	encountersWithOptions := 0
	desirabilityVars := 0
	gatedOptions, gateVars := 0, 0

	for _, e := range w.Encounters {
		m.Encounters++
		if e.IsEnding() {
			m.Endings++
		}
		if len(e.Options) > 0 {
			encountersWithOptions++
		}
		for _, o := range e.Options {
			m.Options++
			if refs := script.Refs(o.Visibility); len(refs) > 0 {
				gatedOptions++
				gateVars += len(refs)
			}
			for _, r := range o.Reactions {
				m.Reactions++
				m.Effects += len(r.Effects)
				desirabilityVars += len(script.Refs(r.Desirability))
			}
		}
	}

	m.EffectsPerReaction = ratio(m.Effects, m.Reactions)
	m.ReactionsPerOption = ratio(m.Reactions, m.Options)
	m.OptionsPerEncounter = ratio(m.Options, encountersWithOptions)
	m.DesirabilityVars = ratio(desirabilityVars, m.Reactions)
	m.VisibilityGated = ratio(gatedOptions, m.Options)
	m.VisibilityVars = ratio(gateVars, gatedOptions)

	m.Secrets = []SecretGate{}
	for _, e := range w.Endings() {
		if !storyworld.IsSecret(e.ID) {
			continue
		}
		g := SecretGate{ID: e.ID, Vars: len(script.Refs(e.Acceptability))}
		script.Walk(e.Acceptability, func(n script.Expr) bool {
			if _, ok := n.(script.AbsoluteValue); ok {
				g.UsesDistance = true
			}
			return true
		})
		g.OK = g.Vars >= minSecretGateVars && g.UsesDistance
		m.Secrets = append(m.Secrets, g)
	}

	m.Checks = []Check{
		check("effects per reaction", m.EffectsPerReaction, TargetEffectsPerReaction),
		check("reactions per option", m.ReactionsPerOption, TargetReactionsPerOption),
		check("options per encounter", m.OptionsPerEncounter, TargetOptionsPerEncounter),
		check("desirability vars per reaction", m.DesirabilityVars, TargetDesirabilityVars),
	}
	return m
}

func check(name string, value, target float64) Check {
	return Check{Name: name, Value: value, Target: target, OK: value >= target}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
