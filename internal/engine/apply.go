// Package engine runs playthroughs of a storyworld: it selects encounters,
// options and reactions, and applies reaction effects to runtime state.
package engine

import (
	"fmt"

	"storyweave/internal/script"
	"storyweave/internal/state"
	"storyweave/internal/storyworld"
)

// AppliedEffect records one write made by Apply.
type AppliedEffect struct {
	Key     state.Key `json:"-"`
	Target  string    `json:"target"`
	Before  float64   `json:"before"`
	After   float64   `json:"after"`
	Clamped bool      `json:"clamped,omitempty"`
}

// Apply runs effects in order against a copy of values and returns the new
// state. Each effect sees the writes of the effects before it. Results are
// clamped to [-1, 1]; a result that cannot be stored aborts the whole list
// and values is left untouched.
func Apply(effects []storyworld.Effect, values *state.Store) (*state.Store, []AppliedEffect, error) {
	next := values.Clone()
	applied := make([]AppliedEffect, 0, len(effects))
	for i, eff := range effects {
		raw := script.EvalNumber(eff.To, next)
		clamped := state.Clamp(raw)
		before := next.Get(eff.Target)
		if err := next.Set(eff.Target, clamped); err != nil {
			return nil, applied, fmt.Errorf("applying effect %d on %s: %w", i, eff.Target, err)
		}
		applied = append(applied, AppliedEffect{
			Key:     eff.Target,
			Target:  eff.Target.String(),
			Before:  before,
			After:   clamped,
			Clamped: clamped != raw,
		})
	}
	return next, applied, nil
}
