package engine

import (
	"math"
	"math/rand"

	"storyweave/internal/script"
	"storyweave/internal/storyworld"
)

// Eligible reports whether e may be selected at the given turn: it has not
// fired, the turn lies in its window and its acceptability holds.
func Eligible(e *storyworld.Encounter, values script.Reader, fired map[string]bool, turn int) bool {
	return !fired[e.ID] && e.InWindow(turn) && script.EvalBool(e.Acceptability, values)
}

// SelectEncounter picks the encounter that follows prev. A concrete
// consequence is taken directly when eligible; otherwise the active spools
// are scanned. It returns nil when nothing is eligible.
func SelectEncounter(w *storyworld.World, prev *storyworld.Reaction, values script.Reader, fired map[string]bool, turn int, rng *rand.Rand) *storyworld.Encounter {
	if prev != nil && !prev.Defers() {
		if e, err := w.Encounter(prev.Consequence); err == nil && Eligible(e, values, fired, turn) {
			return e
		}
	}
	return ScanSpools(w.Active(), values, fired, turn, rng)
}

// ScanSpools returns the eligible candidate with the highest desirability.
// Ties are broken uniformly at random with rng. A NaN desirability ranks
// below every number, so such a candidate is only picked when nothing
// else is eligible.
func ScanSpools(candidates []*storyworld.Encounter, values script.Reader, fired map[string]bool, turn int, rng *rand.Rand) *storyworld.Encounter {
	var best []*storyworld.Encounter
	bestScore := math.Inf(-1)
	for _, e := range candidates {
		if !Eligible(e, values, fired, turn) {
			continue
		}
		score := desirability(e.Desirability, values)
		switch {
		case score > bestScore:
			best = append(best[:0], e)
			bestScore = score
		case score == bestScore:
			best = append(best, e)
		}
	}
	switch len(best) {
	case 0:
		return nil
	case 1:
		return best[0]
	default:
		return best[rng.Intn(len(best))]
	}
}

// OpenOptions returns the options of e that are both visible and
// performable, in authored order.
func OpenOptions(e *storyworld.Encounter, values script.Reader) []*storyworld.Option {
	var open []*storyworld.Option
	for _, o := range e.Options {
		if script.EvalBool(o.Visibility, values) && script.EvalBool(o.Performability, values) {
			open = append(open, o)
		}
	}
	return open
}

// SelectReaction returns the reaction with the highest desirability. The
// first declared reaction wins ties.
func SelectReaction(o *storyworld.Option, values script.Reader) *storyworld.Reaction {
	var best *storyworld.Reaction
	bestScore := math.Inf(-1)
	for _, r := range o.Reactions {
		score := desirability(r.Desirability, values)
		if best == nil || score > bestScore {
			best = r
			bestScore = score
		}
	}
	return best
}

func desirability(e script.Expr, values script.Reader) float64 {
	score := script.EvalNumber(e, values)
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}
