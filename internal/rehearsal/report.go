package rehearsal

import (
	"math"
	"sort"
	"strings"

	"storyweave/internal/engine"
	"storyweave/internal/script"
	"storyweave/internal/state"
	"storyweave/internal/storyworld"
)

const (
	topPaths      = 3
	abortSamples  = 5
	pathSeparator = " > "
)

// Report aggregates a rehearsal. Every collection is an ordered slice so that
// equal inputs encode to identical JSON.
type Report struct {
	Storyworld string `json:"storyworld"`
	Runs       int    `json:"runs"`
	Seed       int64  `json:"seed"`
	MaxSteps   int    `json:"max_steps"`

	// Completed counts every run that was not aborted; shares and rates
	// are fractions of Completed.
	Completed      int     `json:"completed"`
	Aborted        int     `json:"aborted"`
	DeadEnds       int     `json:"dead_ends"`
	BudgetExceeded int     `json:"budget_exceeded"`
	DeadEndRate    float64 `json:"dead_end_rate"`

	Endings          []EndingStat   `json:"endings"`
	Unreachable      []string       `json:"unreachable"`
	Secrets          []SecretStat   `json:"secrets"`
	Properties       []PropertyStat `json:"properties"`
	Entropy          float64        `json:"entropy_bits"`
	EffectiveEndings float64        `json:"effective_endings"`
	MeanPathLength   float64        `json:"mean_path_length"`
	AbortSamples     []AbortSample  `json:"abort_samples,omitempty"`
}

type EndingStat struct {
	ID            string     `json:"id"`
	Count         int        `json:"count"`
	Share         float64    `json:"share"`
	Secret        bool       `json:"secret,omitempty"`
	Gated         bool       `json:"gated"`
	Gates         []GateTerm `json:"gates,omitempty"`
	DistinctPaths int        `json:"distinct_paths"`
	TopPaths      []PathStat `json:"top_paths,omitempty"`
}

// GateTerm is one "Key Op Threshold" condition of an ending's acceptability.
type GateTerm struct {
	Key       string  `json:"key"`
	Op        string  `json:"op"`
	Threshold float64 `json:"threshold"`
}

// LowerBound reports whether the term requires the property to be at least
// the threshold.
func (g GateTerm) LowerBound() bool { return g.Op == ">=" || g.Op == ">" }

// UpperBound reports whether the term requires the property to be at most
// the threshold.
func (g GateTerm) UpperBound() bool { return g.Op == "<=" || g.Op == "<" }

type PathStat struct {
	Signature string  `json:"signature"`
	Count     int     `json:"count"`
	Share     float64 `json:"share"`
}

type SecretStat struct {
	ID           string  `json:"id"`
	Count        int     `json:"count"`
	Reachability float64 `json:"reachability"`
}

type PropertyStat struct {
	Key  string  `json:"key"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

type AbortSample struct {
	Run   int    `json:"run"`
	Error string `json:"error"`
}

// Ending returns the stats of the ending with the given id.
func (r *Report) Ending(id string) (EndingStat, bool) {
	for _, e := range r.Endings {
		if e.ID == id {
			return e, true
		}
	}
	return EndingStat{}, false
}

// Property returns the stats of the property with the given key.
func (r *Report) Property(key string) (PropertyStat, bool) {
	for _, p := range r.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return PropertyStat{}, false
}

// Ended is the number of runs that reached an ending.
func (r *Report) Ended() int {
	n := 0
	for _, e := range r.Endings {
		n += e.Count
	}
	return n
}

func aggregate(w *storyworld.World, cfg Config, results []trajectory) *Report {
	r := &Report{
		Storyworld:  w.Title,
		Runs:        cfg.Runs,
		Seed:        cfg.Seed,
		MaxSteps:    cfg.MaxSteps,
		Unreachable: []string{},
		Secrets:     []SecretStat{},
	}

	counts := make(map[string]int)
	paths := make(map[string]map[string]int)
	pathSteps := 0
	for i, t := range results {
		switch t.outcome.Kind {
		case engine.OutcomeAborted:
			r.Aborted++
			if len(r.AbortSamples) < abortSamples {
				r.AbortSamples = append(r.AbortSamples, AbortSample{Run: i, Error: t.outcome.Err.Error()})
			}
			continue
		case engine.OutcomeEnded:
			id := t.outcome.Ending
			counts[id]++
			if paths[id] == nil {
				paths[id] = make(map[string]int)
			}
			paths[id][strings.Join(t.path, pathSeparator)]++
		case engine.OutcomeDeadEnd:
			r.DeadEnds++
		case engine.OutcomeBudgetExceeded:
			r.BudgetExceeded++
		}
		pathSteps += len(t.path)
	}
	r.Completed = len(results) - r.Aborted
	r.DeadEndRate = fraction(r.DeadEnds+r.BudgetExceeded, r.Completed)
	r.MeanPathLength = float64(pathSteps) / math.Max(1, float64(r.Completed))

	secret := secretSet(w, cfg.SecretEndings)
	r.Endings = endingStats(w, counts, paths, secret, r.Completed)
	for _, e := range w.Endings() {
		if counts[e.ID] == 0 {
			r.Unreachable = append(r.Unreachable, e.ID)
		}
	}
	sort.Strings(r.Unreachable)

	secretIDs := make([]string, 0, len(secret))
	for id := range secret {
		secretIDs = append(secretIDs, id)
	}
	sort.Strings(secretIDs)
	for _, id := range secretIDs {
		r.Secrets = append(r.Secrets, SecretStat{ID: id, Count: counts[id], Reachability: fraction(counts[id], r.Completed)})
	}

	r.Entropy, r.EffectiveEndings = entropy(r.Endings)
	r.Properties = propertyStats(w, results)
	return r
}

func endingStats(w *storyworld.World, counts map[string]int, paths map[string]map[string]int, secret map[string]bool, completed int) []EndingStat {
	ids := make(map[string]bool, len(counts))
	for _, e := range w.Endings() {
		ids[e.ID] = true
	}
	for id := range counts {
		ids[id] = true
	}

	stats := make([]EndingStat, 0, len(ids))
	for id := range ids {
		s := EndingStat{
			ID:            id,
			Count:         counts[id],
			Share:         fraction(counts[id], completed),
			Secret:        secret[id],
			DistinctPaths: len(paths[id]),
			TopPaths:      topPathStats(paths[id], counts[id]),
		}
		if e, err := w.Encounter(id); err == nil {
			s.Gated = !script.IsConstant(e.Acceptability)
			for _, term := range script.GateTerms(e.Acceptability) {
				s.Gates = append(s.Gates, GateTerm{Key: term.Key.String(), Op: term.Op.String(), Threshold: term.Threshold})
			}
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].ID < stats[j].ID
	})
	return stats
}

func topPathStats(paths map[string]int, total int) []PathStat {
	stats := make([]PathStat, 0, len(paths))
	for sig, n := range paths {
		stats = append(stats, PathStat{Signature: sig, Count: n, Share: fraction(n, total)})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Signature < stats[j].Signature
	})
	if len(stats) > topPaths {
		stats = stats[:topPaths]
	}
	return stats
}

func secretSet(w *storyworld.World, configured []string) map[string]bool {
	set := make(map[string]bool)
	if len(configured) > 0 {
		for _, id := range configured {
			set[id] = true
		}
		return set
	}
	for _, e := range w.Endings() {
		if storyworld.IsSecret(e.ID) {
			set[e.ID] = true
		}
	}
	return set
}

// entropy returns the Shannon entropy in bits of the distribution over
// reached endings and the effective number of endings 2^H.
func entropy(endings []EndingStat) (float64, float64) {
	total := 0
	for _, e := range endings {
		total += e.Count
	}
	if total == 0 {
		return 0, 0
	}
	h := 0.0
	for _, e := range endings {
		if e.Count == 0 {
			continue
		}
		p := float64(e.Count) / float64(total)
		h -= p * math.Log2(p)
	}
	return h, math.Pow(2, h)
}

// propertyStats computes the population mean and standard deviation of every
// declared base key and every key written in any run.
func propertyStats(w *storyworld.World, results []trajectory) []PropertyStat {
	seen := make(map[state.Key]bool)
	keys := w.BaseKeys()
	for _, k := range keys {
		seen[k] = true
	}
	for _, t := range results {
		if t.final == nil {
			continue
		}
		for _, k := range t.final.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	state.SortKeys(keys)

	stats := make([]PropertyStat, 0, len(keys))
	for _, k := range keys {
		n, sum := 0, 0.0
		for _, t := range results {
			if t.final != nil {
				sum += t.final.Get(k)
				n++
			}
		}
		if n == 0 {
			stats = append(stats, PropertyStat{Key: k.String()})
			continue
		}
		mean := sum / float64(n)
		sq := 0.0
		for _, t := range results {
			if t.final != nil {
				d := t.final.Get(k) - mean
				sq += d * d
			}
		}
		stats = append(stats, PropertyStat{Key: k.String(), Mean: mean, Std: math.Sqrt(sq / float64(n))})
	}
	return stats
}

func fraction(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
