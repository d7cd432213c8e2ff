// Package state holds the runtime values of a single playthrough: one bounded
// number per (character, property, perceived?, target?) key.
package state

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	Min = -1.0
	Max = 1.0
)

var ErrOutOfBounds = errors.New("value outside [-1, 1]")

// Key addresses one bounded number. Perceived and Target are empty for base
// properties; Perceived alone addresses a first-order belief and both address
// a second-order belief.
type Key struct {
	Character string
	Property  string
	Perceived string
	Target    string
}

// Depth is the number of belief levels the key addresses (0, 1 or 2).
func (k Key) Depth() int {
	switch {
	case k.Target != "":
		return 2
	case k.Perceived != "":
		return 1
	default:
		return 0
	}
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Character)
	b.WriteByte('.')
	b.WriteString(k.Property)
	if k.Perceived != "" {
		b.WriteByte('[')
		b.WriteString(k.Perceived)
		if k.Target != "" {
			b.WriteByte(',')
			b.WriteString(k.Target)
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Less orders keys by character, property, perceived, then target.
func Less(a, b Key) bool {
	if a.Character != b.Character {
		return a.Character < b.Character
	}
	if a.Property != b.Property {
		return a.Property < b.Property
	}
	if a.Perceived != b.Perceived {
		return a.Perceived < b.Perceived
	}
	return a.Target < b.Target
}

// SortKeys sorts keys in place using Less.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return Less(keys[i], keys[j]) })
}

// Clamp bounds v to [Min, Max]. NaN is returned unchanged so that Set can
// reject it.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(Min, math.Min(Max, v))
}

// InBounds reports whether v is a valid bounded number.
func InBounds(v float64) bool {
	return !math.IsNaN(v) && v >= Min && v <= Max
}

// Store maps keys to bounded numbers. Unset keys read as the declared default
// of their property. The store never clamps: callers clamp before Set.
type Store struct {
	values   map[Key]float64
	defaults map[string]float64
}

// New returns an empty store. defaults maps property id to default value and
// is shared read-only between clones.
func New(defaults map[string]float64) *Store {
	if defaults == nil {
		defaults = map[string]float64{}
	}
	return &Store{
		values:   make(map[Key]float64),
		defaults: defaults,
	}
}

// Get returns the value stored at k or the property default.
func (s *Store) Get(k Key) float64 {
	if v, ok := s.values[k]; ok {
		return v
	}
	return s.defaults[k.Property]
}

// Lookup returns the explicitly stored value at k.
func (s *Store) Lookup(k Key) (float64, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Set stores v at k. Values outside [-1, 1] and NaN are rejected.
func (s *Store) Set(k Key, v float64) error {
	if !InBounds(v) {
		return fmt.Errorf("setting %s to %v: %w", k, v, ErrOutOfBounds)
	}
	s.values[k] = v
	return nil
}

// Clone returns an independent copy sharing only the immutable defaults.
func (s *Store) Clone() *Store {
	values := make(map[Key]float64, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return &Store{values: values, defaults: s.defaults}
}

// Keys returns every explicitly stored key in sorted order.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Len is the number of explicitly stored keys.
func (s *Store) Len() int {
	return len(s.values)
}
