// Package storyworld holds the static description of a storyworld: cast,
// properties, spools and encounters, decoded from SweepWeave JSON and checked
// once at load time.
package storyworld

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"storyweave/internal/script"
	"storyweave/internal/state"
)

const (
	EndingPrefix = "page_end_"
	SecretPrefix = "page_secret_"

	// DeferSentinel in consequence_id defers to spool-based selection, as
	// does an empty consequence.
	DeferSentinel = "wild"

	// Unbounded is the latest turn of an encounter with no upper window.
	Unbounded = math.MaxInt
)

var ErrUnknownEncounter = errors.New("unknown encounter")

type World struct {
	Title          string
	About          string
	StartEncounter string

	Characters []*Character
	Properties []*Property
	Spools     []*Spool
	Encounters []*Encounter

	// ImplicitSpool is set when the document declares no spools and every
	// encounter is treated as a member of one active spool.
	ImplicitSpool bool
	Warnings      []Problem

	characters map[string]*Character
	properties map[string]*Property
	spools     map[string]*Spool
	encounters map[string]*Encounter
	active     []*Encounter
	defaults   map[string]float64
	initial    *state.Store
}

type Character struct {
	ID   string
	Name string
	// Declared is the set of property ids attributed to this character.
	Declared map[string]bool
	Initial  []InitialValue
}

type InitialValue struct {
	Key   state.Key
	Value float64
}

type Property struct {
	ID       string
	Name     string
	Default  float64
	Depth    int
	AllCast  bool
	Affected []string
	// Implicit properties appear only in character bnumber_properties.
	Implicit bool
}

type Spool struct {
	ID            string
	Name          string
	StartsActive  bool
	CreationIndex int
	Members       []string
}

type Encounter struct {
	ID            string
	Title         string
	Text          string
	Acceptability script.Expr
	Desirability  script.Expr
	Spools        []string
	EarliestTurn  int
	LatestTurn    int
	Ending        bool
	Options       []*Option
}

type Option struct {
	ID             string
	Text           string
	Visibility     script.Expr
	Performability script.Expr
	Reactions      []*Reaction
}

type Reaction struct {
	ID           string
	Text         string
	Desirability script.Expr
	Consequence  string
	Effects      []Effect
}

// Effect sets Target to the value of To.
type Effect struct {
	Target state.Key
	To     script.Expr
}

// Defers reports whether the reaction leaves the next encounter to
// spool-based selection.
func (r *Reaction) Defers() bool {
	return r.Consequence == "" || r.Consequence == DeferSentinel
}

// IsEnding reports whether reaching e ends a playthrough.
func (e *Encounter) IsEnding() bool {
	return e.Ending || len(e.Options) == 0
}

// InWindow reports whether turn lies within the encounter's turn window.
func (e *Encounter) InWindow(turn int) bool {
	return turn >= e.EarliestTurn && turn <= e.LatestTurn
}

// IsSecret reports whether id names a secret ending by convention.
func IsSecret(id string) bool {
	return strings.HasPrefix(id, SecretPrefix)
}

// Encounter returns the encounter with the given id.
func (w *World) Encounter(id string) (*Encounter, error) {
	e, ok := w.encounters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncounter, id)
	}
	return e, nil
}

func (w *World) Character(id string) (*Character, bool) {
	c, ok := w.characters[id]
	return c, ok
}

func (w *World) Property(id string) (*Property, bool) {
	p, ok := w.properties[id]
	return p, ok
}

func (w *World) Spool(id string) (*Spool, bool) {
	s, ok := w.spools[id]
	return s, ok
}

// Active returns the members of every spool that starts active, in document
// order.
func (w *World) Active() []*Encounter {
	return w.active
}

// Endings returns every encounter that ends a playthrough when reached.
func (w *World) Endings() []*Encounter {
	var out []*Encounter
	for _, e := range w.Encounters {
		if e.IsEnding() {
			out = append(out, e)
		}
	}
	return out
}

// Start returns the encounter a playthrough opens with, or nil when the
// opening must be chosen by spool-based selection.
func (w *World) Start() *Encounter {
	if w.StartEncounter != "" {
		return w.encounters[w.StartEncounter]
	}
	var first *Spool
	for _, s := range w.Spools {
		if !s.StartsActive || len(s.Members) == 0 {
			continue
		}
		if first == nil || s.CreationIndex < first.CreationIndex {
			first = s
		}
	}
	if first != nil {
		return w.encounters[first.Members[0]]
	}
	if w.ImplicitSpool && len(w.Encounters) > 0 {
		return w.Encounters[0]
	}
	return nil
}

// InitialState returns a fresh store holding the authored initial values.
func (w *World) InitialState() *state.Store {
	return w.initial.Clone()
}

// BaseKeys returns every (character, property) key declared in the world, in
// sorted order.
func (w *World) BaseKeys() []state.Key {
	var keys []state.Key
	for _, c := range w.Characters {
		for prop := range c.Declared {
			keys = append(keys, state.Key{Character: c.ID, Property: prop})
		}
	}
	state.SortKeys(keys)
	return keys
}

// Defaults maps property id to its declared default value.
func (w *World) Defaults() map[string]float64 {
	return w.defaults
}
