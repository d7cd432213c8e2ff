// Package storyworldtest builds storyworld documents for tests.
package storyworldtest

import (
	"encoding/json"
	"fmt"
	"testing"

	"storyweave/internal/storyworld"
)

// Node is one JSON object of a document.
type Node = map[string]any

// Doc is a document under construction. Zero-value fields are omitted.
type Doc struct {
	Title      string
	Start      string
	Characters []Node
	Properties []Node
	Spools     []Node
	Encounters []Node
}

func (d Doc) Map() Node {
	m := Node{"title": d.Title}
	if d.Start != "" {
		m["start_encounter"] = d.Start
	}
	if d.Characters != nil {
		m["characters"] = d.Characters
	}
	if d.Properties != nil {
		m["authored_properties"] = d.Properties
	}
	if d.Spools != nil {
		m["spools"] = d.Spools
	}
	if d.Encounters != nil {
		m["encounters"] = d.Encounters
	}
	return m
}

// JSON encodes the document.
func (d Doc) JSON(t testing.TB) []byte {
	t.Helper()
	data, err := json.Marshal(d.Map())
	if err != nil {
		t.Fatalf("encoding document: %v", err)
	}
	return data
}

// World parses the document and fails the test on any problem.
func (d Doc) World(t testing.TB) *storyworld.World {
	t.Helper()
	w, err := storyworld.Parse(d.JSON(t))
	if err != nil {
		t.Fatalf("parsing document: %v", err)
	}
	return w
}

func Character(id string, props Node) Node {
	if props == nil {
		props = Node{}
	}
	return Node{"id": id, "name": id, "bnumber_properties": props}
}

// Property declares a property for every cast member.
func Property(id string, def float64, depth int) Node {
	return Node{
		"id":                 id,
		"property_name":      id,
		"default_value":      def,
		"depth":              depth,
		"attribution_target": "all cast members",
	}
}

func Spool(id string, active bool, members ...string) Node {
	if members == nil {
		members = []string{}
	}
	return Node{"id": id, "spool_name": id, "starts_active": active, "encounters": members}
}

func Encounter(id string, options ...Node) Node {
	if options == nil {
		options = []Node{}
	}
	return Node{"id": id, "title": id, "text_script": "", "options": options}
}

// Gate sets acceptability and desirability scripts on an encounter node.
func Gate(enc Node, acceptability, desirability any) Node {
	enc["acceptability_script"] = acceptability
	enc["desirability_script"] = desirability
	return enc
}

func Option(id string, reactions ...Node) Node {
	return Node{"id": id, "text_script": id, "reactions": reactions}
}

// Visible sets the visibility script on an option node.
func Visible(opt Node, visibility any) Node {
	opt["visibility_script"] = visibility
	return opt
}

func Reaction(id, consequence string, desirability any, effects ...Node) Node {
	if effects == nil {
		effects = []Node{}
	}
	return Node{
		"id":                  id,
		"text_script":         id,
		"consequence_id":      consequence,
		"desirability_script": desirability,
		"after_effects":       effects,
	}
}

// Pointer addresses character.keyring.
func Pointer(character string, keyring ...string) Node {
	return Node{"pointer_type": "Bounded Number Pointer", "character": character, "keyring": keyring, "coefficient": 1}
}

func Const(v float64) Node {
	return Node{"pointer_type": "Bounded Number Constant", "value": v}
}

func Op(kind string, operands ...any) Node {
	return Node{"operator_type": kind, "operands": operands}
}

func Compare(sub string, left, right any) Node {
	return Node{"operator_type": "Arithmetic Comparator", "operator_subtype": sub, "operands": []any{left, right}}
}

// Set is an effect writing the value of to into character.keyring.
func Set(to any, character string, keyring ...string) Node {
	return Node{"effect_type": "Bounded Number Effect", "Set": Pointer(character, keyring...), "to": to}
}

// Nudge is an effect adding delta to character.property, clamped.
func Nudge(character, property string, delta float64) Node {
	return Set(Op("Nudge", Pointer(character, property), Const(delta)), character, property)
}

// Chain returns ids prefix1..prefixN.
func Chain(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return ids
}
