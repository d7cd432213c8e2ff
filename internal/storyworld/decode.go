package storyworld

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"storyweave/internal/script"
	"storyweave/internal/state"
)

const allCastMembers = "all cast members"

// Load reads and parses a storyworld document from disk.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading storyworld: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading storyworld %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes and checks a document. Any problem yields a *DocumentError
// and no World.
func Parse(data []byte) (*World, error) {
	w, problems, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, &DocumentError{Problems: problems}
	}
	return w, nil
}

// Decode decodes and checks a document, returning every problem found. The
// error is reserved for input that is not a JSON object. A World returned
// alongside problems is only fit for reporting.
func Decode(data []byte) (*World, []Problem, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, errors.New("decoding storyworld: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, nil, errors.New("decoding storyworld: document must be a JSON object")
	}

	d := &decoder{w: &World{
		Title:          text(root.Get("title")),
		About:          text(root.Get("about_text")),
		StartEncounter: root.Get("start_encounter").String(),
		characters:     make(map[string]*Character),
		properties:     make(map[string]*Property),
		spools:         make(map[string]*Spool),
		encounters:     make(map[string]*Encounter),
	}}
	d.properties(root.Get("authored_properties"))
	d.characters(root.Get("characters"))
	d.spools(root.Get("spools"))
	d.encounters(root.Get("encounters"))
	d.link()
	d.check()
	d.w.Warnings = d.warnings
	return d.w, d.problems, nil
}

type decoder struct {
	w        *World
	problems []Problem
	warnings []Problem
}

func (d *decoder) problem(path, code, format string, args ...any) {
	d.problems = append(d.problems, Problem{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (d *decoder) warn(path, code, format string, args ...any) {
	d.warnings = append(d.warnings, Problem{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (d *decoder) properties(list gjson.Result) {
	for i, r := range list.Array() {
		path := fmt.Sprintf("authored_properties[%d]", i)
		id := r.Get("id").String()
		if id == "" {
			d.problem(path, codeMissingID, "property has no id")
			continue
		}
		if _, dup := d.w.properties[id]; dup {
			d.problem(path, codeDuplicateID, "duplicate property id %q", id)
			continue
		}
		p := &Property{
			ID:      id,
			Name:    r.Get("property_name").String(),
			Default: r.Get("default_value").Float(),
			Depth:   int(r.Get("depth").Int()),
		}
		if p.Depth < 0 || p.Depth > 2 {
			d.problem(path, codeKeyringDepth, "property %q depth %d outside 0..2", id, p.Depth)
		}
		if !state.InBounds(p.Default) {
			d.problem(path, codeInitialOutOfBounds, "property %q default %v outside [-1, 1]", id, p.Default)
		}
		for _, c := range r.Get("affected_characters").Array() {
			p.Affected = append(p.Affected, c.String())
		}
		target := r.Get("attribution_target").String()
		p.AllCast = target == allCastMembers || (target == "" && len(p.Affected) == 0)
		d.w.Properties = append(d.w.Properties, p)
		d.w.properties[id] = p
	}
}

func (d *decoder) characters(list gjson.Result) {
	for i, r := range list.Array() {
		path := fmt.Sprintf("characters[%d]", i)
		id := r.Get("id").String()
		if id == "" {
			d.problem(path, codeMissingID, "character has no id")
			continue
		}
		if _, dup := d.w.characters[id]; dup {
			d.problem(path, codeDuplicateID, "duplicate character id %q", id)
			continue
		}
		c := &Character{ID: id, Name: r.Get("name").String(), Declared: make(map[string]bool)}
		r.Get("bnumber_properties").ForEach(func(k, v gjson.Result) bool {
			prop := k.String()
			c.Declared[prop] = true
			if _, ok := d.w.properties[prop]; !ok {
				p := &Property{ID: prop, Name: prop, Depth: 2, Implicit: true}
				d.w.Properties = append(d.w.Properties, p)
				d.w.properties[prop] = p
			}
			d.initial(c, prop, v, path+".bnumber_properties."+prop)
			return true
		})
		d.w.Characters = append(d.w.Characters, c)
		d.w.characters[id] = c
	}

	for _, p := range d.w.Properties {
		if p.Implicit {
			continue
		}
		if p.AllCast {
			for _, c := range d.w.Characters {
				c.Declared[p.ID] = true
			}
			continue
		}
		for _, id := range p.Affected {
			c, ok := d.w.characters[id]
			if !ok {
				d.problem("authored_properties."+p.ID, codeUnknownCharacter, "property %q attributed to unknown character %q", p.ID, id)
				continue
			}
			c.Declared[p.ID] = true
		}
	}
}

// initial records authored values from a bnumber_properties entry: a number
// for the base value, or nested objects keyed by perceived and target
// character for beliefs.
func (d *decoder) initial(c *Character, prop string, v gjson.Result, path string) {
	add := func(key state.Key, r gjson.Result, path string) {
		if r.Type != gjson.Number {
			d.problem(path, codeMalformed, "initial value must be a number")
			return
		}
		if !state.InBounds(r.Float()) {
			d.problem(path, codeInitialOutOfBounds, "initial value %v outside [-1, 1]", r.Float())
			return
		}
		c.Initial = append(c.Initial, InitialValue{Key: key, Value: r.Float()})
	}

	base := state.Key{Character: c.ID, Property: prop}
	if !v.IsObject() {
		add(base, v, path)
		return
	}
	v.ForEach(func(perceived, pv gjson.Result) bool {
		key := base
		key.Perceived = perceived.String()
		ppath := path + "." + key.Perceived
		if !pv.IsObject() {
			add(key, pv, ppath)
			return true
		}
		pv.ForEach(func(target, tv gjson.Result) bool {
			tkey := key
			tkey.Target = target.String()
			add(tkey, tv, ppath+"."+tkey.Target)
			return true
		})
		return true
	})
}

func (d *decoder) spools(list gjson.Result) {
	for i, r := range list.Array() {
		path := fmt.Sprintf("spools[%d]", i)
		id := r.Get("id").String()
		if id == "" {
			d.problem(path, codeMissingID, "spool has no id")
			continue
		}
		if _, dup := d.w.spools[id]; dup {
			d.problem(path, codeDuplicateID, "duplicate spool id %q", id)
			continue
		}
		s := &Spool{
			ID:            id,
			Name:          r.Get("spool_name").String(),
			StartsActive:  true,
			CreationIndex: i,
		}
		if active := r.Get("starts_active"); active.Exists() {
			s.StartsActive = active.Bool()
		}
		if ci := r.Get("creation_index"); ci.Exists() {
			s.CreationIndex = int(ci.Int())
		}
		for _, m := range r.Get("encounters").Array() {
			s.Members = append(s.Members, m.String())
		}
		d.w.Spools = append(d.w.Spools, s)
		d.w.spools[id] = s
	}
}

func (d *decoder) encounters(list gjson.Result) {
	for i, r := range list.Array() {
		path := fmt.Sprintf("encounters[%d]", i)
		id := r.Get("id").String()
		if id == "" {
			d.problem(path, codeMissingID, "encounter has no id")
			continue
		}
		path = fmt.Sprintf("encounters[%s]", id)
		if _, dup := d.w.encounters[id]; dup {
			d.problem(path, codeDuplicateID, "duplicate encounter id %q", id)
			continue
		}
		e := &Encounter{
			ID:           id,
			Title:        text(r.Get("title")),
			Text:         text(r.Get("text_script")),
			EarliestTurn: int(r.Get("earliest_turn").Int()),
			LatestTurn:   Unbounded,
			Ending:       r.Get("ending").Bool() || strings.HasPrefix(id, EndingPrefix) || strings.HasPrefix(id, SecretPrefix),
		}
		if latest := r.Get("latest_turn"); latest.Exists() && latest.Type != gjson.Null {
			e.LatestTurn = int(latest.Int())
		}
		e.Acceptability = d.script(r.Get("acceptability_script"), path+".acceptability_script", script.True)
		e.Desirability = d.script(r.Get("desirability_script"), path+".desirability_script", script.Zero)
		for _, s := range r.Get("connected_spools").Array() {
			e.Spools = append(e.Spools, s.String())
		}

		optionIDs := make(map[string]bool)
		for j, or := range r.Get("options").Array() {
			opath := fmt.Sprintf("%s.options[%d]", path, j)
			o := d.option(or, opath)
			if o == nil {
				continue
			}
			if optionIDs[o.ID] {
				d.problem(opath, codeDuplicateID, "duplicate option id %q in encounter %q", o.ID, id)
				continue
			}
			optionIDs[o.ID] = true
			e.Options = append(e.Options, o)
		}
		d.w.Encounters = append(d.w.Encounters, e)
		d.w.encounters[id] = e
	}
}

func (d *decoder) option(r gjson.Result, path string) *Option {
	id := r.Get("id").String()
	if id == "" {
		d.problem(path, codeMissingID, "option has no id")
		return nil
	}
	o := &Option{
		ID:             id,
		Text:           text(r.Get("text_script")),
		Visibility:     d.script(r.Get("visibility_script"), path+".visibility_script", script.True),
		Performability: d.script(r.Get("performability_script"), path+".performability_script", script.True),
	}
	reactionIDs := make(map[string]bool)
	for k, rr := range r.Get("reactions").Array() {
		rpath := fmt.Sprintf("%s.reactions[%d]", path, k)
		rid := rr.Get("id").String()
		if rid == "" {
			d.problem(rpath, codeMissingID, "reaction has no id")
			continue
		}
		if reactionIDs[rid] {
			d.problem(rpath, codeDuplicateID, "duplicate reaction id %q in option %q", rid, id)
			continue
		}
		reactionIDs[rid] = true
		reaction := &Reaction{
			ID:           rid,
			Text:         text(rr.Get("text_script")),
			Desirability: d.script(rr.Get("desirability_script"), rpath+".desirability_script", script.Zero),
			Consequence:  rr.Get("consequence_id").String(),
		}
		for m, er := range rr.Get("after_effects").Array() {
			if eff, ok := d.effect(er, fmt.Sprintf("%s.after_effects[%d]", rpath, m)); ok {
				reaction.Effects = append(reaction.Effects, eff)
			}
		}
		o.Reactions = append(o.Reactions, reaction)
	}
	if len(o.Reactions) == 0 {
		d.problem(path, codeNoReactions, "option %q has no reactions", id)
	}
	return o
}

func (d *decoder) effect(r gjson.Result, path string) (Effect, bool) {
	switch kind := r.Get("effect_type").String(); kind {
	case "", "Bounded Number Effect", "Set":
	default:
		d.problem(path, codeUnknownVariant, "unknown effect type %q", kind)
		return Effect{}, false
	}
	key, err := script.DecodeKey(r.Get("Set"), path+".Set")
	if err != nil {
		d.problem(path, codeMalformed, "%v", err)
		return Effect{}, false
	}
	to := r.Get("to")
	if !to.Exists() || to.Type == gjson.Null {
		d.problem(path, codeMalformed, "effect on %s has no value", key)
		return Effect{}, false
	}
	return Effect{Target: key, To: d.script(to, path+".to", script.Zero)}, true
}

// script decodes a script node, recording a problem and returning def when
// it cannot be decoded.
func (d *decoder) script(r gjson.Result, path string, def script.Expr) script.Expr {
	e, err := script.DecodeOr(r, path, def)
	if err != nil {
		code := codeMalformed
		if errors.Is(err, script.ErrUnknownVariant) {
			code = codeUnknownVariant
		}
		d.problems = append(d.problems, Problem{Path: path, Code: code, Message: err.Error()})
		return def
	}
	return e
}

// link resolves spool membership, the active encounter set and initial
// state.
func (d *decoder) link() {
	w := d.w
	members := make(map[string]map[string]bool, len(w.Spools))
	for _, s := range w.Spools {
		set := make(map[string]bool, len(s.Members))
		kept := s.Members[:0]
		for _, id := range s.Members {
			if _, ok := w.encounters[id]; !ok {
				d.problem("spools."+s.ID, codeDanglingSpoolMember, "spool %q lists unknown encounter %q", s.ID, id)
				continue
			}
			if !set[id] {
				set[id] = true
				kept = append(kept, id)
			}
		}
		s.Members = kept
		members[s.ID] = set
	}
	for _, e := range w.Encounters {
		for _, sid := range e.Spools {
			s, ok := w.spools[sid]
			if !ok {
				d.problem("encounters["+e.ID+"].connected_spools", codeDanglingSpool, "encounter %q connected to unknown spool %q", e.ID, sid)
				continue
			}
			if !members[sid][e.ID] {
				members[sid][e.ID] = true
				s.Members = append(s.Members, e.ID)
			}
		}
	}
	for _, e := range w.Encounters {
		e.Spools = e.Spools[:0]
		for _, s := range w.Spools {
			if members[s.ID][e.ID] {
				e.Spools = append(e.Spools, s.ID)
			}
		}
	}

	if len(w.Spools) == 0 {
		w.ImplicitSpool = true
		w.active = append([]*Encounter(nil), w.Encounters...)
		d.warn("spools", codeNoSpools, "no spools declared, every encounter is treated as one active spool")
	} else {
		anyActive := false
		for _, s := range w.Spools {
			if len(s.Members) == 0 {
				d.warn("spools."+s.ID, codeEmptySpool, "spool %q has no members", s.ID)
			}
			anyActive = anyActive || s.StartsActive
		}
		if !anyActive {
			d.warn("spools", codeNoActiveSpool, "no spool starts active, deferred consequences will dead-end")
		}
		for _, e := range w.Encounters {
			for _, sid := range e.Spools {
				if w.spools[sid].StartsActive {
					w.active = append(w.active, e)
					break
				}
			}
		}
	}

	if w.StartEncounter != "" {
		if _, ok := w.encounters[w.StartEncounter]; !ok {
			d.problem("start_encounter", codeDanglingStart, "start encounter %q does not exist", w.StartEncounter)
		}
	}

	w.defaults = make(map[string]float64, len(w.Properties))
	for _, p := range w.Properties {
		w.defaults[p.ID] = p.Default
	}
	w.initial = state.New(w.defaults)
	for _, c := range w.Characters {
		for _, iv := range c.Initial {
			// bounds were checked during decoding
			_ = w.initial.Set(iv.Key, iv.Value)
		}
	}
}

// text reads a plain string or a String Constant script.
func text(r gjson.Result) string {
	if r.IsObject() {
		return r.Get("value").String()
	}
	return r.String()
}
