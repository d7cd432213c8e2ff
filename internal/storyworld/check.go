package storyworld

import (
	"fmt"

	"storyweave/internal/script"
	"storyweave/internal/state"
)

// check verifies references and script types across the decoded world.
func (d *decoder) check() {
	w := d.w
	for _, c := range w.Characters {
		for _, iv := range c.Initial {
			d.key(iv.Key, "characters["+c.ID+"].bnumber_properties")
		}
	}

	linked := make(map[string]bool)
	if start := w.Start(); start != nil {
		linked[start.ID] = true
	}
	for _, e := range w.Encounters {
		if len(e.Spools) > 0 || w.ImplicitSpool {
			linked[e.ID] = true
		}
	}

	for _, e := range w.Encounters {
		path := "encounters[" + e.ID + "]"
		if e.LatestTurn < e.EarliestTurn {
			d.problem(path, codeInvalidTurnWindow, "latest_turn %d before earliest_turn %d", e.LatestTurn, e.EarliestTurn)
		}
		d.expr(e.Acceptability, script.KindBool, path+".acceptability_script")
		d.expr(e.Desirability, script.KindNumber, path+".desirability_script")
		for _, o := range e.Options {
			opath := path + ".options[" + o.ID + "]"
			d.expr(o.Visibility, script.KindBool, opath+".visibility_script")
			d.expr(o.Performability, script.KindBool, opath+".performability_script")
			for _, r := range o.Reactions {
				rpath := opath + ".reactions[" + r.ID + "]"
				d.expr(r.Desirability, script.KindNumber, rpath+".desirability_script")
				if !r.Defers() {
					if _, ok := w.encounters[r.Consequence]; !ok {
						d.problem(rpath, codeDanglingConsequence, "consequence %q does not exist", r.Consequence)
					} else {
						linked[r.Consequence] = true
					}
				}
				for i, eff := range r.Effects {
					epath := fmt.Sprintf("%s.after_effects[%d]", rpath, i)
					d.key(eff.Target, epath+".Set")
					d.expr(eff.To, script.KindNumber, epath+".to")
				}
			}
		}
	}

	for _, e := range w.Encounters {
		if !linked[e.ID] {
			d.warn("encounters["+e.ID+"]", codeUnreachableByLinking, "encounter %q is not the start, in no spool and no consequence leads to it", e.ID)
		}
	}
}

func (d *decoder) expr(e script.Expr, want script.Kind, path string) {
	if err := script.Expect(e, want); err != nil {
		d.problem(path, codeTypeMismatch, "%v", err)
		return
	}
	for _, k := range script.Refs(e) {
		d.key(k, path)
	}
}

// key verifies that k addresses a declared property of a known character at
// an allowed depth.
func (d *decoder) key(k state.Key, path string) {
	c, ok := d.w.characters[k.Character]
	if !ok {
		d.problem(path, codeUnknownCharacter, "unknown character %q", k.Character)
		return
	}
	p, ok := d.w.properties[k.Property]
	if !ok || !c.Declared[k.Property] {
		d.problem(path, codeUndeclaredProperty, "property %q is not declared for character %q", k.Property, k.Character)
		return
	}
	if k.Depth() > p.Depth {
		d.problem(path, codeKeyringDepth, "%s has depth %d but property %q allows %d", k, k.Depth(), p.ID, p.Depth)
	}
	for _, id := range []string{k.Perceived, k.Target} {
		if id == "" {
			continue
		}
		if _, ok := d.w.characters[id]; !ok {
			d.problem(path, codeUnknownCharacter, "%s perceives unknown character %q", k, id)
		}
	}
}
