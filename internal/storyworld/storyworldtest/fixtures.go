package storyworldtest

import "fmt"

const Player = "char_player"

func cast() []Node {
	return []Node{Character(Player, nil), Character("char_rival", nil)}
}

func trustProperty() []Node {
	return []Node{Property("Trust", 0, 1)}
}

// TrustEnding is a single encounter whose preferred reaction nudges Trust by
// 0.5 and leads to page_end_a.
func TrustEnding() Doc {
	return Doc{
		Title:      "trust ending",
		Characters: cast(),
		Properties: trustProperty(),
		Encounters: []Node{
			Encounter("page_start",
				Option("opt_go",
					Reaction("rxn_a", "page_end_a", 1.0, Nudge(Player, "Trust", 0.5)),
					Reaction("rxn_b", "page_end_b", 0.0),
				),
			),
			Encounter("page_end_a"),
			Encounter("page_end_b"),
		},
	}
}

// DeadEndChain leads from enc_first to enc_second, which is never acceptable,
// and offers no other spool encounter.
func DeadEndChain() Doc {
	return Doc{
		Title:      "dead end chain",
		Characters: cast(),
		Properties: trustProperty(),
		Spools:     []Node{Spool("spool_main", true, "enc_first")},
		Encounters: []Node{
			Encounter("enc_first", Option("opt_on", Reaction("rxn_on", "enc_second", 0.0))),
			Gate(Encounter("enc_second", Option("opt_stay", Reaction("rxn_stay", "", 0.0))), false, 0.0),
		},
	}
}

// Cycle links two encounters back to each other.
func Cycle() Doc {
	return Doc{
		Title:      "cycle",
		Characters: cast(),
		Properties: trustProperty(),
		Encounters: []Node{
			Encounter("enc_a", Option("opt_next", Reaction("rxn_next", "enc_b", 0.0))),
			Encounter("enc_b", Option("opt_back", Reaction("rxn_back", "enc_a", 0.0))),
		},
	}
}

// Ties offers k equally desirable endings after a deferring start.
func Ties(k int) Doc {
	encounters := []Node{
		Encounter("page_start", Option("opt_go", Reaction("rxn_go", "wild", 0.0))),
	}
	for i := 1; i <= k; i++ {
		encounters = append(encounters, Encounter(fmt.Sprintf("page_end_%d", i)))
	}
	return Doc{Title: "ties", Characters: cast(), Properties: trustProperty(), Encounters: encounters}
}

// LongChain links n encounters in sequence ending at page_end_final.
func LongChain(n int) Doc {
	ids := Chain("enc_", n)
	var encounters []Node
	for i, id := range ids {
		next := "page_end_final"
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		encounters = append(encounters, Encounter(id, Option("opt_"+id, Reaction("rxn_"+id, next, 0.0))))
	}
	encounters = append(encounters, Encounter("page_end_final"))
	return Doc{Title: "long chain", Characters: cast(), Properties: trustProperty(), Encounters: encounters}
}

// ThreeEndings is a random walk on the player's Trust over steps encounters
// of warm or cold choices, each moving Trust by 0.25, followed by three
// endings: warm at Trust >= 0.2, cold at Trust <= -0.2, and an ungated
// neutral fallback that is always less desirable.
func ThreeEndings(steps int) Doc {
	ids := Chain("enc_step_", steps)
	var encounters []Node
	for i, id := range ids {
		next := "wild"
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		encounters = append(encounters, Encounter(id,
			Option("opt_warm", Reaction("rxn_warm", next, 0.0, Nudge(Player, "Trust", 0.25))),
			Option("opt_cold", Reaction("rxn_cold", next, 0.0, Nudge(Player, "Trust", -0.25))),
		))
	}
	encounters = append(encounters,
		Gate(Encounter("page_end_warm"), Compare("GTE", Pointer(Player, "Trust"), Const(0.2)), 1.0),
		Gate(Encounter("page_end_cold"), Compare("LTE", Pointer(Player, "Trust"), Const(-0.2)), 1.0),
		Gate(Encounter("page_end_neutral"), true, 0.0),
	)
	return Doc{Title: "three endings", Characters: cast(), Properties: trustProperty(), Encounters: encounters}
}
