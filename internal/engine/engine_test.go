package engine

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"storyweave/internal/script"
	"storyweave/internal/state"
	"storyweave/internal/storyworld"
	swt "storyweave/internal/storyworld/storyworldtest"
)

var playerTrust = state.Key{Character: swt.Player, Property: "Trust"}

func nudge(k state.Key, delta float64) storyworld.Effect {
	return storyworld.Effect{Target: k, To: script.Nudge{Current: script.Ref(k), Delta: script.Num(delta)}}
}

func TestApplyClampInvariant(t *testing.T) {
	values := state.New(nil)
	effects := []storyworld.Effect{nudge(playerTrust, 5), nudge(playerTrust, 5)}

	next, applied, err := Apply(effects, values)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := next.Get(playerTrust); got != 1 {
		t.Fatalf("expected Trust clamped to 1, got %v", got)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied effects, got %d", len(applied))
	}
	if applied[0].Before != 0 || applied[0].After != 1 {
		t.Fatalf("unexpected first effect %+v", applied[0])
	}
	if applied[1].Before != 1 || applied[1].After != 1 {
		t.Fatalf("unexpected second effect %+v", applied[1])
	}
	if values.Get(playerTrust) != 0 {
		t.Fatalf("expected input state untouched")
	}
}

func TestApplyClampsPlainSets(t *testing.T) {
	effects := []storyworld.Effect{{Target: playerTrust, To: script.Num(-3)}}
	next, applied, err := Apply(effects, state.New(nil))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if next.Get(playerTrust) != -1 || !applied[0].Clamped {
		t.Fatalf("expected clamped -1, got %v (%+v)", next.Get(playerTrust), applied[0])
	}
}

func TestApplySequential(t *testing.T) {
	fear := state.Key{Character: swt.Player, Property: "Fear"}
	effects := []storyworld.Effect{
		{Target: playerTrust, To: script.Num(0.5)},
		{Target: fear, To: script.Multiplication{Operands: []script.Expr{script.Ref(playerTrust), script.Num(-1)}}},
	}
	next, _, err := Apply(effects, state.New(nil))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := next.Get(fear); got != -0.5 {
		t.Fatalf("expected second effect to see first write, got Fear=%v", got)
	}
}

func TestApplyAbortsOnNaN(t *testing.T) {
	huge := script.Multiplication{Operands: []script.Expr{script.Num(math.MaxFloat64), script.Num(10)}}
	negHuge := script.Multiplication{Operands: []script.Expr{script.Num(-math.MaxFloat64), script.Num(10)}}
	effects := []storyworld.Effect{
		{Target: playerTrust, To: script.Num(0.25)},
		{Target: playerTrust, To: script.Addition{Operands: []script.Expr{huge, negHuge}}},
	}
	values := state.New(nil)

	next, applied, err := Apply(effects, values)
	if !errors.Is(err, state.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if next != nil {
		t.Fatalf("expected no resulting state")
	}
	if len(applied) != 1 {
		t.Fatalf("expected the first effect to be reported, got %d", len(applied))
	}
	if values.Get(playerTrust) != 0 {
		t.Fatalf("expected input state untouched")
	}
}

func TestTrustEnding(t *testing.T) {
	w := swt.TrustEnding().World(t)
	for seed := int64(0); seed < 50; seed++ {
		p := Start(w, rand.New(rand.NewSource(seed)), 10)
		out := p.Run(Uniform)
		if out.Kind != OutcomeEnded || out.Ending != "page_end_a" {
			t.Fatalf("seed %d: expected page_end_a, got %+v", seed, out)
		}
		if got := p.Values().Get(playerTrust); got != 0.5 {
			t.Fatalf("seed %d: expected Trust 0.5, got %v", seed, got)
		}
		if p.Phase() != Ended {
			t.Fatalf("seed %d: expected phase ended, got %s", seed, p.Phase())
		}
	}
}

func TestDeadEndChain(t *testing.T) {
	w := swt.DeadEndChain().World(t)
	p := Start(w, rand.New(rand.NewSource(1)), 10)
	if p.Encounter().ID != "enc_first" {
		t.Fatalf("expected enc_first, got %s", p.Encounter().ID)
	}

	step, err := p.Choose("opt_on")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if step.Reaction != "rxn_on" || step.Next != "" {
		t.Fatalf("unexpected step %+v", step)
	}
	if p.Outcome().Kind != OutcomeDeadEnd || p.Phase() != DeadEnd {
		t.Fatalf("expected dead end, got %+v in %s", p.Outcome(), p.Phase())
	}
	if path := p.Path(); len(path) != 1 {
		t.Fatalf("expected one encounter on the path, got %v", path)
	}
}

func TestCycleTerminates(t *testing.T) {
	w := swt.Cycle().World(t)
	p := Start(w, rand.New(rand.NewSource(7)), 1000)
	out := p.Run(Uniform)
	if out.Kind != OutcomeDeadEnd {
		t.Fatalf("expected dead end on revisiting a fired encounter, got %+v", out)
	}
	if len(p.Path()) != 2 {
		t.Fatalf("expected path enc_a > enc_b, got %v", p.Path())
	}
}

func TestStepBudget(t *testing.T) {
	w := swt.LongChain(10).World(t)
	p := Start(w, rand.New(rand.NewSource(1)), 3)
	out := p.Run(Uniform)
	if out.Kind != OutcomeBudgetExceeded {
		t.Fatalf("expected budget exceeded, got %+v", out)
	}
	if p.Phase() != DeadEnd {
		t.Fatalf("expected budget exhaustion to end as a dead end, got %s", p.Phase())
	}
	if len(p.Path()) != 3 {
		t.Fatalf("expected 3 encounters entered, got %v", p.Path())
	}

	p = Start(w, rand.New(rand.NewSource(1)), 0)
	if out := p.Run(Uniform); out.Kind != OutcomeEnded || out.Ending != "page_end_final" {
		t.Fatalf("expected default budget to reach the ending, got %+v", out)
	}
}

func TestTieBreakFairness(t *testing.T) {
	const k = 3
	const trials = 9000
	w := swt.Ties(k).World(t)

	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		p := Start(w, rand.New(rand.NewSource(int64(i))), 10)
		out := p.Run(Uniform)
		if out.Kind != OutcomeEnded {
			t.Fatalf("trial %d: expected an ending, got %+v", i, out)
		}
		counts[out.Ending]++
	}

	if len(counts) != k {
		t.Fatalf("expected %d distinct endings, got %v", k, counts)
	}
	for id, n := range counts {
		share := float64(n) / trials
		if math.Abs(share-1.0/k) > 0.03 {
			t.Errorf("ending %s share %.3f, expected about %.3f", id, share, 1.0/k)
		}
	}
}

func TestSelectReactionDeterministic(t *testing.T) {
	opt := &storyworld.Option{
		ID: "opt",
		Reactions: []*storyworld.Reaction{
			{ID: "rxn_first", Desirability: script.Num(0.5)},
			{ID: "rxn_second", Desirability: script.Ref(playerTrust)},
			{ID: "rxn_third", Desirability: script.Num(0.5)},
		},
	}
	values := state.New(nil)
	if err := values.Set(playerTrust, 0.5); err != nil {
		t.Fatalf("set: %v", err)
	}
	for i := 0; i < 100; i++ {
		if got := SelectReaction(opt, values); got.ID != "rxn_first" {
			t.Fatalf("expected first declared reaction to win the tie, got %s", got.ID)
		}
	}
	if err := values.Set(playerTrust, 0.75); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := SelectReaction(opt, values); got.ID != "rxn_second" {
		t.Fatalf("expected highest desirability to win, got %s", got.ID)
	}
}

func TestChooseErrors(t *testing.T) {
	w := swt.TrustEnding().World(t)
	p := Start(w, rand.New(rand.NewSource(1)), 10)

	if _, err := p.Choose("opt_missing"); !errors.Is(err, ErrOptionNotOpen) {
		t.Fatalf("expected ErrOptionNotOpen, got %v", err)
	}
	if _, err := p.Choose("opt_go"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := p.Choose("opt_go"); !errors.Is(err, ErrNotAwaitingOption) {
		t.Fatalf("expected ErrNotAwaitingOption, got %v", err)
	}
}

func TestHarborPlaythrough(t *testing.T) {
	w, err := storyworld.Load(filepath.Join("..", "storyworld", "testdata", "harbor.json"))
	if err != nil {
		t.Fatalf("loading harbor: %v", err)
	}

	t.Run("helping leads to alliance", func(t *testing.T) {
		p := Start(w, rand.New(rand.NewSource(1)), 20)
		if p.Encounter().ID != "enc_dock" {
			t.Fatalf("expected enc_dock, got %s", p.Encounter().ID)
		}
		step, err := p.Choose("opt_help")
		if err != nil {
			t.Fatalf("choose: %v", err)
		}
		if step.Next != "enc_tavern" || len(step.Applied) != 1 || step.Applied[0].After != 0.25 {
			t.Fatalf("unexpected step %+v", step)
		}
		if open := p.OpenOptions(); len(open) != 1 || open[0].ID != "opt_confide" {
			t.Fatalf("expected only opt_confide open, got %d options", len(open))
		}
		step, err = p.Choose("opt_confide")
		if err != nil {
			t.Fatalf("choose: %v", err)
		}
		if step.Reaction != "rxn_confide_warm" {
			t.Fatalf("expected warm reaction, got %s", step.Reaction)
		}
		if out := p.Outcome(); out.Kind != OutcomeEnded || out.Ending != "page_end_alliance" {
			t.Fatalf("expected alliance ending, got %+v", out)
		}
	})

	t.Run("watching unlocks the threat", func(t *testing.T) {
		p := Start(w, rand.New(rand.NewSource(1)), 20)
		if _, err := p.Choose("opt_watch"); err != nil {
			t.Fatalf("choose: %v", err)
		}
		if open := p.OpenOptions(); len(open) != 2 {
			t.Fatalf("expected both tavern options open, got %d", len(open))
		}
		if _, err := p.Choose("opt_threaten"); err != nil {
			t.Fatalf("choose: %v", err)
		}
		if out := p.Outcome(); out.Ending != "page_end_betrayal" {
			t.Fatalf("expected betrayal ending, got %+v", out)
		}
	})

	t.Run("watching then confiding finds the secret", func(t *testing.T) {
		p := Start(w, rand.New(rand.NewSource(1)), 20)
		out := p.Run(First)
		if out.Ending != "page_end_alliance" {
			t.Fatalf("expected First policy to reach alliance, got %+v", out)
		}

		p = Start(w, rand.New(rand.NewSource(1)), 20)
		for _, id := range []string{"opt_watch", "opt_confide"} {
			if _, err := p.Choose(id); err != nil {
				t.Fatalf("choose %s: %v", id, err)
			}
		}
		if out := p.Outcome(); out.Ending != "page_secret_tide" {
			t.Fatalf("expected secret ending, got %+v", out)
		}
	})
}

func TestInactiveSpoolIsNotScanned(t *testing.T) {
	w := swt.Doc{
		Title:      "inactive spool",
		Characters: []swt.Node{swt.Character(swt.Player, nil)},
		Properties: []swt.Node{swt.Property("Trust", 0, 1)},
		Spools: []swt.Node{
			swt.Spool("spool_main", true, "page_start", "page_end_open"),
			swt.Spool("spool_hidden", false, "page_end_hidden"),
		},
		Encounters: []swt.Node{
			swt.Encounter("page_start", swt.Option("opt_go", swt.Reaction("rxn_go", "wild", 0.0))),
			swt.Gate(swt.Encounter("page_end_open"), true, 0.0),
			swt.Gate(swt.Encounter("page_end_hidden"), true, 1.0),
		},
	}.World(t)

	for seed := int64(0); seed < 50; seed++ {
		p := Start(w, rand.New(rand.NewSource(seed)), 10)
		if out := p.Run(Uniform); out.Kind != OutcomeEnded || out.Ending != "page_end_open" {
			t.Fatalf("seed %d: expected page_end_open, got %+v", seed, out)
		}
	}
}

func TestIneligibleConsequenceFallsBack(t *testing.T) {
	doc := func(nudge float64) swt.Doc {
		return swt.Doc{
			Title:      "consequence fallback",
			Start:      "page_start",
			Characters: []swt.Node{swt.Character(swt.Player, nil)},
			Properties: []swt.Node{swt.Property("Trust", 0, 1)},
			Spools:     []swt.Node{swt.Spool("spool_main", true, "page_start", "page_end_fallback")},
			Encounters: []swt.Node{
				swt.Encounter("page_start", swt.Option("opt_go",
					swt.Reaction("rxn_go", "page_end_locked", 0.0, swt.Nudge(swt.Player, "Trust", nudge)))),
				swt.Gate(swt.Encounter("page_end_locked"), swt.Compare("GTE", swt.Pointer(swt.Player, "Trust"), swt.Const(0.2)), 0.0),
				swt.Gate(swt.Encounter("page_end_fallback"), true, 0.0),
			},
		}
	}

	tests := []struct {
		name  string
		nudge float64
		want  string
	}{
		{name: "gate closed", nudge: 0.1, want: "page_end_fallback"},
		{name: "gate open", nudge: 0.5, want: "page_end_locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doc(tt.nudge).World(t)
			p := Start(w, rand.New(rand.NewSource(1)), 10)
			step, err := p.Choose("opt_go")
			if err != nil {
				t.Fatalf("choose: %v", err)
			}
			if step.Next != tt.want || p.Outcome().Ending != tt.want {
				t.Fatalf("expected %s, got step %+v outcome %+v", tt.want, step, p.Outcome())
			}
		})
	}
}

func TestTurnWindows(t *testing.T) {
	t.Run("in window", func(t *testing.T) {
		e := &storyworld.Encounter{ID: "enc", EarliestTurn: 1, LatestTurn: 2}
		for turn, want := range map[int]bool{0: false, 1: true, 2: true, 3: false} {
			if got := e.InWindow(turn); got != want {
				t.Errorf("turn %d: expected %v, got %v", turn, want, got)
			}
		}
		open := &storyworld.Encounter{ID: "open", LatestTurn: storyworld.Unbounded}
		if !open.InWindow(0) || !open.InWindow(1000) {
			t.Fatalf("expected unbounded window to admit every turn")
		}
	})

	t.Run("selection skips encounters outside their window", func(t *testing.T) {
		early := swt.Gate(swt.Encounter("page_end_early"), true, 1.0)
		early["latest_turn"] = 0
		late := swt.Gate(swt.Encounter("page_end_late"), true, 1.0)
		late["earliest_turn"] = 5
		now := swt.Gate(swt.Encounter("page_end_now"), true, 0.0)
		now["earliest_turn"] = 1
		now["latest_turn"] = 1

		w := swt.Doc{
			Title:      "turn windows",
			Start:      "page_start",
			Characters: []swt.Node{swt.Character(swt.Player, nil)},
			Properties: []swt.Node{swt.Property("Trust", 0, 1)},
			Encounters: []swt.Node{
				swt.Encounter("page_start", swt.Option("opt_go", swt.Reaction("rxn_go", "wild", 0.0))),
				early, late, now,
			},
		}.World(t)

		for seed := int64(0); seed < 20; seed++ {
			p := Start(w, rand.New(rand.NewSource(seed)), 10)
			if out := p.Run(Uniform); out.Ending != "page_end_now" {
				t.Fatalf("seed %d: expected page_end_now, got %+v", seed, out)
			}
		}
	})
}

func TestScanSpoolsNaNDesirability(t *testing.T) {
	huge := script.Multiplication{Operands: []script.Expr{script.Num(math.MaxFloat64), script.Num(10)}}
	negHuge := script.Multiplication{Operands: []script.Expr{script.Num(-math.MaxFloat64), script.Num(10)}}
	always := script.Constant{Value: script.Bool(true)}
	nan := &storyworld.Encounter{
		ID:            "enc_nan",
		Acceptability: always,
		Desirability:  script.Addition{Operands: []script.Expr{huge, negHuge}},
		LatestTurn:    storyworld.Unbounded,
	}
	low := &storyworld.Encounter{
		ID:            "enc_low",
		Acceptability: always,
		Desirability:  script.Num(-1),
		LatestTurn:    storyworld.Unbounded,
	}
	values := state.New(nil)
	rng := rand.New(rand.NewSource(1))

	if got := ScanSpools([]*storyworld.Encounter{nan}, values, map[string]bool{}, 0, rng); got == nil || got.ID != "enc_nan" {
		t.Fatalf("expected lone NaN candidate to be selected, got %v", got)
	}
	for i := 0; i < 20; i++ {
		got := ScanSpools([]*storyworld.Encounter{nan, low}, values, map[string]bool{}, 0, rng)
		if got == nil || got.ID != "enc_low" {
			t.Fatalf("expected enc_low to outrank NaN, got %v", got)
		}
	}
}
