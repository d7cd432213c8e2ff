package script

import (
	"errors"
	"testing"

	"storyweave/internal/state"
)

var trust = state.Key{Character: "char_ana", Property: "Trust"}

func storeWith(t *testing.T, values map[state.Key]float64) *state.Store {
	t.Helper()
	s := state.New(nil)
	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	return s
}

func TestEvalLogic(t *testing.T) {
	s := state.New(nil)

	if !EvalBool(And{}, s) {
		t.Fatalf("expected empty And to be true")
	}
	if EvalBool(Or{}, s) {
		t.Fatalf("expected empty Or to be false")
	}
	if EvalBool(And{Operands: []Expr{True, False}}, s) {
		t.Fatalf("expected And(true, false) to be false")
	}
	if !EvalBool(Or{Operands: []Expr{False, True}}, s) {
		t.Fatalf("expected Or(false, true) to be true")
	}
}

func TestEvalArithmetic(t *testing.T) {
	s := storeWith(t, map[state.Key]float64{trust: 0.5})

	tests := []struct {
		name string
		expr Expr
		want float64
	}{
		{name: "empty addition", expr: Addition{}, want: 0},
		{name: "empty multiplication", expr: Multiplication{}, want: 1},
		{name: "addition", expr: Addition{Operands: []Expr{Ref(trust), Num(0.25)}}, want: 0.75},
		{name: "multiplication", expr: Multiplication{Operands: []Expr{Ref(trust), Num(-0.5)}}, want: -0.25},
		{name: "absolute", expr: AbsoluteValue{Operand: Num(-0.5)}, want: 0.5},
		{name: "coefficient", expr: StateRef{Key: trust, Coefficient: -2}, want: -1},
		{name: "nudge clamps high", expr: Nudge{Current: Ref(trust), Delta: Num(5)}, want: 1},
		{name: "nudge clamps low", expr: Nudge{Current: Ref(trust), Delta: Num(-5)}, want: -1},
		{name: "nudge", expr: Nudge{Current: Ref(trust), Delta: Num(0.25)}, want: 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvalNumber(tt.expr, s); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvalComparators(t *testing.T) {
	s := storeWith(t, map[state.Key]float64{trust: 0.25})

	tests := []struct {
		op   CompareOp
		rhs  float64
		want bool
	}{
		{op: GTE, rhs: 0.25, want: true},
		{op: GT, rhs: 0.25, want: false},
		{op: LTE, rhs: 0.25, want: true},
		{op: LT, rhs: 0.5, want: true},
		{op: EQ, rhs: 0.25, want: true},
		{op: NEQ, rhs: 0.25, want: false},
	}
	for _, tt := range tests {
		got := EvalBool(Comparator{Op: tt.op, Left: Ref(trust), Right: Num(tt.rhs)}, s)
		if got != tt.want {
			t.Errorf("Trust(0.25) %s %v = %t, want %t", tt.op, tt.rhs, got, tt.want)
		}
	}
}

func TestEvalDoesNotMutate(t *testing.T) {
	s := storeWith(t, map[state.Key]float64{trust: 0.1})
	before := s.Len()
	EvalNumber(Nudge{Current: Ref(trust), Delta: Num(0.5)}, s)
	if s.Len() != before || s.Get(trust) != 0.1 {
		t.Fatalf("expected evaluation to leave the store untouched")
	}
}

func TestCheck(t *testing.T) {
	t.Run("well typed gate", func(t *testing.T) {
		gate := And{Operands: []Expr{
			Comparator{Op: GTE, Left: Ref(trust), Right: Num(0.2)},
			True,
		}}
		if err := Expect(gate, KindBool); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("number in And", func(t *testing.T) {
		err := Expect(And{Operands: []Expr{True, Num(1)}}, KindBool)
		if !errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("expected ErrTypeMismatch, got %v", err)
		}
	})

	t.Run("boolean in comparator", func(t *testing.T) {
		_, err := Check(Comparator{Op: EQ, Left: True, Right: Num(1)})
		if !errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("expected ErrTypeMismatch, got %v", err)
		}
	})

	t.Run("gate used as number", func(t *testing.T) {
		if err := Expect(True, KindNumber); !errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("expected ErrTypeMismatch, got %v", err)
		}
	})
}

func TestGateTerms(t *testing.T) {
	fear := state.Key{Character: "char_ana", Property: "Fear"}
	gate := And{Operands: []Expr{
		Comparator{Op: GTE, Left: Ref(trust), Right: Num(0.2)},
		Comparator{Op: GT, Left: Num(0.5), Right: Ref(fear)},
		Or{Operands: []Expr{Comparator{Op: LT, Left: Ref(fear), Right: Num(0)}}},
		Comparator{Op: LTE, Left: StateRef{Key: trust, Coefficient: -2}, Right: Num(0.5)},
	}}

	terms := GateTerms(gate)
	if len(terms) != 3 {
		t.Fatalf("expected 3 terms, got %d: %v", len(terms), terms)
	}
	if terms[0] != (Term{Key: trust, Op: GTE, Threshold: 0.2}) {
		t.Fatalf("unexpected first term %+v", terms[0])
	}
	if terms[1] != (Term{Key: fear, Op: LT, Threshold: 0.5}) {
		t.Fatalf("unexpected second term %+v", terms[1])
	}
	if terms[2] != (Term{Key: trust, Op: GTE, Threshold: -0.25}) {
		t.Fatalf("unexpected third term %+v", terms[2])
	}

	refs := Refs(gate)
	if len(refs) != 2 || refs[0] != trust || refs[1] != fear {
		t.Fatalf("unexpected refs %v", refs)
	}
}
