// Package script models the typed expression trees that gate, score and
// drive a storyworld, and evaluates them against a state.Store.
package script

import (
	"fmt"

	"storyweave/internal/state"
)

// Kind is the static type of an expression.
type Kind int

const (
	KindBool Kind = iota + 1
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the result of evaluating an expression.
type Value struct {
	kind Kind
	b    bool
	n    float64
}

func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

func (v Value) Kind() Kind { return v.kind }

// Truth returns the boolean reading of v. Numbers are true when non-zero.
func (v Value) Truth() bool {
	if v.kind == KindNumber {
		return v.n != 0
	}
	return v.b
}

// Float returns the numeric reading of v. Booleans read as 1 or 0.
func (v Value) Float() float64 {
	if v.kind == KindBool {
		if v.b {
			return 1
		}
		return 0
	}
	return v.n
}

func (v Value) String() string {
	if v.kind == KindBool {
		return fmt.Sprintf("%t", v.b)
	}
	return fmt.Sprintf("%g", v.n)
}

// Expr is a node of an expression tree. The set of node types is closed.
type Expr interface {
	isExpr()
}

// Constant is a literal boolean or number.
type Constant struct {
	Value Value
}

// StateRef reads Coefficient * store[Key].
type StateRef struct {
	Key         state.Key
	Coefficient float64
}

// CompareOp is an arithmetic comparison operator.
type CompareOp int

const (
	GTE CompareOp = iota + 1
	LTE
	GT
	LT
	EQ
	NEQ
)

func (op CompareOp) String() string {
	switch op {
	case GTE:
		return ">="
	case LTE:
		return "<="
	case GT:
		return ">"
	case LT:
		return "<"
	case EQ:
		return "=="
	case NEQ:
		return "!="
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Flip returns the operator that holds when the operands are swapped.
func (op CompareOp) Flip() CompareOp {
	switch op {
	case GTE:
		return LTE
	case LTE:
		return GTE
	case GT:
		return LT
	case LT:
		return GT
	default:
		return op
	}
}

// Comparator compares two numeric operands.
type Comparator struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// And is true when every operand is true. An empty And is true.
type And struct {
	Operands []Expr
}

// Or is true when any operand is true. An empty Or is false.
type Or struct {
	Operands []Expr
}

// Addition sums its numeric operands.
type Addition struct {
	Operands []Expr
}

// Multiplication multiplies its numeric operands.
type Multiplication struct {
	Operands []Expr
}

// AbsoluteValue is |Operand|.
type AbsoluteValue struct {
	Operand Expr
}

// Nudge is clamp(Current + Delta).
type Nudge struct {
	Current Expr
	Delta   Expr
}

func (Constant) isExpr()       {}
func (StateRef) isExpr()       {}
func (Comparator) isExpr()     {}
func (And) isExpr()            {}
func (Or) isExpr()             {}
func (Addition) isExpr()       {}
func (Multiplication) isExpr() {}
func (AbsoluteValue) isExpr()  {}
func (Nudge) isExpr()          {}

var (
	True  Expr = Constant{Value: Bool(true)}
	False Expr = Constant{Value: Bool(false)}
	Zero  Expr = Constant{Value: Number(0)}
)

// Num is shorthand for a numeric constant.
func Num(n float64) Expr { return Constant{Value: Number(n)} }

// Ref is shorthand for a coefficient-1 state reference.
func Ref(k state.Key) Expr { return StateRef{Key: k, Coefficient: 1} }
