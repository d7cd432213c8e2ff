package script

import (
	"fmt"
	"math"

	"storyweave/internal/state"
)

// Reader is the read side of a state store.
type Reader interface {
	Get(k state.Key) float64
}

// Eval evaluates e against r. Evaluation is pure and total on trees built by
// this package: it never fails and never writes to r.
func Eval(e Expr, r Reader) Value {
	switch n := e.(type) {
	case Constant:
		return n.Value
	case StateRef:
		return Number(n.Coefficient * r.Get(n.Key))
	case Comparator:
		return Bool(compare(n.Op, Eval(n.Left, r).Float(), Eval(n.Right, r).Float()))
	case And:
		for _, op := range n.Operands {
			if !Eval(op, r).Truth() {
				return Bool(false)
			}
		}
		return Bool(true)
	case Or:
		for _, op := range n.Operands {
			if Eval(op, r).Truth() {
				return Bool(true)
			}
		}
		return Bool(false)
	case Addition:
		sum := 0.0
		for _, op := range n.Operands {
			sum += Eval(op, r).Float()
		}
		return Number(sum)
	case Multiplication:
		product := 1.0
		for _, op := range n.Operands {
			product *= Eval(op, r).Float()
		}
		return Number(product)
	case AbsoluteValue:
		return Number(math.Abs(Eval(n.Operand, r).Float()))
	case Nudge:
		return Number(state.Clamp(Eval(n.Current, r).Float() + Eval(n.Delta, r).Float()))
	default:
		panic(fmt.Sprintf("script: unhandled expression %T", e))
	}
}

// EvalBool evaluates a gate.
func EvalBool(e Expr, r Reader) bool {
	return Eval(e, r).Truth()
}

// EvalNumber evaluates a numeric script.
func EvalNumber(e Expr, r Reader) float64 {
	return Eval(e, r).Float()
}

func compare(op CompareOp, a, b float64) bool {
	switch op {
	case GTE:
		return a >= b
	case LTE:
		return a <= b
	case GT:
		return a > b
	case LT:
		return a < b
	case EQ:
		return a == b
	case NEQ:
		return a != b
	default:
		return false
	}
}
