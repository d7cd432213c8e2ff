package script

import "storyweave/internal/state"

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case Comparator:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case And:
		walkAll(n.Operands, fn)
	case Or:
		walkAll(n.Operands, fn)
	case Addition:
		walkAll(n.Operands, fn)
	case Multiplication:
		walkAll(n.Operands, fn)
	case AbsoluteValue:
		Walk(n.Operand, fn)
	case Nudge:
		Walk(n.Current, fn)
		Walk(n.Delta, fn)
	}
}

func walkAll(ops []Expr, fn func(Expr) bool) {
	for _, op := range ops {
		Walk(op, fn)
	}
}

// Refs returns the distinct state keys e reads, in order of first appearance.
func Refs(e Expr) []state.Key {
	var keys []state.Key
	seen := make(map[state.Key]bool)
	Walk(e, func(n Expr) bool {
		if ref, ok := n.(StateRef); ok && !seen[ref.Key] {
			seen[ref.Key] = true
			keys = append(keys, ref.Key)
		}
		return true
	})
	return keys
}

// IsConstant reports whether e reads no state.
func IsConstant(e Expr) bool {
	return len(Refs(e)) == 0
}

// Term is a threshold condition "Key Op Threshold" that must hold for a gate
// to pass.
type Term struct {
	Key       state.Key
	Op        CompareOp
	Threshold float64
}

// GateTerms extracts the threshold conditions a boolean gate requires. Only
// comparators reachable from the root through And nodes are considered, and
// only those comparing a single state reference against a constant.
func GateTerms(e Expr) []Term {
	var terms []Term
	var visit func(Expr)
	visit = func(n Expr) {
		switch v := n.(type) {
		case And:
			for _, op := range v.Operands {
				visit(op)
			}
		case Comparator:
			if t, ok := termOf(v); ok {
				terms = append(terms, t)
			}
		}
	}
	visit(e)
	return terms
}

func termOf(c Comparator) (Term, bool) {
	op := c.Op
	ref, refOK := c.Left.(StateRef)
	k, constOK := c.Right.(Constant)
	if !refOK || !constOK {
		ref, refOK = c.Right.(StateRef)
		k, constOK = c.Left.(Constant)
		op = op.Flip()
	}
	if !refOK || !constOK || k.Value.Kind() != KindNumber || ref.Coefficient == 0 {
		return Term{}, false
	}
	if ref.Coefficient < 0 {
		op = op.Flip()
	}
	return Term{Key: ref.Key, Op: op, Threshold: k.Value.Float() / ref.Coefficient}, true
}
