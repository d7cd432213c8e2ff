package script

import (
	"errors"
	"fmt"
)

var ErrTypeMismatch = errors.New("type mismatch")

// Check returns the static kind of e, or an error wrapping ErrTypeMismatch
// that names the first ill-typed node.
func Check(e Expr) (Kind, error) {
	return checkAt(e, "")
}

// Expect checks e and requires it to have kind want.
func Expect(e Expr, want Kind) error {
	got, err := Check(e)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, want, got)
	}
	return nil
}

func checkAt(e Expr, path string) (Kind, error) {
	switch n := e.(type) {
	case Constant:
		return n.Value.Kind(), nil
	case StateRef:
		return KindNumber, nil
	case Comparator:
		if err := expectAt(n.Left, KindNumber, join(path, "comparator.left")); err != nil {
			return 0, err
		}
		if err := expectAt(n.Right, KindNumber, join(path, "comparator.right")); err != nil {
			return 0, err
		}
		return KindBool, nil
	case And:
		return KindBool, operandsOf(n.Operands, KindBool, join(path, "and"))
	case Or:
		return KindBool, operandsOf(n.Operands, KindBool, join(path, "or"))
	case Addition:
		return KindNumber, operandsOf(n.Operands, KindNumber, join(path, "addition"))
	case Multiplication:
		return KindNumber, operandsOf(n.Operands, KindNumber, join(path, "multiplication"))
	case AbsoluteValue:
		return KindNumber, expectAt(n.Operand, KindNumber, join(path, "absolute"))
	case Nudge:
		if err := expectAt(n.Current, KindNumber, join(path, "nudge.current")); err != nil {
			return 0, err
		}
		return KindNumber, expectAt(n.Delta, KindNumber, join(path, "nudge.delta"))
	case nil:
		return 0, fmt.Errorf("%s: %w: missing expression", orRoot(path), ErrTypeMismatch)
	default:
		return 0, fmt.Errorf("%s: %w: unhandled expression %T", orRoot(path), ErrTypeMismatch, e)
	}
}

func operandsOf(ops []Expr, want Kind, path string) error {
	for i, op := range ops {
		if err := expectAt(op, want, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func expectAt(e Expr, want Kind, path string) error {
	got, err := checkAt(e, path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%s: %w: expected %s, got %s", path, ErrTypeMismatch, want, got)
	}
	return nil
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}

func orRoot(path string) string {
	if path == "" {
		return "script"
	}
	return path
}
