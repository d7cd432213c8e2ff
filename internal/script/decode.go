package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"storyweave/internal/state"
)

var (
	ErrUnknownVariant = errors.New("unknown script variant")
	ErrMalformed      = errors.New("malformed script")
)

var comparatorOps = map[string]CompareOp{
	"GTE":                      GTE,
	"LTE":                      LTE,
	"GT":                       GT,
	"LT":                       LT,
	"EQ":                       EQ,
	"NEQ":                      NEQ,
	"Greater Than or Equal To": GTE,
	"Less Than or Equal To":    LTE,
	"Greater Than":             GT,
	"Less Than":                LT,
	"Equal To":                 EQ,
	"Not Equal To":             NEQ,
}

// Parse decodes a script from raw JSON.
func Parse(raw []byte) (Expr, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	return Decode(gjson.ParseBytes(raw), "script")
}

// DecodeOr decodes r, returning def when r is absent or null.
func DecodeOr(r gjson.Result, path string, def Expr) (Expr, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return def, nil
	}
	return Decode(r, path)
}

// Decode converts a JSON script node into an expression tree. path prefixes
// error messages.
func Decode(r gjson.Result, path string) (Expr, error) {
	switch r.Type {
	case gjson.True:
		return True, nil
	case gjson.False:
		return False, nil
	case gjson.Number:
		return Num(r.Float()), nil
	case gjson.JSON:
		if !r.IsObject() {
			return nil, fmt.Errorf("%s: %w: expected object, got array", path, ErrMalformed)
		}
	default:
		return nil, fmt.Errorf("%s: %w: unexpected %s", path, ErrMalformed, r.Type)
	}

	if pt := r.Get("pointer_type"); pt.Exists() {
		return decodePointer(r, pt.String(), path)
	}
	if ot := r.Get("operator_type"); ot.Exists() {
		return decodeOperator(r, ot.String(), path)
	}
	return nil, fmt.Errorf("%s: %w: object has neither pointer_type nor operator_type", path, ErrMalformed)
}

func decodePointer(r gjson.Result, kind, path string) (Expr, error) {
	switch kind {
	case "Bounded Number Constant":
		v := r.Get("value")
		if !v.Exists() {
			v = r.Get("coefficient")
		}
		if v.Exists() && v.Type != gjson.Number {
			return nil, fmt.Errorf("%s: %w: constant value must be a number", path, ErrMalformed)
		}
		return Num(v.Float()), nil
	case "Boolean Constant":
		v := r.Get("value")
		if v.Exists() && v.Type != gjson.True && v.Type != gjson.False {
			return nil, fmt.Errorf("%s: %w: boolean constant value must be true or false", path, ErrMalformed)
		}
		return Constant{Value: Bool(v.Bool())}, nil
	case "Bounded Number Pointer", "Bounded Number Property":
		key, err := DecodeKey(r, path)
		if err != nil {
			return nil, err
		}
		coef := 1.0
		if c := r.Get("coefficient"); c.Exists() {
			if c.Type != gjson.Number {
				return nil, fmt.Errorf("%s: %w: coefficient must be a number", path, ErrMalformed)
			}
			coef = c.Float()
		}
		return StateRef{Key: key, Coefficient: coef}, nil
	default:
		return nil, fmt.Errorf("%s: %w: pointer %q", path, ErrUnknownVariant, kind)
	}
}

// DecodeKey reads the character and keyring fields of a pointer node.
func DecodeKey(r gjson.Result, path string) (state.Key, error) {
	character := r.Get("character")
	if character.Type != gjson.String || character.String() == "" {
		return state.Key{}, fmt.Errorf("%s: %w: pointer needs a character", path, ErrMalformed)
	}
	ring := r.Get("keyring")
	if !ring.IsArray() {
		return state.Key{}, fmt.Errorf("%s: %w: pointer needs a keyring", path, ErrMalformed)
	}
	parts := ring.Array()
	if len(parts) < 1 || len(parts) > 3 {
		return state.Key{}, fmt.Errorf("%s: %w: keyring must have 1 to 3 entries, got %d", path, ErrMalformed, len(parts))
	}
	ids := make([]string, len(parts))
	for i, p := range parts {
		if p.Type != gjson.String || strings.TrimSpace(p.String()) == "" {
			return state.Key{}, fmt.Errorf("%s: %w: keyring entry %d must be a non-empty string", path, ErrMalformed, i)
		}
		ids[i] = p.String()
	}
	key := state.Key{Character: character.String(), Property: ids[0]}
	if len(ids) > 1 {
		key.Perceived = ids[1]
	}
	if len(ids) > 2 {
		key.Target = ids[2]
	}
	return key, nil
}

func decodeOperator(r gjson.Result, kind, path string) (Expr, error) {
	operands, err := decodeOperands(r, path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "And":
		return And{Operands: operands}, nil
	case "Or":
		return Or{Operands: operands}, nil
	case "Addition":
		return Addition{Operands: operands}, nil
	case "Multiplication":
		return Multiplication{Operands: operands}, nil
	case "Absolute Value":
		if len(operands) != 1 {
			return nil, fmt.Errorf("%s: %w: absolute value takes 1 operand, got %d", path, ErrMalformed, len(operands))
		}
		return AbsoluteValue{Operand: operands[0]}, nil
	case "Nudge":
		if len(operands) != 2 {
			return nil, fmt.Errorf("%s: %w: nudge takes 2 operands, got %d", path, ErrMalformed, len(operands))
		}
		return Nudge{Current: operands[0], Delta: operands[1]}, nil
	case "Arithmetic Comparator":
		if len(operands) != 2 {
			return nil, fmt.Errorf("%s: %w: comparator takes 2 operands, got %d", path, ErrMalformed, len(operands))
		}
		sub := r.Get("operator_subtype").String()
		op, ok := comparatorOps[sub]
		if !ok {
			return nil, fmt.Errorf("%s: %w: comparator %q", path, ErrUnknownVariant, sub)
		}
		return Comparator{Op: op, Left: operands[0], Right: operands[1]}, nil
	default:
		return nil, fmt.Errorf("%s: %w: operator %q", path, ErrUnknownVariant, kind)
	}
}

func decodeOperands(r gjson.Result, path string) ([]Expr, error) {
	raw := r.Get("operands")
	if !raw.Exists() || raw.Type == gjson.Null {
		return nil, nil
	}
	if !raw.IsArray() {
		return nil, fmt.Errorf("%s: %w: operands must be an array", path, ErrMalformed)
	}
	items := raw.Array()
	out := make([]Expr, 0, len(items))
	for i, item := range items {
		e, err := Decode(item, fmt.Sprintf("%s.operands[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
