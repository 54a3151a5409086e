package condition

import "fmt"

// Encode converts expr into a tree of maps, slices and scalars suitable for
// structpb or JSON transport. Decode reverses it.
func Encode(expr Expression) (map[string]any, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case Variable:
		return map[string]any{"var": e.Name, "stream": e.StreamID}, nil
	case Constant:
		v, err := normalizeConstant(e.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"const": v, "type": constantType(v)}, nil
	case Add:
		return encodeBinary("add", e.Left, e.Right, nil)
	case Subtract:
		return encodeBinary("subtract", e.Left, e.Right, nil)
	case And:
		return encodeBinary("and", e.Left, e.Right, nil)
	case Or:
		return encodeBinary("or", e.Left, e.Right, nil)
	case Compare:
		return encodeBinary("compare", e.Left, e.Right, map[string]any{"cmp": string(e.Op)})
	case Not:
		inner, err := Encode(e.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"op": "not", "expr": inner}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidExpression, expr)
}

func encodeBinary(op string, left, right Expression, extra map[string]any) (map[string]any, error) {
	l, err := Encode(left)
	if err != nil {
		return nil, err
	}
	r, err := Encode(right)
	if err != nil {
		return nil, err
	}
	m := map[string]any{"op": op, "left": l, "right": r}
	for k, v := range extra {
		m[k] = v
	}
	return m, nil
}

func constantType(v any) string {
	switch v.(type) {
	case int64:
		return "long"
	case float64:
		return "double"
	case string:
		return "string"
	case bool:
		return "bool"
	}
	return "null"
}

// Decode rebuilds an Expression produced by Encode. Numbers may arrive as
// float64 (structpb, JSON); the encoded constant type restores int64.
func Decode(m map[string]any) (Expression, error) {
	if m == nil {
		return nil, nil
	}

	if name, ok := m["var"].(string); ok {
		stream, _ := m["stream"].(string)
		return Variable{StreamID: stream, Name: name}, nil
	}

	if kind, ok := m["type"].(string); ok {
		return decodeConstant(kind, m["const"])
	}

	op, _ := m["op"].(string)
	switch op {
	case "not":
		inner, err := decodeChild(m, "expr")
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	case "add", "subtract", "and", "or", "compare":
		left, err := decodeChild(m, "left")
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(m, "right")
		if err != nil {
			return nil, err
		}
		switch op {
		case "add":
			return Add{Left: left, Right: right}, nil
		case "subtract":
			return Subtract{Left: left, Right: right}, nil
		case "and":
			return And{Left: left, Right: right}, nil
		case "or":
			return Or{Left: left, Right: right}, nil
		}
		cmp, _ := m["cmp"].(string)
		if !validOperator(Operator(cmp)) {
			return nil, fmt.Errorf("%w: operator %q", ErrDecode, cmp)
		}
		return Compare{Left: left, Op: Operator(cmp), Right: right}, nil
	}
	return nil, fmt.Errorf("%w: unknown node %v", ErrDecode, m)
}

func decodeChild(m map[string]any, key string) (Expression, error) {
	child, ok := m[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrDecode, key)
	}
	return Decode(child)
}

func decodeConstant(kind string, v any) (Expression, error) {
	switch kind {
	case "long":
		switch n := v.(type) {
		case int64:
			return Constant{Value: n}, nil
		case float64:
			return Constant{Value: int64(n)}, nil
		}
	case "double":
		if f, ok := toFloat(normalize(v)); ok {
			return Constant{Value: f}, nil
		}
	case "string":
		if s, ok := v.(string); ok {
			return Constant{Value: s}, nil
		}
	case "bool":
		if b, ok := v.(bool); ok {
			return Constant{Value: b}, nil
		}
	case "null":
		return Constant{}, nil
	}
	return nil, fmt.Errorf("%w: constant %v of type %s", ErrDecode, v, kind)
}
