package condition

import (
	"fmt"
	"strings"
)

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return float64(n)
	}
	return v
}

func normalizeConstant(v any) (any, error) {
	n := normalize(v)
	switch n.(type) {
	case int64, float64, string, bool, nil:
		return n, nil
	}
	return nil, fmt.Errorf("%w: unsupported constant %T", ErrInvalidExpression, v)
}

func arith(l, r any, ints func(a, b int64) int64, floats func(a, b float64) float64) (any, error) {
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		return ints(li, ri), nil
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %T and %T are not numeric", ErrTypeMismatch, l, r)
	}
	return floats(lf, rf), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compare(l any, op Operator, r any) (bool, error) {
	if l == nil || r == nil {
		switch op {
		case Equal:
			return l == nil && r == nil, nil
		case NotEqual:
			return (l == nil) != (r == nil), nil
		}
		return false, nil
	}

	if li, ok := l.(int64); ok {
		if ri, ok := r.(int64); ok {
			return ordered(cmpInt(li, ri), op), nil
		}
	}
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return ordered(cmpFloat(lf, rf), op), nil
		}
		return false, fmt.Errorf("%w: cannot compare %T with %T", ErrTypeMismatch, l, r)
	}

	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare string with %T", ErrTypeMismatch, r)
		}
		return ordered(strings.Compare(lv, rv), op), nil
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare bool with %T", ErrTypeMismatch, r)
		}
		switch op {
		case Equal:
			return lv == rv, nil
		case NotEqual:
			return lv != rv, nil
		}
		return false, fmt.Errorf("%w: %s on bool", ErrInvalidOperator, op)
	}
	return false, fmt.Errorf("%w: unsupported operand %T", ErrTypeMismatch, l)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func ordered(c int, op Operator) bool {
	switch op {
	case GreaterThan:
		return c > 0
	case GreaterThanEqual:
		return c >= 0
	case LessThan:
		return c < 0
	case LessThanEqual:
		return c <= 0
	case Equal:
		return c == 0
	case NotEqual:
		return c != 0
	}
	return false
}
