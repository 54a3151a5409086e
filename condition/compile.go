package condition

import (
	"fmt"

	"github.com/tailored-agentic-units/tablecache/record"
)

// Scope is the namespace an expression is compiled in. Probe describes the
// event driving the match, Table the table whose records are candidates, and
// Tables every other table visible to the surrounding query.
type Scope struct {
	Probe  record.Definition
	Table  record.Definition
	Tables map[string]record.Definition
}

type evalFunc func(probe, rec record.Record) (any, error)

// Condition is a compiled, immutable predicate.
type Condition struct {
	expr  Expression
	scope Scope
	eval  evalFunc
}

// MatchAll returns a Condition that matches every record.
func MatchAll() *Condition {
	return &Condition{}
}

// Compile resolves every variable in expr against scope and returns the
// executable predicate. A nil expr compiles to MatchAll.
func Compile(expr Expression, scope Scope) (*Condition, error) {
	if expr == nil {
		return MatchAll(), nil
	}
	if !boolean(expr, scope) {
		return nil, fmt.Errorf("%w: %T", ErrNotBoolean, expr)
	}
	eval, err := compile(expr, scope)
	if err != nil {
		return nil, err
	}
	return &Condition{expr: expr, scope: scope, eval: eval}, nil
}

// Expression returns the source expression, nil for MatchAll.
func (c *Condition) Expression() Expression {
	if c == nil {
		return nil
	}
	return c.expr
}

// Scope returns the namespace the condition was compiled in.
func (c *Condition) Scope() Scope {
	if c == nil {
		return Scope{}
	}
	return c.scope
}

// Matches evaluates the condition for one probe/record pair.
func (c *Condition) Matches(probe, rec record.Record) (bool, error) {
	if c == nil || c.eval == nil {
		return true, nil
	}
	v, err := c.eval(probe, rec)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrNotBoolean, v)
	}
	return b, nil
}

func compile(expr Expression, s Scope) (evalFunc, error) {
	switch e := expr.(type) {
	case Variable:
		return resolve(e, s)
	case Constant:
		v, err := normalizeConstant(e.Value)
		if err != nil {
			return nil, err
		}
		return func(record.Record, record.Record) (any, error) { return v, nil }, nil
	case Add:
		return compileArith(e.Left, e.Right, s, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	case Subtract:
		return compileArith(e.Left, e.Right, s, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case Compare:
		if !validOperator(e.Op) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, e.Op)
		}
		left, right, err := compilePair(e.Left, e.Right, s)
		if err != nil {
			return nil, err
		}
		op := e.Op
		return func(p, r record.Record) (any, error) {
			l, err := left(p, r)
			if err != nil {
				return nil, err
			}
			rv, err := right(p, r)
			if err != nil {
				return nil, err
			}
			return compare(l, op, rv)
		}, nil
	case And:
		left, right, err := compilePair(e.Left, e.Right, s)
		if err != nil {
			return nil, err
		}
		return func(p, r record.Record) (any, error) {
			l, err := asBool(left(p, r))
			if err != nil || !l {
				return false, err
			}
			return asBool(right(p, r))
		}, nil
	case Or:
		left, right, err := compilePair(e.Left, e.Right, s)
		if err != nil {
			return nil, err
		}
		return func(p, r record.Record) (any, error) {
			l, err := asBool(left(p, r))
			if err != nil || l {
				return l, err
			}
			return asBool(right(p, r))
		}, nil
	case Not:
		inner, err := compile(e.Expr, s)
		if err != nil {
			return nil, err
		}
		return func(p, r record.Record) (any, error) {
			v, err := asBool(inner(p, r))
			return !v, err
		}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil operand", ErrInvalidExpression)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidExpression, expr)
	}
}

func compilePair(left, right Expression, s Scope) (evalFunc, evalFunc, error) {
	l, err := compile(left, s)
	if err != nil {
		return nil, nil, err
	}
	r, err := compile(right, s)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func compileArith(left, right Expression, s Scope, ints func(a, b int64) int64, floats func(a, b float64) float64) (evalFunc, error) {
	l, r, err := compilePair(left, right, s)
	if err != nil {
		return nil, err
	}
	return func(p, rec record.Record) (any, error) {
		lv, err := l(p, rec)
		if err != nil {
			return nil, err
		}
		rv, err := r(p, rec)
		if err != nil {
			return nil, err
		}
		return arith(lv, rv, ints, floats)
	}, nil
}

func resolve(v Variable, s Scope) (evalFunc, error) {
	switch {
	case v.StreamID != "" && v.StreamID == s.Table.ID:
		return tableLookup(v, s.Table)
	case v.StreamID != "" && v.StreamID == s.Probe.ID:
		return probeLookup(v, s.Probe)
	case v.StreamID == "":
		inProbe := s.Probe.Index(v.Name) >= 0
		inTable := v.Name == record.TimestampAdded || s.Table.Index(v.Name) >= 0
		switch {
		case inProbe && inTable:
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousVariable, v.Name)
		case inProbe:
			return probeLookup(v, s.Probe)
		case inTable:
			return tableLookup(v, s.Table)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, v.Name)
	}

	if _, ok := s.Tables[v.StreamID]; ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrCrossTable, v.StreamID, v.Name)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStream, v.StreamID)
}

func probeLookup(v Variable, def record.Definition) (evalFunc, error) {
	idx := def.Index(v.Name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, def.ID, v.Name)
	}
	return func(p, _ record.Record) (any, error) {
		return normalize(p.Value(idx)), nil
	}, nil
}

func tableLookup(v Variable, def record.Definition) (evalFunc, error) {
	if v.Name == record.TimestampAdded {
		return func(_, r record.Record) (any, error) {
			return r.TimestampAdded, nil
		}, nil
	}
	idx := def.Index(v.Name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, def.ID, v.Name)
	}
	return func(_, r record.Record) (any, error) {
		return normalize(r.Value(idx)), nil
	}, nil
}

// boolean reports whether expr can produce a boolean. Variables count only
// when their attribute is declared TypeBool.
func boolean(expr Expression, s Scope) bool {
	switch e := expr.(type) {
	case Compare, And, Or, Not:
		return true
	case Constant:
		_, ok := e.Value.(bool)
		return ok
	case Variable:
		for _, def := range []record.Definition{s.Probe, s.Table} {
			if e.StreamID != "" && e.StreamID != def.ID {
				continue
			}
			if idx := def.Index(e.Name); idx >= 0 {
				return def.Attributes[idx].Type == record.TypeBool
			}
		}
	}
	return false
}

func asBool(v any, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrNotBoolean, v)
	}
	return b, nil
}
