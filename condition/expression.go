// Package condition compiles boolean expressions over table attributes into
// reusable executable predicates. A compiled Condition is immutable and safe
// for concurrent use; compile once and evaluate it on every match.
//
// Expressions are evaluated against a pair of records: the probe (the event
// driving the match, e.g. one carrying the current time) and the candidate
// table record.
//
//	expr := condition.Compare{
//		Left:  condition.Subtract{Left: condition.Var("now"), Right: condition.TableVar("orders", record.TimestampAdded)},
//		Op:    condition.GreaterThan,
//		Right: condition.Long(1000),
//	}
//	cond, err := condition.Compile(expr, scope)
package condition

// Expression is a node of an uncompiled predicate tree.
type Expression interface {
	expression()
}

// Operator is a comparison operator.
type Operator string

const (
	GreaterThan      Operator = ">"
	GreaterThanEqual Operator = ">="
	LessThan         Operator = "<"
	LessThanEqual    Operator = "<="
	Equal            Operator = "=="
	NotEqual         Operator = "!="
)

// Variable references an attribute. StreamID selects the probe or table side;
// an empty StreamID is resolved against the probe first, then the table.
type Variable struct {
	StreamID string
	Name     string
}

// Constant is a literal value: int64, float64, string or bool.
type Constant struct {
	Value any
}

// Add is the numeric sum of two expressions.
type Add struct {
	Left, Right Expression
}

// Subtract is the numeric difference Left - Right.
type Subtract struct {
	Left, Right Expression
}

// Compare applies Op to two expressions.
type Compare struct {
	Left  Expression
	Op    Operator
	Right Expression
}

// And is the logical conjunction of two expressions.
type And struct {
	Left, Right Expression
}

// Or is the logical disjunction of two expressions.
type Or struct {
	Left, Right Expression
}

// Not negates an expression.
type Not struct {
	Expr Expression
}

func (Variable) expression() {}
func (Constant) expression() {}
func (Add) expression()      {}
func (Subtract) expression() {}
func (Compare) expression()  {}
func (And) expression()      {}
func (Or) expression()       {}
func (Not) expression()      {}

// Var is shorthand for an unqualified Variable.
func Var(name string) Variable {
	return Variable{Name: name}
}

// TableVar is shorthand for a Variable qualified with a stream or table ID.
func TableVar(streamID, name string) Variable {
	return Variable{StreamID: streamID, Name: name}
}

// Long is shorthand for an int64 Constant.
func Long(v int64) Constant {
	return Constant{Value: v}
}

func validOperator(op Operator) bool {
	switch op {
	case GreaterThan, GreaterThanEqual, LessThan, LessThanEqual, Equal, NotEqual:
		return true
	}
	return false
}
