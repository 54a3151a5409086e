package condition

import "errors"

// Sentinel errors for compilation and evaluation.
var (
	ErrUnknownStream     = errors.New("unknown stream")
	ErrUnknownAttribute  = errors.New("unknown attribute")
	ErrAmbiguousVariable = errors.New("ambiguous variable")
	ErrCrossTable        = errors.New("variable references a table outside the match")
	ErrInvalidOperator   = errors.New("invalid operator")
	ErrInvalidExpression = errors.New("invalid expression")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrNotBoolean        = errors.New("expression is not boolean")
	ErrDecode            = errors.New("decode expression")
)
