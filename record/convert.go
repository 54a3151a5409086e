package record

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FromJSON converts a value decoded with json.Decoder.UseNumber to the Go
// representation of t. Non-numeric values pass through unchanged.
func FromJSON(v any, t Type) (any, error) {
	n, ok := v.(json.Number)
	if !ok {
		return v, nil
	}
	switch t {
	case TypeInt, TypeLong:
		return n.Int64()
	case TypeFloat, TypeDouble:
		return n.Float64()
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}

// Parse converts the text form of a value to the Go representation of t.
func Parse(s string, t Type) (any, error) {
	switch t {
	case TypeString:
		return s, nil
	case TypeInt, TypeLong:
		return strconv.ParseInt(s, 10, 64)
	case TypeFloat, TypeDouble:
		return strconv.ParseFloat(s, 64)
	case TypeBool:
		return strconv.ParseBool(s)
	}
	return nil, fmt.Errorf("%w: cannot parse %s from text", ErrUnsupportedType, t)
}
