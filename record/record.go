// Package record defines the row model shared by store tables and cache
// tables: typed attribute definitions and ordered value tuples.
package record

import (
	"fmt"
	"slices"
)

// TimestampAdded is the hidden attribute every cached record carries. It holds
// the cache clock reading, in milliseconds, taken when the record was loaded.
const TimestampAdded = "_timestamp_added"

// Type identifies the value type of an attribute.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeLong   Type = "long"
	TypeFloat  Type = "float"
	TypeDouble Type = "double"
	TypeBool   Type = "bool"
	TypeObject Type = "object"
)

// Attribute is a named, typed column of a table definition.
type Attribute struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Definition describes a table: its identifier and ordered attribute list.
type Definition struct {
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes"`
}

// Index returns the position of the named attribute, or -1 if absent.
func (d Definition) Index(name string) int {
	return slices.IndexFunc(d.Attributes, func(a Attribute) bool {
		return a.Name == name
	})
}

// Validate checks that the definition has an ID and unique, non-empty
// attribute names that do not collide with TimestampAdded.
func (d Definition) Validate() error {
	if d.ID == "" {
		return ErrEmptyTableID
	}
	seen := make(map[string]bool, len(d.Attributes))
	for _, a := range d.Attributes {
		if a.Name == "" {
			return fmt.Errorf("%w: table %s", ErrEmptyAttribute, d.ID)
		}
		if a.Name == TimestampAdded {
			return fmt.Errorf("%w: %s", ErrReservedAttribute, a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateAttribute, d.ID, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Record is one row. Values are ordered to match the owning Definition.
// TimestampAdded is zero for records that have never been cached.
type Record struct {
	ID             string
	Values         []any
	TimestampAdded int64
}

// New creates a record with the given values.
func New(id string, values ...any) Record {
	return Record{ID: id, Values: values}
}

// Value returns the value at position i, or nil when out of range.
func (r Record) Value(i int) any {
	if i < 0 || i >= len(r.Values) {
		return nil
	}
	return r.Values[i]
}

// Clone returns a copy whose Values slice does not alias r's.
func (r Record) Clone() Record {
	r.Values = slices.Clone(r.Values)
	return r
}

// Project returns a copy of r holding only the values at the given positions.
func (r Record) Project(indexes []int) Record {
	values := make([]any, len(indexes))
	for i, idx := range indexes {
		values[i] = r.Value(idx)
	}
	return Record{ID: r.ID, Values: values, TimestampAdded: r.TimestampAdded}
}
