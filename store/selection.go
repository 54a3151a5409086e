package store

import (
	"fmt"

	"github.com/tailored-agentic-units/tablecache/record"
)

// Selection is a compiled projection over a table definition.
type Selection struct {
	attributes []record.Attribute
	indexes    []int
}

// CompileSelection resolves names against def. No names selects every
// attribute in definition order.
func CompileSelection(def record.Definition, names ...string) (*Selection, error) {
	if len(names) == 0 {
		sel := &Selection{
			attributes: make([]record.Attribute, len(def.Attributes)),
			indexes:    make([]int, len(def.Attributes)),
		}
		for i, a := range def.Attributes {
			sel.attributes[i] = a
			sel.indexes[i] = i
		}
		return sel, nil
	}

	sel := &Selection{
		attributes: make([]record.Attribute, 0, len(names)),
		indexes:    make([]int, 0, len(names)),
	}
	for _, name := range names {
		idx := def.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, def.ID, name)
		}
		sel.attributes = append(sel.attributes, def.Attributes[idx])
		sel.indexes = append(sel.indexes, idx)
	}
	return sel, nil
}

// Attributes returns the output attributes in selection order.
func (s *Selection) Attributes() []record.Attribute {
	if s == nil {
		return nil
	}
	return append([]record.Attribute(nil), s.attributes...)
}

// Names returns the output attribute names in selection order.
func (s *Selection) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.attributes))
	for i, a := range s.attributes {
		names[i] = a.Name
	}
	return names
}

// Apply projects r. A nil Selection returns a copy of r.
func (s *Selection) Apply(r record.Record) record.Record {
	if s == nil {
		return r.Clone()
	}
	return r.Project(s.indexes)
}
