// Package table provides the bounded in-memory cache table that mirrors a
// subset of a store table.
package table

import (
	"github.com/tailored-agentic-units/tablecache/record"
)

// Table is a named, defined relation that can take part in a query namespace.
type Table interface {
	Definition() record.Definition
}

// Definitions maps each table in tables to its definition, keyed by name.
func Definitions(tables map[string]Table) map[string]record.Definition {
	defs := make(map[string]record.Definition, len(tables))
	for name, t := range tables {
		defs[name] = t.Definition()
	}
	return defs
}
