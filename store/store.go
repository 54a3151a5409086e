// Package store connects a table to its external, authoritative storage.
//
// A Store performs I/O on every call and never caches. Table wraps a Store
// together with an optional CacheTable mirror and the bookkeeping the cache
// expirer relies on: the store size snapshot, the last reload time, and the
// pre-compiled caching condition and selection.
package store

import (
	"context"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
)

// Store is the persistent backing table. Implementations return
// ErrConnectionUnavailable (wrapped) when the storage cannot be reached.
type Store interface {
	// Definition returns the stored table's definition.
	Definition() record.Definition
	// Query returns, in storage order, the records matching cond for the given
	// probe, projected through sel. A nil sel returns all attributes.
	Query(ctx context.Context, probe record.Record, cond *condition.Condition, sel *Selection) ([]record.Record, error)
}

type skipCacheKey struct{}

// SkipCache returns a context that instructs Table.Find to bypass the cache
// and query the store directly. The bypass applies only to calls made with
// the returned context.
func SkipCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipCacheKey{}, true)
}

// SkipsCache reports whether ctx carries the cache bypass.
func SkipsCache(ctx context.Context) bool {
	skip, _ := ctx.Value(skipCacheKey{}).(bool)
	return skip
}

// Counter is implemented by stores that can report their record count
// without returning the records.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Writer is implemented by stores that accept new records.
type Writer interface {
	Insert(ctx context.Context, records ...record.Record) error
}
