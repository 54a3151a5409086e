package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/table"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// SizeUnknown marks a size snapshot that has never been measured.
const SizeUnknown = -1

// Snapshot is the cached belief about the store's record count and when it
// was measured.
type Snapshot struct {
	Size       int
	MeasuredAt time.Time
}

// Known reports whether the size has been measured.
func (s Snapshot) Known() bool {
	return s.Size != SizeUnknown
}

// Trusted reports whether the snapshot is known and younger than maxAge at now.
func (s Snapshot) Trusted(now time.Time, maxAge time.Duration) bool {
	return s.Known() && now.Sub(s.MeasuredAt) < maxAge
}

// LookupStats counts how Find calls were served.
type LookupStats struct {
	CacheHits    int64 `json:"cache_hits"`
	StoreQueries int64 `json:"store_queries"`
	Shared       int64 `json:"shared"`
}

// Table is a store-backed table with an optional cache mirror. It is the
// store side of the cache coherence contract: the expirer reads and updates
// its snapshot fields and queries it directly, while engine lookups go
// through Find. All methods are safe for concurrent use.
type Table struct {
	store Store
	cache *table.CacheTable

	cachingCondition *condition.Condition
	cachingSelection *Selection

	lock          sync.Mutex
	size          int
	sizeCheckedAt time.Time
	lastReload    time.Time

	flight       singleflight.Group
	cacheHits    atomic.Int64
	storeQueries atomic.Int64
	shared       atomic.Int64
}

// NewTable wraps s. cache may be nil, in which case every lookup goes to the
// store. When present, the cache must carry the same attributes as the store.
func NewTable(s Store, cache *table.CacheTable) (*Table, error) {
	def := s.Definition()
	if cache != nil && !slices.Equal(cache.Definition().Attributes, def.Attributes) {
		return nil, fmt.Errorf("%w: %s vs %s", ErrDefinitionMismatch, cache.Definition().ID, def.ID)
	}

	sel, err := CompileSelection(def)
	if err != nil {
		return nil, err
	}

	return &Table{
		store:            s,
		cache:            cache,
		cachingCondition: condition.MatchAll(),
		cachingSelection: sel,
		size:             SizeUnknown,
	}, nil
}

// Definition returns the store's table definition.
func (t *Table) Definition() record.Definition {
	return t.store.Definition()
}

// Cache returns the cache mirror, nil when caching is disabled.
func (t *Table) Cache() *table.CacheTable {
	return t.cache
}

// MaxCacheSize returns the cache record limit, zero when caching is disabled.
func (t *Table) MaxCacheSize() int {
	if t.cache == nil {
		return 0
	}
	return t.cache.MaxSize()
}

// CachingCondition is the compiled condition used to read the whole store.
func (t *Table) CachingCondition() *condition.Condition {
	return t.cachingCondition
}

// CachingSelection is the compiled full projection used when caching.
func (t *Table) CachingSelection() *Selection {
	return t.cachingSelection
}

// OutputAttributesForCaching returns the attributes a caching query yields.
func (t *Table) OutputAttributesForCaching() []record.Attribute {
	return t.cachingSelection.Attributes()
}

// Snapshot returns the current store size snapshot.
func (t *Table) Snapshot() Snapshot {
	t.lock.Lock()
	defer t.lock.Unlock()
	return Snapshot{Size: t.size, MeasuredAt: t.sizeCheckedAt}
}

// SetSnapshot records a fresh measurement of the store size.
func (t *Table) SetSnapshot(s Snapshot) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.size = s.Size
	t.sizeCheckedAt = s.MeasuredAt
}

// StoreSize returns the last measured store size, SizeUnknown if never measured.
func (t *Table) StoreSize() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.size
}

// SetStoreSize overwrites the measured store size.
func (t *Table) SetStoreSize(size int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.size = size
}

// SizeLastCheckedTime returns when the store size was last measured.
func (t *Table) SizeLastCheckedTime() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.sizeCheckedAt
}

// SetSizeLastCheckedTime overwrites the measurement time.
func (t *Table) SetSizeLastCheckedTime(at time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.sizeCheckedAt = at
}

// CacheLastReloadTime returns when the cache was last fully reloaded; the
// zero time means never.
func (t *Table) CacheLastReloadTime() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.lastReload
}

// SetCacheLastReloadTime records a full cache reload.
func (t *Table) SetCacheLastReloadTime(at time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.lastReload = at
}

// Query runs directly against the store, never the cache.
func (t *Table) Query(ctx context.Context, probe record.Record, cond *condition.Condition, sel *Selection) ([]record.Record, error) {
	t.storeQueries.Inc()
	return t.store.Query(ctx, probe, cond, sel)
}

// Find is the engine lookup path. It answers from the cache unless caching
// is disabled or ctx was produced by SkipCache, in which case it queries the
// store. Concurrent store lookups with the same condition and probe values
// share one query. The shared query is detached from any one caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (t *Table) Find(ctx context.Context, probe record.Record, cond *condition.Condition) ([]record.Record, error) {
	if t.cache != nil && !SkipsCache(ctx) {
		t.cacheHits.Inc()
		return t.cache.Find(probe, cond)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	ch := t.flight.DoChan(flightKey(cond, probe), func() (any, error) {
		return t.Query(detached, probe, cond, nil)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		t.shared.Inc()
	}

	records := res.Val.([]record.Record)
	out := make([]record.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out, nil
}

// flightKey identifies a store lookup by condition identity and probe values.
// Each value is tagged with its type and length-prefixed, so distinct probes
// never produce the same key.
func flightKey(cond *condition.Condition, probe record.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%p", cond)
	for _, v := range probe.Values {
		text := fmt.Sprint(v)
		fmt.Fprintf(&b, "|%T:%d:%s", v, len(text), text)
	}
	return b.String()
}

// LookupStats returns counters for Find and Query calls.
func (t *Table) LookupStats() LookupStats {
	return LookupStats{
		CacheHits:    t.cacheHits.Load(),
		StoreQueries: t.storeQueries.Load(),
		Shared:       t.shared.Load(),
	}
}
