package table

import (
	"iter"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/tablecache/appctx"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
)

// CacheTable is a bounded in-memory mirror of a store table. Its size never
// exceeds MaxSize. Every mutation takes the exclusive lock and every read the
// shared lock, so readers never observe a partially applied mutation.
// All methods are safe for concurrent use.
type CacheTable struct {
	def     record.Definition
	maxSize int
	clock   appctx.Clock
	records []record.Record
	mu      sync.RWMutex
}

// Option configures a CacheTable.
type Option func(*CacheTable)

// WithClock overrides the clock used to stamp record.TimestampAdded.
func WithClock(clock appctx.Clock) Option {
	return func(c *CacheTable) { c.clock = clock }
}

// NewCacheTable creates an empty cache table holding at most maxSize records.
// A negative maxSize is treated as zero.
func NewCacheTable(def record.Definition, maxSize int, opts ...Option) *CacheTable {
	c := &CacheTable{
		def:     def,
		maxSize: max(maxSize, 0),
		clock:   appctx.SystemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Definition returns the cached table's definition.
func (c *CacheTable) Definition() record.Definition {
	return c.def
}

// MaxSize returns the record limit.
func (c *CacheTable) MaxSize() int {
	return c.maxSize
}

// Size returns the current record count.
func (c *CacheTable) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// LoadUpTo appends records in source order until the table holds limit
// records (capped at MaxSize) and drops the rest. Loaded records are stamped
// with the cache clock. Returns the number of records appended.
func (c *CacheTable) LoadUpTo(records iter.Seq[record.Record], limit int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadUpTo(records, limit)
}

// Clear removes all records.
func (c *CacheTable) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}

// Reload clears the table and loads records up to MaxSize as one indivisible
// mutation.
func (c *CacheTable) Reload(records iter.Seq[record.Record]) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	return c.loadUpTo(records, c.maxSize)
}

// DeleteWhere removes every record matching cond for the given probe and
// returns how many were removed. If evaluation fails for any record the table
// is left unchanged.
func (c *CacheTable) DeleteWhere(probe record.Record, cond *condition.Condition) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteWhere(probe, cond)
}

// Find returns copies of the records matching cond for the given probe.
func (c *CacheTable) Find(probe record.Record, cond *condition.Condition) ([]record.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []record.Record
	for _, r := range c.records {
		ok, err := cond.Matches(probe, r)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, r.Clone())
		}
	}
	return found, nil
}

// Records returns a copy of the table contents in load order.
func (c *CacheTable) Records() []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]record.Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out
}

// WithWriteLock runs fn while holding the exclusive lock, giving fn a Tx to
// mutate the table. Readers block until fn returns, so any sequence of Tx
// calls is observed as one change.
func (c *CacheTable) WithWriteLock(fn func(tx *Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(&Tx{c: c})
}

func (c *CacheTable) loadUpTo(records iter.Seq[record.Record], limit int) int {
	limit = min(limit, c.maxSize)
	if len(c.records) >= limit || records == nil {
		return 0
	}

	stamp := appctx.Millis(c.clock.Now())
	added := 0
	for r := range records {
		if len(c.records) >= limit {
			break
		}
		r = r.Clone()
		r.TimestampAdded = stamp
		c.records = append(c.records, r)
		added++
	}
	return added
}

func (c *CacheTable) deleteWhere(probe record.Record, cond *condition.Condition) (int, error) {
	matched := make([]bool, len(c.records))
	count := 0
	for i, r := range c.records {
		ok, err := cond.Matches(probe, r)
		if err != nil {
			return 0, err
		}
		if ok {
			matched[i] = true
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}

	i := 0
	c.records = slices.DeleteFunc(c.records, func(record.Record) bool {
		m := matched[i]
		i++
		return m
	})
	return count, nil
}

// Tx mutates a CacheTable whose exclusive lock is already held. A Tx is only
// valid inside the WithWriteLock callback that produced it.
type Tx struct {
	c *CacheTable
}

// Size returns the current record count.
func (tx *Tx) Size() int {
	return len(tx.c.records)
}

// MaxSize returns the record limit.
func (tx *Tx) MaxSize() int {
	return tx.c.maxSize
}

// LoadUpTo behaves like CacheTable.LoadUpTo.
func (tx *Tx) LoadUpTo(records iter.Seq[record.Record], limit int) int {
	return tx.c.loadUpTo(records, limit)
}

// Clear behaves like CacheTable.Clear.
func (tx *Tx) Clear() {
	tx.c.records = nil
}

// Reload behaves like CacheTable.Reload.
func (tx *Tx) Reload(records iter.Seq[record.Record]) int {
	tx.c.records = nil
	return tx.c.loadUpTo(records, tx.c.maxSize)
}

// DeleteWhere behaves like CacheTable.DeleteWhere.
func (tx *Tx) DeleteWhere(probe record.Record, cond *condition.Condition) (int, error) {
	return tx.c.deleteWhere(probe, cond)
}
