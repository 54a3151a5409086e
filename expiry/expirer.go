// Package expiry keeps a cache table coherent with its store table.
//
// On every tick the Expirer decides between two policies. When the store
// fits in the cache it mirrors the store completely, reloading at most once
// per retention period. When it does not fit, it prunes cached records older
// than the retention period and issues no store query. The store size used
// for that decision is trusted only while it is younger than ten retention
// periods; otherwise the tick re-measures it with a direct store query first.
//
// Each tick runs as one critical section under the cache table's write lock,
// including any store query it makes, so readers never observe a partially
// applied refresh. A stalled store query therefore also stalls readers
// waiting on that lock; no timeout is applied at this layer beyond the
// caller's context.
//
// The Expirer owns no goroutines. Call Tick, or hand Runnable to a scheduler.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/tablecache/appctx"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/observability"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
	"github.com/tailored-agentic-units/tablecache/table"
)

// staleFactor is how many retention periods a size snapshot stays trusted.
const staleFactor = 10

// Result describes what one tick did.
type Result struct {
	TickID    string    `json:"tick_id"`
	Now       time.Time `json:"now"`
	Policy    Policy    `json:"policy"`
	Action    Action    `json:"action"`
	Probed    bool      `json:"probed"`
	StoreSize int       `json:"store_size"`
	Loaded    int       `json:"loaded"`
	Pruned    int       `json:"pruned"`
}

// Option configures an Expirer.
type Option func(*Expirer)

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(e *Expirer) { e.observer = o }
}

// WithQueryName sets the query name reported in RuntimeError.
func WithQueryName(name string) Option {
	return func(e *Expirer) { e.query = name }
}

// Expirer reconciles a CacheTable with its store Table.
type Expirer struct {
	retention time.Duration
	cache     *table.CacheTable
	store     *store.Table
	app       *appctx.Context
	condition *condition.Condition
	observer  observability.Observer
	query     string
	stats     counters
}

// New creates an Expirer and compiles its expiry condition. tables is the
// query namespace the condition is compiled in; it may be nil.
func New(retention time.Duration, cache *table.CacheTable, tables map[string]table.Table, st *store.Table, app *appctx.Context, opts ...Option) (*Expirer, error) {
	switch {
	case retention <= 0:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRetention, retention)
	case cache == nil:
		return nil, ErrNilCache
	case st == nil:
		return nil, ErrNilStore
	case app == nil:
		return nil, ErrNilContext
	}

	cond, err := CompileExpiryCondition(cache, tables, retention)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expiry condition: %w", err)
	}

	e := &Expirer{
		retention: retention,
		cache:     cache,
		store:     st,
		app:       app,
		condition: cond,
		observer:  observability.NewSlogObserver(slog.Default()),
		query:     "expiryDeleteQuery",
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Retention returns the retention period.
func (e *Expirer) Retention() time.Duration {
	return e.retention
}

// Condition returns the compiled expiry condition reused by every prune.
func (e *Expirer) Condition() *condition.Condition {
	return e.condition
}

// Stats returns the expirer counters.
func (e *Expirer) Stats() Stats {
	return e.stats.snapshot()
}

// Runnable adapts Tick to a zero-argument unit for an external scheduler.
// Tick failures are passed to onError when it is non-nil; they are always
// emitted as EventError.
func (e *Expirer) Runnable(ctx context.Context, onError func(error)) func() {
	return func() {
		if _, err := e.Tick(ctx); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Tick runs one reconciliation. Any failure, including a panic, is returned
// as a *RuntimeError.
func (e *Expirer) Tick(ctx context.Context) (result Result, err error) {
	result.TickID = uuid.Must(uuid.NewV7()).String()
	e.stats.ticks.Inc()

	e.emit(ctx, EventTickStart, observability.LevelVerbose, map[string]any{
		"tick_id": result.TickID,
		"table":   e.store.Definition().ID,
	})

	defer func() {
		if r := recover(); r != nil {
			err = e.fail(KindUnexpected, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		if err != nil {
			e.stats.failures.Inc()
			var rerr *RuntimeError
			kind := KindUnexpected
			if errors.As(err, &rerr) {
				kind = rerr.Kind
			}
			e.emit(ctx, EventError, observability.LevelError, map[string]any{
				"tick_id": result.TickID,
				"kind":    kind.String(),
				"error":   err.Error(),
			})
			return
		}
		e.emit(ctx, EventTickComplete, observability.LevelVerbose, map[string]any{
			"tick_id":    result.TickID,
			"policy":     result.Policy.String(),
			"action":     string(result.Action),
			"store_size": result.StoreSize,
			"cache_size": e.cache.Size(),
		})
	}()

	err = e.cache.WithWriteLock(func(tx *table.Tx) error {
		return e.reconcile(ctx, tx, &result)
	})
	return result, err
}

func (e *Expirer) reconcile(ctx context.Context, tx *table.Tx, result *Result) error {
	now := e.app.Now()
	result.Now = now

	var loaded []record.Record
	probed := false

	snap := e.store.Snapshot()
	if !snap.Trusted(now, e.retention*staleFactor) {
		records, err := e.queryStore(ctx)
		if err != nil {
			return err
		}
		snap = store.Snapshot{Size: len(records), MeasuredAt: now}
		e.store.SetSnapshot(snap)
		loaded, probed = records, true

		e.stats.probes.Inc()
		e.emit(ctx, EventProbe, observability.LevelVerbose, map[string]any{
			"tick_id":    result.TickID,
			"store_size": snap.Size,
		})
	}

	result.Probed = probed
	result.StoreSize = snap.Size
	result.Policy = Decide(snap.Size, e.store.MaxCacheSize())

	if result.Policy == TTLExpiry {
		pruned, err := tx.DeleteWhere(probeAt(now), e.condition)
		if err != nil {
			return e.fail(KindUnexpected, fmt.Errorf("prune: %w", err))
		}
		result.Action = ActionPrune
		result.Pruned = pruned

		e.stats.prunes.Inc()
		e.stats.pruned.Add(int64(pruned))
		e.emit(ctx, EventPrune, observability.LevelVerbose, map[string]any{
			"tick_id": result.TickID,
			"pruned":  pruned,
			"remain":  tx.Size(),
		})
		return nil
	}

	if !e.reloadDue(now) {
		result.Action = ActionSkip
		e.stats.skips.Inc()
		e.emit(ctx, EventSkip, observability.LevelVerbose, map[string]any{
			"tick_id":     result.TickID,
			"last_reload": e.store.CacheLastReloadTime(),
		})
		return nil
	}

	if !probed {
		records, err := e.queryStore(ctx)
		if err != nil {
			return err
		}
		loaded = records
	}

	tx.Clear()
	result.Loaded = tx.LoadUpTo(slices.Values(loaded), e.store.MaxCacheSize())
	result.Action = ActionReload
	e.store.SetCacheLastReloadTime(now)

	e.stats.reloads.Inc()
	e.emit(ctx, EventReload, observability.LevelInfo, map[string]any{
		"tick_id": result.TickID,
		"loaded":  result.Loaded,
		"dropped": len(loaded) - result.Loaded,
	})
	return nil
}

// reloadDue reports whether a full reload is allowed at now: never reloaded,
// or at least one retention period since the last reload.
func (e *Expirer) reloadDue(now time.Time) bool {
	last := e.store.CacheLastReloadTime()
	return last.IsZero() || now.Sub(last) >= e.retention
}

// queryStore reads the whole store, bypassing the cache for this call only.
func (e *Expirer) queryStore(ctx context.Context) ([]record.Record, error) {
	records, err := e.store.Query(
		store.SkipCache(ctx),
		record.Record{},
		e.store.CachingCondition(),
		e.store.CachingSelection(),
	)
	if err != nil {
		if errors.Is(err, store.ErrConnectionUnavailable) {
			return nil, e.fail(KindConnectivity, err)
		}
		return nil, e.fail(KindUnexpected, err)
	}
	return records, nil
}

func (e *Expirer) fail(kind Kind, err error) error {
	return &RuntimeError{
		App:   e.app.Name,
		Query: e.query,
		Kind:  kind,
		Err:   err,
	}
}

func (e *Expirer) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, e.observer, typ, level, "expiry.Tick", data)
}
