// Package engine composes a store table, its cache mirror, and the cache
// expirer into one runnable unit.
//
// The engine initializes from configuration via New. Functional options
// replace config-created collaborators, which is how tests inject a manual
// clock or a prepared store.
//
//	e, err := engine.New(&cfg)
//	err = e.Run(ctx) // returns the first fatal expirer failure
package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/moeryomenko/synx"
	"github.com/tailored-agentic-units/tablecache/appctx"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/expiry"
	"github.com/tailored-agentic-units/tablecache/observability"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/schedule"
	"github.com/tailored-agentic-units/tablecache/store"
	"github.com/tailored-agentic-units/tablecache/store/remote"
	"github.com/tailored-agentic-units/tablecache/table"
)

// Option configures an Engine. Options are applied by New before the
// subsystems are wired, so an override is seen by everything built after it.
type Option func(*Engine)

// WithStore overrides the config-created store.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.backend = s }
}

// WithClock overrides the system clock.
func WithClock(c appctx.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithHTTPClient sets the HTTP client used by a remote store.
func WithHTTPClient(c connect.HTTPClient) Option {
	return func(e *Engine) { e.httpClient = c }
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	App           string            `json:"app"`
	Table         string            `json:"table"`
	Policy        string            `json:"policy,omitempty"`
	CacheSize     int               `json:"cache_size"`
	MaxCacheSize  int               `json:"max_cache_size"`
	StoreSize     int               `json:"store_size"`
	SizeCheckedAt time.Time         `json:"size_checked_at"`
	LastReload    time.Time         `json:"last_reload"`
	Expiry        expiry.Stats      `json:"expiry"`
	Lookups       store.LookupStats `json:"lookups"`
}

// Engine owns one cached table and the expirer that keeps it coherent.
type Engine struct {
	app        *appctx.Context
	clock      appctx.Clock
	backend    store.Store
	cache      *table.CacheTable
	table      *store.Table
	expirer    *expiry.Expirer
	observer   observability.Observer
	httpClient connect.HTTPClient

	interval     time.Duration
	initialDelay time.Duration
	fatal        chan error
}

// New creates an Engine from configuration.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if err := cfg.Table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid table definition: %w", err)
	}

	e := &Engine{
		interval:     cfg.Cache.TickInterval(),
		initialDelay: cfg.Cache.InitialDelay.Std(),
		fatal:        make(chan error, 1),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.observer == nil {
		observer, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, err
		}
		e.observer = observer
	}
	if e.clock == nil {
		e.clock = appctx.SystemClock{}
	}
	if e.httpClient == nil {
		e.httpClient = http.DefaultClient
	}

	e.app = appctx.New(cfg.App, e.clock)

	if e.backend == nil {
		backend, err := e.newStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		e.backend = backend
	}

	e.cache = table.NewCacheTable(cfg.Table, cfg.Cache.MaxSize, table.WithClock(e.clock))

	st, err := store.NewTable(e.backend, e.cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create store table: %w", err)
	}
	e.table = st

	exp, err := expiry.New(
		cfg.Cache.RetentionPeriod.Std(),
		e.cache,
		map[string]table.Table{cfg.Table.ID: e.table},
		e.table,
		e.app,
		expiry.WithObserver(e.observer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expirer: %w", err)
	}
	e.expirer = exp

	return e, nil
}

func (e *Engine) newStore(cfg *Config) (store.Store, error) {
	if cfg.Store.Type != store.TypeRemote {
		return store.NewStore(&cfg.Store, cfg.Table)
	}
	if cfg.Store.Address == "" {
		return nil, fmt.Errorf("%w: remote store requires an address", store.ErrInvalidConfig)
	}
	return remote.NewClient(cfg.Table, e.httpClient, cfg.Store.Address), nil
}

// App returns the application context.
func (e *Engine) App() *appctx.Context {
	return e.app
}

// Store returns the backing store.
func (e *Engine) Store() store.Store {
	return e.backend
}

// Table returns the store table.
func (e *Engine) Table() *store.Table {
	return e.table
}

// Cache returns the cache mirror.
func (e *Engine) Cache() *table.CacheTable {
	return e.cache
}

// Expirer returns the cache expirer.
func (e *Engine) Expirer() *expiry.Expirer {
	return e.expirer
}

// Compile compiles a lookup condition over the engine's table for probes
// shaped like probeDef.
func (e *Engine) Compile(expr condition.Expression, probeDef record.Definition) (*condition.Condition, error) {
	return condition.Compile(expr, condition.Scope{
		Probe: probeDef,
		Table: e.table.Definition(),
	})
}

// Find looks records up through the cache. Wrap ctx with store.SkipCache to
// read the store directly for this call.
func (e *Engine) Find(ctx context.Context, probe record.Record, cond *condition.Condition) ([]record.Record, error) {
	return e.table.Find(ctx, probe, cond)
}

// Insert adds records to the backing store. The cache picks them up on a
// later reload.
func (e *Engine) Insert(ctx context.Context, records ...record.Record) error {
	w, ok := e.backend.(store.Writer)
	if !ok {
		return ErrReadOnlyStore
	}
	return w.Insert(ctx, records...)
}

// Count asks the backing store for its record count.
func (e *Engine) Count(ctx context.Context) (int, error) {
	c, ok := e.backend.(store.Counter)
	if !ok {
		return 0, ErrNoCounter
	}
	return c.Count(ctx)
}

// Tick runs one expirer tick outside the schedule. A failure is fatal exactly
// as a scheduled one is: a running engine stops, and a later Run returns it.
func (e *Engine) Tick(ctx context.Context) (expiry.Result, error) {
	result, err := e.expirer.Tick(ctx)
	if err != nil {
		e.fail(ctx, err)
	}
	return result, err
}

// Stats returns a snapshot of cache, store, and expirer state.
func (e *Engine) Stats() Stats {
	snap := e.table.Snapshot()
	stats := Stats{
		App:           e.app.Name,
		Table:         e.table.Definition().ID,
		CacheSize:     e.cache.Size(),
		MaxCacheSize:  e.table.MaxCacheSize(),
		StoreSize:     snap.Size,
		SizeCheckedAt: snap.MeasuredAt,
		LastReload:    e.table.CacheLastReloadTime(),
		Expiry:        e.expirer.Stats(),
		Lookups:       e.table.LookupStats(),
	}
	if snap.Known() {
		stats.Policy = expiry.Decide(snap.Size, stats.MaxCacheSize).String()
	}
	return stats
}

// Run schedules the expirer and blocks until ctx is cancelled or a tick
// fails. A tick failure is fatal: Run stops the schedule and returns it.
// Cancellation returns nil. A panic in either run goroutine is returned as
// an error rather than crashing the process.
func (e *Engine) Run(ctx context.Context) error {
	observability.Emit(ctx, e.observer, EventStart, observability.LevelInfo, "engine.Run", map[string]any{
		"app":   e.app.Name,
		"table": e.table.Definition().ID,
	})
	defer observability.Emit(context.WithoutCancel(ctx), e.observer, EventStop, observability.LevelInfo, "engine.Run", nil)

	g := synx.NewErrGroup(ctx)

	g.Go(func(gctx context.Context) error {
		sched, err := schedule.New(
			e.expirer.Runnable(gctx, func(err error) { e.fail(gctx, err) }),
			e.interval,
			e.initialDelay,
			schedule.WithObserver(e.observer),
			schedule.WithName("expiry."+e.table.Definition().ID),
		)
		if err != nil {
			return err
		}
		_ = sched.Run(gctx)
		return nil
	})

	g.Go(func(gctx context.Context) error {
		select {
		case err := <-e.fatal:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	return g.Wait()
}

// fail reports a fatal tick failure. Only the first pending failure is kept.
func (e *Engine) fail(ctx context.Context, err error) {
	observability.Emit(ctx, e.observer, EventFatal, observability.LevelError, "engine", map[string]any{
		"app":   e.app.Name,
		"error": err.Error(),
	})
	select {
	case e.fatal <- err:
	default:
	}
}
