package table_test

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/tailored-agentic-units/tablecache/appctx"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/table"
)

var stockTable = record.Definition{
	ID: "StockTable",
	Attributes: []record.Attribute{
		{Name: "symbol", Type: record.TypeString},
		{Name: "volume", Type: record.TypeLong},
	},
}

func stocks(n int) []record.Record {
	records := make([]record.Record, n)
	for i := range records {
		records[i] = record.New(fmt.Sprintf("r%d", i), fmt.Sprintf("S%d", i), int64(i))
	}
	return records
}

func ids(records []record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestCacheTable_LoadUpTo_TruncatesInSourceOrder(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 3)

	added := cache.LoadUpTo(slices.Values(stocks(5)), 10)

	if added != 3 {
		t.Errorf("LoadUpTo() = %d, want 3", added)
	}
	if got, want := ids(cache.Records()), []string{"r0", "r1", "r2"}; !slices.Equal(got, want) {
		t.Errorf("Records() = %v, want %v", got, want)
	}
}

func TestCacheTable_LoadUpTo_Limit(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 10)

	if added := cache.LoadUpTo(slices.Values(stocks(5)), 2); added != 2 {
		t.Errorf("LoadUpTo(limit 2) = %d, want 2", added)
	}
	if added := cache.LoadUpTo(slices.Values(stocks(5)), 2); added != 0 {
		t.Errorf("LoadUpTo() on full limit = %d, want 0", added)
	}
	if added := cache.LoadUpTo(nil, 10); added != 0 {
		t.Errorf("LoadUpTo(nil) = %d, want 0", added)
	}
	if got := cache.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

func TestCacheTable_LoadUpTo_StampsTimestamp(t *testing.T) {
	clock := appctx.NewManualClock(time.UnixMilli(7_000))
	cache := table.NewCacheTable(stockTable, 10, table.WithClock(clock))

	source := stocks(2)
	cache.LoadUpTo(slices.Values(source), 10)

	for _, r := range cache.Records() {
		if r.TimestampAdded != 7_000 {
			t.Errorf("record %s TimestampAdded = %d, want 7000", r.ID, r.TimestampAdded)
		}
	}
	if source[0].TimestampAdded != 0 {
		t.Errorf("source TimestampAdded = %d, want 0 (source must not be mutated)", source[0].TimestampAdded)
	}
}

func TestCacheTable_Clear(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 10)
	cache.LoadUpTo(slices.Values(stocks(4)), 10)

	cache.Clear()

	if got := cache.Size(); got != 0 {
		t.Errorf("Size() after Clear = %d, want 0", got)
	}
}

func TestCacheTable_Reload(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 3)
	cache.LoadUpTo(slices.Values(stocks(2)), 3)

	fresh := []record.Record{record.New("x", "X", int64(1)), record.New("y", "Y", int64(2))}
	if added := cache.Reload(slices.Values(fresh)); added != 2 {
		t.Errorf("Reload() = %d, want 2", added)
	}
	if got, want := ids(cache.Records()), []string{"x", "y"}; !slices.Equal(got, want) {
		t.Errorf("Records() = %v, want %v", got, want)
	}
}

func volumeAtLeast(t *testing.T, n int64) *condition.Condition {
	t.Helper()
	cond, err := condition.Compile(condition.Compare{
		Left:  condition.TableVar("StockTable", "volume"),
		Op:    condition.GreaterThanEqual,
		Right: condition.Long(n),
	}, condition.Scope{Table: stockTable})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return cond
}

func TestCacheTable_DeleteWhere(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 10)
	cache.LoadUpTo(slices.Values(stocks(5)), 10)

	removed, err := cache.DeleteWhere(record.Record{}, volumeAtLeast(t, 3))
	if err != nil {
		t.Fatalf("DeleteWhere() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteWhere() = %d, want 2", removed)
	}
	if got, want := ids(cache.Records()), []string{"r0", "r1", "r2"}; !slices.Equal(got, want) {
		t.Errorf("Records() = %v, want %v", got, want)
	}
}

func TestCacheTable_DeleteWhere_ErrorLeavesTableUnchanged(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 10)
	records := stocks(3)
	records[2].Values[1] = "not a number"
	cache.LoadUpTo(slices.Values(records), 10)

	_, err := cache.DeleteWhere(record.Record{}, volumeAtLeast(t, 0))
	if !errors.Is(err, condition.ErrTypeMismatch) {
		t.Fatalf("DeleteWhere() error = %v, want %v", err, condition.ErrTypeMismatch)
	}
	if got := cache.Size(); got != 3 {
		t.Errorf("Size() = %d, want 3", got)
	}
}

func TestCacheTable_Find(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 10)
	cache.LoadUpTo(slices.Values(stocks(5)), 10)

	found, err := cache.Find(record.Record{}, volumeAtLeast(t, 4))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got, want := ids(found), []string{"r4"}; !slices.Equal(got, want) {
		t.Errorf("Find() = %v, want %v", got, want)
	}

	found[0].Values[0] = "mutated"
	if got := cache.Records()[4].Values[0]; got != "S4" {
		t.Errorf("cached value = %v after mutating Find result, want S4", got)
	}
}

func TestCacheTable_WithWriteLock(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 3)
	cache.LoadUpTo(slices.Values(stocks(3)), 3)

	err := cache.WithWriteLock(func(tx *table.Tx) error {
		if tx.MaxSize() != 3 {
			t.Errorf("tx.MaxSize() = %d, want 3", tx.MaxSize())
		}
		tx.Clear()
		if tx.Size() != 0 {
			t.Errorf("tx.Size() after Clear = %d, want 0", tx.Size())
		}
		tx.LoadUpTo(slices.Values(stocks(1)), 3)
		return nil
	})
	if err != nil {
		t.Fatalf("WithWriteLock() error = %v", err)
	}
	if got := cache.Size(); got != 1 {
		t.Errorf("Size() = %d, want 1", got)
	}

	sentinel := errors.New("boom")
	if err := cache.WithWriteLock(func(*table.Tx) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("WithWriteLock() error = %v, want %v", err, sentinel)
	}
}

// Readers must see either the old contents or the new contents of a
// clear-then-load transaction, never the empty intermediate state.
func TestCacheTable_WithWriteLock_Atomic(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 5)
	cache.LoadUpTo(slices.Values(stocks(5)), 5)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if n := cache.Size(); n != 5 {
				t.Errorf("Size() = %d during reload, want 5", n)
				return
			}
		}
	}()

	for range 200 {
		_ = cache.WithWriteLock(func(tx *table.Tx) error {
			tx.Clear()
			tx.LoadUpTo(slices.Values(stocks(5)), tx.MaxSize())
			return nil
		})
	}
	close(stop)
	wg.Wait()
}

func TestCacheTable_SizeNeverExceedsMax(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("cache size never exceeds max size", prop.ForAll(
		func(maxSize int, batches []int, limit int) bool {
			cache := table.NewCacheTable(stockTable, maxSize)
			for _, n := range batches {
				cache.LoadUpTo(slices.Values(stocks(n)), limit)
				if cache.Size() > maxSize {
					return false
				}
			}
			cache.Reload(slices.Values(stocks(maxSize + 5)))
			return cache.Size() == maxSize
		},
		gen.IntRange(0, 20),
		gen.SliceOf(gen.IntRange(0, 30)),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestDefinitions(t *testing.T) {
	cache := table.NewCacheTable(stockTable, 1)
	defs := table.Definitions(map[string]table.Table{"StockTable": cache})

	if got := defs["StockTable"].ID; got != "StockTable" {
		t.Errorf("Definitions()[StockTable].ID = %q, want StockTable", got)
	}
}
