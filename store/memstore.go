package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
)

// MemoryStore is a Store held in process memory. Records keep insertion
// order. Records inserted without an ID are assigned a UUIDv7.
type MemoryStore struct {
	def     record.Definition
	records []record.Record
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore for def.
func NewMemoryStore(def record.Definition) *MemoryStore {
	return &MemoryStore{def: def}
}

// Definition returns the table definition the store was created with.
func (s *MemoryStore) Definition() record.Definition {
	return s.def
}

// Insert appends records. Every record must carry one value per attribute.
func (s *MemoryStore) Insert(_ context.Context, records ...record.Record) error {
	prepared, err := prepare(s.def, records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, prepared...)
	return nil
}

// Delete removes the records matching cond and returns how many were removed.
func (s *MemoryStore) Delete(_ context.Context, probe record.Record, cond *condition.Condition) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]record.Record, 0, len(s.records))
	for _, r := range s.records {
		ok, err := cond.Matches(probe, r)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, r)
		}
	}
	removed := len(s.records) - len(kept)
	s.records = kept
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Query returns copies of the records matching cond against probe, in
// insertion order, projected by sel. A nil sel keeps every attribute.
func (s *MemoryStore) Query(ctx context.Context, probe record.Record, cond *condition.Condition, sel *Selection) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(slices.Values(s.records), probe, cond, sel)
}

func prepare(def record.Definition, records []record.Record) ([]record.Record, error) {
	prepared := make([]record.Record, 0, len(records))
	for _, r := range records {
		if len(r.Values) != len(def.Attributes) {
			return nil, fmt.Errorf("%w: %s has %d attributes, got %d values",
				ErrArity, def.ID, len(def.Attributes), len(r.Values))
		}
		r = r.Clone()
		if r.ID == "" {
			r.ID = uuid.Must(uuid.NewV7()).String()
		}
		r.TimestampAdded = 0
		prepared = append(prepared, r)
	}
	return prepared, nil
}

func filter(records iter.Seq[record.Record], probe record.Record, cond *condition.Condition, sel *Selection) ([]record.Record, error) {
	var out []record.Record
	for r := range records {
		ok, err := cond.Matches(probe, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sel.Apply(r))
		}
	}
	return out, nil
}

// Count implements Counter.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.Len(), nil
}
