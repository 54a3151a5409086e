package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
)

// FileStore is a Store that keeps one JSON file per record under a root
// directory. File names are record IDs; UUIDv7 IDs keep directory order equal
// to insertion order.
type FileStore struct {
	def  record.Definition
	root string
}

type fileRecord struct {
	ID     string `json:"id"`
	Values []any  `json:"values"`
}

// NewFileStore creates a FileStore for def rooted at root. The directory is
// created on first write.
func NewFileStore(def record.Definition, root string) *FileStore {
	return &FileStore{def: def, root: root}
}

func (s *FileStore) Definition() record.Definition {
	return s.def
}

func (s *FileStore) Query(ctx context.Context, probe record.Record, cond *condition.Condition, sel *Selection) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	return filter(slices.Values(records), probe, cond, sel)
}

// Insert persists records, assigning UUIDv7 IDs where missing. Each file is
// written to a temporary name and renamed into place.
func (s *FileStore) Insert(_ context.Context, records ...record.Record) error {
	prepared, err := prepare(s.def, records)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	for _, r := range prepared {
		if r.ID != filepath.Base(r.ID) || strings.HasPrefix(r.ID, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidID, r.ID)
		}
	}

	for _, r := range prepared {
		data, err := json.Marshal(fileRecord{ID: r.ID, Values: r.Values})
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, r.ID, err)
		}
		if err := s.write(r.ID, data); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the records matching cond and returns how many were removed.
func (s *FileStore) Delete(_ context.Context, probe record.Record, cond *condition.Condition) (int, error) {
	records, err := s.load()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, r := range records {
		ok, err := cond.Matches(probe, r)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		if err := os.Remove(s.path(r.ID)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("delete failed: %s: %w", r.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

func (s *FileStore) write(id string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, id, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, id, err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, id, err)
	}
	return nil
}

func (s *FileStore) load() ([]record.Record, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	records := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, name, err)
		}

		r, err := s.decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, name, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *FileStore) decode(data []byte) (record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fr fileRecord
	if err := dec.Decode(&fr); err != nil {
		return record.Record{}, err
	}
	if len(fr.Values) != len(s.def.Attributes) {
		return record.Record{}, fmt.Errorf("%w: got %d values", ErrArity, len(fr.Values))
	}

	values := make([]any, len(fr.Values))
	for i, v := range fr.Values {
		converted, err := record.FromJSON(v, s.def.Attributes[i].Type)
		if err != nil {
			return record.Record{}, fmt.Errorf("attribute %s: %w", s.def.Attributes[i].Name, err)
		}
		values[i] = converted
	}
	return record.Record{ID: fr.ID, Values: values}, nil
}

// Count implements Counter.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	records, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
