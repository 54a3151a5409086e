package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/engine"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
)

// skipCacheParam selects a direct store read for one lookup.
const skipCacheParam = "skip_cache"

// Record is the JSON form of a record.
type Record struct {
	ID             string `json:"id,omitempty"`
	Values         []any  `json:"values"`
	TimestampAdded int64  `json:"timestamp_added,omitempty"`
}

// InsertRequest is the body of POST /v1/records.
type InsertRequest struct {
	Records []Record `json:"records"`
}

func toRecords(records []record.Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{ID: r.ID, Values: r.Values, TimestampAdded: r.TimestampAdded}
	}
	return out
}

// handleFind answers GET /v1/records?<attr>=<value>... with the records
// whose attributes equal every given value. With no filters it matches all.
func (s *Server) handleFind() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def := s.engine.Table().Definition()

		expr, err := equalityFilter(def, r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cond, err := s.engine.Compile(expr, record.Definition{})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		ctx := r.Context()
		if queryBool(r, skipCacheParam) {
			ctx = store.SkipCache(ctx)
		}

		records, err := s.engine.Find(ctx, record.Record{}, cond)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, store.ErrConnectionUnavailable) {
				status = http.StatusBadGateway
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecords(records))
	}
}

func equalityFilter(def record.Definition, params map[string][]string) (condition.Expression, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		if name != skipCacheParam {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var expr condition.Expression
	for _, name := range names {
		idx := def.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", store.ErrUnknownAttribute, name)
		}
		value, err := record.Parse(params[name][0], def.Attributes[idx].Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}

		cmp := condition.Compare{
			Left:  condition.TableVar(def.ID, name),
			Op:    condition.Equal,
			Right: condition.Constant{Value: value},
		}
		if expr == nil {
			expr = cmp
		} else {
			expr = condition.And{Left: expr, Right: cmp}
		}
	}
	return expr, nil
}

// handleInsert adds the posted records to the backing store.
func (s *Server) handleInsert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def := s.engine.Table().Definition()

		dec := json.NewDecoder(r.Body)
		dec.UseNumber()

		var req InsertRequest
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		records := make([]record.Record, len(req.Records))
		for i, in := range req.Records {
			if len(in.Values) != len(def.Attributes) {
				writeError(w, http.StatusBadRequest, fmt.Errorf("%w: record %d has %d values", store.ErrArity, i, len(in.Values)))
				return
			}
			values := make([]any, len(in.Values))
			for j, v := range in.Values {
				converted, err := record.FromJSON(v, def.Attributes[j].Type)
				if err != nil {
					writeError(w, http.StatusBadRequest, fmt.Errorf("record %d attribute %s: %w", i, def.Attributes[j].Name, err))
					return
				}
				values[j] = converted
			}
			records[i] = record.New(in.ID, values...)
		}

		if err := s.engine.Insert(r.Context(), records...); err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, engine.ErrReadOnlyStore):
				status = http.StatusNotImplemented
			case errors.Is(err, store.ErrArity):
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"inserted": len(records)})
	}
}
