// Package remote exposes a store.Store over Connect RPC so that a cache can
// mirror a table held by another process. Messages use protobuf well-known
// types (structpb, wrapperspb, emptypb); conditions travel as encoded
// expression trees and are recompiled by the serving side.
package remote

import (
	"fmt"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"google.golang.org/protobuf/types/known/structpb"
)

// Procedure paths served by NewHandler.
const (
	ServicePath    = "/tablecache.store.v1.StoreService/"
	QueryProcedure = ServicePath + "Query"
	CountProcedure = ServicePath + "Count"
)

func encodeDefinition(def record.Definition) map[string]any {
	attrs := make([]any, len(def.Attributes))
	for i, a := range def.Attributes {
		attrs[i] = map[string]any{"name": a.Name, "type": string(a.Type)}
	}
	return map[string]any{"id": def.ID, "attributes": attrs}
}

func decodeDefinition(m map[string]any) (record.Definition, error) {
	id, _ := m["id"].(string)
	list, ok := m["attributes"].([]any)
	if !ok && m["attributes"] != nil {
		return record.Definition{}, fmt.Errorf("attributes: unexpected %T", m["attributes"])
	}

	def := record.Definition{ID: id, Attributes: make([]record.Attribute, 0, len(list))}
	for _, item := range list {
		a, ok := item.(map[string]any)
		if !ok {
			return record.Definition{}, fmt.Errorf("attribute: unexpected %T", item)
		}
		name, _ := a["name"].(string)
		typ, _ := a["type"].(string)
		def.Attributes = append(def.Attributes, record.Attribute{Name: name, Type: record.Type(typ)})
	}
	return def, nil
}

func encodeQuery(probe record.Record, cond *condition.Condition, names []string) (*structpb.Struct, error) {
	expr, err := condition.Encode(cond.Expression())
	if err != nil {
		return nil, err
	}

	var encodedExpr any
	if expr != nil {
		encodedExpr = expr
	}

	attrs := make([]any, len(names))
	for i, n := range names {
		attrs[i] = n
	}

	return structpb.NewStruct(map[string]any{
		"probe": map[string]any{
			"definition": encodeDefinition(cond.Scope().Probe),
			"values":     append([]any{}, probe.Values...),
		},
		"condition":  encodedExpr,
		"attributes": attrs,
	})
}

func encodeRecords(records []record.Record) (*structpb.ListValue, error) {
	items := make([]any, len(records))
	for i, r := range records {
		items[i] = map[string]any{
			"id":     r.ID,
			"values": append([]any{}, r.Values...),
		}
	}
	return structpb.NewList(items)
}

func decodeRecords(list *structpb.ListValue, attrs []record.Attribute) ([]record.Record, error) {
	records := make([]record.Record, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("record: unexpected %T", v.GetKind())
		}
		m := s.AsMap()
		id, _ := m["id"].(string)
		values, _ := m["values"].([]any)
		records = append(records, record.Record{ID: id, Values: coerce(values, attrs)})
	}
	return records, nil
}

// coerce restores integer attribute values that structpb carries as doubles.
func coerce(values []any, attrs []record.Attribute) []any {
	for i, v := range values {
		if i >= len(attrs) {
			break
		}
		f, ok := v.(float64)
		if !ok {
			continue
		}
		switch attrs[i].Type {
		case record.TypeInt, record.TypeLong:
			values[i] = int64(f)
		}
	}
	return values
}
