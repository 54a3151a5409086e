package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type service struct {
	store store.Store
}

// NewHandler serves s as a StoreService. It returns the path prefix to mount
// the handler on, in the style of generated Connect handlers.
func NewHandler(s store.Store, opts ...connect.HandlerOption) (string, http.Handler) {
	svc := &service{store: s}

	mux := http.NewServeMux()
	mux.Handle(QueryProcedure, connect.NewUnaryHandler(QueryProcedure, svc.query, opts...))
	mux.Handle(CountProcedure, connect.NewUnaryHandler(CountProcedure, svc.count, opts...))
	return ServicePath, mux
}

func (s *service) query(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.ListValue], error) {
	m := req.Msg.AsMap()

	probeMsg, _ := m["probe"].(map[string]any)
	probeDefMsg, _ := probeMsg["definition"].(map[string]any)
	probeDef, err := decodeDefinition(probeDefMsg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("probe definition: %w", err))
	}
	probeValues, _ := probeMsg["values"].([]any)
	probe := record.Record{Values: coerce(probeValues, probeDef.Attributes)}

	var expr condition.Expression
	if encoded, ok := m["condition"].(map[string]any); ok {
		if expr, err = condition.Decode(encoded); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	def := s.store.Definition()
	cond, err := condition.Compile(expr, condition.Scope{Probe: probeDef, Table: def})
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var names []string
	if attrs, ok := m["attributes"].([]any); ok {
		for _, a := range attrs {
			if name, ok := a.(string); ok {
				names = append(names, name)
			}
		}
	}
	sel, err := store.CompileSelection(def, names...)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	records, err := s.store.Query(ctx, probe, cond, sel)
	if err != nil {
		return nil, toConnect(err)
	}

	list, err := encodeRecords(records)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode records: %w", err))
	}
	return connect.NewResponse(list), nil
}

func (s *service) count(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.Int64Value], error) {
	counter, ok := s.store.(store.Counter)
	if !ok {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("store does not support count"))
	}
	n, err := counter.Count(ctx)
	if err != nil {
		return nil, toConnect(err)
	}
	return connect.NewResponse(wrapperspb.Int64(int64(n))), nil
}

func toConnect(err error) error {
	switch {
	case errors.Is(err, store.ErrConnectionUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
