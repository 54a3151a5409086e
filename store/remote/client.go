package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a store.Store backed by a remote StoreService. Transport
// failures surface as store.ErrConnectionUnavailable.
type Client struct {
	def   record.Definition
	query *connect.Client[structpb.Struct, structpb.ListValue]
	count *connect.Client[emptypb.Empty, wrapperspb.Int64Value]
}

// NewClient creates a Client for the table def served at baseURL.
func NewClient(def record.Definition, httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		def:   def,
		query: connect.NewClient[structpb.Struct, structpb.ListValue](httpClient, baseURL+QueryProcedure, opts...),
		count: connect.NewClient[emptypb.Empty, wrapperspb.Int64Value](httpClient, baseURL+CountProcedure, opts...),
	}
}

// Definition returns the table definition the client decodes results with.
func (c *Client) Definition() record.Definition {
	return c.def
}

// Query sends the probe, the encoded condition and the selected attribute
// names to the remote store. Transport failures map to
// store.ErrConnectionUnavailable.
func (c *Client) Query(ctx context.Context, probe record.Record, cond *condition.Condition, sel *store.Selection) ([]record.Record, error) {
	if sel == nil {
		var err error
		if sel, err = store.CompileSelection(c.def); err != nil {
			return nil, err
		}
	}

	msg, err := encodeQuery(probe, cond, sel.Names())
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	resp, err := c.query.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, classify(err)
	}

	records, err := decodeRecords(resp.Msg, sel.Attributes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrLoadFailed, err)
	}
	return records, nil
}

// Count implements store.Counter.
func (c *Client) Count(ctx context.Context) (int, error) {
	resp, err := c.count.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return 0, classify(err)
	}
	return int(resp.Msg.GetValue()), nil
}

func classify(err error) error {
	var cerr *connect.Error
	if errors.As(err, &cerr) && cerr.Code() == connect.CodeUnavailable {
		return fmt.Errorf("%w: %v", store.ErrConnectionUnavailable, err)
	}
	return fmt.Errorf("remote store: %w", err)
}
