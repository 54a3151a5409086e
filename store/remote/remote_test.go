package remote_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
	"github.com/tailored-agentic-units/tablecache/store/remote"
)

var stockTable = record.Definition{
	ID: "StockTable",
	Attributes: []record.Attribute{
		{Name: "symbol", Type: record.TypeString},
		{Name: "price", Type: record.TypeDouble},
		{Name: "volume", Type: record.TypeLong},
	},
}

var checkStream = record.Definition{
	ID:         "CheckStream",
	Attributes: []record.Attribute{{Name: "limit", Type: record.TypeLong}},
}

// failingStore reports every query as a connectivity failure.
type failingStore struct{}

func (failingStore) Definition() record.Definition { return stockTable }

func (failingStore) Query(context.Context, record.Record, *condition.Condition, *store.Selection) ([]record.Record, error) {
	return nil, fmt.Errorf("%w: database down", store.ErrConnectionUnavailable)
}

func serve(t *testing.T, s store.Store) *remote.Client {
	t.Helper()
	path, handler := remote.NewHandler(s)
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return remote.NewClient(stockTable, srv.Client(), srv.URL)
}

func seeded(t *testing.T) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore(stockTable)
	for i := range 4 {
		r := record.New(fmt.Sprintf("r%d", i), fmt.Sprintf("S%d", i), float64(i)+0.25, int64(i*10))
		if err := ms.Insert(context.Background(), r); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	return ms
}

func TestClient_Query_All(t *testing.T) {
	client := serve(t, seeded(t))

	got, err := client.Query(context.Background(), record.Record{}, condition.MatchAll(), nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Query() returned %d records, want 4", len(got))
	}

	first := got[0]
	if first.ID != "r0" {
		t.Errorf("ID = %q, want r0", first.ID)
	}
	if v, ok := first.Values[2].(int64); !ok || v != 0 {
		t.Errorf("volume = %v (%T), want int64 0", first.Values[2], first.Values[2])
	}
	if v, ok := first.Values[1].(float64); !ok || v != 0.25 {
		t.Errorf("price = %v (%T), want float64 0.25", first.Values[1], first.Values[1])
	}
}

func TestClient_Query_ProbeConditionAndSelection(t *testing.T) {
	client := serve(t, seeded(t))

	cond, err := condition.Compile(condition.Compare{
		Left:  condition.TableVar("StockTable", "volume"),
		Op:    condition.GreaterThan,
		Right: condition.TableVar("CheckStream", "limit"),
	}, condition.Scope{Probe: checkStream, Table: stockTable})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	sel, err := store.CompileSelection(stockTable, "volume", "symbol")
	if err != nil {
		t.Fatalf("CompileSelection() error = %v", err)
	}

	got, err := client.Query(context.Background(), record.New("", int64(15)), cond, sel)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if want := []string{"r2", "r3"}; !slices.Equal(ids, want) {
		t.Fatalf("Query() = %v, want %v", ids, want)
	}
	if got[0].Values[0] != int64(20) || got[0].Values[1] != "S2" {
		t.Errorf("projected values = %v, want [20 S2]", got[0].Values)
	}
}

func TestClient_Count(t *testing.T) {
	client := serve(t, seeded(t))

	n, err := client.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestClient_Count_Unimplemented(t *testing.T) {
	client := serve(t, failingStore{})

	_, err := client.Count(context.Background())
	if err == nil {
		t.Fatal("Count() error = nil, want unimplemented")
	}
	if errors.Is(err, store.ErrConnectionUnavailable) {
		t.Errorf("Count() error = %v, want a non-connectivity error", err)
	}
}

func TestClient_ServerConnectivityFailure(t *testing.T) {
	client := serve(t, failingStore{})

	_, err := client.Query(context.Background(), record.Record{}, nil, nil)
	if !errors.Is(err, store.ErrConnectionUnavailable) {
		t.Errorf("Query() error = %v, want %v", err, store.ErrConnectionUnavailable)
	}
}

func TestClient_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := remote.NewClient(stockTable, http.DefaultClient, url)

	_, err := client.Query(context.Background(), record.Record{}, nil, nil)
	if !errors.Is(err, store.ErrConnectionUnavailable) {
		t.Errorf("Query() error = %v, want %v", err, store.ErrConnectionUnavailable)
	}
}

func TestHandler_InvalidCondition(t *testing.T) {
	client := serve(t, seeded(t))

	// Compiled against a wider table than the server holds.
	wide := record.Definition{
		ID:         "StockTable",
		Attributes: append(slices.Clone(stockTable.Attributes), record.Attribute{Name: "exchange", Type: record.TypeString}),
	}
	cond, err := condition.Compile(condition.Compare{
		Left:  condition.TableVar("StockTable", "exchange"),
		Op:    condition.Equal,
		Right: condition.Constant{Value: "NYSE"},
	}, condition.Scope{Table: wide})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	_, err = client.Query(context.Background(), record.Record{}, cond, nil)
	if err == nil {
		t.Fatal("Query() error = nil, want invalid argument")
	}
	if errors.Is(err, store.ErrConnectionUnavailable) {
		t.Errorf("Query() error = %v, want a non-connectivity error", err)
	}
}
