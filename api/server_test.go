package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tailored-agentic-units/tablecache/api"
	"github.com/tailored-agentic-units/tablecache/appctx"
	"github.com/tailored-agentic-units/tablecache/condition"
	"github.com/tailored-agentic-units/tablecache/engine"
	"github.com/tailored-agentic-units/tablecache/observability"
	"github.com/tailored-agentic-units/tablecache/record"
	"github.com/tailored-agentic-units/tablecache/store"
	"github.com/tailored-agentic-units/tablecache/store/remote"
)

var stockTable = record.Definition{
	ID: "StockTable",
	Attributes: []record.Attribute{
		{Name: "symbol", Type: record.TypeString},
		{Name: "volume", Type: record.TypeLong},
	},
}

type readOnlyStore struct{}

func (readOnlyStore) Definition() record.Definition { return stockTable }

func (readOnlyStore) Query(context.Context, record.Record, *condition.Condition, *store.Selection) ([]record.Record, error) {
	return nil, store.ErrConnectionUnavailable
}

func newServer(t *testing.T, opts ...engine.Option) (*httptest.Server, *engine.Engine) {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.App = "StockApp"
	cfg.Table = stockTable
	cfg.Cache.MaxSize = 10
	cfg.Cache.RetentionPeriod = engine.Duration(time.Minute)

	opts = append([]engine.Option{
		engine.WithObserver(observability.NoOpObserver{}),
		engine.WithClock(appctx.NewManualClock(time.UnixMilli(1_000_000))),
	}, opts...)

	e, err := engine.New(&cfg, opts...)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}

	srv := httptest.NewServer(api.NewServer(e).Router())
	t.Cleanup(srv.Close)
	return srv, e
}

func seed(t *testing.T, e *engine.Engine, n int) {
	t.Helper()
	records := make([]record.Record, n)
	for i := range records {
		records[i] = record.New(fmt.Sprintf("r%d", i), fmt.Sprintf("S%d", i%2), int64(i))
	}
	if err := e.Insert(context.Background(), records...); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestTickAndStats(t *testing.T) {
	srv, e := newServer(t)
	seed(t, e, 4)

	resp, err := http.Post(srv.URL+"/v1/tick", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/tick error = %v", err)
	}
	result := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /v1/tick status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if result["action"] != "reload" || result["policy"] != "full-mirror" {
		t.Errorf("tick result = %v, want full-mirror reload", result)
	}

	resp, err = http.Get(srv.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats error = %v", err)
	}
	stats := decode[engine.Stats](t, resp)
	if stats.CacheSize != 4 || stats.StoreSize != 4 || stats.Policy != "full-mirror" {
		t.Errorf("stats = %+v, want 4 cached of 4 under full-mirror", stats)
	}

	resp, err = http.Get(srv.URL + "/v1/cache")
	if err != nil {
		t.Fatalf("GET /v1/cache error = %v", err)
	}
	cached := decode[[]api.Record](t, resp)
	if len(cached) != 4 {
		t.Fatalf("GET /v1/cache returned %d records, want 4", len(cached))
	}
	if cached[0].TimestampAdded != 1_000_000 {
		t.Errorf("cached timestamp = %d, want 1000000", cached[0].TimestampAdded)
	}
}

func TestTick_Failure(t *testing.T) {
	srv, _ := newServer(t, engine.WithStore(readOnlyStore{}))

	resp, err := http.Post(srv.URL+"/v1/tick", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/tick error = %v", err)
	}
	body := decode[map[string]string](t, resp)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("POST /v1/tick status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	if !strings.Contains(body["error"], "StockApp") {
		t.Errorf("error = %q, want it to name the app", body["error"])
	}
}

func TestFind(t *testing.T) {
	srv, e := newServer(t)
	seed(t, e, 4)
	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	tests := []struct {
		name   string
		query  string
		status int
		want   int
	}{
		{name: "all", query: "", status: http.StatusOK, want: 4},
		{name: "by symbol", query: "?symbol=S1", status: http.StatusOK, want: 2},
		{name: "by symbol and volume", query: "?symbol=S1&volume=3", status: http.StatusOK, want: 1},
		{name: "skip cache", query: "?symbol=S0&skip_cache=true", status: http.StatusOK, want: 2},
		{name: "unknown attribute", query: "?price=3", status: http.StatusBadRequest},
		{name: "unparseable value", query: "?volume=many", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/v1/records" + tt.query)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			if resp.StatusCode != tt.status {
				resp.Body.Close()
				t.Fatalf("GET status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status != http.StatusOK {
				resp.Body.Close()
				return
			}
			if got := decode[[]api.Record](t, resp); len(got) != tt.want {
				t.Errorf("GET returned %d records, want %d", len(got), tt.want)
			}
		})
	}

	lookups := e.Stats().Lookups
	if lookups.StoreQueries != 2 {
		t.Errorf("StoreQueries = %d, want 2 (initial load and one skip_cache lookup)", lookups.StoreQueries)
	}
}

func TestInsert(t *testing.T) {
	srv, e := newServer(t)

	body := `{"records":[{"id":"a","values":["ACME",100]},{"values":["INIT",7]}]}`
	resp, err := http.Post(srv.URL+"/v1/records", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/records error = %v", err)
	}
	got := decode[map[string]int](t, resp)
	if resp.StatusCode != http.StatusCreated || got["inserted"] != 2 {
		t.Fatalf("POST /v1/records = %d %v, want 201 with 2 inserted", resp.StatusCode, got)
	}

	records, err := e.Find(store.SkipCache(context.Background()), record.Record{}, condition.MatchAll())
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("store holds %d records, want 2", len(records))
	}
	for _, r := range records {
		if _, ok := r.Values[1].(int64); !ok {
			t.Errorf("volume = %T, want int64", r.Values[1])
		}
	}

	resp, err = http.Get(srv.URL + "/v1/store/count")
	if err != nil {
		t.Fatalf("GET /v1/store/count error = %v", err)
	}
	if count := decode[map[string]int](t, resp); count["count"] != 2 {
		t.Errorf("count = %d, want 2", count["count"])
	}
}

func TestInsert_Errors(t *testing.T) {
	tests := []struct {
		name   string
		opts   []engine.Option
		body   string
		status int
	}{
		{name: "malformed body", body: `{"records":`, status: http.StatusBadRequest},
		{name: "wrong arity", body: `{"records":[{"values":["ACME"]}]}`, status: http.StatusBadRequest},
		{name: "fractional long", body: `{"records":[{"values":["ACME",1.5]}]}`, status: http.StatusBadRequest},
		{name: "read-only store", opts: []engine.Option{engine.WithStore(readOnlyStore{})}, body: `{"records":[{"values":["ACME",1]}]}`, status: http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.opts...)

			resp, err := http.Post(srv.URL+"/v1/records", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("POST status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestCount_NotImplemented(t *testing.T) {
	srv, _ := newServer(t, engine.WithStore(readOnlyStore{}))

	resp, err := http.Get(srv.URL + "/v1/store/count")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("GET status = %d, want %d", resp.StatusCode, http.StatusNotImplemented)
	}
}

func TestRemoteStoreService(t *testing.T) {
	srv, e := newServer(t)
	seed(t, e, 3)

	client := remote.NewClient(stockTable, srv.Client(), srv.URL)

	records, err := client.Query(context.Background(), record.Record{}, condition.MatchAll(), nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Query() returned %d records, want 3", len(records))
	}

	n, err := client.Count(context.Background())
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3, nil", n, err)
	}
}
