package quota

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLimits() config.RouterConfig {
	return config.RouterConfig{
		StorageLimitBytes: 5 << 30,
		DailyWriteLimit:   10_000_000,
		MonthlyWriteLimit: 10_000_000,
	}
}

// usageServer serves the provider usage endpoint for a fixed set of readings
// keyed by database name.
func usageServer(t *testing.T, readings map[string]Usage) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/organizations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		for name, u := range readings {
			if r.URL.Path == "/v1/organizations/acme/databases/"+name+"/usage" {
				fmt.Fprintf(w,
					`{"database":{"total":{"storage_bytes":%d,"rows_written":%d,"rows_read":%d}}}`,
					u.StorageBytes, u.RowsWritten, u.RowsRead)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func backend(name string) *registry.Backend {
	return &registry.Backend{
		Name:         name,
		Organization: "acme",
		APIKey:       "key",
		Kind:         registry.KindCrawl,
	}
}

func TestRefreshReadsEnvelope(t *testing.T) {
	srv := usageServer(t, map[string]Usage{
		"db-a": {StorageBytes: 123, RowsWritten: 456, RowsRead: 789},
	})
	m := New(srv.URL, testLimits(), testLogger())

	r, err := m.Refresh(context.Background(), backend("db-a"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Usage.StorageBytes != 123 || r.Usage.RowsWritten != 456 || r.Usage.RowsRead != 789 {
		t.Errorf("unexpected usage: %+v", r.Usage)
	}
	if r.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", r.Status)
	}
}

func TestTopLevelTotalEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":{"storage_bytes":42,"rows_written":7,"rows_read":1}}`)
	}))
	defer srv.Close()

	m := New(srv.URL, testLimits(), testLogger())
	r, err := m.Refresh(context.Background(), backend("db-a"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Usage.StorageBytes != 42 {
		t.Errorf("top-level total not read: %+v", r.Usage)
	}
}

func TestClassifyBands(t *testing.T) {
	m := New("http://unused", testLimits(), testLogger())
	b := backend("db-a")
	b.StorageQuotaBytes = 1000
	b.MonthlyWriteLimit = 1000

	cases := []struct {
		usage Usage
		want  Status
	}{
		{Usage{StorageBytes: 100, RowsWritten: 100}, StatusHealthy},
		{Usage{StorageBytes: 750, RowsWritten: 0}, StatusWarning},
		{Usage{StorageBytes: 0, RowsWritten: 900}, StatusCritical},
		{Usage{RowsRead: hardRowsRead}, StatusUnusable},
		{Usage{StorageBytes: hardStorageBytes}, StatusUnusable},
	}
	for _, tc := range cases {
		if got := m.classify(b, tc.usage); got != tc.want {
			t.Errorf("classify(%+v) = %s, want %s", tc.usage, got, tc.want)
		}
	}
}

func TestUsable(t *testing.T) {
	srv := usageServer(t, map[string]Usage{
		"healthy":     {StorageBytes: 1 << 20, RowsWritten: 100},
		"full":        {StorageBytes: 6 << 30, RowsWritten: 100},
		"writes":      {StorageBytes: 1 << 20, RowsWritten: 10_000_001},
		"nearwrites":  {StorageBytes: 1 << 20, RowsWritten: 9_500_000},
		"nearstorage": {StorageBytes: 9 << 29, RowsWritten: 100}, // 4.5 GiB = 90% of 5 GiB
		"belowband":   {StorageBytes: 1 << 20, RowsWritten: 8_900_000},
		"hardcap":     {RowsRead: hardRowsRead},
	})
	m := New(srv.URL, testLimits(), testLogger())
	ctx := context.Background()

	if !m.Usable(ctx, backend("healthy")) {
		t.Error("healthy backend should be usable")
	}
	if m.Usable(ctx, backend("full")) {
		t.Error("backend over storage limit should not be usable")
	}
	if m.Usable(ctx, backend("writes")) {
		t.Error("backend over daily write limit should not be usable")
	}
	if m.Usable(ctx, backend("nearwrites")) {
		t.Error("backend at 95% of the write limit should not be usable")
	}
	if m.Usable(ctx, backend("nearstorage")) {
		t.Error("backend at 90% of the storage limit should not be usable")
	}
	if !m.Usable(ctx, backend("belowband")) {
		t.Error("backend at 89% of the write limit should still be usable")
	}
	if m.Usable(ctx, backend("hardcap")) {
		t.Error("backend at provider hard cap should not be usable")
	}
	// Unknown backend: usage endpoint 404s, fetch fails, must be skipped.
	if m.Usable(ctx, backend("missing")) {
		t.Error("backend with failing usage endpoint should not be usable")
	}
}

func TestPerBackendQuotaTightensLimit(t *testing.T) {
	srv := usageServer(t, map[string]Usage{
		"small": {StorageBytes: 2 << 30, RowsWritten: 0},
	})
	m := New(srv.URL, testLimits(), testLogger())

	b := backend("small")
	b.StorageQuotaBytes = 1 << 30 // tighter than the router default
	if m.Usable(context.Background(), b) {
		t.Error("backend over its own quota should not be usable")
	}
}

func TestGetRefetchesStaleReading(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"database":{"total":{"storage_bytes":1,"rows_written":1,"rows_read":1}}}`)
	}))
	defer srv.Close()

	m := New(srv.URL, testLimits(), testLogger())
	b := backend("db-a")
	ctx := context.Background()

	if _, err := m.Get(ctx, b); err != nil {
		t.Fatal(err)
	}

	m.mu.Lock()
	r := m.cache[b.Name]
	r.FetchedAt = time.Now().Add(-2 * cacheTTL)
	m.cache[b.Name] = r
	m.mu.Unlock()

	if _, err := m.Get(ctx, b); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("stale reading should be re-fetched, got %d upstream calls", calls)
	}
}

func TestGetUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"database":{"total":{"storage_bytes":1,"rows_written":1,"rows_read":1}}}`)
	}))
	defer srv.Close()

	m := New(srv.URL, testLimits(), testLogger())
	b := backend("db-a")
	ctx := context.Background()

	if _, err := m.Get(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, b); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}

	if _, err := m.Refresh(ctx, b); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("Refresh should bypass the cache, got %d calls", calls)
	}
}
