package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.FetcherConfig {
	return &config.FetcherConfig{
		RequestTimeout:   5 * time.Second,
		SocialTimeout:    5 * time.Second,
		MaxRetries:       2,
		BaseDelay:        10 * time.Millisecond,
		PolitenessDelay:  0,
		MaxRedirects:     5,
		MaxBodySize:      1 << 20,
		RespectRobotsTxt: false,
		RobotsCacheTTL:   time.Hour,
		UserAgents:       []string{"test-agent/1.0"},
	}
}

// --- Fetch ---

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent/1.0" {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	f := New(testConfig(), testLogger())
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 200 {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
	if !strings.Contains(res.Text, "hello") {
		t.Errorf("body not decoded: %q", res.Text)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	if res.ContentHash() == "" {
		t.Error("content hash should not be empty")
	}
}

func TestFetchRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "recovered")
	}))
	defer srv.Close()

	f := New(testConfig(), testLogger())
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig(), testLogger())
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != 404 {
		t.Errorf("status = %d, want 404", fe.StatusCode)
	}
	if fe.ErrorType() != types.ErrorClient {
		t.Errorf("error type = %s, want CLIENT_ERROR", fe.ErrorType())
	}
	if calls.Load() != 1 {
		t.Errorf("4xx should not retry, server saw %d calls", calls.Load())
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(testConfig(), testLogger())
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// max_retries=2 means 1 initial attempt + 2 retries.
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetchRedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srvURL+"/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srvURL+"/c", http.StatusFound)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "final")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	f := New(testConfig(), testLogger())
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL+"/a")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != srv.URL+"/c" {
		t.Errorf("final URL = %q, want %s/c", res.URL, srv.URL)
	}
	want := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	if len(res.RedirectChain) != len(want) {
		t.Fatalf("chain = %v, want %v", res.RedirectChain, want)
	}
	for i := range want {
		if res.RedirectChain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, res.RedirectChain[i], want[i])
		}
	}
}

func TestFetchTooManyRedirects(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srvURL+"/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	cfg := testConfig()
	cfg.MaxRedirects = 2
	f := New(cfg, testLogger())
	defer f.Close()

	if _, err := f.Fetch(context.Background(), srv.URL+"/loop"); err == nil {
		t.Fatal("expected error for redirect loop")
	}
}

func TestFetchRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "public")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig()
	cfg.RespectRobotsTxt = true
	f := New(cfg, testLogger())
	defer f.Close()

	if _, err := f.Fetch(context.Background(), srv.URL+"/public"); err != nil {
		t.Fatalf("allowed path failed: %v", err)
	}

	_, err := f.Fetch(context.Background(), srv.URL+"/private/page")
	if !errors.Is(err, types.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestFetchDecompressesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		io.WriteString(gz, "compressed payload")
		gz.Close()
	}))
	defer srv.Close()

	f := New(testConfig(), testLogger())
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "compressed payload" {
		t.Errorf("body = %q, want decompressed payload", res.Text)
	}
}

func TestFetchRejectsBadScheme(t *testing.T) {
	f := New(testConfig(), testLogger())
	defer f.Close()

	if _, err := f.Fetch(context.Background(), "ftp://example.com/x"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

// --- Retry-After parsing ---

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("5"); d != 5*time.Second {
		t.Errorf("seconds form = %v, want 5s", d)
	}
	if d := parseRetryAfter("600"); d != 2*time.Minute {
		t.Errorf("cap = %v, want 2m", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("empty = %v, want 0", d)
	}
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if d := parseRetryAfter(future); d < 25*time.Second || d > 30*time.Second {
		t.Errorf("date form = %v, want ~30s", d)
	}
}

// --- Agent pool ---

func TestAgentPool(t *testing.T) {
	p := NewAgentPool([]string{"first", "second", "third"})
	if p.Default() != "first" {
		t.Errorf("Default = %q, want first", p.Default())
	}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[p.Random()] = true
	}
	if len(seen) < 2 {
		t.Error("Random should rotate across the pool")
	}

	empty := NewAgentPool(nil)
	if empty.Default() == "" || empty.Random() == "" {
		t.Error("empty pool must still return a usable agent")
	}
}
