package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ratcrawler/ratcrawler/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDSN(t *testing.T) {
	cases := []struct {
		desc config.BackendDescriptor
		want string
	}{
		{
			config.BackendDescriptor{URL: "libsql://db.example.io", AuthToken: "tok"},
			"libsql://db.example.io?authToken=tok",
		},
		{
			config.BackendDescriptor{URL: "libsql://db.example.io?foo=1", AuthToken: "tok"},
			"libsql://db.example.io?foo=1&authToken=tok",
		},
		{
			config.BackendDescriptor{URL: "libsql://db.example.io?authToken=already"},
			"libsql://db.example.io?authToken=already",
		},
		{
			config.BackendDescriptor{URL: "libsql://db.example.io"},
			"libsql://db.example.io",
		},
		{
			config.BackendDescriptor{URL: "libsql://db.example.io", AuthToken: "a b"},
			"libsql://db.example.io?authToken=a+b",
		},
	}
	for _, tc := range cases {
		if got := dsn(tc.desc); got != tc.want {
			t.Errorf("dsn(%+v) = %q, want %q", tc.desc, got, tc.want)
		}
	}
}

func TestNewFromBackendsPartitions(t *testing.T) {
	r := NewFromBackends([]*Backend{
		{Name: "c1", Kind: KindCrawl},
		{Name: "b1", Kind: KindBacklink},
		{Name: "c2", Kind: KindCrawl},
	}, testLogger())

	if len(r.Pool(KindCrawl)) != 2 {
		t.Errorf("crawl pool = %d, want 2", len(r.Pool(KindCrawl)))
	}
	if len(r.Pool(KindBacklink)) != 1 {
		t.Errorf("backlink pool = %d, want 1", len(r.Pool(KindBacklink)))
	}
	if len(r.All()) != 3 {
		t.Errorf("all = %d, want 3", len(r.All()))
	}
}

func TestLookup(t *testing.T) {
	r := NewFromBackends([]*Backend{
		{Name: "c1", Kind: KindCrawl},
		{Name: "b1", Kind: KindBacklink},
	}, testLogger())

	if b, ok := r.Lookup("c1", KindCrawl); !ok || b.Name != "c1" {
		t.Error("c1 not found in crawl pool")
	}
	if _, ok := r.Lookup("c1", KindBacklink); ok {
		t.Error("c1 must not be found in the backlink pool")
	}
	if _, ok := r.Lookup("missing", KindCrawl); ok {
		t.Error("unknown name must not be found")
	}
}
