// Package registry compiles the configured database descriptors into live
// backend handles, partitioned into the crawl and backlink pools.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/ratcrawler/ratcrawler/internal/config"
)

// Kind selects one of the two backend pools.
type Kind string

const (
	KindCrawl    Kind = "crawl"
	KindBacklink Kind = "backlink"
)

// Backend is one remote SQLite-compatible database in a pool.
type Backend struct {
	Name              string
	URL               string
	Organization      string
	APIKey            string
	MonthlyWriteLimit int64
	StorageQuotaBytes int64
	Kind              Kind

	db *sql.DB
}

// DB returns the pooled connection handle for this backend.
func (b *Backend) DB() *sql.DB { return b.db }

// Registry holds the two immutable backend pools for the lifetime of a run.
type Registry struct {
	crawl    []*Backend
	backlink []*Backend
	logger   *slog.Logger
}

// New opens every configured backend, validates connectivity with a ping, and
// partitions the pool by category. Connections are recycled hourly; the pool
// itself never changes after construction (no hot reload).
func New(descs []config.BackendDescriptor, logger *slog.Logger) (*Registry, error) {
	r := &Registry{logger: logger.With("component", "registry")}

	for _, d := range descs {
		db, err := open(d)
		if err != nil {
			return nil, fmt.Errorf("open backend %q: %w", d.Name, err)
		}

		b := &Backend{
			Name:              d.Name,
			URL:               d.URL,
			Organization:      d.Organization,
			APIKey:            d.APIKey,
			MonthlyWriteLimit: d.MonthlyWriteLimit,
			StorageQuotaBytes: d.StorageQuotaGB << 30,
			db:                db,
		}
		switch d.Cat {
		case config.CatCrawl:
			b.Kind = KindCrawl
			r.crawl = append(r.crawl, b)
		case config.CatBacklink:
			b.Kind = KindBacklink
			r.backlink = append(r.backlink, b)
		}
	}

	if len(r.crawl) == 0 {
		return nil, fmt.Errorf("no crawl backends configured (cat=%d)", config.CatCrawl)
	}
	if len(r.backlink) == 0 {
		return nil, fmt.Errorf("no backlink backends configured (cat=%d)", config.CatBacklink)
	}

	r.logger.Info("backend pools ready",
		"crawl", len(r.crawl),
		"backlink", len(r.backlink),
	)
	return r, nil
}

// NewBackend wraps an already-open handle as a pool member, for use with
// NewFromBackends. The caller keeps ownership of the handle.
func NewBackend(name string, kind Kind, db *sql.DB) *Backend {
	return &Backend{Name: name, Kind: kind, db: db}
}

// NewFromBackends wires already-constructed backends into pools, partitioned
// by their Kind. Callers keep ownership of the underlying handles.
func NewFromBackends(backends []*Backend, logger *slog.Logger) *Registry {
	r := &Registry{logger: logger.With("component", "registry")}
	for _, b := range backends {
		if b.Kind == KindBacklink {
			r.backlink = append(r.backlink, b)
		} else {
			r.crawl = append(r.crawl, b)
		}
	}
	return r
}

// open builds a database/sql handle for one descriptor and pre-pings it.
func open(d config.BackendDescriptor) (*sql.DB, error) {
	db, err := sql.Open("libsql", dsn(d))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// dsn appends the auth token to the backend URL when it is not already a
// query parameter. The URL scheme itself is opaque to us.
func dsn(d config.BackendDescriptor) string {
	if d.AuthToken == "" || strings.Contains(d.URL, "authToken=") {
		return d.URL
	}
	sep := "?"
	if strings.Contains(d.URL, "?") {
		sep = "&"
	}
	return d.URL + sep + "authToken=" + url.QueryEscape(d.AuthToken)
}

// Pool returns the backends of the given kind. The returned slice must not be
// mutated.
func (r *Registry) Pool(kind Kind) []*Backend {
	if kind == KindBacklink {
		return r.backlink
	}
	return r.crawl
}

// All returns every backend across both pools.
func (r *Registry) All() []*Backend {
	out := make([]*Backend, 0, len(r.crawl)+len(r.backlink))
	out = append(out, r.crawl...)
	out = append(out, r.backlink...)
	return out
}

// Lookup finds a backend by name in the given pool.
func (r *Registry) Lookup(name string, kind Kind) (*Backend, bool) {
	for _, b := range r.Pool(kind) {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Close closes every backend handle.
func (r *Registry) Close() error {
	var firstErr error
	for _, b := range r.All() {
		if err := b.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
