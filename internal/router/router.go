// Package router selects a usable backend for each write. Selection is
// round-robin over the pool with a per-call quota re-check; exhausted pools
// surface ErrNoBackend to the caller.
package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ratcrawler/ratcrawler/internal/quota"
	"github.com/ratcrawler/ratcrawler/internal/registry"
)

// ErrNoBackend is returned when every backend in the required pool is over
// quota. Retryable after a quota refresh shows headroom again.
var ErrNoBackend = errors.New("no available backend in pool")

// Session is a write handle bound to one chosen backend. Sessions are cheap:
// the underlying connection pool is owned by the registry.
type Session struct {
	Backend *registry.Backend
}

// DB returns the backend's pooled connection handle.
func (s *Session) DB() *sql.DB { return s.Backend.DB() }

// Router round-robins over the crawl and backlink pools.
type Router struct {
	reg     *registry.Registry
	monitor *quota.Monitor
	logger  *slog.Logger

	crawlCursor    atomic.Uint64
	backlinkCursor atomic.Uint64
}

// New creates a Router over the registry's pools.
func New(reg *registry.Registry, monitor *quota.Monitor, logger *slog.Logger) *Router {
	return &Router{
		reg:     reg,
		monitor: monitor,
		logger:  logger.With("component", "router"),
	}
}

// Choose returns the next usable backend of the given kind. It advances the
// pool's cycle at most len(pool) steps, re-evaluating quota for each
// candidate, and never tests the same backend twice in one call.
func (r *Router) Choose(ctx context.Context, kind registry.Kind) (*registry.Backend, error) {
	pool := r.reg.Pool(kind)
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: empty %s pool", ErrNoBackend, kind)
	}

	cursor := &r.crawlCursor
	if kind == registry.KindBacklink {
		cursor = &r.backlinkCursor
	}

	for i := 0; i < len(pool); i++ {
		idx := (cursor.Add(1) - 1) % uint64(len(pool))
		b := pool[idx]
		if r.monitor.Usable(ctx, b) {
			return b, nil
		}
		r.logger.Debug("backend over quota, trying next", "backend", b.Name, "kind", string(kind))
	}

	return nil, fmt.Errorf("%w: all %d %s backends over quota", ErrNoBackend, len(pool), kind)
}

// Session returns a session bound to the next usable backend of the kind.
func (r *Router) Session(ctx context.Context, kind registry.Kind) (*Session, error) {
	b, err := r.Choose(ctx, kind)
	if err != nil {
		return nil, err
	}
	return &Session{Backend: b}, nil
}

// SessionFor returns a session pinned to a named backend. Rows belonging to a
// crawl session must land in the backend that owns that session, since
// session IDs are per-backend.
func (r *Router) SessionFor(name string, kind registry.Kind) (*Session, error) {
	b, ok := r.reg.Lookup(name, kind)
	if !ok {
		return nil, fmt.Errorf("unknown %s backend %q", kind, name)
	}
	return &Session{Backend: b}, nil
}

// Refresh forces a quota re-read of every backend in the given pool.
func (r *Router) Refresh(ctx context.Context, kind registry.Kind) {
	r.monitor.ForceRefresh(ctx, r.reg.Pool(kind))
}
