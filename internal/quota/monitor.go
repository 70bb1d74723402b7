// Package quota polls the database provider's usage API and classifies each
// backend's health. Quotas are enforced best-effort: readings are cached and
// re-checked lazily, not accounted transactionally.
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/registry"
)

// Provider hard caps. A backend at or past these is unusable regardless of
// its configured quota.
const (
	hardRowsRead     = 9_000_000
	hardStorageBytes = 4_000_000_000
)

// Fractions of the configured limits at which observers are warned. The
// router also stops selecting a backend at the critical fraction, leaving the
// last 10% as headroom for writes already in flight.
const (
	warningFraction  = 0.75
	criticalFraction = 0.90
)

// cacheTTL bounds how stale a routing decision can be. A reading older than
// this is re-fetched on the next Get, so a long run keeps observing quota
// crossings without an explicit refresh.
const cacheTTL = time.Minute

// Status is the health classification of one backend.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnusable Status = "unusable"
)

// Usage is one reading from the provider's usage endpoint. Missing fields
// default to zero.
type Usage struct {
	StorageBytes int64 `json:"storage_bytes"`
	RowsWritten  int64 `json:"rows_written"`
	RowsRead     int64 `json:"rows_read"`
}

// Reading pairs a usage sample with its classification and sample time.
type Reading struct {
	Usage     Usage
	Status    Status
	FetchedAt time.Time
}

// Monitor caches usage readings per backend.
type Monitor struct {
	apiBase string
	limits  config.RouterConfig
	client  *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]Reading
}

// New creates a Monitor. apiBase is the provider REST base, e.g.
// "https://api.turso.tech"; it is parameterized so tests can point it at a
// local server.
func New(apiBase string, limits config.RouterConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		apiBase: apiBase,
		limits:  limits,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "quota"),
		cache:   make(map[string]Reading),
	}
}

// Get returns the cached reading for a backend, fetching a fresh one when
// none exists or the cached sample has aged past the TTL.
func (m *Monitor) Get(ctx context.Context, b *registry.Backend) (Reading, error) {
	m.mu.RLock()
	r, ok := m.cache[b.Name]
	m.mu.RUnlock()
	if ok && time.Since(r.FetchedAt) < cacheTTL {
		return r, nil
	}
	return m.Refresh(ctx, b)
}

// Refresh re-queries the provider for one backend and updates the cache.
func (m *Monitor) Refresh(ctx context.Context, b *registry.Backend) (Reading, error) {
	usage, err := m.fetchUsage(ctx, b)
	if err != nil {
		return Reading{}, err
	}

	r := Reading{
		Usage:     usage,
		Status:    m.classify(b, usage),
		FetchedAt: time.Now(),
	}

	m.mu.Lock()
	m.cache[b.Name] = r
	m.mu.Unlock()

	if r.Status != StatusHealthy {
		m.logger.Warn("backend quota pressure",
			"backend", b.Name,
			"status", string(r.Status),
			"storage_bytes", usage.StorageBytes,
			"rows_written", usage.RowsWritten,
			"rows_read", usage.RowsRead,
		)
	}
	return r, nil
}

// ForceRefresh re-queries every given backend. Backends whose usage endpoint
// fails keep no cache entry and are re-tried on the next Get.
func (m *Monitor) ForceRefresh(ctx context.Context, backends []*registry.Backend) {
	for _, b := range backends {
		if _, err := m.Refresh(ctx, b); err != nil {
			m.logger.Error("usage refresh failed", "backend", b.Name, "error", err)
			m.mu.Lock()
			delete(m.cache, b.Name)
			m.mu.Unlock()
		}
	}
}

// Usable reports whether the router may send writes to this backend.
// Selection stops at the critical fraction of the storage and daily write
// limits rather than at the limits themselves, so a batch already in flight
// cannot push a chosen backend past the real limit.
func (m *Monitor) Usable(ctx context.Context, b *registry.Backend) bool {
	r, err := m.Get(ctx, b)
	if err != nil {
		m.logger.Warn("usage unavailable, skipping backend", "backend", b.Name, "error", err)
		return false
	}
	if r.Status == StatusUnusable {
		return false
	}
	storageLimit := m.limits.StorageLimitBytes
	if b.StorageQuotaBytes > 0 && b.StorageQuotaBytes < storageLimit {
		storageLimit = b.StorageQuotaBytes
	}
	return float64(r.Usage.StorageBytes) < criticalFraction*float64(storageLimit) &&
		float64(r.Usage.RowsWritten) < criticalFraction*float64(m.limits.DailyWriteLimit)
}

// classify applies the hard caps and the warning/critical bands.
func (m *Monitor) classify(b *registry.Backend, u Usage) Status {
	if u.RowsRead >= hardRowsRead || u.StorageBytes >= hardStorageBytes {
		return StatusUnusable
	}

	storageLimit := b.StorageQuotaBytes
	if storageLimit <= 0 {
		storageLimit = m.limits.StorageLimitBytes
	}
	writeLimit := b.MonthlyWriteLimit
	if writeLimit <= 0 {
		writeLimit = m.limits.MonthlyWriteLimit
	}

	storagePct := float64(u.StorageBytes) / float64(storageLimit)
	writePct := float64(u.RowsWritten) / float64(writeLimit)

	switch {
	case storagePct >= criticalFraction || writePct >= criticalFraction:
		return StatusCritical
	case storagePct >= warningFraction || writePct >= warningFraction:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// usageEnvelope mirrors the provider response:
// {"database": {"total": {"storage_bytes": ..., "rows_written": ..., "rows_read": ...}}}
// Some endpoints return the total at the top level, so both shapes are read.
type usageEnvelope struct {
	Database struct {
		Total Usage `json:"total"`
	} `json:"database"`
	Total Usage `json:"total"`
}

func (m *Monitor) fetchUsage(ctx context.Context, b *registry.Backend) (Usage, error) {
	url := fmt.Sprintf("%s/v1/organizations/%s/databases/%s/usage", m.apiBase, b.Organization, b.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Usage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+b.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Usage{}, fmt.Errorf("usage request for %s: %w", b.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Usage{}, fmt.Errorf("usage request for %s: HTTP %d: %s", b.Name, resp.StatusCode, body)
	}

	var env usageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Usage{}, fmt.Errorf("decode usage for %s: %w", b.Name, err)
	}

	u := env.Database.Total
	if u == (Usage{}) {
		u = env.Total
	}
	return u, nil
}
