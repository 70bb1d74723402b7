package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsFetchTimeout bounds the robots.txt request itself.
const robotsFetchTimeout = 5 * time.Second

// RobotsCache fetches and caches robots.txt per host with a TTL. A missing
// or non-200 robots.txt means "allow all". Read-mostly: lookups take the read
// lock, a miss upgrades to a fetch.
type RobotsCache struct {
	agent  string
	ttl    time.Duration
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	group      *robotstxt.Group // nil means allow all
	crawlDelay time.Duration
	fetchedAt  time.Time
}

// NewRobotsCache creates a RobotsCache checking rules against the given
// user-agent.
func NewRobotsCache(agent string, ttl time.Duration, logger *slog.Logger) *RobotsCache {
	return &RobotsCache{
		agent:  agent,
		ttl:    ttl,
		client: &http.Client{Timeout: robotsFetchTimeout},
		logger: logger.With("component", "robots"),
		cache:  make(map[string]*robotsEntry),
	}
}

// Check reports whether the URL may be fetched and the host's crawl-delay
// (zero when robots.txt sets none).
func (rc *RobotsCache) Check(ctx context.Context, rawURL string) (allowed bool, crawlDelay time.Duration) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, 0
	}

	entry := rc.entryFor(ctx, u.Scheme, u.Host)
	if entry.group == nil {
		return true, entry.crawlDelay
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return entry.group.Test(path), entry.crawlDelay
}

func (rc *RobotsCache) entryFor(ctx context.Context, scheme, host string) *robotsEntry {
	rc.mu.RLock()
	entry, ok := rc.cache[host]
	rc.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < rc.ttl {
		return entry
	}

	entry = rc.fetch(ctx, scheme, host)

	rc.mu.Lock()
	rc.cache[host] = entry
	rc.mu.Unlock()
	return entry
}

// fetch downloads and parses robots.txt for one host.
func (rc *RobotsCache) fetch(ctx context.Context, scheme, host string) *robotsEntry {
	entry := &robotsEntry{fetchedAt: time.Now()}

	robotsURL := scheme + "://" + host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return entry
	}
	req.Header.Set("User-Agent", rc.agent)

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Debug("robots.txt unreachable, allowing all", "host", host, "error", err)
		return entry
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entry
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return entry
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		rc.logger.Debug("robots.txt unparseable, allowing all", "host", host, "error", err)
		return entry
	}

	group := data.FindGroup(rc.agent)
	entry.group = group
	if group != nil {
		entry.crawlDelay = group.CrawlDelay
	}
	return entry
}
