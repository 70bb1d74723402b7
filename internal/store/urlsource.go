package store

import (
	"context"
	"sort"

	"github.com/ratcrawler/ratcrawler/internal/registry"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// URLSource paginates the distinct union of source and target URLs in the
// backlink pool. The ordering is a total order over URL strings, so a page
// number has a stable meaning across restarts as long as the underlying rows
// only grow.
type URLSource struct {
	backends []*registry.Backend
}

// NewURLSource creates a URLSource over the backlink pool.
func NewURLSource(backends []*registry.Backend) *URLSource {
	return &URLSource{backends: backends}
}

// Batch returns page `page` (1-based) of size `limit`. URLs that fail basic
// validation (non-http(s) scheme, empty) are filtered before pagination.
func (u *URLSource) Batch(ctx context.Context, page, limit int) ([]string, error) {
	if page < 1 {
		page = 1
	}
	all, err := u.allURLs(ctx)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * limit
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

// Total returns the number of distinct crawlable URLs in the source.
func (u *URLSource) Total(ctx context.Context) (int, error) {
	all, err := u.allURLs(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// allURLs merges the per-backend unions into one sorted distinct list.
// Backends are sharded, so the same URL may appear in more than one.
func (u *URLSource) allURLs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, b := range u.backends {
		rows, err := b.DB().QueryContext(ctx,
			`SELECT source_url FROM backlinks UNION SELECT target_url FROM backlinks`)
		if err != nil {
			return nil, &types.StoreError{Backend: b.Name, Op: "url source", Err: err}
		}
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				rows.Close()
				return nil, err
			}
			if types.ValidCrawlURL(raw) {
				seen[raw] = struct{}{}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	all := make([]string, 0, len(seen))
	for raw := range seen {
		all = append(all, raw)
	}
	sort.Strings(all)
	return all, nil
}
