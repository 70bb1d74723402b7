// Package discover runs the backlink discovery pass: a breadth-first
// expansion from the seed set that records every link pointing back at a
// seed domain as a backlink.
package discover

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/fetcher"
	"github.com/ratcrawler/ratcrawler/internal/parser"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// Result is the outcome of one discovery run.
type Result struct {
	Backlinks []types.Backlink
	Visited   int
	Failed    int
	MaxDepth  int
}

// Discoverer walks outward from the seeds, depth by depth, emitting a
// backlink record whenever a fetched page links to a target-domain URL.
type Discoverer struct {
	fetcher       *fetcher.Fetcher
	cfg           *config.DiscoveryConfig
	maxConcurrent int
	logger        *slog.Logger
}

// New creates a Discoverer. maxConcurrent bounds in-flight fetches per depth.
func New(f *fetcher.Fetcher, cfg *config.DiscoveryConfig, maxConcurrent int, logger *slog.Logger) *Discoverer {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Discoverer{
		fetcher:       f,
		cfg:           cfg,
		maxConcurrent: maxConcurrent,
		logger:        logger.With("component", "discover"),
	}
}

// Run performs the BFS. seeds define the target-domain set; known is an
// optional set of source URLs from previously stored backlinks, enqueued at
// the lowest priority. Depths are strictly sequential and gated by a random
// delay so the expansion stays polite.
func (d *Discoverer) Run(ctx context.Context, seeds, known []string) (*Result, error) {
	targets := targetHosts(seeds)
	if len(targets) == 0 {
		return &Result{}, nil
	}

	visited := make(map[string]struct{})
	fr := newFrontier()
	for _, s := range seeds {
		if norm, err := types.NormalizeURL(s); err == nil {
			fr.add(norm, PrioritySeed, 0)
		}
	}
	for _, k := range known {
		if norm, err := types.NormalizeURL(k); err == nil {
			fr.add(norm, PriorityKnown, 0)
		}
	}

	res := &Result{}
	for depth := 0; depth <= d.cfg.MaxDepth; depth++ {
		batch := d.drainDepth(fr, depth, visited)
		if len(batch) == 0 {
			break
		}
		res.MaxDepth = depth
		d.logger.Info("discovery depth starting", "depth", depth, "urls", len(batch))

		links, failed := d.crawlDepth(ctx, batch, targets, res)
		res.Failed += failed
		if err := ctx.Err(); err != nil {
			return res, types.ErrCrawlStopped
		}

		if depth < d.cfg.MaxDepth {
			for _, l := range links {
				fr.add(l.url, l.priority, depth+1)
			}
			if fr.Len() > 0 {
				if err := d.depthGate(ctx); err != nil {
					return res, types.ErrCrawlStopped
				}
			}
		}
	}

	d.logger.Info("discovery finished",
		"visited", res.Visited,
		"failed", res.Failed,
		"backlinks", len(res.Backlinks),
	)
	return res, nil
}

type nextLink struct {
	url      string
	priority int
}

// drainDepth pops every queued URL belonging to the current depth, skipping
// ones already visited this run.
func (d *Discoverer) drainDepth(fr *frontier, depth int, visited map[string]struct{}) []string {
	var batch []string
	var requeue []*frontierItem
	for {
		item := fr.next()
		if item == nil {
			break
		}
		if item.depth != depth {
			requeue = append(requeue, item)
			continue
		}
		if _, seen := visited[item.url]; seen {
			continue
		}
		visited[item.url] = struct{}{}
		batch = append(batch, item.url)
	}
	for _, item := range requeue {
		fr.add(item.url, item.priority, item.depth)
	}
	return batch
}

// crawlDepth fetches one depth's URLs under the concurrency bound and
// collects both the backlinks found and the next depth's candidate links.
func (d *Discoverer) crawlDepth(ctx context.Context, urls []string, targets map[string]struct{}, res *Result) ([]nextLink, int) {
	sem := semaphore.NewWeighted(int64(d.maxConcurrent))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var next []nextLink
	failed := 0

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			defer sem.Release(1)

			backlinks, links, err := d.crawlOne(ctx, pageURL, targets)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			res.Visited++
			res.Backlinks = append(res.Backlinks, backlinks...)
			next = append(next, links...)
		}(u)
	}
	wg.Wait()
	return next, failed
}

// crawlOne fetches and parses a single page, returning the backlinks it
// contributes and its outbound links for the next depth.
func (d *Discoverer) crawlOne(ctx context.Context, pageURL string, targets map[string]struct{}) ([]types.Backlink, []nextLink, error) {
	result, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		d.logger.Debug("discovery fetch failed", "url", pageURL, "error", err)
		return nil, nil, err
	}
	if ct, _ := parser.ClassifyURL(result.URL); ct != types.ContentHTML {
		return nil, nil, nil
	}

	doc, err := parser.Parse(result.URL, result.Text)
	if err != nil {
		d.logger.Debug("discovery parse failed", "url", pageURL, "error", err)
		return nil, nil, err
	}

	now := time.Now()
	var backlinks []types.Backlink
	var next []nextLink
	for _, link := range doc.Links() {
		if isTargetHost(types.Host(link.URL), targets) {
			backlinks = append(backlinks, types.Backlink{
				SourceURL:  result.URL,
				TargetURL:  link.URL,
				AnchorText: link.AnchorText,
				Context:    link.Context,
				PageTitle:  doc.Title,
				IsNofollow: link.IsNofollow,
				CrawlDate:  now,
			})
		}
		priority := PriorityExternal
		if link.Internal {
			priority = PriorityInternal
		}
		next = append(next, nextLink{url: link.URL, priority: priority})
	}
	return backlinks, next, nil
}

// depthGate sleeps a uniform random delay between depths.
func (d *Discoverer) depthGate(ctx context.Context) error {
	min, max := d.cfg.DepthDelayMin, d.cfg.DepthDelayMax
	if max < min {
		max = min
	}
	delay := min + time.Duration(rand.Float64()*float64(max-min))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// targetHosts collects the normalized hosts of the seed set.
func targetHosts(seeds []string) map[string]struct{} {
	hosts := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		norm, err := types.NormalizeURL(s)
		if err != nil {
			continue
		}
		if h := types.Host(norm); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return hosts
}

// isTargetHost matches a host against the target set, including subdomains.
func isTargetHost(host string, targets map[string]struct{}) bool {
	if host == "" {
		return false
	}
	if _, ok := targets[host]; ok {
		return true
	}
	for t := range targets {
		if strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}
