// Package crawler is the batch coordinator: it pulls URL pages from the
// backlink pool, fans each batch out to a bounded worker pool, and persists
// pages, errors, and progress so an interrupted run resumes cleanly.
package crawler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/fetcher"
	"github.com/ratcrawler/ratcrawler/internal/parser"
	"github.com/ratcrawler/ratcrawler/internal/store"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// Crawler sequences batches. The coordinator itself is single-threaded;
// only the per-URL workers run concurrently.
type Crawler struct {
	cfg     *config.Config
	fetcher *fetcher.Fetcher
	store   *store.PageStore
	logger  *slog.Logger

	session *types.CrawlSession

	mu      sync.Mutex
	visited map[string]struct{} // URLs processed this run
	hashes  map[string]struct{} // content hashes seen on the session backend
}

// New creates a Crawler.
func New(cfg *config.Config, f *fetcher.Fetcher, ps *store.PageStore, logger *slog.Logger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		fetcher: f,
		store:   ps,
		logger:  logger.With("component", "crawler"),
		visited: make(map[string]struct{}),
		hashes:  make(map[string]struct{}),
	}
}

// urlOutcome is the disposition of one URL within a batch.
type urlOutcome int

const (
	outcomeStored urlOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// StartSession creates the session row and seeds the content-hash set from
// the backend that owns it.
func (c *Crawler) StartSession(ctx context.Context, seeds []string, cfgJSON string) error {
	sess, err := c.store.CreateSession(ctx, seeds, cfgJSON)
	if err != nil {
		return err
	}
	c.session = sess

	hashes, err := c.store.ContentHashes(ctx, sess.DBName)
	if err != nil {
		c.logger.Warn("content hash preload failed, dedup starts empty", "error", err)
		hashes = make(map[string]struct{})
	}
	c.mu.Lock()
	c.hashes = hashes
	c.mu.Unlock()
	return nil
}

// FinishSession marks the session terminal.
func (c *Crawler) FinishSession(ctx context.Context, status types.SessionStatus) error {
	if c.session == nil {
		return nil
	}
	return c.store.FinishSession(ctx, c.session.ID, c.session.DBName, status)
}

// Session returns the active session, nil before StartSession.
func (c *Crawler) Session() *types.CrawlSession { return c.session }

// CrawlBatch processes one batch of URLs through the worker pool and returns
// (processed, successful, failed). Skips count as processed but neither
// successful nor failed.
func (c *Crawler) CrawlBatch(ctx context.Context, urls []string) (processed, successful, failed int) {
	workers := c.cfg.Crawler.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}

	work := make(chan string)
	results := make(chan urlOutcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range work {
				results <- c.crawlOne(ctx, u)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, u := range urls {
			select {
			case <-ctx.Done():
				return
			case work <- u:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for outcome := range results {
		processed++
		switch outcome {
		case outcomeStored:
			successful++
		case outcomeFailed:
			failed++
		}
	}
	return processed, successful, failed
}

// crawlOne runs the full per-URL pipeline: dedup, recrawl window, fetch,
// parse, store. Every failure is recorded against the session.
func (c *Crawler) crawlOne(ctx context.Context, rawURL string) urlOutcome {
	norm, err := types.NormalizeURL(rawURL)
	if err != nil {
		c.logger.Debug("skipping invalid URL", "url", rawURL)
		return outcomeSkipped
	}

	c.mu.Lock()
	if _, seen := c.visited[norm]; seen {
		c.mu.Unlock()
		return outcomeSkipped
	}
	c.visited[norm] = struct{}{}
	c.mu.Unlock()

	if c.withinRecrawlWindow(ctx, norm) {
		c.logger.Debug("skipping recently crawled URL", "url", norm)
		return outcomeSkipped
	}

	result, err := c.fetcher.Fetch(ctx, norm)
	if err != nil {
		c.recordFailure(ctx, norm, err)
		return outcomeFailed
	}

	page, err := c.buildPage(result)
	if err != nil {
		if errors.Is(err, types.ErrDropPage) || errors.Is(err, types.ErrDuplicateContent) {
			return outcomeSkipped
		}
		c.recordFailure(ctx, norm, err)
		return outcomeFailed
	}

	if c.isDuplicateHash(page.ContentHash) {
		if err := c.store.TouchCrawlTime(ctx, page.URL, c.session.DBName); err != nil {
			c.logger.Warn("touch crawl time failed", "url", page.URL, "error", err)
		}
		c.logger.Debug("duplicate content, not re-stored", "url", page.URL)
		return outcomeSkipped
	}

	if err := c.store.StorePage(ctx, page, c.session.DBName); err != nil {
		c.logger.Error("store page failed", "url", page.URL, "error", err)
		return outcomeFailed
	}
	c.rememberHash(page.ContentHash)

	c.logger.Info("page crawled",
		"url", page.URL,
		"status", page.HTTPStatus,
		"words", page.WordCount,
		"links", page.InternalLinksCount+page.ExternalLinksCount,
	)
	return outcomeStored
}

// buildPage parses the fetch result into a storable page record. HTML pages
// get the full extraction; other content classes store the transfer metadata
// only.
func (c *Crawler) buildPage(res *fetcher.Result) (*types.CrawledPage, error) {
	contentType, ext := parser.ClassifyURL(res.URL)

	page := &types.CrawledPage{
		SessionID:      c.session.ID,
		URL:            res.URL,
		OriginalURL:    res.OriginalURL,
		RedirectChain:  res.RedirectChain,
		ContentHash:    res.ContentHash(),
		PageSize:       len(res.Body),
		HTTPStatus:     res.StatusCode,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
		Charset:        res.Charset,
		ContentType:    contentType,
		FileExtension:  ext,
		CrawlTime:      time.Now(),
	}
	if contentType != types.ContentHTML {
		return page, nil
	}

	doc, err := parser.Parse(res.URL, res.Text)
	if err != nil {
		return nil, err
	}
	if doc.NoIndex() {
		c.logger.Debug("noindex, page dropped", "url", res.URL)
		return nil, types.ErrDropPage
	}
	if dropped := c.canonicalDrop(doc); dropped {
		return nil, types.ErrDropPage
	}

	page.Title = doc.Title
	page.MetaDescription = doc.MetaDescription
	page.MetaKeywords = doc.MetaKeywords
	page.RobotsMeta = doc.RobotsMeta
	page.CanonicalURL = doc.CanonicalURL
	page.Language = doc.Language
	page.H1Tags = doc.H1Tags
	page.H2Tags = doc.H2Tags
	page.ContentText = doc.ContentText
	page.ContentHTML = res.Text
	page.WordCount = doc.WordCount
	page.InternalLinksCount = len(doc.InternalLinks)
	page.ExternalLinksCount = len(doc.ExternalLinks)
	page.ImagesCount = doc.ImagesCount
	return page, nil
}

// canonicalDrop reports whether a differing canonical URL was already
// processed this run: the duplicate alias is then dropped.
func (c *Crawler) canonicalDrop(doc *parser.Document) bool {
	if doc.CanonicalURL == "" || doc.CanonicalURL == doc.URL {
		return false
	}
	c.mu.Lock()
	_, seen := c.visited[doc.CanonicalURL]
	c.mu.Unlock()
	if seen {
		c.logger.Debug("canonical already visited, page dropped",
			"url", doc.URL, "canonical", doc.CanonicalURL)
	}
	return seen
}

// withinRecrawlWindow checks the session backend for a recent crawl of the
// URL. Lookup errors fail open so a flaky backend never stalls the batch.
func (c *Crawler) withinRecrawlWindow(ctx context.Context, rawURL string) bool {
	if c.cfg.Crawler.RecrawlDays <= 0 {
		return false
	}
	last, err := c.store.LastCrawlTime(ctx, rawURL, c.session.DBName)
	if err != nil || last.IsZero() {
		return false
	}
	window := time.Duration(c.cfg.Crawler.RecrawlDays) * 24 * time.Hour
	return time.Since(last) < window
}

func (c *Crawler) isDuplicateHash(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, dup := c.hashes[hash]
	return dup
}

func (c *Crawler) rememberHash(hash string) {
	c.mu.Lock()
	c.hashes[hash] = struct{}{}
	c.mu.Unlock()
}

// recordFailure classifies the error and writes a crawl_errors row.
func (c *Crawler) recordFailure(ctx context.Context, rawURL string, err error) {
	ce := &types.CrawlError{
		SessionID: c.session.ID,
		URL:       rawURL,
		Type:      classifyError(err),
		Message:   truncate(err.Error(), 500),
		Timestamp: time.Now(),
	}
	var fe *types.FetchError
	if errors.As(err, &fe) {
		ce.StatusCode = fe.StatusCode
	}
	if serr := c.store.LogCrawlError(ctx, ce, c.session.DBName); serr != nil {
		c.logger.Warn("could not record crawl error", "url", rawURL, "error", serr)
	}
	c.logger.Warn("crawl failed", "url", rawURL, "type", string(ce.Type), "error", err)
}

// classifyError maps an error to the crawl_errors taxonomy.
func classifyError(err error) types.ErrorType {
	if errors.Is(err, types.ErrBlocked) {
		return types.ErrorRobotsBlocked
	}
	var pe *types.ParseError
	if errors.As(err, &pe) {
		return types.ErrorParse
	}
	var fe *types.FetchError
	if errors.As(err, &fe) {
		return fe.ErrorType()
	}
	if types.IsTimeout(err) {
		return types.ErrorTimeout
	}
	return types.ErrorHTTP
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
