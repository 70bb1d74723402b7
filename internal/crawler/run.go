package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/progress"
	"github.com/ratcrawler/ratcrawler/internal/store"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// RunOptions are the one-shot CLI overrides for a batch run. Zero values mean
// "use the progress file / configuration".
type RunOptions struct {
	StartPage int
	MaxPages  int
	BatchSize int
	Reset     bool
}

// RunSummary is what a finished (or interrupted) run reports.
type RunSummary struct {
	SessionID     int64
	DBName        string
	TotalURLs     int
	Processed     int
	Successful    int
	Failed        int
	Batches       int
	Duration      time.Duration
	StoredPages   int64
	StoredErrors  int64
	Interrupted   bool
}

// Runner drives the resumable batch loop: one batch at a time, progress
// flushed at every batch boundary, the next batch only after the previous one
// committed.
type Runner struct {
	cfg      *config.Config
	crawler  *Crawler
	source   *store.URLSource
	progress *progress.Store
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, c *Crawler, src *store.URLSource, prog *progress.Store, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		crawler:  c,
		source:   src,
		progress: prog,
		logger:   logger.With("component", "runner"),
	}
}

// Run executes the batch loop until the URL source is exhausted, the page
// budget is spent, or the context is cancelled. A cancelled run lets the
// in-flight batch finish, flushes progress, closes the session, and returns
// types.ErrCrawlStopped.
func (r *Runner) Run(ctx context.Context, seeds []string, opts RunOptions) (*RunSummary, error) {
	if opts.Reset {
		if err := r.progress.Reset(); err != nil {
			return nil, err
		}
	}
	state, err := r.progress.Load()
	if err != nil {
		return nil, err
	}

	batchSize := state.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
		state.BatchSize = batchSize
	}
	if batchSize <= 0 {
		batchSize = r.cfg.Crawler.BatchSize
		state.BatchSize = batchSize
	}
	page := state.CurrentPage
	if opts.StartPage > 0 {
		page = opts.StartPage
		state.CurrentPage = page
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = r.cfg.Crawler.MaxPages
	}

	total, err := r.source.Total(ctx)
	if err != nil {
		return nil, err
	}
	state.TotalURLs = total

	cfgJSON, _ := json.Marshal(r.cfg.Crawler)
	if err := r.crawler.StartSession(ctx, seeds, string(cfgJSON)); err != nil {
		return nil, err
	}
	sess := r.crawler.Session()
	state.SessionID = sess.ID
	state.DBName = sess.DBName
	if err := r.progress.MarkStart(&state); err != nil {
		return nil, err
	}

	r.logger.Info("batch crawl starting",
		"session_id", sess.ID,
		"db", sess.DBName,
		"start_page", page,
		"batch_size", batchSize,
		"total_urls", total,
	)

	summary := &RunSummary{SessionID: sess.ID, DBName: sess.DBName, TotalURLs: total}
	start := time.Now()
	var runErr error

	for {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			runErr = types.ErrCrawlStopped
			break
		}
		if maxPages > 0 && summary.Batches >= maxPages {
			r.logger.Info("page budget reached", "pages", summary.Batches)
			break
		}

		batch, err := r.source.Batch(ctx, page, batchSize)
		if err != nil {
			runErr = err
			break
		}
		if len(batch) == 0 {
			r.logger.Info("URL source exhausted", "page", page)
			break
		}

		r.logger.Info("batch starting", "page", page, "urls", len(batch))
		processed, successful, failed := r.crawler.CrawlBatch(ctx, batch)
		summary.Processed += processed
		summary.Successful += successful
		summary.Failed += failed
		summary.Batches++

		if err := r.progress.CompleteBatch(&state, page, processed, successful, failed); err != nil {
			runErr = err
			break
		}
		r.logger.Info("batch committed",
			"page", page,
			"processed", processed,
			"successful", successful,
			"failed", failed,
		)
		page = state.CurrentPage

		if err := r.sleepBetweenBatches(ctx); err != nil {
			summary.Interrupted = true
			runErr = types.ErrCrawlStopped
			break
		}
	}

	summary.Duration = time.Since(start)
	r.finish(context.WithoutCancel(ctx), &state, summary, runErr)
	return summary, runErr
}

// finish flushes progress and closes the session. Uses a non-cancellable
// context so teardown writes survive the interrupt that ended the run.
func (r *Runner) finish(ctx context.Context, state *progress.State, summary *RunSummary, runErr error) {
	if err := r.progress.MarkStop(state); err != nil {
		r.logger.Warn("progress flush failed", "error", err)
	}

	status := types.SessionCompleted
	if runErr != nil && !errors.Is(runErr, types.ErrCrawlStopped) {
		status = types.SessionFailed
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := r.crawler.FinishSession(ctx, status); err != nil {
		r.logger.Warn("session close failed", "error", err)
	}

	if sess := r.crawler.Session(); sess != nil {
		pages, errCount, err := r.crawler.store.Summary(ctx, sess.ID, sess.DBName)
		if err == nil {
			summary.StoredPages = pages
			summary.StoredErrors = errCount
		}
	}

	r.logger.Info("run finished",
		"batches", summary.Batches,
		"processed", summary.Processed,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duration", summary.Duration.Round(time.Second),
		"status", string(status),
	)
}

// sleepBetweenBatches applies the inter-batch pause, interruptible by ctx.
func (r *Runner) sleepBetweenBatches(ctx context.Context) error {
	d := r.cfg.Crawler.InterBatchSleep
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
