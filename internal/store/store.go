package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ratcrawler/ratcrawler/internal/registry"
	"github.com/ratcrawler/ratcrawler/internal/router"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// Chunk sizes for bulk writers. A failing chunk is rolled back, logged, and
// skipped; later chunks still run.
const (
	backlinkChunkSize = 5000
	scoreChunkSize    = 1000
)

// PageStore persists crawl output through the router.
type PageStore struct {
	router *router.Router
	logger *slog.Logger
}

// New creates a PageStore.
func New(rt *router.Router, logger *slog.Logger) *PageStore {
	return &PageStore{
		router: rt,
		logger: logger.With("component", "store"),
	}
}

// CreateSession inserts a crawl session row into the next usable crawl
// backend and returns the session pinned to that backend.
func (s *PageStore) CreateSession(ctx context.Context, seeds []string, cfgJSON string) (*types.CrawlSession, error) {
	sess, err := s.router.Session(ctx, registry.KindCrawl)
	if err != nil {
		return nil, err
	}

	seedJSON, err := json.Marshal(seeds)
	if err != nil {
		return nil, fmt.Errorf("marshal seeds: %w", err)
	}

	res, err := sess.DB().ExecContext(ctx,
		`INSERT INTO crawl_sessions (seed_urls, config, status) VALUES (?, ?, ?)`,
		string(seedJSON), cfgJSON, string(types.SessionRunning),
	)
	if err != nil {
		return nil, &types.StoreError{Backend: sess.Backend.Name, Op: "create session", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &types.StoreError{Backend: sess.Backend.Name, Op: "session id", Err: err}
	}

	s.logger.Info("crawl session created", "session_id", id, "db", sess.Backend.Name)
	return &types.CrawlSession{
		ID:        id,
		DBName:    sess.Backend.Name,
		StartTime: time.Now(),
		SeedURLs:  seeds,
		Config:    cfgJSON,
		Status:    types.SessionRunning,
	}, nil
}

// FinishSession marks the session completed or failed. The transition is
// terminal; a finished session is never set back to running.
func (s *PageStore) FinishSession(ctx context.Context, sessionID int64, dbName string, status types.SessionStatus) error {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return err
	}
	_, err = sess.DB().ExecContext(ctx,
		`UPDATE crawl_sessions
		 SET end_time = CURRENT_TIMESTAMP, status = ?
		 WHERE id = ? AND status = ?`,
		string(status), sessionID, string(types.SessionRunning),
	)
	if err != nil {
		return &types.StoreError{Backend: dbName, Op: "finish session", Err: err}
	}
	return nil
}

// StorePage upserts a crawled page into the backend that owns its session.
// On conflict the row is updated in place and the original session_id is
// preserved.
func (s *PageStore) StorePage(ctx context.Context, page *types.CrawledPage, dbName string) error {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return err
	}

	redirects, _ := json.Marshal(page.RedirectChain)
	h1s, _ := json.Marshal(page.H1Tags)
	h2s, _ := json.Marshal(page.H2Tags)

	_, err = sess.DB().ExecContext(ctx, `
		INSERT INTO crawled_pages
		(session_id, url, original_url, redirect_chain, title, meta_description,
		 content_text, content_html, content_hash, word_count, page_size,
		 http_status_code, response_time_ms, language, charset, h1_tags, h2_tags,
		 meta_keywords, canonical_url, robots_meta, internal_links_count,
		 external_links_count, images_count, content_type, file_extension, crawl_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			original_url = excluded.original_url,
			redirect_chain = excluded.redirect_chain,
			title = excluded.title,
			meta_description = excluded.meta_description,
			content_text = excluded.content_text,
			content_html = excluded.content_html,
			content_hash = excluded.content_hash,
			word_count = excluded.word_count,
			page_size = excluded.page_size,
			http_status_code = excluded.http_status_code,
			response_time_ms = excluded.response_time_ms,
			language = excluded.language,
			charset = excluded.charset,
			h1_tags = excluded.h1_tags,
			h2_tags = excluded.h2_tags,
			meta_keywords = excluded.meta_keywords,
			canonical_url = excluded.canonical_url,
			robots_meta = excluded.robots_meta,
			internal_links_count = excluded.internal_links_count,
			external_links_count = excluded.external_links_count,
			images_count = excluded.images_count,
			content_type = excluded.content_type,
			file_extension = excluded.file_extension,
			crawl_time = excluded.crawl_time`,
		page.SessionID, page.URL, page.OriginalURL, string(redirects),
		page.Title, page.MetaDescription, page.ContentText, page.ContentHTML,
		page.ContentHash, page.WordCount, page.PageSize, page.HTTPStatus,
		page.ResponseTimeMs, page.Language, page.Charset, string(h1s), string(h2s),
		strings.Join(page.MetaKeywords, ","), page.CanonicalURL, page.RobotsMeta,
		page.InternalLinksCount, page.ExternalLinksCount, page.ImagesCount,
		string(page.ContentType), page.FileExtension, page.CrawlTime,
	)
	if err != nil {
		return &types.StoreError{Backend: dbName, Op: "store page", Err: err}
	}
	return nil
}

// LogCrawlError records a failed URL against its session's backend.
func (s *PageStore) LogCrawlError(ctx context.Context, ce *types.CrawlError, dbName string) error {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return err
	}
	var statusCode any
	if ce.StatusCode != 0 {
		statusCode = ce.StatusCode
	}
	_, err = sess.DB().ExecContext(ctx,
		`INSERT INTO crawl_errors (session_id, url, error_type, error_msg, status_code)
		 VALUES (?, ?, ?, ?, ?)`,
		ce.SessionID, ce.URL, string(ce.Type), ce.Message, statusCode,
	)
	if err != nil {
		return &types.StoreError{Backend: dbName, Op: "log error", Err: err}
	}
	return nil
}

// StoreBacklinks upserts backlinks into the backlink pool in chunks. It
// returns the number of rows written across the chunks that committed.
func (s *PageStore) StoreBacklinks(ctx context.Context, links []types.Backlink) (int, error) {
	stored := 0
	for start := 0; start < len(links); start += backlinkChunkSize {
		end := min(start+backlinkChunkSize, len(links))
		chunk := links[start:end]

		sess, err := s.router.Session(ctx, registry.KindBacklink)
		if err != nil {
			return stored, err
		}
		if err := s.writeBacklinkChunk(ctx, sess, chunk); err != nil {
			s.logger.Error("backlink chunk skipped",
				"backend", sess.Backend.Name,
				"offset", start,
				"size", len(chunk),
				"error", err,
			)
			continue
		}
		stored += len(chunk)
	}
	s.logger.Info("backlinks stored", "total", len(links), "written", stored)
	return stored, nil
}

func (s *PageStore) writeBacklinkChunk(ctx context.Context, sess *router.Session, chunk []types.Backlink) error {
	tx, err := sess.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backlinks
		(source_url, target_url, anchor_text, context, page_title, domain_authority, is_nofollow, crawl_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url, target_url, anchor_text) DO UPDATE SET
			context = excluded.context,
			page_title = excluded.page_title,
			domain_authority = excluded.domain_authority,
			is_nofollow = excluded.is_nofollow,
			crawl_date = excluded.crawl_date`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, bl := range chunk {
		if _, err := stmt.ExecContext(ctx,
			bl.SourceURL, bl.TargetURL, bl.AnchorText, bl.Context,
			bl.PageTitle, bl.DomainAuthority, bl.IsNofollow, bl.CrawlDate,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StoreDomainScores upserts domain authority scores in chunks of 1000.
func (s *PageStore) StoreDomainScores(ctx context.Context, scores map[string]float64) (int, error) {
	rows := make([][2]any, 0, len(scores))
	for domain, score := range scores {
		rows = append(rows, [2]any{domain, score})
	}
	return s.storeScoreRows(ctx, rows,
		`INSERT INTO domain_scores (domain, authority_score, last_updated)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(domain) DO UPDATE SET
			authority_score = excluded.authority_score,
			last_updated = CURRENT_TIMESTAMP`,
		"domain scores")
}

// StorePageRankScores upserts PageRank scores in chunks of 1000.
func (s *PageStore) StorePageRankScores(ctx context.Context, scores map[string]float64) (int, error) {
	rows := make([][2]any, 0, len(scores))
	for url, score := range scores {
		rows = append(rows, [2]any{url, score})
	}
	return s.storeScoreRows(ctx, rows,
		`INSERT INTO pagerank_scores (url, pagerank_score, last_calculated)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(url) DO UPDATE SET
			pagerank_score = excluded.pagerank_score,
			last_calculated = CURRENT_TIMESTAMP`,
		"pagerank scores")
}

func (s *PageStore) storeScoreRows(ctx context.Context, rows [][2]any, query, what string) (int, error) {
	stored := 0
	for start := 0; start < len(rows); start += scoreChunkSize {
		end := min(start+scoreChunkSize, len(rows))
		chunk := rows[start:end]

		sess, err := s.router.Session(ctx, registry.KindBacklink)
		if err != nil {
			return stored, err
		}
		if err := s.writeScoreChunk(ctx, sess, query, chunk); err != nil {
			s.logger.Error("score chunk skipped",
				"what", what,
				"backend", sess.Backend.Name,
				"offset", start,
				"error", err,
			)
			continue
		}
		stored += len(chunk)
	}
	s.logger.Info("scores stored", "what", what, "total", len(rows), "written", stored)
	return stored, nil
}

func (s *PageStore) writeScoreChunk(ctx context.Context, sess *router.Session, query string, chunk [][2]any) error {
	tx, err := sess.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range chunk {
		if _, err := stmt.ExecContext(ctx, row[0], row[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ContentHashes returns the set of stored content hashes on one backend, used
// to seed body-equality deduplication.
func (s *PageStore) ContentHashes(ctx context.Context, dbName string) (map[string]struct{}, error) {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return nil, err
	}
	rows, err := sess.DB().QueryContext(ctx,
		`SELECT DISTINCT content_hash FROM crawled_pages WHERE content_hash IS NOT NULL AND content_hash != ''`)
	if err != nil {
		return nil, &types.StoreError{Backend: dbName, Op: "content hashes", Err: err}
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}

// LastCrawlTime returns when a URL was last crawled on one backend, or a zero
// time if it never was.
func (s *PageStore) LastCrawlTime(ctx context.Context, rawURL, dbName string) (time.Time, error) {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return time.Time{}, err
	}
	var t sql.NullTime
	err = sess.DB().QueryRowContext(ctx,
		`SELECT MAX(crawl_time) FROM crawled_pages WHERE url = ?`, rawURL).Scan(&t)
	if err != nil || !t.Valid {
		return time.Time{}, err
	}
	return t.Time, nil
}

// TouchCrawlTime refreshes a page's crawl_time without rewriting its content.
// Used on duplicate-content detection so the recrawl window advances.
func (s *PageStore) TouchCrawlTime(ctx context.Context, rawURL, dbName string) error {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return err
	}
	_, err = sess.DB().ExecContext(ctx,
		`UPDATE crawled_pages SET crawl_time = CURRENT_TIMESTAMP WHERE url = ?`, rawURL)
	if err != nil {
		return &types.StoreError{Backend: dbName, Op: "touch crawl time", Err: err}
	}
	return nil
}

// Summary counts a session's pages and errors on its backend.
func (s *PageStore) Summary(ctx context.Context, sessionID int64, dbName string) (pages, errors int64, err error) {
	sess, err := s.router.SessionFor(dbName, registry.KindCrawl)
	if err != nil {
		return 0, 0, err
	}
	db := sess.DB()
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crawled_pages WHERE session_id = ?`, sessionID).Scan(&pages); err != nil {
		return 0, 0, err
	}
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crawl_errors WHERE session_id = ?`, sessionID).Scan(&errors); err != nil {
		return 0, 0, err
	}
	return pages, errors, nil
}

// BacklinkCount sums the backlink rows across the backlink pool.
func (s *PageStore) BacklinkCount(ctx context.Context, backends []*registry.Backend) (int64, error) {
	var total int64
	for _, b := range backends {
		var n int64
		if err := b.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM backlinks`).Scan(&n); err != nil {
			return total, &types.StoreError{Backend: b.Name, Op: "backlink count", Err: err}
		}
		total += n
	}
	return total, nil
}
