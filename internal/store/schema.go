// Package store owns the SQL surface of the crawler: schema creation,
// additive migrations, and the chunked writers for pages, errors, backlinks,
// and derived scores. All writes go through the router; no statement ever
// interpolates values into SQL text.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ratcrawler/ratcrawler/internal/registry"
)

// createTables is the baseline schema applied to every backend in both pools.
var createTables = []string{
	`CREATE TABLE IF NOT EXISTS crawl_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		end_time TIMESTAMP,
		seed_urls TEXT,
		config TEXT,
		status TEXT DEFAULT 'running'
	)`,
	`CREATE TABLE IF NOT EXISTS crawled_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER,
		url TEXT NOT NULL UNIQUE,
		original_url TEXT,
		redirect_chain TEXT,
		title TEXT,
		meta_description TEXT,
		content_text TEXT,
		content_html TEXT,
		content_hash TEXT,
		word_count INTEGER,
		page_size INTEGER,
		http_status_code INTEGER,
		response_time_ms INTEGER,
		language TEXT,
		charset TEXT,
		h1_tags TEXT,
		h2_tags TEXT,
		meta_keywords TEXT,
		canonical_url TEXT,
		robots_meta TEXT,
		internal_links_count INTEGER,
		external_links_count INTEGER,
		images_count INTEGER,
		crawl_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(session_id) REFERENCES crawl_sessions(id)
	)`,
	`CREATE TABLE IF NOT EXISTS crawl_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER,
		url TEXT NOT NULL,
		error_type TEXT,
		error_msg TEXT,
		status_code INTEGER,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(session_id) REFERENCES crawl_sessions(id)
	)`,
	`CREATE TABLE IF NOT EXISTS backlinks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL,
		anchor_text TEXT,
		context TEXT,
		page_title TEXT,
		domain_authority REAL DEFAULT 0.0,
		is_nofollow BOOLEAN DEFAULT FALSE,
		crawl_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_url, target_url, anchor_text)
	)`,
	`CREATE TABLE IF NOT EXISTS domain_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT UNIQUE NOT NULL,
		authority_score REAL DEFAULT 0.0,
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS pagerank_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		pagerank_score REAL DEFAULT 0.0,
		last_calculated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crawled_pages_url ON crawled_pages(url)`,
	`CREATE INDEX IF NOT EXISTS idx_crawled_pages_hash ON crawled_pages(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(target_url)`,
	`CREATE INDEX IF NOT EXISTS idx_backlinks_source ON backlinks(source_url)`,
}

// migrations is the fixed ordered list of additive schema changes. Each must
// be idempotent-by-retry: "duplicate column" failures are ignored, so new
// columns must be nullable or carry a default.
var migrations = []string{
	`ALTER TABLE crawled_pages ADD COLUMN content_type TEXT`,
	`ALTER TABLE crawled_pages ADD COLUMN file_extension TEXT`,
}

// Migrate creates all tables and applies the migration list on every backend
// across both pools. Called once at startup before any write.
func Migrate(ctx context.Context, backends []*registry.Backend, logger *slog.Logger) error {
	logger = logger.With("component", "migrate")
	for _, b := range backends {
		if err := migrateBackend(ctx, b.DB(), b.Name, logger); err != nil {
			return fmt.Errorf("migrate backend %q: %w", b.Name, err)
		}
	}
	return nil
}

func migrateBackend(ctx context.Context, db *sql.DB, name string, logger *slog.Logger) error {
	for _, ddl := range createTables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("apply migration %q: %w", stmt, err)
		}
		logger.Debug("migration applied", "backend", name, "stmt", stmt)
	}
	logger.Info("schema ready", "backend", name)
	return nil
}

// isDuplicateColumn matches the SQLite family's duplicate-column error text.
func isDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column")
}
