package config

import (
	"fmt"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawler.MaxConcurrent < 1 {
		return fmt.Errorf("crawler.max_concurrent must be >= 1, got %d", cfg.Crawler.MaxConcurrent)
	}
	if cfg.Crawler.MaxConcurrent > 100 {
		return fmt.Errorf("crawler.max_concurrent must be <= 100, got %d", cfg.Crawler.MaxConcurrent)
	}
	if cfg.Crawler.BatchSize < 1 {
		return fmt.Errorf("crawler.batch_size must be >= 1, got %d", cfg.Crawler.BatchSize)
	}
	if cfg.Crawler.RecrawlDays < 0 {
		return fmt.Errorf("crawler.recrawl_days must be >= 0, got %d", cfg.Crawler.RecrawlDays)
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if len(cfg.Fetcher.UserAgents) == 0 {
		return fmt.Errorf("fetcher.user_agents must not be empty")
	}

	if cfg.Router.StorageLimitBytes <= 0 {
		return fmt.Errorf("router.storage_limit_bytes must be > 0")
	}
	if cfg.Router.DailyWriteLimit <= 0 {
		return fmt.Errorf("router.daily_write_limit must be > 0")
	}

	if cfg.Discovery.MaxDepth < 0 {
		return fmt.Errorf("discovery.max_depth must be >= 0, got %d", cfg.Discovery.MaxDepth)
	}
	if cfg.Discovery.DepthDelayMax < cfg.Discovery.DepthDelayMin {
		return fmt.Errorf("discovery.depth_delay_max must be >= depth_delay_min")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.RingCapacity < 1 {
		return fmt.Errorf("logging.ring_capacity must be >= 1, got %d", cfg.Logging.RingCapacity)
	}

	return nil
}
