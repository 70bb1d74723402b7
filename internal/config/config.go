package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the crawler.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"   yaml:"crawler"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Router    RouterConfig    `mapstructure:"router"    yaml:"router"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`

	// DatabasesPath is the path to databases.json (env JSONPATH).
	DatabasesPath string `mapstructure:"databases_path" yaml:"databases_path"`
	// SeedsPath is the path to seed_urls.json.
	SeedsPath string `mapstructure:"seeds_path" yaml:"seeds_path"`
	// ProgressPath is the path to crawl_progress.json.
	ProgressPath string `mapstructure:"progress_path" yaml:"progress_path"`
}

// CrawlerConfig controls the batch crawl coordinator.
type CrawlerConfig struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent"    yaml:"max_concurrent"`
	BatchSize       int           `mapstructure:"batch_size"        yaml:"batch_size"`
	InterBatchSleep time.Duration `mapstructure:"inter_batch_sleep" yaml:"inter_batch_sleep"`
	RecrawlDays     int           `mapstructure:"recrawl_days"      yaml:"recrawl_days"`
	MaxPages        int           `mapstructure:"max_pages"         yaml:"max_pages"` // 0 = unlimited
}

// FetcherConfig controls the HTTP fetch layer.
type FetcherConfig struct {
	RequestTimeout   time.Duration `mapstructure:"request_timeout"        yaml:"request_timeout"`
	SocialTimeout    time.Duration `mapstructure:"social_timeout"         yaml:"social_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"            yaml:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay"             yaml:"base_delay"`
	PolitenessDelay  time.Duration `mapstructure:"politeness_delay"       yaml:"politeness_delay"`
	MaxRedirects     int           `mapstructure:"max_redirects"          yaml:"max_redirects"`
	MaxBodySize      int64         `mapstructure:"max_body_size"          yaml:"max_body_size"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt"     yaml:"respect_robots_txt"`
	RobotsCacheTTL   time.Duration `mapstructure:"robots_cache_ttl"       yaml:"robots_cache_ttl"`
	UserAgents       []string      `mapstructure:"user_agents"            yaml:"user_agents"`
	SocialHosts      []string      `mapstructure:"social_hosts"           yaml:"social_hosts"`
}

// RouterConfig controls backend selection thresholds. These are tighter than
// the provider's hard caps so a batch in flight never trips the real limit.
type RouterConfig struct {
	StorageLimitBytes int64 `mapstructure:"storage_limit_bytes" yaml:"storage_limit_bytes"`
	DailyWriteLimit   int64 `mapstructure:"daily_write_limit"   yaml:"daily_write_limit"`
	MonthlyWriteLimit int64 `mapstructure:"monthly_write_limit" yaml:"monthly_write_limit"`
}

// DiscoveryConfig controls the backlink BFS discoverer.
type DiscoveryConfig struct {
	MaxDepth      int           `mapstructure:"max_depth"       yaml:"max_depth"`
	DepthDelayMin time.Duration `mapstructure:"depth_delay_min" yaml:"depth_delay_min"`
	DepthDelayMax time.Duration `mapstructure:"depth_delay_max" yaml:"depth_delay_max"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `mapstructure:"level"         yaml:"level"`
	Format       string `mapstructure:"format"        yaml:"format"`
	RingCapacity int    `mapstructure:"ring_capacity" yaml:"ring_capacity"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			MaxConcurrent:   5,
			BatchSize:       50,
			InterBatchSleep: 3 * time.Second,
			RecrawlDays:     7,
		},
		Fetcher: FetcherConfig{
			RequestTimeout:   30 * time.Second,
			SocialTimeout:    60 * time.Second,
			MaxRetries:       3,
			BaseDelay:        2 * time.Second,
			PolitenessDelay:  1 * time.Second,
			MaxRedirects:     5,
			MaxBodySize:      10 * 1024 * 1024,
			RespectRobotsTxt: true,
			RobotsCacheTTL:   24 * time.Hour,
			UserAgents:       defaultUserAgents,
			SocialHosts: []string{
				"twitter.com", "x.com", "facebook.com", "instagram.com",
				"linkedin.com", "reddit.com",
			},
		},
		Router: RouterConfig{
			StorageLimitBytes: 5 << 30, // 5 GiB
			DailyWriteLimit:   10_000_000,
			MonthlyWriteLimit: 10_000_000,
		},
		Discovery: DiscoveryConfig{
			MaxDepth:      2,
			DepthDelayMin: 3 * time.Second,
			DepthDelayMax: 7 * time.Second,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "text",
			RingCapacity: 2000,
		},
		DatabasesPath: "databases.json",
		SeedsPath:     "seed_urls.json",
		ProgressPath:  "crawl_progress.json",
	}
}

// defaultUserAgents is the rotation pool: Chrome/Firefox/Safari/Edge across
// Windows/Mac/Linux. The first entry is the default UA for robots checks.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}
