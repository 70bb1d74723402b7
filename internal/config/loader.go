package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
//
// JSONPATH is honored directly (legacy name for the databases.json path), as
// are RAT_-prefixed variables for everything else.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("RAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ratcrawler")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Unprefixed legacy variable used by the operator tooling.
	if p := os.Getenv("JSONPATH"); p != "" {
		cfg.DatabasesPath = p
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.max_concurrent", cfg.Crawler.MaxConcurrent)
	v.SetDefault("crawler.batch_size", cfg.Crawler.BatchSize)
	v.SetDefault("crawler.inter_batch_sleep", cfg.Crawler.InterBatchSleep)
	v.SetDefault("crawler.recrawl_days", cfg.Crawler.RecrawlDays)
	v.SetDefault("crawler.max_pages", cfg.Crawler.MaxPages)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.social_timeout", cfg.Fetcher.SocialTimeout)
	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.base_delay", cfg.Fetcher.BaseDelay)
	v.SetDefault("fetcher.politeness_delay", cfg.Fetcher.PolitenessDelay)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.respect_robots_txt", cfg.Fetcher.RespectRobotsTxt)
	v.SetDefault("fetcher.robots_cache_ttl", cfg.Fetcher.RobotsCacheTTL)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.social_hosts", cfg.Fetcher.SocialHosts)

	v.SetDefault("router.storage_limit_bytes", cfg.Router.StorageLimitBytes)
	v.SetDefault("router.daily_write_limit", cfg.Router.DailyWriteLimit)
	v.SetDefault("router.monthly_write_limit", cfg.Router.MonthlyWriteLimit)

	v.SetDefault("discovery.max_depth", cfg.Discovery.MaxDepth)
	v.SetDefault("discovery.depth_delay_min", cfg.Discovery.DepthDelayMin)
	v.SetDefault("discovery.depth_delay_max", cfg.Discovery.DepthDelayMax)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.ring_capacity", cfg.Logging.RingCapacity)

	v.SetDefault("databases_path", cfg.DatabasesPath)
	v.SetDefault("seeds_path", cfg.SeedsPath)
	v.SetDefault("progress_path", cfg.ProgressPath)
}
