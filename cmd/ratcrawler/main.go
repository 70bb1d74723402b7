package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/logring"
	"github.com/ratcrawler/ratcrawler/internal/quota"
	"github.com/ratcrawler/ratcrawler/internal/registry"
	"github.com/ratcrawler/ratcrawler/internal/router"
	"github.com/ratcrawler/ratcrawler/internal/store"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

// usageAPIBase is the provider REST endpoint for usage readings.
const usageAPIBase = "https://api.turso.tech"

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ratcrawler",
		Short: "RatCrawler — distributed crawler and backlink analyzer",
		Long: `RatCrawler crawls the web in resumable batches and builds a backlink graph
across a sharded pool of remote SQLite databases.

Features:
  • Quota-aware write routing over N remote databases
  • Polite fetching: robots.txt, per-host delays, UA rotation
  • Resumable batch crawling with atomic progress checkpoints
  • Backlink discovery with PageRank, domain authority, spam flags`,
		RunE: runCrawl, // bare invocation runs auto batch mode
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	addCrawlFlags(rootCmd)
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(backlinksCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the failure class to the process exit code: 2 when every
// backend is over quota, 1 for aborts and configuration errors.
func exitCode(err error) int {
	if errors.Is(err, router.ErrNoBackend) {
		return 2
	}
	return 1
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("RatCrawler %s\n", config.Version)
		},
	}
}

// setupLogger builds the structured logger with the log ring teed in. Every
// record carries a run_id so interleaved runs can be told apart in shared
// sinks.
func setupLogger(cfg *config.Config) (*slog.Logger, *logring.Ring) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	ring := logring.New(cfg.Logging.RingCapacity)
	logger := slog.New(logring.NewHandler(handler, ring))
	return logger.With("run_id", uuid.NewString()), ring
}

// stack is the wired backend plumbing shared by the subcommands.
type stack struct {
	cfg      *config.Config
	logger   *slog.Logger
	ring     *logring.Ring
	registry *registry.Registry
	monitor  *quota.Monitor
	router   *router.Router
	store    *store.PageStore
}

func (s *stack) Close() {
	if s.registry != nil {
		s.registry.Close()
	}
}

// buildStack loads configuration, opens every backend, and runs migrations.
func buildStack(migrate bool) (*stack, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, ring := setupLogger(cfg)

	descs, err := config.LoadBackends(cfg.DatabasesPath)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(descs, logger)
	if err != nil {
		return nil, err
	}

	if migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := store.Migrate(ctx, reg.All(), logger)
		cancel()
		if err != nil {
			reg.Close()
			return nil, err
		}
	}

	mon := quota.New(usageAPIBase, cfg.Router, logger)
	rt := router.New(reg, mon, logger)

	return &stack{
		cfg:      cfg,
		logger:   logger,
		ring:     ring,
		registry: reg,
		monitor:  mon,
		router:   rt,
		store:    store.New(rt, logger),
	}, nil
}

// loadSeeds reads the configured seed file; args override the file entirely.
func loadSeeds(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		var seeds []string
		for _, a := range args {
			if _, err := types.NormalizeURL(a); err != nil {
				return nil, fmt.Errorf("invalid seed URL %q: %w", a, err)
			}
			seeds = append(seeds, a)
		}
		return seeds, nil
	}
	return config.LoadSeeds(cfg.SeedsPath)
}
