package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratcrawler/ratcrawler/internal/config"
	"github.com/ratcrawler/ratcrawler/internal/crawler"
	"github.com/ratcrawler/ratcrawler/internal/fetcher"
	"github.com/ratcrawler/ratcrawler/internal/progress"
	"github.com/ratcrawler/ratcrawler/internal/registry"
	"github.com/ratcrawler/ratcrawler/internal/store"
)

var (
	flagReset     bool
	flagStatus    bool
	flagStartPage int
	flagMaxPages  int
	flagBatchSize int
)

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run the resumable batch crawl (default)",
		Long: `Crawl pulls URL pages from the backlink pool and processes them batch by
batch. Progress is checkpointed after every batch; an interrupted run resumes
from the next unprocessed page.`,
		RunE: runCrawl,
	}
	addCrawlFlags(cmd)
	return cmd
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagReset, "reset", false, "clear saved progress and start from page 1")
	cmd.Flags().BoolVar(&flagStatus, "status", false, "print saved progress and exit")
	cmd.Flags().IntVar(&flagStartPage, "start-page", 0, "override the page to start from")
	cmd.Flags().IntVar(&flagMaxPages, "max-pages", 0, "stop after N pages (0 = unlimited)")
	cmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "URLs per page (0 = saved/configured size)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if flagStatus {
		return printStatus()
	}

	st, err := buildStack(true)
	if err != nil {
		return err
	}
	defer st.Close()

	seeds, err := loadSeeds(st.cfg, args)
	if err != nil {
		return err
	}

	f := fetcher.New(&st.cfg.Fetcher, st.logger)
	defer f.Close()

	c := crawler.New(st.cfg, f, st.store, st.logger)
	source := store.NewURLSource(st.registry.Pool(registry.KindBacklink))
	prog := progress.NewStore(st.cfg.ProgressPath)
	runner := crawler.NewRunner(st.cfg, c, source, prog, st.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx, seeds, crawler.RunOptions{
		StartPage: flagStartPage,
		MaxPages:  flagMaxPages,
		BatchSize: flagBatchSize,
		Reset:     flagReset,
	})
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(s *crawler.RunSummary) {
	fmt.Printf("\nCrawl session %d on %s\n", s.SessionID, s.DBName)
	fmt.Printf("   Batches:    %d (%d of %d URLs processed)\n", s.Batches, s.Processed, s.TotalURLs)
	fmt.Printf("   Successful: %d\n", s.Successful)
	fmt.Printf("   Failed:     %d\n", s.Failed)
	fmt.Printf("   Stored:     %d pages, %d errors\n", s.StoredPages, s.StoredErrors)
	fmt.Printf("   Elapsed:    %s\n", s.Duration.Round(time.Second))
	if s.Interrupted {
		fmt.Println("   Interrupted — rerun to resume from the next page")
	}
}

// printStatus reads the progress file without touching any backend.
func printStatus() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	state, err := progress.NewStore(cfg.ProgressPath).Load()
	if err != nil {
		return err
	}

	fmt.Printf("Progress (%s)\n", cfg.ProgressPath)
	fmt.Printf("   Next page:   %d (batch size %d)\n", state.CurrentPage, state.BatchSize)
	fmt.Printf("   Processed:   %d of %d URLs\n", state.URLsProcessed, state.TotalURLs)
	fmt.Printf("   Successful:  %d\n", state.SuccessfulCrawls)
	fmt.Printf("   Failed:      %d\n", state.FailedCrawls)
	if state.SessionID != 0 {
		fmt.Printf("   Session:     %d on %s\n", state.SessionID, state.DBName)
	}
	if state.LastUpdate != "" {
		fmt.Printf("   Last update: %s\n", state.LastUpdate)
	}
	fmt.Printf("   Running:     %v\n", state.IsRunning)
	return nil
}
