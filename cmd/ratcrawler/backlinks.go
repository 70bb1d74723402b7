package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ratcrawler/ratcrawler/internal/discover"
	"github.com/ratcrawler/ratcrawler/internal/fetcher"
	"github.com/ratcrawler/ratcrawler/internal/graph"
	"github.com/ratcrawler/ratcrawler/internal/types"
)

var (
	flagDepth     int
	flagReport    bool
	flagStoreSpam bool
)

func backlinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlinks [seed-url...]",
		Short: "Discover backlinks and recompute graph scores",
		Long: `Backlinks runs a breadth-first discovery pass from the seed set, records
every link pointing back at a seed domain, then rebuilds PageRank and domain
authority over the accumulated graph.`,
		RunE: runBacklinks,
	}
	cmd.Flags().IntVar(&flagDepth, "depth", 0, "override the BFS depth")
	cmd.Flags().BoolVar(&flagReport, "report", false, "print a per-domain backlink report")
	cmd.Flags().BoolVar(&flagStoreSpam, "store-spam", false, "store flagged backlinks too")
	return cmd
}

func runBacklinks(cmd *cobra.Command, args []string) error {
	st, err := buildStack(true)
	if err != nil {
		return err
	}
	defer st.Close()

	seeds, err := loadSeeds(st.cfg, args)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return fmt.Errorf("no seed URLs: pass them as arguments or set %s", st.cfg.SeedsPath)
	}
	if flagDepth > 0 {
		st.cfg.Discovery.MaxDepth = flagDepth
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := fetcher.New(&st.cfg.Fetcher, st.logger)
	defer f.Close()

	d := discover.New(f, &st.cfg.Discovery, st.cfg.Crawler.MaxConcurrent, st.logger)
	res, err := d.Run(ctx, seeds, nil)
	if err != nil {
		return err
	}

	clean, flagged := graph.FilterSpam(res.Backlinks)
	st.logger.Info("spam filter applied", "clean", len(clean), "flagged", len(flagged))

	toStore := clean
	if flagStoreSpam {
		toStore = res.Backlinks
	}

	// Stamp each backlink with its target domain's authority before storing.
	authority := graph.DomainAuthority(clean)
	for i := range toStore {
		toStore[i].DomainAuthority = authority[types.Host(toStore[i].TargetURL)]
	}

	written, err := st.store.StoreBacklinks(ctx, toStore)
	if err != nil {
		return err
	}

	g := graph.FromBacklinks(clean)
	ranks := g.PageRank()
	if _, err := st.store.StorePageRankScores(ctx, ranks); err != nil {
		return err
	}
	if _, err := st.store.StoreDomainScores(ctx, authority); err != nil {
		return err
	}

	fmt.Printf("\nBacklink discovery complete\n")
	fmt.Printf("   Visited:    %d pages (depth %d, %d failed)\n", res.Visited, res.MaxDepth, res.Failed)
	fmt.Printf("   Backlinks:  %d found, %d flagged spam, %d stored\n", len(res.Backlinks), len(flagged), written)
	fmt.Printf("   Graph:      %d nodes, %d edges ranked\n", g.NodeCount(), g.EdgeCount())

	if flagReport {
		printReports(seeds, clean)
	}
	return nil
}

func printReports(seeds []string, links []types.Backlink) {
	seen := make(map[string]struct{})
	for _, s := range seeds {
		domain := types.Host(types.MustNormalizeURL(s))
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}

		r := graph.BuildReport(domain, links)
		fmt.Printf("\n%s — authority %.1f\n", r.Domain, r.Authority)
		fmt.Printf("   Backlinks: %d from %d sources (%d nofollow, %d spam)\n",
			r.TotalBacklinks, r.UniqueSources, r.NofollowCount, r.FlaggedSpam)
		for i, a := range r.TopAnchors {
			if i >= 5 {
				break
			}
			fmt.Printf("   Anchor %q ×%d\n", a.Anchor, a.Count)
		}
	}
}
