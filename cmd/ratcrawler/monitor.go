package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratcrawler/ratcrawler/internal/quota"
	"github.com/ratcrawler/ratcrawler/internal/registry"
)

var flagWatch time.Duration

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show per-backend quota usage and health",
		RunE:  runMonitor,
	}
	cmd.Flags().DurationVar(&flagWatch, "watch", 0, "refresh continuously at this interval (0 = once)")
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	st, err := buildStack(false)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		printUsage(ctx, st)
		if flagWatch <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(flagWatch):
		}
	}
}

func printUsage(ctx context.Context, st *stack) {
	fmt.Printf("Backend usage at %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("%-24s %-9s %-9s %14s %14s %14s\n",
		"BACKEND", "POOL", "STATUS", "STORAGE", "ROWS WRITTEN", "ROWS READ")

	for _, b := range st.registry.All() {
		r, err := st.monitor.Refresh(ctx, b)
		if err != nil {
			fmt.Printf("%-24s %-9s %-9s %s\n", b.Name, string(b.Kind), "error", err)
			continue
		}
		fmt.Printf("%-24s %-9s %-9s %14s %14d %14d\n",
			b.Name, string(b.Kind), string(r.Status),
			formatBytes(r.Usage.StorageBytes),
			r.Usage.RowsWritten, r.Usage.RowsRead,
		)
	}

	count, err := st.store.BacklinkCount(ctx, st.registry.Pool(registry.KindBacklink))
	if err == nil {
		fmt.Printf("\nBacklink rows across pool: %d\n", count)
	}

	unusable := 0
	for _, b := range st.registry.All() {
		if r, err := st.monitor.Get(ctx, b); err == nil && r.Status == quota.StatusUnusable {
			unusable++
		}
	}
	if unusable > 0 {
		fmt.Printf("⚠ %d backend(s) at the provider hard cap\n", unusable)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
