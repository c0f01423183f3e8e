package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kovalyov-valentin/news-aggregator/internal/metrics"
	"github.com/kovalyov-valentin/news-aggregator/internal/scheduler"
	"github.com/kovalyov-valentin/news-aggregator/internal/source"
)

func sweepCmd() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Poll every feed once, evict stale articles and print the report",
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			registry, err := source.LoadRegistry(cfg.SourcesFile)
			if err != nil {
				return fmt.Errorf("load feed registry: %w", err)
			}

			sched := newScheduler(cfg, registry, db, metrics.NewUnregistered(), log)

			report, err := sched.RunOnce(ctx)
			if err != nil {
				return err
			}

			printReport(report)

			return nil
		},
	}
}

func printReport(report scheduler.SweepReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CATEGORY\tFEED\tFETCHED\tSTORED\tDUPLICATES\tREJECTED\tFILTERED\tFAILED\tERROR")
	for _, feed := range report.Feeds {
		errText := "-"
		if feed.Err != nil {
			errText = feed.Err.Error()
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			feed.Feed.Category,
			feed.Feed.URL,
			feed.Fetched,
			feed.Stored,
			feed.Duplicates,
			feed.Rejected,
			feed.Filtered,
			feed.Failed,
			errText,
		)
	}
	w.Flush()

	fmt.Printf("\nstored %d articles from %d feeds (%d failed), evicted %d, took %s\n",
		report.Stored(),
		len(report.Feeds),
		report.FailedFeeds(),
		report.Evicted,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	if report.EvictionErr != nil {
		fmt.Printf("eviction failed: %v\n", report.EvictionErr)
	}
}
