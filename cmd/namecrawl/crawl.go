package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
	"github.com/use-agent/namecrawl/webhook"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [dataset...]",
	Short: "Crawl datasets letter by letter and merge the results",
	Long: "Crawls each named dataset (all of them when none is given) over the selected " +
		"letters, writing a snapshot per letter after every page. When the crawl completes " +
		"the snapshots are merged into <dataset>.json unless --no-merge is set.",
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.String("letters", "", `letters to crawl, e.g. "abc" or "a,b,c" (default all)`)
	f.Bool("no-merge", false, "keep per-letter snapshots and skip the merge step")
	f.Bool("strict", false, "exit with status 2 when any letter was abandoned")
	f.String("status-addr", "", "serve progress and metrics on this address, e.g. :9090 (env NAMECRAWL_STATUS_ADDR)")
	f.String("engine", "", "fetch engine: http, browser or auto (env NAMECRAWL_ENGINE)")
	f.Duration("rate-interval", 0, "minimum spacing between requests (env NAMECRAWL_RATE_INTERVAL)")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flags := cmd.Flags()
	letters, _ := flags.GetString("letters")
	noMerge, _ := flags.GetBool("no-merge")
	strict, _ := flags.GetBool("strict")
	if flags.Changed("status-addr") {
		cfg.Status.Addr, _ = flags.GetString("status-addr")
	}
	if flags.Changed("engine") {
		cfg.Fetch.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("rate-interval") {
		cfg.Crawl.RateInterval, _ = flags.GetDuration("rate-interval")
	}

	keys, err := models.ParsePartitionKeys(letters)
	if err != nil {
		return fmt.Errorf("crawl: --letters: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sets, err := a.registry.Resolve(args)
	if err != nil {
		return err
	}

	progress := crawl.NewProgress()
	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	if cfg.Status.Addr != "" {
		stopStatus := startStatusServer(cfg.Status.Addr, a, progress, cfg)
		defer stopStatus()
	}

	driver := crawl.NewDriver(a.fetcher, a.store, retryConfig(cfg), progress, notifier)

	abandoned := 0
	for _, d := range sets {
		summary, err := driver.Run(ctx, d.Target, keys)
		if err != nil {
			return err
		}
		abandoned += summary.Abandoned

		if noMerge {
			continue
		}
		if err := mergeDataset(ctx, a.store, d, keys); err != nil {
			return err
		}
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if err := notifier.Wait(waitCtx); err != nil {
		slog.Warn("webhook deliveries still pending at exit", "error", err)
	}

	if strict && abandoned > 0 {
		return &exitError{code: 2, err: fmt.Errorf("crawl: %d letter(s) abandoned", abandoned)}
	}
	return nil
}

// mergeDataset merges the snapshots of keys. A run over part of the
// alphabet merges into the existing output instead of replacing it.
func mergeDataset(ctx context.Context, st *store.Store, d *datasets.Dataset, keys []models.PartitionKey) error {
	m := crawl.NewMerger(st, d.Target)
	m.Keys = keys
	m.Incremental = len(keys) < len(models.Alphabet())

	res, err := m.Merge(ctx)
	if errors.Is(err, crawl.ErrNoSnapshots) {
		slog.Warn("nothing to merge", "dataset", d.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("merge %s: %w", d.Name, err)
	}
	slog.Info("merge complete", "dataset", d.Name, "output", st.Path(res.Output), "records", res.Records)
	return nil
}
