package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/namecrawl/engine"
	"github.com/use-agent/namecrawl/metrics"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/pagination"
	"github.com/use-agent/namecrawl/resilience"
	"github.com/use-agent/namecrawl/store"
)

// Driver walks partitions one at a time, in the order given, and each
// partition's pages in the order its cursor yields them.
//
// A page that still fails after the retry budget is handled by the
// strategy's FailurePolicy. Storage failures stop the run, as does
// cancellation of the context.
type Driver struct {
	fetcher   engine.Fetcher
	store     *store.Store
	retry     resilience.RetryConfig
	observers []Observer
}

func NewDriver(fetcher engine.Fetcher, st *store.Store, retry resilience.RetryConfig, observers ...Observer) *Driver {
	return &Driver{
		fetcher:   fetcher,
		store:     st,
		retry:     retry,
		observers: observers,
	}
}

// Run crawls keys of target. The summary is returned even when the run
// stops early, holding the partitions that reached a terminal state.
func (d *Driver) Run(ctx context.Context, target *Target, keys []models.PartitionKey) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		Dataset:    target.Name,
		Partitions: make([]models.PartitionResult, 0, len(keys)),
		StartedAt:  time.Now(),
	}

	slog.Info("crawl started",
		"dataset", target.Name,
		"strategy", target.Strategy.Name(),
		"partitions", len(keys),
	)

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}

		slog.Info("processing partition",
			"dataset", target.Name,
			"key", key,
			"position", fmt.Sprintf("%d/%d", i+1, len(keys)),
		)

		result, err := d.crawlPartition(ctx, target, key)
		if err != nil {
			summary.FinishedAt = time.Now()
			return summary, fmt.Errorf("crawl: %s partition %q: %w", target.Name, key, err)
		}

		summary.Partitions = append(summary.Partitions, result)
		summary.Records += result.Records
		if result.State == models.StateAbandoned {
			summary.Abandoned++
		}
		metrics.Partitions.WithLabelValues(target.Name, string(result.State)).Inc()

		slog.Info("partition finished",
			"dataset", target.Name,
			"key", key,
			"state", result.State,
			"pages", result.Pages,
			"skipped_pages", result.SkippedPages,
			"records", result.Records,
			"total_so_far", summary.Records,
			"duration", result.Duration,
		)
		d.emit(Event{Type: EventPartitionFinished, Dataset: target.Name, Key: key, Total: result.Records, Result: &result})
	}

	summary.FinishedAt = time.Now()
	slog.Info("crawl completed",
		"dataset", target.Name,
		"partitions", len(summary.Partitions),
		"abandoned", summary.Abandoned,
		"records", summary.Records,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	d.emit(Event{Type: EventRunFinished, Dataset: target.Name, Total: summary.Records, Summary: summary})
	return summary, nil
}

// crawlPartition runs one key to a terminal state. A non-nil error means
// the run must stop; page-level failures are folded into the result.
func (d *Driver) crawlPartition(ctx context.Context, target *Target, key models.PartitionKey) (models.PartitionResult, error) {
	start := time.Now()
	result := models.PartitionResult{
		Dataset: target.Name,
		Key:     key,
		State:   models.StatePlanning,
	}
	d.emit(Event{Type: EventPartitionStarted, Dataset: target.Name, Key: key})

	writer := NewPartitionWriter(d.store, target)
	if err := writer.Begin(key); err != nil {
		return result, err
	}

	cursor, err := target.Strategy.Begin(ctx, key)
	if err != nil {
		return result, err
	}
	policy := target.Strategy.FailurePolicy()

	for {
		loc, ok := cursor.Next()
		if !ok {
			break
		}

		result.State = models.StateFetching
		rows, err := d.fetchRows(ctx, target, key, loc)
		if err == nil {
			err = checkArity(rows, writer.arity)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			if policy == pagination.SkipPage {
				result.SkippedPages++
				metrics.PagesSkipped.WithLabelValues(target.Name).Inc()
				slog.Warn("page skipped",
					"dataset", target.Name,
					"key", key,
					"page", loc.Index,
					"url", loc.URL,
					"code", models.CodeOf(err),
					"error", err,
				)
				d.emit(Event{Type: EventPageSkipped, Dataset: target.Name, Key: key, Locator: loc, Err: err})
				continue
			}

			slog.Error("partition abandoned",
				"dataset", target.Name,
				"key", key,
				"page", loc.Index,
				"url", loc.URL,
				"code", models.CodeOf(err),
				"error", err,
			)
			result.State = models.StateAbandoned
			result.Error = err.Error()
			break
		}

		result.Pages++
		if !cursor.Report(rows) || len(rows) == 0 {
			continue
		}

		result.State = models.StateRecording
		if err := writer.Record(rows); err != nil {
			return result, err
		}
		metrics.RecordsWritten.WithLabelValues(target.Name).Add(float64(len(rows)))

		slog.Info("page recorded",
			"dataset", target.Name,
			"key", key,
			"page", loc.Index,
			"rows", len(rows),
			"partition_total", writer.Len(),
		)
		d.emit(Event{Type: EventPageRecorded, Dataset: target.Name, Key: key, Locator: loc, Rows: len(rows), Total: writer.Len()})
	}

	if !result.State.Terminal() {
		result.State = models.StateDone
	}
	result.Records = writer.Len()
	if result.Records > 0 {
		result.Snapshot = writer.Snapshot()
	}
	result.Duration = time.Since(start)
	return result, nil
}

// fetchRows fetches and extracts one page under the retry budget. A parse
// failure is retried like a transport failure; retries bypass the page
// cache so a bad body is fetched again rather than re-read.
func (d *Driver) fetchRows(ctx context.Context, target *Target, key models.PartitionKey, loc models.Locator) ([]models.Record, error) {
	cfg := d.retry
	cfg.OnRetry = resilience.RetryLogger(slog.Default(),
		"dataset", target.Name,
		"key", key,
		"url", loc.URL,
	)

	attempt := 0
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]models.Record, error) {
		attempt++
		page, err := d.fetcher.Fetch(ctx, &engine.FetchRequest{
			URL:                loc.URL,
			InsecureSkipVerify: target.InsecureSkipVerify,
			Refresh:            attempt > 1,
		})
		if err != nil {
			return nil, err
		}
		return target.Extractor.Extract(page.Body)
	})
}

func checkArity(rows []models.Record, arity int) error {
	for i, r := range rows {
		if len(r) != arity {
			return models.NewCrawlError(models.ErrCodeArity,
				fmt.Sprintf("row %d has %d fields, want %d", i, len(r), arity), nil)
		}
	}
	return nil
}

func (d *Driver) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, o := range d.observers {
		o.Observe(e)
	}
}
