package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/namecrawl/cache"
	"github.com/use-agent/namecrawl/metrics"
	"github.com/use-agent/namecrawl/models"
)

// PageFetcher performs one rate-limited retrieval per call. It never
// retries; retry policy belongs to the crawl driver.
type PageFetcher struct {
	engine  Engine
	limiter Limiter
	pages   *cache.Cache[*FetchResult]
	timeout time.Duration
}

// NewPageFetcher wires an engine behind a limiter. pages may be nil to
// disable caching; timeout <= 0 leaves the deadline to the caller's context.
func NewPageFetcher(eng Engine, limiter Limiter, pages *cache.Cache[*FetchResult], timeout time.Duration) *PageFetcher {
	if limiter == nil {
		limiter = Unlimited
	}
	return &PageFetcher{engine: eng, limiter: limiter, pages: pages, timeout: timeout}
}

// Fetch returns the page body for req.URL. A page fetched earlier in the
// run with the same TLS mode is served from the cache without consuming a
// rate-limit permit, unless req.Refresh is set.
func (f *PageFetcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	key := cache.Key(req.URL, req.InsecureSkipVerify)
	if !req.Refresh {
		if cached, ok := f.pages.Get(key); ok {
			metrics.CacheHits.Inc()
			hit := *cached
			hit.Cached = true
			return &hit, nil
		}
	}

	waitStart := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetcher: rate limiter wait: %w", err)
	}
	metrics.RateLimitWait.Observe(time.Since(waitStart).Seconds())

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := f.engine.Fetch(ctx, req)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		err = classify(err, req.URL)
		metrics.FetchErrors.WithLabelValues(models.CodeOf(err)).Inc()
		return nil, err
	}

	metrics.PagesFetched.WithLabelValues(result.EngineName).Inc()
	slog.Debug("page fetched",
		"url", req.URL,
		"engine", result.EngineName,
		"status", result.StatusCode,
		"title", result.Title,
		"bytes", len(result.Body),
	)

	f.pages.Set(key, result)
	return result, nil
}

// classify gives every fetch failure a crawl error code. Errors already
// carrying a code keep it; everything else is a transport failure.
func classify(err error, url string) error {
	var ce *models.CrawlError
	if errors.As(err, &ce) {
		return err
	}
	return models.NewCrawlError(models.ErrCodeTransport, "fetch "+url, err)
}
