package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/namecrawl/api"
	"github.com/use-agent/namecrawl/cache"
	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/engine"
	"github.com/use-agent/namecrawl/resilience"
	"github.com/use-agent/namecrawl/store"
)

// app holds the components shared by the subcommands.
type app struct {
	store    *store.Store
	fetcher  *engine.PageFetcher
	registry *datasets.Registry

	pages       *cache.Cache[*engine.FetchResult]
	closeEngine func()
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Crawl.OutDir)
	if err != nil {
		return nil, err
	}

	limiter := engine.NewIntervalLimiter(cfg.Crawl.RateInterval)
	eng, closeEngine, err := engine.FromConfig(cfg, limiter)
	if err != nil {
		return nil, err
	}

	var pages *cache.Cache[*engine.FetchResult]
	if cfg.Cache.MaxEntries > 0 {
		pages = cache.New[*engine.FetchResult](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	fetcher := engine.NewPageFetcher(eng, limiter, pages, cfg.Fetch.Timeout)

	reg, err := datasets.NewRegistry(cfg, fetcher)
	if err != nil {
		closeEngine()
		return nil, err
	}

	slog.Debug("components ready",
		"engine", eng.Name(),
		"rate_interval", cfg.Crawl.RateInterval,
		"cache_entries", cfg.Cache.MaxEntries,
		"out_dir", cfg.Crawl.OutDir,
	)

	return &app{
		store:       st,
		fetcher:     fetcher,
		registry:    reg,
		pages:       pages,
		closeEngine: closeEngine,
	}, nil
}

func (a *app) Close() {
	if a.pages != nil {
		a.pages.Stop()
	}
	a.closeEngine()
}

func retryConfig(cfg *config.Config) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = cfg.Crawl.PageAttempts
	rc.InitialBackoff = cfg.Crawl.RetryBackoff
	return rc
}

// startStatusServer serves progress, datasets and metrics on addr until the
// returned stop function is called.
func startStatusServer(addr string, a *app, progress *crawl.Progress, cfg *config.Config) func() {
	done := make(chan struct{})
	router := api.NewRouter(progress, a.registry, a.store, cfg, time.Now(), done)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("status server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server error", "error", err)
		}
	}()

	return func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("status server forced shutdown", "error", err)
			return
		}
		slog.Info("status server drained gracefully")
	}
}
