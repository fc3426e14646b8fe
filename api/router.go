package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/namecrawl/api/handler"
	"github.com/use-agent/namecrawl/api/middleware"
	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/store"
)

// NewRouter creates the status server.
//
// Middleware chain:
//
//	Global:   Recovery → Logger
//	Datasets: Auth (if keys configured) → RateLimit
//
// Health, progress and metrics stay open so probes and scrapers always work.
// done stops the rate limiter's background sweep.
func NewRouter(progress *crawl.Progress, reg *datasets.Registry, st *store.Store, cfg *config.Config, startTime time.Time, done <-chan struct{}) *gin.Engine {
	gin.SetMode(cfg.Status.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(progress, startTime))
	v1.GET("/progress", handler.Progress(progress))
	v1.GET("/progress/:dataset", handler.DatasetProgress(progress))

	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.Status.APIKeys))
	protected.Use(middleware.RateLimit(cfg.Status.RequestsPerSecond, cfg.Status.Burst, done))

	protected.GET("/datasets", handler.ListDatasets(reg, st))
	protected.GET("/datasets/:name/records", handler.Records(reg, st))

	return r
}
