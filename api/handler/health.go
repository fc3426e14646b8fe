package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status is "crawling" while any dataset run is in progress, "idle"
// otherwise.
func Health(progress *crawl.Progress, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		running := []string{}
		for _, dp := range progress.Snapshot() {
			if dp.Running {
				running = append(running, dp.Dataset)
			}
		}

		status := "idle"
		if len(running) > 0 {
			status = "crawling"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: Version,
			Running: running,
		})
	}
}
