package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/models"
)

// Progress returns a handler for GET /api/v1/progress.
func Progress(progress *crawl.Progress) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"datasets": progress.Snapshot(),
		})
	}
}

// DatasetProgress returns a handler for GET /api/v1/progress/:dataset.
func DatasetProgress(progress *crawl.Progress) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("dataset")
		dp, ok := progress.Dataset(name)
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "no crawl recorded for dataset " + name,
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "progress": dp})
	}
}
