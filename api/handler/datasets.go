package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
)

// ListDatasets returns a handler for GET /api/v1/datasets.
func ListDatasets(reg *datasets.Registry, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]models.DatasetInfo, 0, len(reg.Names()))
		for _, name := range reg.Names() {
			d, err := reg.Get(name)
			if err != nil {
				continue
			}
			available, err := st.Exists(d.OutputName())
			if err != nil {
				slog.Warn("dataset stat failed", "dataset", name, "error", err)
			}
			out = append(out, models.DatasetInfo{
				Name:        d.Name,
				Description: d.Description,
				Source:      d.Source,
				Fields:      d.Fields,
				Strategy:    d.Strategy.Name(),
				Available:   available,
			})
		}
		c.JSON(http.StatusOK, models.DatasetsResponse{Success: true, Datasets: out})
	}
}

// Records returns a handler for GET /api/v1/datasets/:name/records.
//
// Query parameters: prefix (case-insensitive match on the first field) and
// limit (default 100, max 1000).
func Records(reg *datasets.Registry, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := reg.Get(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusNotFound, models.RecordsResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: err.Error()},
			})
			return
		}

		limit := defaultRecordLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, models.RecordsResponse{
					Dataset: d.Name,
					Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "limit must be a positive integer"},
				})
				return
			}
			limit = min(n, maxRecordLimit)
		}

		res, err := datasets.Search(st, d, c.Query("prefix"), limit)
		if err != nil {
			status := http.StatusNotFound
			detail := &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "dataset " + d.Name + " has not been merged yet"}
			if !errors.Is(err, fs.ErrNotExist) {
				status = http.StatusInternalServerError
				var ce *models.CrawlError
				if errors.As(err, &ce) {
					detail = ce.ToDetail()
				} else {
					detail = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
				}
			}
			c.JSON(status, models.RecordsResponse{Dataset: d.Name, Error: detail})
			return
		}

		c.JSON(http.StatusOK, models.RecordsResponse{
			Success: true,
			Dataset: res.Dataset,
			Prefix:  res.Prefix,
			Total:   res.Total,
			Records: res.Records,
		})
	}
}
