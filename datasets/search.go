package datasets

import (
	"strings"

	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
)

// SearchResult is one page of matches from a consolidated dataset.
type SearchResult struct {
	Dataset string          `json:"dataset"`
	Prefix  string          `json:"prefix"`
	Total   int             `json:"total"`
	Records []models.Record `json:"records"`
}

// Search reads d's consolidated output and returns the records whose first
// field starts with prefix, case-insensitively, in dataset order. Total
// counts every match; Records holds at most limit of them (limit <= 0 means
// no cap).
func Search(st *store.Store, d *Dataset, prefix string, limit int) (*SearchResult, error) {
	records, err := st.ReadRecords(d.OutputName())
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Dataset: d.Name, Prefix: prefix, Records: []models.Record{}}
	p := strings.ToLower(prefix)
	for _, r := range records {
		if len(r) == 0 || !strings.HasPrefix(strings.ToLower(r[0]), p) {
			continue
		}
		res.Total++
		if limit <= 0 || len(res.Records) < limit {
			res.Records = append(res.Records, r)
		}
	}
	return res, nil
}
