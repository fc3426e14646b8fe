// Package crawl drives partitions through their pages, persists what it
// finds, and folds per-partition snapshots into one dataset.
package crawl

import (
	"github.com/use-agent/namecrawl/extract"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/pagination"
)

// Target describes one dataset to crawl: where its pages are, how to read
// them, and where its artifacts go.
type Target struct {
	// Name identifies the dataset and names its consolidated output
	// ("first_names" -> "first_names.json").
	Name string

	// SnapshotPrefix is prepended to the key for per-partition snapshots
	// ("surnames_" -> "surnames_a.json").
	SnapshotPrefix string

	Strategy  pagination.Strategy
	Extractor extract.RowExtractor

	// InsecureSkipVerify disables certificate checks for this dataset's
	// origin.
	InsecureSkipVerify bool
}

// SnapshotName is the artifact name of key's partition snapshot.
func (t *Target) SnapshotName(key models.PartitionKey) string {
	return t.SnapshotPrefix + key.String() + ".json"
}

// OutputName is the artifact name of the consolidated dataset.
func (t *Target) OutputName() string {
	return t.Name + ".json"
}
