package crawl

import (
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
)

// PartitionWriter accumulates one partition's records and keeps its
// snapshot on disk equal to everything accepted so far. The snapshot is
// rewritten in full after each page, through an atomic replace, so an
// interrupted run leaves the last complete page set behind.
type PartitionWriter struct {
	store  *store.Store
	target *Target
	arity  int

	key  models.PartitionKey
	name string
	rows []models.Record
}

func NewPartitionWriter(st *store.Store, target *Target) *PartitionWriter {
	return &PartitionWriter{
		store:  st,
		target: target,
		arity:  target.Extractor.Arity(),
	}
}

// Begin starts key with an empty accumulation. A snapshot left over from
// an earlier run is removed so it cannot be merged as if it were current.
func (w *PartitionWriter) Begin(key models.PartitionKey) error {
	w.key = key
	w.name = w.target.SnapshotName(key)
	w.rows = nil
	return w.store.Delete(w.name)
}

// Record appends rows and persists the whole accumulation. Rows of the
// wrong arity are rejected before anything is written. Recording no rows
// is a no-op, so a partition without data never gets a snapshot.
func (w *PartitionWriter) Record(rows []models.Record) error {
	if w.name == "" {
		return models.NewCrawlError(models.ErrCodeInternal, "writer: Record called before Begin", nil)
	}
	if err := checkArity(rows, w.arity); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	// The accumulation owns its records; callers may reuse their slices.
	for _, r := range rows {
		w.rows = append(w.rows, r.Clone())
	}
	return w.store.WriteJSON(w.name, w.rows)
}

func (w *PartitionWriter) Len() int { return len(w.rows) }

// Snapshot is the artifact name of the current partition, empty before
// Begin.
func (w *PartitionWriter) Snapshot() string { return w.name }
