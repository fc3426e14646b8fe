package crawl

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/namecrawl/metrics"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
)

// ErrNoSnapshots is returned by Merge when no partition snapshot exists.
// The consolidated dataset is left as it was.
var ErrNoSnapshots = errors.New("crawl: no partition snapshots to merge")

// MergeResult describes one consolidation.
type MergeResult struct {
	Dataset string `json:"dataset"`
	Output  string `json:"output"`

	// Snapshots lists the partition snapshots folded in, in key order.
	Snapshots []string `json:"snapshots"`

	// Read is the number of records read, Records the unique ones written.
	Read    int `json:"read"`
	Records int `json:"records"`
}

// Merger folds a dataset's partition snapshots into its consolidated
// output: deduplicated, sorted, written once, then the snapshots removed.
// Merging the same snapshots again, in any order, gives the same file.
type Merger struct {
	store  *store.Store
	target *Target

	// Keys limits which partitions are considered; empty means the whole
	// alphabet.
	Keys []models.PartitionKey

	// Incremental folds the existing consolidated output in as well, so a
	// run over a subset of keys adds to the dataset instead of replacing it.
	Incremental bool
}

func NewMerger(st *store.Store, target *Target) *Merger {
	return &Merger{store: st, target: target}
}

func (m *Merger) Merge(ctx context.Context) (*MergeResult, error) {
	keys := m.Keys
	if len(keys) == 0 {
		keys = models.Alphabet()
	}

	result := &MergeResult{
		Dataset: m.target.Name,
		Output:  m.target.OutputName(),
	}
	seen := make(map[string]models.Record)
	add := func(rows []models.Record) {
		result.Read += len(rows)
		for _, r := range rows {
			seen[r.Key()] = r
		}
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := m.target.SnapshotName(key)
		ok, err := m.store.Exists(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows, err := m.store.ReadRecords(name)
		if err != nil {
			return nil, err
		}
		add(rows)
		result.Snapshots = append(result.Snapshots, name)
	}

	if len(result.Snapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	if m.Incremental {
		ok, err := m.store.Exists(result.Output)
		if err != nil {
			return nil, err
		}
		if ok {
			prev, err := m.store.ReadRecords(result.Output)
			if err != nil {
				return nil, err
			}
			add(prev)
		}
	}

	merged := make([]models.Record, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	models.SortRecords(merged)
	result.Records = len(merged)

	if err := m.store.WriteJSON(result.Output, merged); err != nil {
		return nil, err
	}

	for _, name := range result.Snapshots {
		if err := m.store.Delete(name); err != nil {
			// The output is already complete; a leftover snapshot only
			// gets merged again next time.
			slog.Warn("failed to remove merged snapshot", "snapshot", name, "error", err)
		}
	}

	metrics.MergedRecords.WithLabelValues(m.target.Name).Set(float64(result.Records))
	slog.Info("dataset merged",
		"dataset", m.target.Name,
		"output", m.store.Path(result.Output),
		"snapshots", len(result.Snapshots),
		"read", result.Read,
		"records", result.Records,
	)
	return result, nil
}
