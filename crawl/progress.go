package crawl

import (
	"sync"
	"time"

	"github.com/use-agent/namecrawl/models"
)

// PartitionProgress is the live view of one partition.
type PartitionProgress struct {
	Key          models.PartitionKey   `json:"key"`
	State        models.PartitionState `json:"state"`
	Pages        int                   `json:"pages"`
	SkippedPages int                   `json:"skipped_pages"`
	Records      int                   `json:"records"`
	LastError    string                `json:"last_error,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// DatasetProgress is the live view of one dataset's run.
type DatasetProgress struct {
	Dataset    string              `json:"dataset"`
	Running    bool                `json:"running"`
	Partitions []PartitionProgress `json:"partitions"`
	Records    int                 `json:"records"`
	Abandoned  int                 `json:"abandoned"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Progress tracks running crawls from driver events. It is safe for
// concurrent use; the status server reads it while the driver writes.
type Progress struct {
	mu       sync.RWMutex
	datasets map[string]*datasetState
	order    []string
}

type datasetState struct {
	progress DatasetProgress
	index    map[models.PartitionKey]int
}

func NewProgress() *Progress {
	return &Progress{datasets: make(map[string]*datasetState)}
}

func (p *Progress) Observe(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ds := p.dataset(e.Dataset, e.Time)

	switch e.Type {
	case EventPartitionStarted:
		part := ds.partition(e.Key)
		part.State = models.StatePlanning
		part.UpdatedAt = e.Time
	case EventPageRecorded:
		part := ds.partition(e.Key)
		part.State = models.StateRecording
		part.Pages++
		ds.progress.Records += e.Rows
		part.Records = e.Total
		part.UpdatedAt = e.Time
	case EventPageSkipped:
		part := ds.partition(e.Key)
		part.State = models.StateFetching
		part.SkippedPages++
		if e.Err != nil {
			part.LastError = e.Err.Error()
		}
		part.UpdatedAt = e.Time
	case EventPartitionFinished:
		part := ds.partition(e.Key)
		if r := e.Result; r != nil {
			part.State = r.State
			part.Pages = r.Pages
			part.SkippedPages = r.SkippedPages
			part.Records = r.Records
			if r.Error != "" {
				part.LastError = r.Error
			}
			if r.State == models.StateAbandoned {
				ds.progress.Abandoned++
			}
		}
		part.UpdatedAt = e.Time
	case EventRunFinished:
		ds.progress.Running = false
		finished := e.Time
		ds.progress.FinishedAt = &finished
		if e.Summary != nil {
			ds.progress.Records = e.Summary.Records
		}
	}
}

// Snapshot returns a copy of all tracked datasets in the order they started.
func (p *Progress) Snapshot() []DatasetProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]DatasetProgress, 0, len(p.order))
	for _, name := range p.order {
		dp := p.datasets[name].progress
		dp.Partitions = append([]PartitionProgress(nil), dp.Partitions...)
		out = append(out, dp)
	}
	return out
}

// Dataset returns a copy of one dataset's progress.
func (p *Progress) Dataset(name string) (DatasetProgress, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ds, ok := p.datasets[name]
	if !ok {
		return DatasetProgress{}, false
	}
	dp := ds.progress
	dp.Partitions = append([]PartitionProgress(nil), dp.Partitions...)
	return dp, true
}

// dataset returns the state for name, starting a fresh one when the
// dataset is new or its previous run has finished. Caller holds mu.
func (p *Progress) dataset(name string, at time.Time) *datasetState {
	ds, ok := p.datasets[name]
	if ok && ds.progress.Running {
		return ds
	}
	ds = &datasetState{
		progress: DatasetProgress{Dataset: name, Running: true, StartedAt: at},
		index:    make(map[models.PartitionKey]int),
	}
	if !ok {
		p.order = append(p.order, name)
	}
	p.datasets[name] = ds
	return ds
}

func (ds *datasetState) partition(key models.PartitionKey) *PartitionProgress {
	if i, ok := ds.index[key]; ok {
		return &ds.progress.Partitions[i]
	}
	ds.index[key] = len(ds.progress.Partitions)
	ds.progress.Partitions = append(ds.progress.Partitions, PartitionProgress{Key: key, State: models.StatePending})
	return &ds.progress.Partitions[len(ds.progress.Partitions)-1]
}
