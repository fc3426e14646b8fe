package crawl

import (
	"time"

	"github.com/use-agent/namecrawl/models"
)

// EventType names a step of a crawl run.
type EventType string

const (
	EventPartitionStarted  EventType = "partition.started"
	EventPageRecorded      EventType = "page.recorded"
	EventPageSkipped       EventType = "page.skipped"
	EventPartitionFinished EventType = "partition.finished"
	EventRunFinished       EventType = "run.finished"
)

// Event reports progress to observers. Which fields are set depends on
// Type: page events carry Locator and Rows, PartitionFinished carries
// Result, RunFinished carries Summary.
type Event struct {
	Type    EventType
	Dataset string
	Key     models.PartitionKey
	Time    time.Time

	Locator models.Locator
	Rows    int
	// Total is the number of records accumulated in the partition so far.
	Total int
	Err   error

	Result  *models.PartitionResult
	Summary *models.RunSummary
}

// Observer receives crawl events. Observe is called synchronously from the
// driver loop and must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
