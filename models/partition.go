package models

import (
	"fmt"
	"strings"
	"time"
)

// PartitionKey is a single lower-case letter identifying one page-space
// to crawl.
type PartitionKey string

// Alphabet returns the full key space a..z in visiting order.
func Alphabet() []PartitionKey {
	keys := make([]PartitionKey, 0, 26)
	for c := 'a'; c <= 'z'; c++ {
		keys = append(keys, PartitionKey(string(c)))
	}
	return keys
}

// ParsePartitionKey normalises s to a lower-case letter key.
func ParsePartitionKey(s string) (PartitionKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 1 || s[0] < 'a' || s[0] > 'z' {
		return "", NewCrawlError(ErrCodeInvalidInput, fmt.Sprintf("invalid partition key %q", s), nil)
	}
	return PartitionKey(s), nil
}

// ParsePartitionKeys turns a letter list such as "abc" or "a,b,c" into keys
// ordered by the alphabet, without duplicates. An empty string selects the
// whole alphabet.
func ParsePartitionKeys(s string) ([]PartitionKey, error) {
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	if s == "" {
		return Alphabet(), nil
	}
	want := make(map[PartitionKey]struct{}, len(s))
	for _, r := range s {
		key, err := ParsePartitionKey(string(r))
		if err != nil {
			return nil, err
		}
		want[key] = struct{}{}
	}
	keys := make([]PartitionKey, 0, len(want))
	for _, key := range Alphabet() {
		if _, ok := want[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (k PartitionKey) String() string { return string(k) }

// Upper returns the key as an upper-case letter, as some listings expect.
func (k PartitionKey) Upper() string { return strings.ToUpper(string(k)) }

// Locator says where to fetch next within one partition.
// Sequential pagination fills Page; offset discovery fills Offset and URL.
type Locator struct {
	// Index is the 1-based position of the locator within its partition plan.
	Index  int
	Page   int
	Offset int
	URL    string
}

// PartitionState is a step of the per-partition crawl state machine.
type PartitionState string

const (
	StatePending   PartitionState = "pending"
	StatePlanning  PartitionState = "planning"
	StateFetching  PartitionState = "fetching"
	StateRecording PartitionState = "recording"
	StateDone      PartitionState = "done"
	StateAbandoned PartitionState = "abandoned"
)

// Terminal reports whether no further pages will be fetched for the partition.
func (s PartitionState) Terminal() bool {
	return s == StateDone || s == StateAbandoned
}

// PartitionResult summarises one partition once it reaches a terminal state.
type PartitionResult struct {
	Dataset      string         `json:"dataset"`
	Key          PartitionKey   `json:"key"`
	State        PartitionState `json:"state"`
	Pages        int            `json:"pages"`
	SkippedPages int            `json:"skipped_pages"`
	Records      int            `json:"records"`
	Snapshot     string         `json:"snapshot,omitempty"`
	Error        string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration"`
}

// RunSummary summarises a full crawl of one dataset.
type RunSummary struct {
	Dataset    string            `json:"dataset"`
	Partitions []PartitionResult `json:"partitions"`
	Records    int               `json:"records"`
	Abandoned  int               `json:"abandoned"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}
