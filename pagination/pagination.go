// Package pagination decides which pages of a partition to fetch and when
// a partition has been exhausted.
package pagination

import (
	"context"

	"github.com/use-agent/namecrawl/models"
)

// FailurePolicy says what the crawl driver does with a page that still
// fails after all retry attempts.
type FailurePolicy int

const (
	// AbandonPartition stops the partition, keeping pages already written.
	// Used where a missing page cannot be told apart from the end of data.
	AbandonPartition FailurePolicy = iota

	// SkipPage logs the page and moves on to the next locator.
	SkipPage
)

func (p FailurePolicy) String() string {
	switch p {
	case AbandonPartition:
		return "abandon_partition"
	case SkipPage:
		return "skip_page"
	default:
		return "unknown"
	}
}

// Strategy plans the pages of one partition.
type Strategy interface {
	Name() string

	// Begin starts a fresh walk over the partition identified by key. The
	// only error returned is the context's; planning problems degrade to a
	// smaller plan instead.
	Begin(ctx context.Context, key models.PartitionKey) (Cursor, error)

	FailurePolicy() FailurePolicy
}

// Cursor yields the locators of one partition in fetch order.
type Cursor interface {
	// Next returns the next page to fetch, or false when the partition is
	// finished.
	Next() (models.Locator, bool)

	// Report hands back the rows extracted from the page most recently
	// returned by Next. It returns false when the rows must not be recorded
	// (the cursor recognised them as a repeat) and the partition ends.
	Report(rows []models.Record) bool
}

// planCursor walks a fixed list of locators.
type planCursor struct {
	plan []models.Locator
	pos  int
}

func newPlanCursor(plan []models.Locator) *planCursor {
	for i := range plan {
		plan[i].Index = i + 1
	}
	return &planCursor{plan: plan}
}

func (c *planCursor) Next() (models.Locator, bool) {
	if c.pos >= len(c.plan) {
		return models.Locator{}, false
	}
	loc := c.plan[c.pos]
	c.pos++
	return loc, true
}

// Report never ends a planned walk early: an empty page in the middle of
// a discovered plan is just an empty page.
func (c *planCursor) Report([]models.Record) bool { return true }

// Len is the number of planned locators.
func (c *planCursor) Len() int { return len(c.plan) }
