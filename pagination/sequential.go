package pagination

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/simhash"
)

// Sequential visits pages 1, 2, 3, … until a page yields no rows.
//
// URLTemplate holds a {page} placeholder and usually a {key} placeholder,
// e.g. "https://www.meertens.knaw.nl/nvb/naam/pagina{page}/begintmet/{key}".
type Sequential struct {
	URLTemplate string

	// UpperKey substitutes the key as an upper-case letter.
	UpperKey bool

	// MaxPages stops the partition after this many pages; 0 is unbounded.
	MaxPages int
}

func (s *Sequential) Name() string { return "sequential" }

// FailurePolicy is AbandonPartition: a page that could not be read looks
// exactly like the end of the listing, so the walk cannot go on safely.
func (s *Sequential) FailurePolicy() FailurePolicy { return AbandonPartition }

// URL renders the template for key and page.
func (s *Sequential) URL(key models.PartitionKey, page int) string {
	k := key.String()
	if s.UpperKey {
		k = key.Upper()
	}
	return strings.NewReplacer("{page}", strconv.Itoa(page), "{key}", k).Replace(s.URLTemplate)
}

func (s *Sequential) Begin(ctx context.Context, key models.PartitionKey) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &sequentialCursor{strategy: s, key: key}, nil
}

type sequentialCursor struct {
	strategy *Sequential
	key      models.PartitionKey
	page     int
	done     bool

	// seen indexes every recorded page of the partition by fingerprint.
	seen map[uint64][]seenPage
}

type seenPage struct {
	page int
	rows []models.Record
}

func (c *sequentialCursor) Next() (models.Locator, bool) {
	if c.done {
		return models.Locator{}, false
	}
	if limit := c.strategy.MaxPages; limit > 0 && c.page >= limit {
		slog.Warn("page cap reached, ending partition",
			"key", c.key,
			"max_pages", limit,
		)
		c.done = true
		return models.Locator{}, false
	}
	c.page++
	return models.Locator{
		Index: c.page,
		Page:  c.page,
		URL:   c.strategy.URL(c.key, c.page),
	}, true
}

// Report ends the walk on an empty page. A page whose rows repeat an
// earlier page of the same partition also ends it: some listings keep
// serving their last page for any higher page number, others wrap around
// to the first. Candidates are found by fingerprint and confirmed by
// comparing the rows.
func (c *sequentialCursor) Report(rows []models.Record) bool {
	if len(rows) == 0 {
		c.done = true
		return true
	}

	fp := simhash.Records(rows)
	for _, earlier := range c.seen[fp] {
		if sameRows(earlier.rows, rows) {
			slog.Warn("page repeats an earlier page, ending partition",
				"key", c.key,
				"page", c.page,
				"repeats", earlier.page,
			)
			c.done = true
			return false
		}
	}

	if c.seen == nil {
		c.seen = make(map[uint64][]seenPage)
	}
	c.seen[fp] = append(c.seen[fp], seenPage{page: c.page, rows: rows})
	return true
}

// sameRows compares two pages as multisets of records, matching the
// order-insensitive fingerprint.
func sameRows(a, b []models.Record) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, r := range a {
		counts[r.Key()]++
	}
	for _, r := range b {
		k := r.Key()
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}
