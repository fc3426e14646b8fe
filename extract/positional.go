package extract

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/namecrawl/models"
)

// Positional reads every cell matching a selector in document order, drops
// a fixed number of leading header cells and groups the rest into tuples.
// Cell text is kept as it appears in the markup, untrimmed.
//
// Cells left over after the last full tuple are dropped without error: a
// page with 3+7 cells yields two records and one cell is lost.
type Positional struct {
	selector string
	sel      cascadia.Sel
	skip     int
	width    int
}

// NewPositional compiles selector. skip is the header cell count, width
// the tuple size.
func NewPositional(selector string, skip, width int) (*Positional, error) {
	if width < 1 {
		return nil, fmt.Errorf("extract: positional width must be positive, got %d", width)
	}
	if skip < 0 {
		return nil, fmt.Errorf("extract: positional skip must not be negative, got %d", skip)
	}
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("extract: parse selector %q: %w", selector, err)
	}
	return &Positional{selector: selector, sel: sel, skip: skip, width: width}, nil
}

func (p *Positional) Arity() int { return p.width }

func (p *Positional) Extract(body []byte) ([]models.Record, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeMalformedPage, "extract: parse html", err)
	}

	nodes := cascadia.QueryAll(doc, p.sel)
	if len(nodes) <= p.skip {
		return []models.Record{}, nil
	}

	cells := make([]string, 0, len(nodes)-p.skip)
	for _, n := range nodes[p.skip:] {
		cells = append(cells, nodeText(n))
	}

	full := len(cells) / p.width
	records := make([]models.Record, 0, full)
	for i := range full {
		records = append(records, models.Record(slices.Clone(cells[i*p.width:(i+1)*p.width])))
	}
	return records, nil
}
