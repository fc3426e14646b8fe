package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/namecrawl/models"
)

// Table extracts records from the rows of one identified table. A page
// without that table yields no records; that is how the listing signals
// "no more results".
type Table struct {
	selector string
	cells    int
}

// NewTable builds a Table reading the first cells columns of every data row
// of the element matched by selector (e.g. "table#hitlist").
func NewTable(selector string, cells int) (*Table, error) {
	if cells < 1 {
		return nil, fmt.Errorf("extract: table cell count must be positive, got %d", cells)
	}
	if selector == "" {
		return nil, fmt.Errorf("extract: table selector is empty")
	}
	return &Table{selector: selector, cells: cells}, nil
}

func (t *Table) Arity() int { return t.cells }

// Extract skips the first (header) row. Rows with fewer cells than the
// arity, or with an empty first cell, are skipped.
func (t *Table) Extract(body []byte) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeMalformedPage, "extract: parse html", err)
	}

	records := []models.Record{}

	table := doc.Find(t.selector).First()
	if table.Length() == 0 {
		return records, nil
	}

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < t.cells {
			return
		}

		fields := make(models.Record, t.cells)
		cells.Slice(0, t.cells).Each(func(j int, cell *goquery.Selection) {
			fields[j] = strings.TrimSpace(cell.Text())
		})
		if fields[0] == "" {
			return
		}
		records = append(records, fields)
	})

	return records, nil
}
