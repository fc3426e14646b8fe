// Package extract turns one fetched listing page into records.
package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/namecrawl/models"
)

// RowExtractor parses a page body into fixed-arity records. An empty
// result means the page holds no rows; the error return is reserved for
// markup that cannot be parsed at all.
type RowExtractor interface {
	Extract(body []byte) ([]models.Record, error)

	// Arity is the number of fields in every record produced.
	Arity() int
}

// nodeText concatenates all text beneath n in document order, like the
// DOM textContent property.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
