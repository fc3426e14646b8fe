package pagination

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/namecrawl/engine"
	"github.com/use-agent/namecrawl/models"
)

// rangeLabel matches pagination link texts such as "51-100" or "51 - 100".
var rangeLabel = regexp.MustCompile(`^\d+\s*-\s*\d+$`)

// Discovery plans a partition by reading the pagination links on its first
// page. Listings of this kind address pages by record offset rather than
// page number.
type Discovery struct {
	BaseURL string

	KeyParam      string // default "naam"
	OperatorParam string // default "operator"
	Operator      string // default "bw" (begins with)
	OffsetParam   string // default "offset"

	// InsecureSkipVerify disables certificate checks for this listing.
	InsecureSkipVerify bool

	Fetcher engine.Fetcher
}

// NewDiscovery returns a Discovery with the CBG listing parameter names.
func NewDiscovery(baseURL string, fetcher engine.Fetcher, insecure bool) *Discovery {
	return &Discovery{
		BaseURL:            baseURL,
		KeyParam:           "naam",
		OperatorParam:      "operator",
		Operator:           "bw",
		OffsetParam:        "offset",
		InsecureSkipVerify: insecure,
		Fetcher:            fetcher,
	}
}

func (d *Discovery) Name() string { return "discovery" }

// FailurePolicy is SkipPage: the plan is known up front, so one unreadable
// page does not hide the rest.
func (d *Discovery) FailurePolicy() FailurePolicy { return SkipPage }

// FirstPageURL is the unparameterised listing page for key.
func (d *Discovery) FirstPageURL(key models.PartitionKey) string {
	sep := "?"
	if strings.Contains(d.BaseURL, "?") {
		sep = "&"
	}
	return d.BaseURL + sep +
		d.OperatorParam + "=" + url.QueryEscape(d.Operator) + "&" +
		d.KeyParam + "=" + url.QueryEscape(key.Upper())
}

// Begin fetches the first page and harvests its pagination links. When
// that fails the plan holds the first page only.
func (d *Discovery) Begin(ctx context.Context, key models.PartitionKey) (Cursor, error) {
	first := d.FirstPageURL(key)

	plan, err := d.discover(ctx, key, first)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Warn("offset discovery failed, crawling first page only",
			"key", key,
			"code", models.ErrCodeDiscovery,
			"error", err,
		)
		plan = []models.Locator{{Offset: 0, URL: first}}
	}

	slog.Info("partition planned", "key", key, "pages", len(plan))
	return newPlanCursor(plan), nil
}

func (d *Discovery) discover(ctx context.Context, key models.PartitionKey, first string) ([]models.Locator, error) {
	if d.Fetcher == nil {
		return nil, models.NewCrawlError(models.ErrCodeDiscovery, "no fetcher configured", nil)
	}
	res, err := d.Fetcher.Fetch(ctx, &engine.FetchRequest{URL: first, InsecureSkipVerify: d.InsecureSkipVerify})
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeDiscovery, "fetch first page", err)
	}
	offsets, err := d.Harvest(res.Body, first, key)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeDiscovery, "harvest pagination links", err)
	}

	offsets[0] = first
	keys := make([]int, 0, len(offsets))
	for off := range offsets {
		keys = append(keys, off)
	}
	slices.Sort(keys)

	plan := make([]models.Locator, 0, len(keys))
	for _, off := range keys {
		plan = append(plan, models.Locator{Offset: off, URL: offsets[off]})
	}
	return plan, nil
}

// Harvest returns the pagination targets found in body by offset. Links are
// resolved against pageURL; the first link seen for an offset wins.
func (d *Discovery) Harvest(body []byte, pageURL string, key models.PartitionKey) (map[int]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("pagination: parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pagination: parse html: %w", err)
	}

	offsets := make(map[int]string)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if !rangeLabel.MatchString(strings.TrimSpace(s.Text())) {
			return
		}
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		target := base.ResolveReference(ref)

		q := target.Query()
		if !q.Has(d.OffsetParam) ||
			!strings.EqualFold(q.Get(d.KeyParam), key.String()) ||
			q.Get(d.OperatorParam) != d.Operator {
			return
		}
		off, err := strconv.Atoi(q.Get(d.OffsetParam))
		if err != nil || off < 0 {
			return
		}
		if _, seen := offsets[off]; !seen {
			offsets[off] = target.String()
		}
	})
	return offsets, nil
}
