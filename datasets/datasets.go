// Package datasets knows the name listings namecrawl can harvest and how
// each one is paginated and parsed.
package datasets

import (
	"fmt"
	"strings"

	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/engine"
	"github.com/use-agent/namecrawl/extract"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/pagination"
)

const (
	FirstNames = "first_names"
	Surnames   = "surnames"
)

// Dataset is a crawlable listing plus what to tell people about it.
type Dataset struct {
	*crawl.Target

	Description string
	Source      string

	// Fields names the record fields in order.
	Fields []string
}

// Registry holds the known datasets in a stable order.
type Registry struct {
	order  []string
	byName map[string]*Dataset
}

// NewRegistry builds the datasets from cfg. Discovery-paginated datasets
// fetch their first page through fetcher while planning.
func NewRegistry(cfg *config.Config, fetcher engine.Fetcher) (*Registry, error) {
	positional, err := extract.NewPositional("td", 3, 3)
	if err != nil {
		return nil, err
	}
	table, err := extract.NewTable("table#hitlist", 3)
	if err != nil {
		return nil, err
	}

	insecure := !cfg.Datasets.SurnamesTLSVerify

	r := &Registry{byName: make(map[string]*Dataset)}
	r.add(&Dataset{
		Target: &crawl.Target{
			Name: FirstNames,
			Strategy: &pagination.Sequential{
				URLTemplate: cfg.Datasets.FirstNamesURL,
				MaxPages:    cfg.Crawl.MaxPages,
			},
			Extractor: positional,
		},
		Description: "Dutch first names (Nederlandse Voornamenbank)",
		Source:      cfg.Datasets.FirstNamesURL,
		Fields:      []string{"name", "count_first", "count_other"},
	})
	r.add(&Dataset{
		Target: &crawl.Target{
			Name:               Surnames,
			SnapshotPrefix:     "surnames_",
			Strategy:           pagination.NewDiscovery(cfg.Datasets.SurnamesURL, fetcher, insecure),
			Extractor:          table,
			InsecureSkipVerify: insecure,
		},
		Description: "Dutch surnames (Nederlandse Familienamenbank)",
		Source:      cfg.Datasets.SurnamesURL,
		Fields:      []string{"surname", "count", "normalized"},
	})
	return r, nil
}

func (r *Registry) add(d *Dataset) {
	r.order = append(r.order, d.Name)
	r.byName[d.Name] = d
}

// Names returns the dataset names in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Get looks a dataset up by name.
func (r *Registry) Get(name string) (*Dataset, error) {
	d, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, models.NewCrawlError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown dataset %q (known: %s)", name, strings.Join(r.order, ", ")), nil)
	}
	return d, nil
}

// Resolve returns the named datasets in registry order, or all of them
// when names is empty.
func (r *Registry) Resolve(names []string) ([]*Dataset, error) {
	if len(names) == 0 {
		names = r.order
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		d, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		want[d.Name] = struct{}{}
	}
	out := make([]*Dataset, 0, len(want))
	for _, n := range r.order {
		if _, ok := want[n]; ok {
			out = append(out, r.byName[n])
		}
	}
	return out, nil
}
