package engine

import (
	"context"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// Fetcher retrieves listing pages for the crawl. *PageFetcher is the
// production implementation; tests substitute their own.
type Fetcher interface {
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string

	// InsecureSkipVerify disables TLS certificate validation. Only listings
	// with a known-broken certificate set this.
	InsecureSkipVerify bool

	// Refresh skips the page cache lookup so the page is fetched again. The
	// fresh result still replaces the cached one.
	Refresh bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	Body       []byte
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string

	// Cached is true when the result came from the page cache rather than
	// the network.
	Cached bool
}
