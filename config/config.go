package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Crawl    CrawlConfig
	Fetch    FetchConfig
	Browser  BrowserConfig
	Cache    CacheConfig
	Datasets DatasetsConfig
	Status   StatusConfig
	Webhook  WebhookConfig
	Log      LogConfig
}

// CrawlConfig controls the partition crawl loop.
type CrawlConfig struct {
	// OutDir is where snapshots and consolidated datasets are written.
	OutDir string // default: "."

	// RateInterval is the minimum spacing between two outbound fetches,
	// measured across the whole run.
	RateInterval time.Duration // default: 2s

	// PageAttempts is the total number of tries per page (1 = no retry).
	PageAttempts int // default: 2

	// RetryBackoff is the delay before the first retry of a page.
	RetryBackoff time.Duration // default: 1s

	// MaxPages caps the pages visited per partition; 0 means unlimited.
	MaxPages int // default: 10000
}

// FetchConfig controls the transport.
type FetchConfig struct {
	// Engine selects the fetch engine: "http", "browser" or "auto"
	// (http first, escalating to the browser on failure).
	Engine string // default: "http"

	// Timeout is the per-request deadline.
	Timeout time.Duration // default: 30s

	UserAgent string

	// Proxy is an optional http(s) proxy URL.
	Proxy string
}

// BrowserConfig controls the Rod browser used by the browser engine.
type BrowserConfig struct {
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// CacheConfig controls the fetched-page cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached pages; 0 disables the cache.
	MaxEntries int // default: 64

	// TTL bounds how long a cached page may be reused.
	TTL time.Duration // default: 10m
}

// DatasetsConfig holds the listing endpoints.
type DatasetsConfig struct {
	// FirstNamesURL is the sequential listing template with {page} and {key}.
	FirstNamesURL string

	// SurnamesURL is the discovery listing base URL (no query string).
	SurnamesURL string

	// SurnamesTLSVerify enables certificate validation for SurnamesURL.
	// The origin has a misconfigured certificate, hence off by default.
	SurnamesTLSVerify bool // default: false
}

// StatusConfig controls the optional progress/metrics HTTP server.
type StatusConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string
	Mode string // "debug", "release", "test"; default: "release"

	// APIKeys guards the dataset endpoints; empty leaves them open.
	APIKeys []string

	RequestsPerSecond float64 // default: 10
	Burst             int     // default: 20
}

// WebhookConfig controls crawl event notifications.
type WebhookConfig struct {
	// URL receives partition and run events; empty disables webhooks.
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

const (
	defaultFirstNamesURL = "https://www.meertens.knaw.nl/nvb/naam/pagina{page}/begintmet/{key}"
	defaultSurnamesURL   = "https://www.cbgfamilienamen.nl/nfb/lijst_namen.php"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Crawl: CrawlConfig{
			OutDir:       envOr("NAMECRAWL_OUT_DIR", "."),
			RateInterval: envDurationOr("NAMECRAWL_RATE_INTERVAL", 2*time.Second),
			PageAttempts: envIntOr("NAMECRAWL_PAGE_ATTEMPTS", 2),
			RetryBackoff: envDurationOr("NAMECRAWL_RETRY_BACKOFF", time.Second),
			MaxPages:     envIntOr("NAMECRAWL_MAX_PAGES", 10000),
		},
		Fetch: FetchConfig{
			Engine:    envOr("NAMECRAWL_ENGINE", "http"),
			Timeout:   envDurationOr("NAMECRAWL_HTTP_TIMEOUT", 30*time.Second),
			UserAgent: envOr("NAMECRAWL_USER_AGENT", defaultUserAgent),
			Proxy:     os.Getenv("NAMECRAWL_PROXY"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("NAMECRAWL_HEADLESS", true),
			NoSandbox:  envBoolOr("NAMECRAWL_NO_SANDBOX", false),
			BrowserBin: os.Getenv("NAMECRAWL_BROWSER_BIN"),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("NAMECRAWL_CACHE_MAX_ENTRIES", 64),
			TTL:        envDurationOr("NAMECRAWL_CACHE_TTL", 10*time.Minute),
		},
		Datasets: DatasetsConfig{
			FirstNamesURL:     envOr("NAMECRAWL_FIRST_NAMES_URL", defaultFirstNamesURL),
			SurnamesURL:       envOr("NAMECRAWL_SURNAMES_URL", defaultSurnamesURL),
			SurnamesTLSVerify: envBoolOr("NAMECRAWL_SURNAMES_TLS_VERIFY", false),
		},
		Status: StatusConfig{
			Addr: os.Getenv("NAMECRAWL_STATUS_ADDR"),
			Mode: envOr("NAMECRAWL_MODE", "release"),

			APIKeys:           envSliceOr("NAMECRAWL_STATUS_API_KEYS", nil),
			RequestsPerSecond: envFloatOr("NAMECRAWL_STATUS_RPS", 10),
			Burst:             envIntOr("NAMECRAWL_STATUS_BURST", 20),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("NAMECRAWL_WEBHOOK_URL"),
			Secret: os.Getenv("NAMECRAWL_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("NAMECRAWL_LOG_LEVEL", "info"),
			Format: envOr("NAMECRAWL_LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects settings the crawl cannot run with.
func (c *Config) Validate() error {
	switch c.Fetch.Engine {
	case "http", "browser", "auto":
	default:
		return fmt.Errorf("config: unknown engine %q (want http, browser or auto)", c.Fetch.Engine)
	}
	if c.Crawl.RateInterval < 0 {
		return fmt.Errorf("config: rate interval must not be negative, got %s", c.Crawl.RateInterval)
	}
	if c.Crawl.PageAttempts < 1 {
		return fmt.Errorf("config: page attempts must be at least 1, got %d", c.Crawl.PageAttempts)
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("config: max pages must not be negative, got %d", c.Crawl.MaxPages)
	}
	if !strings.Contains(c.Datasets.FirstNamesURL, "{page}") {
		return fmt.Errorf("config: first names URL %q has no {page} placeholder", c.Datasets.FirstNamesURL)
	}
	if c.Status.RequestsPerSecond <= 0 || c.Status.Burst < 1 {
		return fmt.Errorf("config: status rate limit needs positive rps and burst, got %v/%d",
			c.Status.RequestsPerSecond, c.Status.Burst)
	}
	if c.Datasets.SurnamesURL == "" {
		return fmt.Errorf("config: surnames URL is empty")
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envSliceOr splits a comma-separated variable, dropping empty items.
func envSliceOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
