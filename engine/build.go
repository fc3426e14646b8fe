package engine

import (
	"fmt"
	"time"

	"github.com/use-agent/namecrawl/config"
)

// FromConfig builds the engine selected by cfg.Fetch.Engine. limiter is the
// run-wide limiter; the auto mode waits on it before escalating. The
// returned close function releases the browser when one was configured.
func FromConfig(cfg *config.Config, limiter Limiter) (Engine, func(), error) {
	httpEngine := NewHTTPEngine(HTTPOptions{
		UserAgent: cfg.Fetch.UserAgent,
		Proxy:     cfg.Fetch.Proxy,
	})

	switch cfg.Fetch.Engine {
	case "http":
		return httpEngine, func() {}, nil
	case "browser":
		browser := NewBrowserEngine(cfg.Browser, cfg.Fetch.UserAgent, cfg.Fetch.Proxy)
		return browser, browser.Close, nil
	case "auto":
		browser := NewBrowserEngine(cfg.Browser, cfg.Fetch.UserAgent, cfg.Fetch.Proxy)
		d := NewDispatcher([]Engine{httpEngine, browser}, NewDomainMemory(24*time.Hour), limiter)
		return d, browser.Close, nil
	default:
		return nil, nil, fmt.Errorf("engine: unknown engine %q", cfg.Fetch.Engine)
	}
}
