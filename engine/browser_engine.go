package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/models"
)

// statusJS reads the HTTP status of the main document from the navigation
// timing entry. Returns 0 when the browser does not expose it.
const statusJS = `() => {
	const nav = performance.getEntriesByType("navigation")[0];
	return nav && nav.responseStatus ? nav.responseStatus : 0;
}`

// BrowserEngine renders pages in headless Chromium via Rod. The browser is
// launched lazily on first use and shared by all fetches until Close.
type BrowserEngine struct {
	cfg       config.BrowserConfig
	userAgent string
	proxy     string

	mu      sync.Mutex
	browser *rod.Browser
	health  *browserHealth
}

// NewBrowserEngine creates a BrowserEngine. No browser is started until the
// first Fetch.
func NewBrowserEngine(cfg config.BrowserConfig, userAgent, proxy string) *BrowserEngine {
	return &BrowserEngine{cfg: cfg, userAgent: userAgent, proxy: proxy, health: newBrowserHealth()}
}

func (e *BrowserEngine) Name() string { return "browser" }

// connect launches and connects to the browser if that has not happened yet.
func (e *BrowserEngine) connect() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}
	if e.proxy != "" {
		l = l.Proxy(e.proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser_engine: launch: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("browser_engine: connect: %w", err)
	}
	e.browser = browser
	e.health.reset()
	return browser, nil
}

// Fetch renders req.URL. The outcome feeds the browser's health score and
// an unhealthy browser is shut down, to be relaunched by the next fetch.
func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	result, err := e.render(ctx, req)

	switch {
	case err == nil:
		e.health.recordSuccess()
	case models.IsCode(err, models.ErrCodeHTTPStatus):
		e.health.recordUse()
	case ctx.Err() != nil:
	default:
		e.health.recordFailure()
	}

	if restart, reason := e.health.shouldRestart(); restart && e.running() {
		slog.Info("restarting browser", "reason", reason)
		e.Close()
	}
	return result, err
}

func (e *BrowserEngine) render(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	browser, err := e.connect()
	if err != nil {
		return nil, err
	}

	// Certificate handling is browser-wide; fetches are sequential so
	// setting it per request is enough.
	if err := browser.IgnoreCertErrors(req.InsecureSkipVerify); err != nil {
		return nil, fmt.Errorf("browser_engine: set cert policy: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser_engine: open page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Debug("browser_engine: close page", "error", closeErr)
		}
	}()

	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	p := page.Context(ctx)

	if e.userAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: e.userAgent}); err != nil {
			slog.Debug("browser_engine: set user agent", "error", err)
		}
	}
	if len(req.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}).Call(p); err != nil {
			slog.Debug("browser_engine: set extra headers", "error", err)
		}
	}

	if err := p.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("browser_engine: navigate %s: %w", req.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser_engine: wait load: %w", err)
	}

	statusCode := 0
	if res, evalErr := p.Eval(statusJS); evalErr == nil {
		statusCode = res.Value.Int()
	}
	if statusCode >= 400 {
		return nil, &models.CrawlError{
			Code:       models.ErrCodeHTTPStatus,
			Message:    fmt.Sprintf("browser_engine: HTTP %d for %s", statusCode, req.URL),
			StatusCode: statusCode,
		}
	}

	rendered, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser_engine: read html: %w", err)
	}

	result := &FetchResult{
		Body:       []byte(rendered),
		StatusCode: statusCode,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}
	if info, infoErr := p.Info(); infoErr == nil {
		result.Title = info.Title
		result.FinalURL = info.URL
	}
	return result, nil
}

func (e *BrowserEngine) running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.browser != nil
}

// Close kills the browser process if one was launched.
func (e *BrowserEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return
	}
	if err := e.browser.Close(); err != nil {
		slog.Warn("browser_engine: close", "error", err)
	}
	e.browser = nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
