package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/use-agent/namecrawl/cache"
	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/models"
)

// stubEngine returns canned results and counts calls.
type stubEngine struct {
	name  string
	err   error
	calls int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Fetch(_ context.Context, req *FetchRequest) (*FetchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &FetchResult{Body: []byte("<html>" + req.URL + "</html>"), StatusCode: 200, EngineName: s.name}, nil
}

// countingLimiter counts permits without delaying.
type countingLimiter struct {
	waits atomic.Int32
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.waits.Add(1)
	return ctx.Err()
}

func TestIntervalLimiter_SpacesPermits(t *testing.T) {
	lim := NewIntervalLimiter(40 * time.Millisecond)

	start := time.Now()
	for range 3 {
		if err := lim.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First permit is immediate, the next two are one interval apart each.
	if elapsed < 70*time.Millisecond {
		t.Errorf("3 permits took %s, expected at least ~80ms", elapsed)
	}
}

func TestIntervalLimiter_CancelledContext(t *testing.T) {
	lim := NewIntervalLimiter(time.Hour)
	_ = lim.Wait(context.Background()) // consume the burst

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := lim.Wait(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestNewIntervalLimiter_NonPositiveIsUnlimited(t *testing.T) {
	if NewIntervalLimiter(0) != Unlimited {
		t.Error("expected Unlimited for zero interval")
	}
}

func TestHTTPEngine_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title> Names </title></head><body><td>Jan</td></body></html>"))
	}))
	defer srv.Close()

	e := NewHTTPEngine(HTTPOptions{UserAgent: "namecrawl-test"})
	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("status = %d", res.StatusCode)
	}
	if res.Title != "Names" {
		t.Errorf("title = %q, want Names", res.Title)
	}
	if res.EngineName != "http" {
		t.Errorf("engine = %q", res.EngineName)
	}
	if gotUA != "namecrawl-test" {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestHTTPEngine_TLSWithoutChromeSpec(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><td>Jan</td></body></html>"))
	}))
	defer srv.Close()

	saved := chromeH1Spec
	t.Cleanup(func() { chromeH1Spec = saved })

	for name, spec := range map[string]*tls.ClientHelloSpec{"chrome": saved, "go fallback": nil} {
		t.Run(name, func(t *testing.T) {
			chromeH1Spec = spec
			e := NewHTTPEngine(HTTPOptions{})
			res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL, InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if res.StatusCode != http.StatusOK {
				t.Errorf("status = %d", res.StatusCode)
			}
		})
	}
}

func TestHTTPEngine_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewHTTPEngine(HTTPOptions{})
	_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if !models.IsCode(err, models.ErrCodeHTTPStatus) {
		t.Fatalf("expected %s, got %v", models.ErrCodeHTTPStatus, err)
	}
	var ce *models.CrawlError
	if errors.As(err, &ce) && ce.StatusCode != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", ce.StatusCode)
	}
}

func TestPageFetcher_ClassifiesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewPageFetcher(NewHTTPEngine(HTTPOptions{}), Unlimited, nil, time.Second)
	_, err := f.Fetch(context.Background(), &FetchRequest{URL: url})
	if !models.IsCode(err, models.ErrCodeTransport) {
		t.Fatalf("expected %s, got %v", models.ErrCodeTransport, err)
	}
}

func TestPageFetcher_WaitsOncePerNetworkFetch(t *testing.T) {
	eng := &stubEngine{name: "stub"}
	lim := &countingLimiter{}
	pages := cache.New[*FetchResult](8, time.Minute)
	defer pages.Stop()

	f := NewPageFetcher(eng, lim, pages, 0)
	ctx := context.Background()

	first, err := f.Fetch(ctx, &FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first fetch should not be cached")
	}

	second, err := f.Fetch(ctx, &FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("second fetch of same URL should be served from cache")
	}

	// Same URL with a different TLS mode is a different page.
	if _, err := f.Fetch(ctx, &FetchRequest{URL: "https://example.com/a", InsecureSkipVerify: true}); err != nil {
		t.Fatal(err)
	}

	if eng.calls != 2 {
		t.Errorf("engine calls = %d, want 2", eng.calls)
	}
	if got := lim.waits.Load(); got != 2 {
		t.Errorf("limiter waits = %d, want 2", got)
	}
}

func TestPageFetcher_RefreshBypassesCache(t *testing.T) {
	eng := &stubEngine{name: "stub"}
	pages := cache.New[*FetchResult](8, time.Minute)
	defer pages.Stop()

	f := NewPageFetcher(eng, Unlimited, pages, 0)
	ctx := context.Background()
	if _, err := f.Fetch(ctx, &FetchRequest{URL: "https://example.com/a"}); err != nil {
		t.Fatal(err)
	}

	res, err := f.Fetch(ctx, &FetchRequest{URL: "https://example.com/a", Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || eng.calls != 2 {
		t.Errorf("refresh must go to the network: cached=%v calls=%d", res.Cached, eng.calls)
	}

	// The refreshed page replaces the cached one.
	if again, _ := f.Fetch(ctx, &FetchRequest{URL: "https://example.com/a"}); !again.Cached {
		t.Error("expected the refreshed page to be cached")
	}
}

func TestPageFetcher_NoCacheOnError(t *testing.T) {
	eng := &stubEngine{name: "stub", err: errors.New("connection reset")}
	pages := cache.New[*FetchResult](8, time.Minute)
	defer pages.Stop()

	f := NewPageFetcher(eng, Unlimited, pages, 0)
	for range 2 {
		if _, err := f.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"}); err == nil {
			t.Fatal("expected error")
		}
	}
	if eng.calls != 2 {
		t.Errorf("failed fetches must not be cached, engine calls = %d", eng.calls)
	}
}

func TestDispatcher_EscalatesAndRemembers(t *testing.T) {
	httpEng := &stubEngine{name: "http", err: errors.New("tls handshake failure")}
	browserEng := &stubEngine{name: "browser"}
	memory := NewDomainMemory(time.Hour)
	d := NewDispatcher([]Engine{httpEng, browserEng}, memory, Unlimited)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com/x"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "browser" {
		t.Errorf("engine = %q, want browser", res.EngineName)
	}
	if memory.Get("example.com") != "browser" {
		t.Error("expected browser to be remembered for example.com")
	}

	// The remembered engine goes first next time.
	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com/y"}); err != nil {
		t.Fatal(err)
	}
	if httpEng.calls != 1 {
		t.Errorf("http engine calls = %d, want 1", httpEng.calls)
	}
}

// timedEngine records when each outbound request was made.
type timedEngine struct {
	stubEngine
	sent *[]time.Time
}

func (e *timedEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	*e.sent = append(*e.sent, time.Now())
	return e.stubEngine.Fetch(ctx, req)
}

func TestPageFetcher_EscalationWaitsForPermit(t *testing.T) {
	const interval = 60 * time.Millisecond

	var sent []time.Time
	httpEng := &timedEngine{stubEngine: stubEngine{name: "http", err: errors.New("tls handshake failure")}, sent: &sent}
	browserEng := &timedEngine{stubEngine: stubEngine{name: "browser"}, sent: &sent}

	lim := NewIntervalLimiter(interval)
	d := NewDispatcher([]Engine{httpEng, browserEng}, NewDomainMemory(time.Hour), lim)
	f := NewPageFetcher(d, lim, nil, 0)

	res, err := f.Fetch(context.Background(), &FetchRequest{URL: "https://example.com/p1"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "browser" {
		t.Errorf("engine = %q, want browser", res.EngineName)
	}
	if len(sent) != 2 {
		t.Fatalf("outbound requests = %d, want 2", len(sent))
	}
	if gap := sent[1].Sub(sent[0]); gap < interval-10*time.Millisecond {
		t.Errorf("escalated request sent %s after the first, want at least ~%s", gap, interval)
	}
}

func TestDispatcher_WaitsOnlyBeforeEscalation(t *testing.T) {
	lim := &countingLimiter{}
	ok := &stubEngine{name: "http"}
	d := NewDispatcher([]Engine{ok, &stubEngine{name: "browser"}}, nil, lim)

	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"}); err != nil {
		t.Fatal(err)
	}
	if got := lim.waits.Load(); got != 0 {
		t.Errorf("first attempt must use the caller's permit, dispatcher waited %d times", got)
	}

	failing := &stubEngine{name: "http", err: errors.New("reset")}
	d = NewDispatcher([]Engine{failing, &stubEngine{name: "browser"}}, nil, lim)
	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"}); err != nil {
		t.Fatal(err)
	}
	if got := lim.waits.Load(); got != 1 {
		t.Errorf("dispatcher waits = %d, want 1 for one escalation", got)
	}
}

func TestDispatcher_StatusErrorDoesNotEscalate(t *testing.T) {
	httpEng := &stubEngine{name: "http", err: &models.CrawlError{Code: models.ErrCodeHTTPStatus, StatusCode: 503}}
	browserEng := &stubEngine{name: "browser"}
	d := NewDispatcher([]Engine{httpEng, browserEng}, NewDomainMemory(time.Hour), Unlimited)

	_, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if !models.IsCode(err, models.ErrCodeHTTPStatus) {
		t.Fatalf("expected status error, got %v", err)
	}
	if browserEng.calls != 0 {
		t.Error("browser must not be tried after an HTTP status error")
	}
}

func TestDomainMemory_Expiry(t *testing.T) {
	dm := NewDomainMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dm.now = func() time.Time { return now }

	dm.Set("example.com", "browser")
	if dm.Get("example.com") != "browser" {
		t.Fatal("expected remembered engine")
	}
	now = now.Add(2 * time.Minute)
	if dm.Get("example.com") != "" {
		t.Error("expected entry to expire")
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		engine string
		want   string
	}{
		{"http", "http"},
		{"browser", "browser"},
		{"auto", "dispatcher"},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := config.Load()
			cfg.Fetch.Engine = tt.engine
			eng, closeFn, err := FromConfig(cfg, Unlimited)
			if err != nil {
				t.Fatal(err)
			}
			defer closeFn()
			if eng.Name() != tt.want {
				t.Errorf("Name = %q, want %q", eng.Name(), tt.want)
			}
		})
	}

	cfg := config.Load()
	cfg.Fetch.Engine = "curl"
	if _, _, err := FromConfig(cfg, Unlimited); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestBrowserHealth(t *testing.T) {
	h := newBrowserHealth()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	h.reset()

	for range 2 {
		h.recordFailure()
	}
	if restart, _ := h.shouldRestart(); restart {
		t.Fatal("two failures should not trigger a restart")
	}
	h.recordSuccess() // 1.5
	h.recordFailure() // 2.5
	h.recordFailure() // 3.5
	if restart, reason := h.shouldRestart(); !restart || reason != "error score" {
		t.Errorf("restart=%v reason=%q, want error score", restart, reason)
	}

	h.reset()
	for range 10 {
		h.recordUse()
	}
	if restart, _ := h.shouldRestart(); restart {
		t.Error("status errors alone should not trigger a restart")
	}

	now = now.Add(time.Hour)
	if restart, reason := h.shouldRestart(); !restart || reason != "age" {
		t.Errorf("restart=%v reason=%q, want age", restart, reason)
	}
}

func TestBrowserEngine_CloseWithoutLaunch(t *testing.T) {
	e := NewBrowserEngine(config.Load().Browser, "", "")
	e.Close() // must not panic
	if e.Name() != "browser" {
		t.Errorf("Name = %q", e.Name())
	}
}
