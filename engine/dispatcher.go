package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/use-agent/namecrawl/models"
)

// Dispatcher tries engines one after another in escalation order and
// returns the first success. Engines never run concurrently. The caller's
// permit covers the first attempt; every escalated attempt is another
// outbound request and waits on the limiter first.
type Dispatcher struct {
	engines []Engine
	memory  *DomainMemory
	limiter Limiter
}

// NewDispatcher creates a Dispatcher. engines[0] is tried first unless the
// domain memory remembers a different engine for the target host. limiter
// must be the one the caller waits on; nil means Unlimited.
func NewDispatcher(engines []Engine, memory *DomainMemory, limiter Limiter) *Dispatcher {
	if limiter == nil {
		limiter = Unlimited
	}
	return &Dispatcher{engines: engines, memory: memory, limiter: limiter}
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// Fetch runs the escalation for one request.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}

	domain := extractDomain(req.URL)

	var lastErr error
	for i, eng := range d.order(domain) {
		if i > 0 {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("dispatcher: rate limiter wait: %w", err)
			}
		}
		result, err := eng.Fetch(ctx, req)
		if err == nil {
			if d.memory != nil {
				d.memory.Set(domain, eng.Name())
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		// The origin answered; another engine would get the same status.
		if models.IsCode(err, models.ErrCodeHTTPStatus) {
			return nil, err
		}
		if d.memory != nil && d.memory.Get(domain) == eng.Name() {
			d.memory.Delete(domain)
		}
		slog.Debug("engine failed, escalating", "engine", eng.Name(), "url", req.URL, "error", err)
	}
	return nil, lastErr
}

// order returns the engines with the remembered one for domain first.
func (d *Dispatcher) order(domain string) []Engine {
	if d.memory == nil {
		return d.engines
	}
	remembered := d.memory.Get(domain)
	if remembered == "" || remembered == d.engines[0].Name() {
		return d.engines
	}

	ordered := make([]Engine, 0, len(d.engines))
	for _, eng := range d.engines {
		if eng.Name() == remembered {
			ordered = append(ordered, eng)
		}
	}
	for _, eng := range d.engines {
		if eng.Name() != remembered {
			ordered = append(ordered, eng)
		}
	}
	return ordered
}

// extractDomain parses the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
