package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates outbound fetches. Wait blocks until the caller may proceed
// or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// IntervalLimiter grants at most one permit per interval, process-wide.
// Permits are handed out in request order; the first one is immediate.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalLimiter returns a limiter spacing permits at least interval
// apart. A non-positive interval yields Unlimited.
func NewIntervalLimiter(interval time.Duration) Limiter {
	if interval <= 0 {
		return Unlimited
	}
	return &IntervalLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next permit is available.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Unlimited never delays. Tests use it in place of the real limiter.
var Unlimited Limiter = unlimited{}
