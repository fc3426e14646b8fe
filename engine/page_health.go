package engine

import (
	"math"
	"sync"
	"time"
)

// browserHealth scores a long-lived browser process. Failures push the
// score up and successes pull it down; a browser that has become error
// prone, has served many pages or is simply old gets restarted.
//
// Scoring rules:
//   - success: errScore -= 0.5 (min 0)
//   - failure: errScore += 1.0
//   - HTTP status errors only count as a use
//
// Restart triggers (any one):
//   - errScore >= 3.0
//   - useCount >= 500
//   - age >= 50 minutes
type browserHealth struct {
	mu       sync.Mutex
	errScore float64
	useCount int
	created  time.Time
	now      func() time.Time

	maxErrScore float64
	maxUses     int
	maxAge      time.Duration
}

func newBrowserHealth() *browserHealth {
	h := &browserHealth{
		now:         time.Now,
		maxErrScore: 3.0,
		maxUses:     500,
		maxAge:      50 * time.Minute,
	}
	h.created = h.now()
	return h
}

func (h *browserHealth) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

func (h *browserHealth) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

func (h *browserHealth) recordUse() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
}

// shouldRestart reports whether the browser is due for a restart and why.
func (h *browserHealth) shouldRestart() (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.errScore >= h.maxErrScore:
		return true, "error score"
	case h.useCount >= h.maxUses:
		return true, "use count"
	case h.now().Sub(h.created) >= h.maxAge:
		return true, "age"
	}
	return false, ""
}

// reset starts a fresh score for a newly launched browser.
func (h *browserHealth) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errScore = 0
	h.useCount = 0
	h.created = h.now()
}
