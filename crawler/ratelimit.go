package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Municipal portals are often slow shared hosting; the limiter never goes
// above maxRateCeiling even when the server answers quickly.
const (
	minRateFloor   = 0.5
	maxRateCeiling = 20.0

	// emaAlpha weights the newest RTT sample in the moving average.
	emaAlpha = 0.2

	// recoveryFactor is applied per fast response, backoffFactor bounds a
	// single slowdown step.
	recoveryFactor = 1.1
	backoffFactor  = 0.5

	defaultTargetRTT = 500 * time.Millisecond
)

// AdaptiveLimiter paces requests to a portal. When adaptive, it tracks an
// exponential moving average of response times and slows down while the
// server is slower than targetRTT.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	targetRTT time.Duration
	emaRTT    time.Duration
	rps       float64
	adaptive  bool
}

// NewAdaptiveLimiter returns a limiter starting at rps requests per second.
// With adaptive false the rate stays fixed and ObserveRTT is a no-op.
func NewAdaptiveLimiter(rps float64, targetRTT time.Duration, adaptive bool) *AdaptiveLimiter {
	if targetRTT <= 0 {
		targetRTT = defaultTargetRTT
	}
	rps = clampRate(rps)
	return &AdaptiveLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
		targetRTT: targetRTT,
		emaRTT:    targetRTT,
		rps:       rps,
		adaptive:  adaptive,
	}
}

// Wait blocks until the next request may be sent or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT feeds one response time into the moving average and moves the
// rate toward what the server can sustain.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.adaptive {
		return
	}

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))
	if a.emaRTT <= 0 {
		return
	}

	ratio := float64(a.targetRTT) / float64(a.emaRTT)
	next := a.rps * recoveryFactor
	if ratio < 1 {
		next = math.Max(a.rps*ratio, a.rps*backoffFactor)
	}
	next = clampRate(next)

	if math.Abs(next-a.rps) < 0.05 {
		return
	}
	a.rps = next
	a.limiter.SetLimit(rate.Limit(next))
	a.limiter.SetBurst(burstFor(next))
}

// CurrentRate returns the current requests-per-second limit.
func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rps
}

func clampRate(rps float64) float64 {
	return math.Min(math.Max(rps, minRateFloor), maxRateCeiling)
}

func burstFor(rps float64) int {
	return max(1, int(math.Ceil(rps)))
}
