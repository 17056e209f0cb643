package geocoding

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outbound provider calls at least minInterval apart,
// across all concurrent callers. The shared token bucket is internally
// mutex-protected and callers sleep outside the lock, so waiting requests
// queue at the configured rate instead of serializing on a held mutex.
type RateLimiter struct {
	limiter *rate.Limiter
}

// DefaultMinInterval keeps the service at or below 20 requests per second.
const DefaultMinInterval = 50 * time.Millisecond

// NewRateLimiter enforces one provider call per minInterval. A zero or
// negative interval disables spacing.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	if minInterval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the caller may issue a provider request, or until ctx is
// cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
