package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// RateLimiter keeps one token bucket per key. A bucket for limit requests per
// window refills at limit/window and allows bursts of limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*rate.Limiter), now: time.Now}
}

func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if limit <= 0 || window <= 0 {
		return domain.RateDecision{}, fmt.Errorf("local: rate limit %s: limit and window must be positive", key)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	every := rate.Every(window / time.Duration(limit))
	b, ok := rl.buckets[key]
	if !ok {
		b = rate.NewLimiter(every, limit)
		rl.buckets[key] = b
	} else if b.Limit() != every || b.Burst() != limit {
		b.SetLimit(every)
		b.SetBurst(limit)
	}

	now := rl.now()
	res := b.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return domain.RateDecision{RetryAfter: delay}, nil
	}
	return domain.RateDecision{
		Allowed:   true,
		Remaining: max(0, int(b.TokensAt(now))),
	}, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
