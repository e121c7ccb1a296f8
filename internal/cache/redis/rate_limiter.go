package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter counts requests in a sliding window kept in one sorted set per
// key, so every API replica sharing the Redis instance enforces the same
// per-client budget.
type RateLimiter struct {
	c      *Client
	script *redis.Script
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		c:      c,
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateDecision, error) {
	if limit <= 0 || window <= 0 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: limit and window must be positive", key)
	}

	reply, err := rl.script.Run(ctx, rl.c.rdb,
		[]string{rl.c.Key(key)},
		rl.now().UnixMicro(), window.Microseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return decisionFromReply(key, reply)
}

// decisionFromReply decodes the {allowed, remaining, retry_after_us} reply
// of the sliding window script.
func decisionFromReply(key string, reply []int64) (domain.RateDecision, error) {
	if len(reply) != 3 {
		return domain.RateDecision{}, fmt.Errorf("redis: rate limit %s: unexpected reply %v", key, reply)
	}
	d := domain.RateDecision{
		Allowed:   reply[0] == 1,
		Remaining: int(reply[1]),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(max(reply[2], 0)) * time.Microsecond
	}
	return d, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
