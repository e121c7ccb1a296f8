package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

func TestClient_Key(t *testing.T) {
	c := NewFromRedis(nil, "pm:")
	assert.Equal(t, "pm:market:1", c.Key("market:1"))
	assert.Equal(t, "lock:x", NewFromRedis(nil, "").Key("lock:x"))
}

func TestMarketCache_DefaultTTL(t *testing.T) {
	mc := NewMarketCache(NewFromRedis(nil, "pm:"), 0)
	assert.Equal(t, DefaultMarketTTL, mc.ttl)
	assert.Equal(t, "pm:market:42", mc.key("42"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("market.*"))
	assert.True(t, hasPattern("bet.[ps]*"))
	assert.False(t, hasPattern("bet.placed"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
	assert.Contains(t, slidingWindowLua, "WITHSCORES")
}

func TestDecisionFromReply(t *testing.T) {
	d, err := decisionFromReply("k", []int64{1, 4, 0})
	require.NoError(t, err)
	assert.Equal(t, domain.RateDecision{Allowed: true, Remaining: 4}, d)

	d, err = decisionFromReply("k", []int64{0, 0, 1_500_000})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	_, err = decisionFromReply("k", []int64{1, 2})
	assert.Error(t, err)
}
