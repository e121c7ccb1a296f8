package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

func TestMarketCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMarketCache(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, domain.Market{ID: "1", Title: "cached"}))
	m, err := c.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "cached", m.Title)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMarketCache(time.Minute)
	require.NoError(t, c.Set(ctx, domain.Market{ID: "1"}))
	require.NoError(t, c.Invalidate(ctx, "1"))
	_, err := c.Get(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d, err := rl.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 20*time.Second, d.RetryAfter, "one token refills every window/limit")

	now = now.Add(20 * time.Second)
	d, err = rl.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "refused requests do not consume tokens")

	d, err = rl.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are independent")

	_, err = rl.Allow(ctx, "bad", 0, time.Minute)
	assert.Error(t, err)
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	unlock, err := lm.Acquire(ctx, "market:1", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "market:1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := lm.Acquire(ctx, "market:2", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, "market:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLockManager_ExpiredLockCanBeTaken(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	stale, err := lm.Acquire(ctx, "k", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	fresh, err := lm.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// Releasing the stale holder must not free the new holder's lock.
	stale()
	_, err = lm.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	fresh()
}

func TestSignalBus_PatternSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewSignalBus()

	markets, err := bus.Subscribe(ctx, "market.*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelBetPlaced, []byte("bet")))
	require.NoError(t, bus.Publish(ctx, domain.ChannelMarketCreated, []byte("created")))

	select {
	case msg := <-markets:
		assert.Equal(t, "created", string(msg))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-markets
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestSignalBus_Stream(t *testing.T) {
	ctx := context.Background()
	bus := NewSignalBus()

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, "events", []byte(p)))
	}

	all, err := bus.StreamRead(ctx, "events", "0", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	rest, err := bus.StreamRead(ctx, "events", all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "b", string(rest[0].Payload))

	none, err := bus.StreamRead(ctx, "missing", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
