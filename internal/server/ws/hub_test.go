package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/cache/local"
	"github.com/alanyoungcy/predictmarket/internal/domain"
)

func startHub(t *testing.T, bus domain.SignalBus) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "server"})
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func publish(t *testing.T, bus domain.SignalBus, channel, marketID string) {
	t.Helper()
	ev, err := domain.NewEvent(channel, marketID, map[string]string{"id": marketID}, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), channel, raw))
	require.NoError(t, bus.StreamAppend(context.Background(), domain.StreamEvents, raw))
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}

func TestHub_RelaysEvents(t *testing.T) {
	bus := local.NewSignalBus()
	hub, url := startHub(t, bus)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]any
	readJSON(t, conn, &hello)
	assert.Equal(t, "hello", hello["type"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	publish(t, bus, domain.ChannelBetPlaced, "7")

	var got envelope
	readJSON(t, conn, &got)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(got.Event, &ev))
	assert.Equal(t, domain.ChannelBetPlaced, ev.Type)
	assert.Equal(t, "7", ev.MarketID)
}

func TestHub_WatchFiltersMarkets(t *testing.T) {
	bus := local.NewSignalBus()
	hub, url := startHub(t, bus)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]any
	readJSON(t, conn, &hello)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "watch", Markets: []string{"2"}}))
	// The filter is applied asynchronously by the read pump.
	time.Sleep(50 * time.Millisecond)

	publish(t, bus, domain.ChannelMarketUpdated, "1")
	publish(t, bus, domain.ChannelMarketUpdated, "2")

	var got envelope
	readJSON(t, conn, &got)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(got.Event, &ev))
	assert.Equal(t, "2", ev.MarketID)
}

func TestHub_ReplaySince(t *testing.T) {
	bus := local.NewSignalBus()
	publish(t, bus, domain.ChannelMarketCreated, "1")
	publish(t, bus, domain.ChannelMarketCreated, "2")
	_, url := startHub(t, bus)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?since=0", nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]any
	readJSON(t, conn, &hello)

	for _, want := range []string{"1", "2"} {
		var got envelope
		readJSON(t, conn, &got)
		assert.NotEmpty(t, got.ID)
		var ev domain.Event
		require.NoError(t, json.Unmarshal(got.Event, &ev))
		assert.Equal(t, want, ev.MarketID)
	}
}

func TestClient_Wants(t *testing.T) {
	c := &client{subs: map[string]bool{"bet.*": true}, markets: map[string]bool{}}
	assert.True(t, c.wants(domain.ChannelBetSettled, "1"))
	assert.False(t, c.wants(domain.ChannelMarketCreated, "1"))

	c.apply(subscribeMsg{Action: "subscribe", Channels: []string{"market.created"}})
	assert.True(t, c.wants(domain.ChannelMarketCreated, "1"))

	c.apply(subscribeMsg{Action: "watch", Markets: []string{"5"}})
	assert.False(t, c.wants(domain.ChannelBetSettled, "1"))
	assert.True(t, c.wants(domain.ChannelBetSettled, "5"))
}
