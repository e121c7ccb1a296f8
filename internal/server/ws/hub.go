// Package ws relays market and bet events from the signal bus to browser
// clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256

	// replayLimit caps how many stream entries a reconnecting client gets.
	replayLimit = 500
)

// busPatterns are the bus subscriptions the hub relays.
var busPatterns = []string{"market.*", "bet.*"}

// client represents a single WebSocket connection.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	mu      sync.RWMutex
	subs    map[string]bool // channel patterns
	markets map[string]bool // empty means every market
}

// subscribeMsg is the JSON message a client sends to change its filters.
//
//	{"action":"subscribe","channels":["bet.*"]}
//	{"action":"unsubscribe","channels":["market.updated"]}
//	{"action":"watch","markets":["1","2"]}
//	{"action":"unwatch","markets":["2"]}
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
	Markets  []string `json:"markets"`
}

// envelope is what clients receive for every relayed event.
type envelope struct {
	ID    string          `json:"id,omitempty"`
	Event json.RawMessage `json:"event"`
}

type broadcastMsg struct {
	channel  string
	marketID string
	data     []byte
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
	// AllowedOrigins restricts the upgrade. Empty allows every origin.
	AllowedOrigins []string
}

// Hub manages connected WebSocket clients and broadcasts events from the
// signal bus to the clients whose filters match.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
	done       chan struct{}
}

// NewHub creates a hub bridging bus to WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "server"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger:    logger.With(slog.String("component", "ws_hub")),
		mode:      mode,
		startedAt: startedAt,
		done:      make(chan struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run starts the hub's event loop and bus subscriptions. It returns when ctx
// is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for _, p := range busPatterns {
		msgCh, err := h.bus.Subscribe(ctx, p)
		if err != nil {
			h.logger.Error("subscribe failed",
				slog.String("pattern", p),
				slog.String("error", err.Error()),
			)
			continue
		}
		go h.forward(ctx, p, msgCh)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("client connected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.channel, msg.marketID) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("dropping message for slow client",
						slog.String("channel", msg.channel),
					)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward passes every event received under pattern to the broadcast loop.
// The concrete channel is read from the event envelope.
func (h *Hub) forward(ctx context.Context, pattern string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				return
			}
			msg, err := toBroadcast(data)
			if err != nil {
				h.logger.Warn("undecodable event",
					slog.String("pattern", pattern),
					slog.String("error", err.Error()),
				)
				continue
			}
			select {
			case h.broadcast <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func toBroadcast(data []byte) (broadcastMsg, error) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return broadcastMsg{}, err
	}
	out, err := json.Marshal(envelope{Event: data})
	if err != nil {
		return broadcastMsg{}, err
	}
	return broadcastMsg{channel: ev.Type, marketID: ev.MarketID, data: out}, nil
}

// HandleWS upgrades the request and registers the client. A "since" query
// parameter replays durable stream entries after that id before live events.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		subs:    make(map[string]bool),
		markets: make(map[string]bool),
	}
	for _, p := range busPatterns {
		c.subs[p] = true
	}

	c.queue(h.hello())
	if since := r.URL.Query().Get("since"); since != "" {
		h.replay(r.Context(), c, since)
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) hello() []byte {
	msg, _ := json.Marshal(map[string]any{
		"type": "hello",
		"payload": map[string]any{
			"mode":          h.mode,
			"channels":      busPatterns,
			"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		},
	})
	return msg
}

// replay queues stream entries after since, oldest first.
func (h *Hub) replay(ctx context.Context, c *client, since string) {
	entries, err := h.bus.StreamRead(ctx, domain.StreamEvents, since, replayLimit)
	if err != nil {
		h.logger.Warn("replay failed",
			slog.String("since", since),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, e := range entries {
		out, err := json.Marshal(envelope{ID: e.ID, Event: e.Payload})
		if err != nil {
			continue
		}
		c.queue(out)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) queue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// readPump reads filter changes from the client until the connection drops.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil && sub.Action != "" {
			c.apply(sub)
		}
	}
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			if _, err := path.Match(ch, ""); err == nil {
				c.subs[ch] = true
			}
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	case "watch":
		for _, id := range msg.Markets {
			c.markets[id] = true
		}
	case "unwatch":
		for _, id := range msg.Markets {
			delete(c.markets, id)
		}
	}
}

// wants reports whether an event on channel for marketID passes the
// client's filters.
func (c *client) wants(channel, marketID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.markets) > 0 && !c.markets[marketID] {
		return false
	}
	for p := range c.subs {
		if ok, _ := path.Match(p, channel); ok {
			return true
		}
	}
	return false
}

// writePump sends queued messages as text frames plus periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
