package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// MarketCounter reports the number of stored markets.
type MarketCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatusHandler serves the backend runtime status for operators.
type StatusHandler struct {
	Mode      string
	Storage   string
	Cache     string
	StartedAt time.Time

	markets MarketCounter
	clients func() int
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler. clients may be nil when the
// WebSocket hub is disabled.
func NewStatusHandler(mode, storage, cache string, markets MarketCounter, clients func() int, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		Mode:      mode,
		Storage:   storage,
		Cache:     cache,
		StartedAt: time.Now().UTC(),
		markets:   markets,
		clients:   clients,
		logger:    logHandler(logger, "status"),
	}
}

// GetStatus responds with the backend mode, backends in use and counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.markets.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to read status")
		return
	}
	wsClients := 0
	if h.clients != nil {
		wsClients = h.clients()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":          h.Mode,
		"storage":       h.Storage,
		"cache":         h.Cache,
		"markets":       count,
		"wsClients":     wsClients,
		"uptimeSeconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
