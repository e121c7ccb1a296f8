package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

const defaultPingTimeout = 2 * time.Second

// Pinger is a backend the health endpoint checks for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type backendHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Checks    map[string]backendHealth `json:"checks,omitempty"`
}

// HealthHandler reports whether the API and the storage and cache backends
// it depends on are reachable.
type HealthHandler struct {
	backends map[string]Pinger
	names    []string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. backends is keyed by the name
// reported in the response ("postgres", "redis"); in-process backends need
// no entry.
func NewHealthHandler(backends map[string]Pinger, logger *slog.Logger) *HealthHandler {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return &HealthHandler{
		backends: backends,
		names:    names,
		timeout:  defaultPingTimeout,
		logger:   logHandler(logger, "health"),
	}
}

// HealthCheck pings every backend in parallel. Any unreachable backend
// turns the reply into a 503 with status "degraded".
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(h.names) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make([]backendHealth, len(h.names))
	var wg sync.WaitGroup
	for i, name := range h.names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := h.backends[name].Ping(ctx)
			results[i] = backendHealth{Status: "up", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				results[i].Status = "down"
				h.logger.WarnContext(ctx, "backend unreachable",
					slog.String("backend", name),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	wg.Wait()

	code := http.StatusOK
	resp.Checks = make(map[string]backendHealth, len(results))
	for i, name := range h.names {
		resp.Checks[name] = results[i]
		if results[i].Status != "up" {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}
