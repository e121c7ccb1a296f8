package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

type PortfolioService interface {
	Stats(ctx context.Context, owner string) (domain.PortfolioStats, error)
}

// PortfolioHandler serves per-owner statistics.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logHandler(logger, "portfolio")}
}

// GetStats returns bet totals and win rate for one owner.
// GET /api/portfolio/stats?owner=
func (h *PortfolioHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.portfolio.Stats(r.Context(), strings.TrimSpace(r.URL.Query().Get("owner")))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute portfolio stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
