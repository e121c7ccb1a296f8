package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error)
	Get(ctx context.Context, id string) (domain.Market, error)
	Create(ctx context.Context, in domain.NewMarket) (domain.Market, error)
	Update(ctx context.Context, id string, upd domain.MarketUpdate) (domain.Market, error)
}

// MarketBetLister lists the bets placed on a market.
type MarketBetLister interface {
	ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	bets    MarketBetLister
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(markets MarketService, bets MarketBetLister, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		bets:    bets,
		logger:  logHandler(logger, "markets"),
	}
}

// ListMarkets returns markets matching the query filters.
// GET /api/markets?category=&status=&search=&sortBy=&limit=&offset=
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := parseListOpts(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list markets")
		return
	}

	filter := domain.MarketFilter{
		Category: domain.Category(strings.TrimSpace(q.Get("category"))),
		Status:   domain.MarketStatus(strings.TrimSpace(q.Get("status"))),
		Search:   strings.TrimSpace(q.Get("search")),
		SortBy:   domain.MarketSort(strings.TrimSpace(q.Get("sortBy"))),
		ListOpts: opts,
	}
	// "all" is what the category tabs send for no filter.
	if filter.Category == "all" {
		filter.Category = ""
	}
	if filter.Status == "all" {
		filter.Status = ""
	}

	markets, err := h.markets.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list markets")
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := h.markets.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// CreateMarket validates and stores a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var in domain.NewMarket
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	market, err := h.markets.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create market")
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// UpdateMarket applies a partial update (status, winner, aggregates).
// PATCH /api/markets/{id}
func (h *MarketHandler) UpdateMarket(w http.ResponseWriter, r *http.Request) {
	var upd domain.MarketUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	market, err := h.markets.Update(r.Context(), pathParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// ListMarketBets returns every bet on a market, newest first.
// GET /api/markets/{id}/bets
func (h *MarketHandler) ListMarketBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.bets.ListByMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list bets")
		return
	}
	writeJSON(w, http.StatusOK, bets)
}
