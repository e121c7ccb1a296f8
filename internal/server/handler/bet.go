package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// BetService is the subset of the bet service used by BetHandler.
type BetService interface {
	Place(ctx context.Context, in domain.NewBet) (domain.Bet, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.BetWithMarket, error)
	Settle(ctx context.Context, id string, in domain.Settlement) (domain.Bet, error)
}

// BetHandler serves bet placement, listing and settlement.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logHandler(logger, "bets")}
}

// ListBets returns the bets of one owner, each with its market.
// GET /api/bets?owner=
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	bets, err := h.bets.ListByOwner(r.Context(), owner)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list bets")
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

// PlaceBet records a bet on an active market.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var in domain.NewBet
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet, err := h.bets.Place(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to place bet")
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// SettleBet records the winnings of a bet.
// PATCH /api/bets/{id}/settle
func (h *BetHandler) SettleBet(w http.ResponseWriter, r *http.Request) {
	var in domain.Settlement
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet, err := h.bets.Settle(r.Context(), pathParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to settle bet")
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
