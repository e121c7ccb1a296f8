package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// ChainService is the subset of the chain service used by ChainHandler.
type ChainService interface {
	NetworkStatus(ctx context.Context) domain.NetworkStatus
	VerifyTransaction(ctx context.Context, txID, programID string) (domain.TxVerification, error)
	BuildTransaction(req domain.TxRequest) (domain.WalletTransaction, error)
	MarketState(ctx context.Context, marketID string) (domain.ChainMarketState, error)
}

// ChainHandler serves network status, transaction acknowledgement and
// wallet transaction building.
type ChainHandler struct {
	chain  ChainService
	logger *slog.Logger
}

func NewChainHandler(chain ChainService, logger *slog.Logger) *ChainHandler {
	return &ChainHandler{chain: chain, logger: logHandler(logger, "chain")}
}

// NetworkStatus reports the configured network and latest block.
// GET /api/network-status
func (h *ChainHandler) NetworkStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chain.NetworkStatus(r.Context()))
}

type verifyRequest struct {
	TransactionID string `json:"transactionId"`
	ProgramID     string `json:"programId"`
}

// VerifyTransaction acknowledges a submitted transaction id.
// POST /api/verify-transaction
func (h *ChainHandler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.chain.VerifyTransaction(r.Context(), req.TransactionID, req.ProgramID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to verify transaction")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BuildTransaction returns the wallet request for a program call.
// POST /api/chain/transactions
func (h *ChainHandler) BuildTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TxRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.chain.BuildTransaction(req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to build transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// MarketState returns the on-chain mapping values of a market.
// GET /api/markets/{id}/chain
func (h *ChainHandler) MarketState(w http.ResponseWriter, r *http.Request) {
	state, err := h.chain.MarketState(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to read chain state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
