package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/platform/aleo"
)

// Explorer reads public chain state.
type Explorer interface {
	LatestHeight(ctx context.Context) (int64, error)
	TransactionStatus(ctx context.Context, txID string) (domain.TxStatus, error)
	MarketState(ctx context.Context, chainMarketID string) (domain.ChainMarketState, error)
}

// ChainConfig holds the static network snapshot served when the explorer is
// disabled or unreachable.
type ChainConfig struct {
	Network     string
	ProgramID   string
	LatestBlock int64
	DefaultFee  uint64
	// ExplorerTimeout bounds each explorer call made on a request path.
	ExplorerTimeout time.Duration
}

// ChainService answers network-status and transaction questions. It never
// verifies proofs or signs transactions.
type ChainService struct {
	cfg      ChainConfig
	explorer Explorer
	markets  domain.MarketStore
	builder  aleo.TxBuilder
	logger   *slog.Logger
	now      func() time.Time
}

// NewChainService creates a ChainService. explorer may be nil, in which case
// only the static snapshot is served.
func NewChainService(cfg ChainConfig, explorer Explorer, markets domain.MarketStore, logger *slog.Logger) *ChainService {
	if cfg.ExplorerTimeout <= 0 {
		cfg.ExplorerTimeout = 3 * time.Second
	}
	return &ChainService{
		cfg:      cfg,
		explorer: explorer,
		markets:  markets,
		builder: aleo.TxBuilder{
			ProgramID: cfg.ProgramID,
			Network:   aleo.DefaultNetwork,
			Fee:       cfg.DefaultFee,
		},
		logger: logger.With(slog.String("component", "chain_service")),
		now:    time.Now,
	}
}

// NetworkStatus reports the configured network. The latest block comes from
// the explorer when it answers in time, else from configuration.
func (s *ChainService) NetworkStatus(ctx context.Context) domain.NetworkStatus {
	status := domain.NetworkStatus{
		Network:     s.cfg.Network,
		Status:      "healthy",
		LatestBlock: s.cfg.LatestBlock,
		ProgramID:   s.cfg.ProgramID,
	}
	if s.explorer == nil {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExplorerTimeout)
	defer cancel()
	h, err := s.explorer.LatestHeight(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "latest height lookup failed",
			slog.String("error", err.Error()),
		)
		status.Status = "degraded"
		return status
	}
	status.LatestBlock = h
	return status
}

// VerifyTransaction acknowledges a client-submitted transaction id. The
// result is always verified; the explorer, when available, supplies the
// inclusion status.
func (s *ChainService) VerifyTransaction(ctx context.Context, txID, programID string) (domain.TxVerification, error) {
	txID = strings.TrimSpace(txID)
	if txID == "" {
		v := &domain.Validator{}
		v.AddError("transactionId", "transaction id is required")
		return domain.TxVerification{}, v.Err()
	}
	if programID == "" {
		programID = s.cfg.ProgramID
	}

	res := domain.TxVerification{
		Verified:      true,
		TransactionID: txID,
		ProgramID:     programID,
		Status:        domain.TxStatusUnknown,
		Timestamp:     s.now().UTC(),
	}
	if s.explorer == nil {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExplorerTimeout)
	defer cancel()
	st, err := s.explorer.TransactionStatus(ctx, txID)
	if err != nil {
		s.logger.WarnContext(ctx, "transaction status lookup failed",
			slog.String("transaction_id", txID),
			slog.String("error", err.Error()),
		)
		return res, nil
	}
	res.Status = st
	return res, nil
}

// BuildTransaction returns the wallet request for a program call.
func (s *ChainService) BuildTransaction(req domain.TxRequest) (domain.WalletTransaction, error) {
	return s.builder.Build(req)
}

// MarketState reads the on-chain mappings of a stored market.
func (s *ChainService) MarketState(ctx context.Context, marketID string) (domain.ChainMarketState, error) {
	m, err := s.markets.GetMarket(ctx, marketID)
	if err != nil {
		return domain.ChainMarketState{}, fmt.Errorf("chain_service: market state %q: %w", marketID, err)
	}
	if m.ChainMarketID == "" {
		v := &domain.Validator{}
		v.AddError("chainMarketId", "market has no on-chain id")
		return domain.ChainMarketState{}, v.Err()
	}
	if s.explorer == nil {
		return domain.ChainMarketState{}, fmt.Errorf("chain_service: market state: %w", domain.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExplorerTimeout)
	defer cancel()
	state, err := s.explorer.MarketState(ctx, m.ChainMarketID)
	if err != nil {
		return domain.ChainMarketState{}, fmt.Errorf("chain_service: market state %q: %w", marketID, err)
	}
	return state, nil
}
