package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/platform/aleo"
)

// MarketResolver lists markets and applies resolutions. MarketService
// satisfies it, so resolutions publish events and alerts as usual.
type MarketResolver interface {
	List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error)
	Update(ctx context.Context, id string, upd domain.MarketUpdate) (domain.Market, error)
}

// ChainStateReader reads a market's public on-chain mappings.
type ChainStateReader interface {
	MarketState(ctx context.Context, chainMarketID string) (domain.ChainMarketState, error)
}

// ChainSync mirrors on-chain resolutions into the store. Active markets that
// carry a chain market id are checked against the explorer; when the program
// reports the market resolved, the local market is resolved to the matching
// outcome.
type ChainSync struct {
	markets  MarketResolver
	explorer ChainStateReader
	logger   *slog.Logger
}

// NewChainSync creates a new ChainSync.
func NewChainSync(markets MarketResolver, explorer ChainStateReader, logger *slog.Logger) *ChainSync {
	return &ChainSync{
		markets:  markets,
		explorer: explorer,
		logger:   logger.With(slog.String("component", "chain_sync")),
	}
}

// Run performs one pass and returns the number of markets resolved.
func (s *ChainSync) Run(ctx context.Context) (int, error) {
	active, err := s.markets.List(ctx, domain.MarketFilter{Status: domain.MarketStatusActive})
	if err != nil {
		return 0, fmt.Errorf("list active markets: %w", err)
	}

	resolved := 0
	for _, m := range active {
		if m.ChainMarketID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		state, err := s.explorer.MarketState(ctx, m.ChainMarketID)
		if err != nil {
			s.logger.Warn("read chain state failed",
				slog.String("market_id", m.ID),
				slog.String("chain_market_id", m.ChainMarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !state.Resolved || state.WinningOutcomeID == nil {
			continue
		}

		winner, ok := localOutcome(m, *state.WinningOutcomeID)
		if !ok {
			s.logger.Warn("chain winner matches no outcome",
				slog.String("market_id", m.ID),
				slog.String("winning_outcome", *state.WinningOutcomeID),
			)
			continue
		}

		status := domain.MarketStatusResolved
		if _, err := s.markets.Update(ctx, m.ID, domain.MarketUpdate{
			Status:           &status,
			WinningOutcomeID: &winner,
		}); err != nil {
			s.logger.Error("apply chain resolution failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		resolved++
		s.logger.Info("market resolved from chain",
			slog.String("market_id", m.ID),
			slog.String("winning_outcome_id", winner),
		)
	}
	return resolved, nil
}

// localOutcome maps an on-chain outcome id to the market's outcome id. The
// chain id is either the outcome id itself or <chainMarketID><index>.
func localOutcome(m domain.Market, chainOutcome string) (string, bool) {
	for i, o := range m.Outcomes {
		if o.ID == chainOutcome || aleo.OutcomeID(m.ChainMarketID, i) == chainOutcome {
			return o.ID, true
		}
	}
	return "", false
}

// RunLoop runs the sync on a repeating interval until the context is
// cancelled.
func (s *ChainSync) RunLoop(ctx context.Context, interval time.Duration) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("chain sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ChainSync) runOnce(ctx context.Context) {
	n, err := s.Run(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("chain sync failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("chain sync pass complete", slog.Int("resolved", n))
	}
}
