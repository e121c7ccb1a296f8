package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// PortfolioService computes per-owner statistics.
type PortfolioService struct {
	bets domain.BetStore
}

func NewPortfolioService(bets domain.BetStore) *PortfolioService {
	return &PortfolioService{bets: bets}
}

// Stats aggregates every bet of owner.
func (s *PortfolioService) Stats(ctx context.Context, owner string) (domain.PortfolioStats, error) {
	if owner == "" {
		return domain.PortfolioStats{}, ownerRequired()
	}
	bets, err := s.bets.ListBetsByOwner(ctx, owner)
	if err != nil {
		return domain.PortfolioStats{}, fmt.Errorf("portfolio_service: stats: %w", err)
	}
	return domain.ComputePortfolioStats(bets), nil
}
