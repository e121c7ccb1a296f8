package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries. A zero Limit means no limit.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists markets.
type MarketStore interface {
	CreateMarket(ctx context.Context, market Market) error
	GetMarket(ctx context.Context, id string) (Market, error)
	ListMarkets(ctx context.Context, filter MarketFilter) ([]Market, error)
	UpdateMarket(ctx context.Context, id string, update MarketUpdate) (Market, error)
	CountMarkets(ctx context.Context) (int64, error)
}

// BetStore persists bets. CreateBet records the bet and folds it into the
// parent market's volume and participant count as one atomic step.
type BetStore interface {
	CreateBet(ctx context.Context, bet Bet) (Market, error)
	GetBet(ctx context.Context, id string) (Bet, error)
	ListBetsByOwner(ctx context.Context, owner string) ([]Bet, error)
	ListBetsByMarket(ctx context.Context, marketID string) ([]Bet, error)
	ListBets(ctx context.Context, opts ListOpts) ([]Bet, error)
	SettleBet(ctx context.Context, id string, winnings float64) (Bet, error)
}

// Store combines the market and bet stores of one backend.
type Store interface {
	MarketStore
	BetStore
	Close() error
}

// AuditEvent is a single entry in the audit trail.
type AuditEvent struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore records operational events such as archive runs and market
// resolutions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	ListRecent(ctx context.Context, limit int) ([]AuditEvent, error)
}
