package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const (
	marketLockTTL     = 5 * time.Second
	lockAttempts      = 20
	lockRetryInterval = 25 * time.Millisecond
)

// BetService places, lists and settles bets.
type BetService struct {
	store  domain.Store
	cache  domain.MarketCache
	locks  domain.LockManager
	events publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewBetService creates a BetService with all required dependencies.
func NewBetService(
	store domain.Store,
	cache domain.MarketCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
) *BetService {
	logger = logger.With(slog.String("component", "bet_service"))
	return &BetService{
		store:  store,
		cache:  cache,
		locks:  locks,
		events: publisher{bus: bus, logger: logger, now: time.Now},
		logger: logger,
		now:    time.Now,
	}
}

// Place validates and records a bet. The market must exist, be active and
// contain the chosen outcome. Bets on one market are serialized through a
// lock so replicas sharing Redis agree on the aggregates.
func (s *BetService) Place(ctx context.Context, in domain.NewBet) (domain.Bet, error) {
	if err := in.Validate(); err != nil {
		return domain.Bet{}, err
	}

	unlock, err := s.lockMarket(ctx, in.MarketID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: place: %w", err)
	}
	defer unlock()

	m, err := s.store.GetMarket(ctx, in.MarketID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: place: market %q: %w", in.MarketID, err)
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Bet{}, domain.ErrMarketInactive
	}
	if !m.HasOutcome(in.OutcomeID) {
		return domain.Bet{}, domain.ErrInvalidOutcome
	}

	bet := in.Build(uuid.NewString(), s.now())
	updated, err := s.store.CreateBet(ctx, bet)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: place: %w", err)
	}

	if err := s.cache.Invalidate(ctx, m.ID); err != nil {
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "bet placed",
		slog.String("bet_id", bet.ID),
		slog.String("market_id", bet.MarketID),
		slog.String("outcome_id", bet.OutcomeID),
		slog.Float64("amount", bet.Amount),
	)
	s.events.publish(ctx, domain.ChannelBetPlaced, bet.MarketID, bet)
	s.events.publish(ctx, domain.ChannelMarketUpdated, updated.ID, updated)
	return bet, nil
}

// lockMarket acquires the per-market lock, retrying briefly while another
// placement holds it.
func (s *BetService) lockMarket(ctx context.Context, marketID string) (func(), error) {
	key := "market:" + marketID
	for attempt := 1; ; attempt++ {
		unlock, err := s.locks.Acquire(ctx, key, marketLockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) || attempt == lockAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// ListByOwner returns the owner's bets, newest first, each with its market.
func (s *BetService) ListByOwner(ctx context.Context, owner string) ([]domain.BetWithMarket, error) {
	if owner == "" {
		return nil, ownerRequired()
	}

	bets, err := s.store.ListBetsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list by owner: %w", err)
	}

	markets := make(map[string]*domain.Market)
	out := make([]domain.BetWithMarket, 0, len(bets))
	for _, b := range bets {
		m, seen := markets[b.MarketID]
		if !seen {
			got, err := s.store.GetMarket(ctx, b.MarketID)
			switch {
			case err == nil:
				m = &got
			case errors.Is(err, domain.ErrNotFound):
				// Leave Market nil.
			default:
				return nil, fmt.Errorf("bet_service: list by owner: market %q: %w", b.MarketID, err)
			}
			markets[b.MarketID] = m
		}
		out = append(out, domain.BetWithMarket{Bet: b, Market: m})
	}
	return out, nil
}

// ListByMarket returns every bet on an existing market, newest first.
func (s *BetService) ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	if _, err := s.store.GetMarket(ctx, marketID); err != nil {
		return nil, fmt.Errorf("bet_service: list by market %q: %w", marketID, err)
	}
	bets, err := s.store.ListBetsByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list by market %q: %w", marketID, err)
	}
	return bets, nil
}

// Settle records the winnings of a bet. A bet can be settled once.
func (s *BetService) Settle(ctx context.Context, id string, in domain.Settlement) (domain.Bet, error) {
	if err := in.Validate(); err != nil {
		return domain.Bet{}, err
	}

	b, err := s.store.SettleBet(ctx, id, *in.Winnings)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: settle %q: %w", id, err)
	}

	s.logger.InfoContext(ctx, "bet settled",
		slog.String("bet_id", b.ID),
		slog.String("market_id", b.MarketID),
		slog.Float64("winnings", *in.Winnings),
	)
	s.events.publish(ctx, domain.ChannelBetSettled, b.MarketID, b)
	return b, nil
}

func ownerRequired() error {
	v := &domain.Validator{}
	v.AddError("owner", "owner address is required")
	return v.Err()
}
