// Package memory implements the domain store interfaces with maps held in
// process memory. It is the default backend for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// Store keeps markets and bets in maps guarded by a single RWMutex so a bet
// and the aggregate update on its market are applied together.
type Store struct {
	mu      sync.RWMutex
	markets map[string]domain.Market
	bets    map[string]domain.Bet
	// owners[marketID] holds every address that has bet on the market.
	owners map[string]map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		markets: make(map[string]domain.Market),
		bets:    make(map[string]domain.Bet),
		owners:  make(map[string]map[string]struct{}),
	}
}

// NewSeeded returns a Store pre-populated with domain.DemoMarkets.
func NewSeeded() *Store {
	s := New()
	for _, m := range domain.DemoMarkets() {
		s.markets[m.ID] = m
	}
	return s
}

// Close is a no-op; it exists to satisfy domain.Store.
func (s *Store) Close() error { return nil }

// CreateMarket inserts a new market. It fails with ErrAlreadyExists when the
// id is taken.
func (s *Store) CreateMarket(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.markets[m.ID] = cloneMarket(m)
	return nil
}

func (s *Store) GetMarket(_ context.Context, id string) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return cloneMarket(m), nil
}

func (s *Store) ListMarkets(_ context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	s.mu.RLock()
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if m.Matches(f) {
			out = append(out, cloneMarket(m))
		}
	}
	s.mu.RUnlock()

	// Map iteration is random; fix a base order so ties are stable.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	domain.SortMarkets(out, f.SortBy)
	return domain.Page(out, f.ListOpts), nil
}

func (s *Store) UpdateMarket(_ context.Context, id string, u domain.MarketUpdate) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	m = u.Apply(m)
	s.markets[id] = m
	return cloneMarket(m), nil
}

func (s *Store) CountMarkets(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.markets)), nil
}

// CreateBet stores the bet and, under the same lock, adds its amount to the
// market volume and bumps the participant count the first time an owner bets
// on that market. A market that is no longer active rejects the bet with
// ErrMarketInactive.
func (s *Store) CreateBet(_ context.Context, b domain.Bet) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[b.MarketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Market{}, domain.ErrMarketInactive
	}
	if _, ok := s.bets[b.ID]; ok {
		return domain.Market{}, domain.ErrAlreadyExists
	}

	s.bets[b.ID] = b

	owners := s.owners[b.MarketID]
	if owners == nil {
		owners = make(map[string]struct{})
		s.owners[b.MarketID] = owners
	}
	if _, seen := owners[b.OwnerAddress]; !seen {
		owners[b.OwnerAddress] = struct{}{}
		m.ParticipantCount++
	}
	m.TotalVolume = domain.AddAmount(m.TotalVolume, b.Amount)
	s.markets[m.ID] = m

	return cloneMarket(m), nil
}

func (s *Store) GetBet(_ context.Context, id string) (domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

// ListBetsByOwner returns the owner's bets newest first. An unknown owner
// yields an empty, non-nil slice.
func (s *Store) ListBetsByOwner(_ context.Context, owner string) ([]domain.Bet, error) {
	return s.filterBets(func(b domain.Bet) bool { return b.OwnerAddress == owner }), nil
}

func (s *Store) ListBetsByMarket(_ context.Context, marketID string) ([]domain.Bet, error) {
	return s.filterBets(func(b domain.Bet) bool { return b.MarketID == marketID }), nil
}

func (s *Store) ListBets(_ context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	all := s.filterBets(func(domain.Bet) bool { return true })
	return domain.Page(all, opts), nil
}

// SettleBet marks a bet settled with the given winnings. A bet can be
// settled only once.
func (s *Store) SettleBet(_ context.Context, id string, winnings float64) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	if b.IsSettled {
		return domain.Bet{}, domain.ErrAlreadySettled
	}
	b.IsSettled = true
	b.Winnings = &winnings
	s.bets[id] = b
	return b, nil
}

func (s *Store) filterBets(keep func(domain.Bet) bool) []domain.Bet {
	s.mu.RLock()
	out := make([]domain.Bet, 0)
	for _, b := range s.bets {
		if keep(b) {
			out = append(out, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneMarket(m domain.Market) domain.Market {
	if m.Outcomes != nil {
		outcomes := make([]domain.Outcome, len(m.Outcomes))
		copy(outcomes, m.Outcomes)
		m.Outcomes = outcomes
	}
	return m
}

var _ domain.Store = (*Store)(nil)
