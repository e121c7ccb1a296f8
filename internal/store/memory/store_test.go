package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarket(id string) domain.Market {
	return domain.Market{
		ID:             id,
		Title:          "Market " + id,
		Category:       domain.CategoryOther,
		Outcomes:       []domain.Outcome{{ID: "y", Label: "Yes"}, {ID: "n", Label: "No"}},
		Status:         domain.MarketStatusActive,
		ResolutionDate: "2027-01-01",
		CreatedAt:      time.Now().UTC(),
		CreatorAddress: "aleo1creator",
	}
}

func bet(id, market, owner string, amount float64) domain.Bet {
	return domain.Bet{
		ID:           id,
		MarketID:     market,
		OutcomeID:    "y",
		Amount:       amount,
		OwnerAddress: owner,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestStore_Seeded(t *testing.T) {
	s := memory.NewSeeded()
	n, err := s.CountMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	m, err := s.GetMarket(context.Background(), "3")
	require.NoError(t, err)
	assert.Len(t, m.Outcomes, 3)
}

func TestStore_GetMarket_NotFound(t *testing.T) {
	_, err := memory.New().GetMarket(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CreateMarket_Duplicate(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))
	assert.ErrorIs(t, s.CreateMarket(ctx, newMarket("m1")), domain.ErrAlreadyExists)
}

func TestStore_ReturnedMarketIsACopy(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	m, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	m.Outcomes[0].Label = "mutated"

	again, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Yes", again.Outcomes[0].Label)
}

func TestStore_CreateBet_Aggregates(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	amounts := []float64{10, 2.5, 7.5, 0.1}
	owners := []string{"alice", "bob", "alice", "carol"}
	var m domain.Market
	var err error
	for i := range amounts {
		m, err = s.CreateBet(ctx, bet(fmt.Sprintf("b%d", i), "m1", owners[i], amounts[i]))
		require.NoError(t, err)
	}

	assert.InDelta(t, 20.1, m.TotalVolume, 1e-9)
	assert.Equal(t, 3, m.ParticipantCount)

	stored, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m, stored)
}

func TestStore_CreateBet_UnknownMarket(t *testing.T) {
	_, err := memory.New().CreateBet(context.Background(), bet("b1", "missing", "alice", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CreateBet_InactiveMarket(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	resolved := domain.MarketStatusResolved
	winner := "y"
	_, err := s.UpdateMarket(ctx, "m1", domain.MarketUpdate{Status: &resolved, WinningOutcomeID: &winner})
	require.NoError(t, err)

	_, err = s.CreateBet(ctx, bet("b1", "m1", "alice", 5))
	assert.ErrorIs(t, err, domain.ErrMarketInactive)

	m, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, m.TotalVolume)
	assert.Zero(t, m.ParticipantCount)
}

func TestStore_CreateBet_Concurrent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("owner-%d", i%10)
			_, err := s.CreateBet(ctx, bet(fmt.Sprintf("b%d", i), "m1", owner, 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, float64(workers), m.TotalVolume)
	assert.Equal(t, 10, m.ParticipantCount)
}

func TestStore_ListBetsByOwner_Empty(t *testing.T) {
	bets, err := memory.NewSeeded().ListBetsByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, bets)
	assert.Empty(t, bets)
}

func TestStore_SettleBet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))
	_, err := s.CreateBet(ctx, bet("b1", "m1", "alice", 5))
	require.NoError(t, err)

	settled, err := s.SettleBet(ctx, "b1", 9)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled)
	require.NotNil(t, settled.Winnings)
	assert.Equal(t, 9.0, *settled.Winnings)

	_, err = s.SettleBet(ctx, "b1", 1)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	_, err = s.SettleBet(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListMarkets_Filter(t *testing.T) {
	s := memory.NewSeeded()
	ctx := context.Background()

	crypto, err := s.ListMarkets(ctx, domain.MarketFilter{Category: domain.CategoryCrypto})
	require.NoError(t, err)
	require.Len(t, crypto, 2)
	assert.Equal(t, "1", crypto[0].ID, "volume order by default")

	paged, err := s.ListMarkets(ctx, domain.MarketFilter{SortBy: domain.SortByNewest, ListOpts: domain.ListOpts{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, "5", paged[0].ID)
	assert.Equal(t, "2", paged[1].ID)
}

func TestStore_ListMarkets_EndingSoon(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	dates := map[string]string{
		"a": "2027-03-01",
		"b": "when the votes are counted",
		"c": "2027-01-01T23:00:00-05:00",
		"d": "2027-01-02",
	}
	for id, date := range dates {
		m := newMarket(id)
		m.ResolutionDate = date
		require.NoError(t, s.CreateMarket(ctx, m))
	}

	markets, err := s.ListMarkets(ctx, domain.MarketFilter{SortBy: domain.SortByEndingSoon})
	require.NoError(t, err)
	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids)
}
