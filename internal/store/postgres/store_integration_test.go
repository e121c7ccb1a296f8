//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/store/postgres"
)

// Run with: PREDICTMARKET_TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/store/postgres/

func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("PREDICTMARKET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PREDICTMARKET_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	client, err := postgres.New(ctx, postgres.ClientConfig{DSN: dsn})
	require.NoError(t, err)
	_, err = client.RunMigrations(ctx)
	require.NoError(t, err)
	_, err = client.Pool().Exec(ctx, `TRUNCATE bets, markets, audit_log`)
	require.NoError(t, err)

	s := postgres.NewStore(client)
	t.Cleanup(func() { s.Close() })
	return s
}

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

func TestCreateBet_Aggregates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	var m domain.Market
	var err error
	for i, owner := range []string{"alice", "bob", "alice"} {
		m, err = s.CreateBet(ctx, bet(fmt.Sprintf("b%d", i), "m1", owner, 1.25))
		require.NoError(t, err)
	}
	assert.InDelta(t, 3.75, m.TotalVolume, 1e-9)
	assert.Equal(t, 2, m.ParticipantCount)

	_, err = s.CreateBet(ctx, bet("b0", "m1", "carol", 1))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = s.CreateBet(ctx, bet("bx", "missing", "carol", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBet_ConcurrentParticipants(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateBet(ctx, bet(fmt.Sprintf("b%d", i), "m1", fmt.Sprintf("owner%d", i%4), 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.InDelta(t, 20, m.TotalVolume, 1e-9)
	assert.Equal(t, 4, m.ParticipantCount)
}

func TestCreateBet_InactiveMarket(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	cancelled := domain.MarketStatusCancelled
	_, err := s.UpdateMarket(ctx, "m1", domain.MarketUpdate{Status: &cancelled})
	require.NoError(t, err)

	_, err = s.CreateBet(ctx, bet("b1", "m1", "alice", 5))
	assert.ErrorIs(t, err, domain.ErrMarketInactive)

	m, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, m.TotalVolume)
}

func TestCreateBet_AmountBelowStoredScale(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	_, err := s.CreateBet(ctx, bet("b1", "m1", "alice", 1e-7))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettleBet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))
	_, err := s.CreateBet(ctx, bet("b1", "m1", "alice", 5))
	require.NoError(t, err)

	settled, err := s.SettleBet(ctx, "b1", 9.5)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled)
	require.NotNil(t, settled.Winnings)
	assert.InDelta(t, 9.5, *settled.Winnings, 1e-9)

	_, err = s.SettleBet(ctx, "b1", 1)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	_, err = s.SettleBet(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateMarket(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	status := domain.MarketStatusResolved
	winner := "n"
	m, err := s.UpdateMarket(ctx, "m1", domain.MarketUpdate{Status: &status, WinningOutcomeID: &winner})
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, "n", m.WinningOutcomeID)

	_, err = s.UpdateMarket(ctx, "missing", domain.MarketUpdate{Status: &status})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListMarkets_EndingSoon(t *testing.T) {
	s := openStore(t)
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
