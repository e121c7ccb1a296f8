package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMarket(id string) domain.Market {
	p := 50.0
	return domain.Market{
		ID:             id,
		Title:          "Market " + id,
		Description:    "desc",
		Category:       domain.CategorySports,
		Outcomes:       []domain.Outcome{{ID: "y", Label: "Yes", Probability: &p}, {ID: "n", Label: "No"}},
		Status:         domain.MarketStatusActive,
		ResolutionDate: "2027-01-01",
		CreatedAt:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		CreatorAddress: "aleo1creator",
	}
}

func TestStore_CreateAndGetMarket(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	want := newMarket("m1")
	require.NoError(t, s.CreateMarket(ctx, want))

	got, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.ErrorIs(t, s.CreateMarket(ctx, want), domain.ErrAlreadyExists)

	_, err = s.GetMarket(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_SeedMarkets_Idempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedMarkets(ctx, domain.DemoMarkets()))
	require.NoError(t, s.SeedMarkets(ctx, domain.DemoMarkets()))

	n, err := s.CountMarkets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	top, err := s.ListMarkets(ctx, domain.MarketFilter{ListOpts: domain.ListOpts{Limit: 1}})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "3", top[0].ID)

	found, err := s.ListMarkets(ctx, domain.MarketFilter{Search: "super bowl"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "5", found[0].ID)
}

func TestStore_CreateBet_Aggregates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	owners := []string{"alice", "bob", "alice"}
	var m domain.Market
	var err error
	for i, owner := range owners {
		m, err = s.CreateBet(ctx, domain.Bet{
			ID:           fmt.Sprintf("b%d", i),
			MarketID:     "m1",
			OutcomeID:    "y",
			Amount:       1.5,
			OwnerAddress: owner,
			CreatedAt:    time.Now().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	assert.InDelta(t, 4.5, m.TotalVolume, 1e-9)
	assert.Equal(t, 2, m.ParticipantCount)

	bets, err := s.ListBetsByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, "b2", bets[0].ID, "newest first")

	empty, err := s.ListBetsByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = s.CreateBet(ctx, domain.Bet{ID: "bx", MarketID: "missing", OutcomeID: "y", Amount: 1, OwnerAddress: "a", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CreateBet_InactiveMarket(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	cancelled := domain.MarketStatusCancelled
	_, err := s.UpdateMarket(ctx, "m1", domain.MarketUpdate{Status: &cancelled})
	require.NoError(t, err)

	_, err = s.CreateBet(ctx, domain.Bet{ID: "b1", MarketID: "m1", OutcomeID: "y", Amount: 5, OwnerAddress: "alice", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrMarketInactive)

	bets, err := s.ListBetsByMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, bets)
	m, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, m.TotalVolume)
}

func TestStore_SettleBet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))
	_, err := s.CreateBet(ctx, domain.Bet{ID: "b1", MarketID: "m1", OutcomeID: "y", Amount: 2, OwnerAddress: "alice", CreatedAt: time.Now()})
	require.NoError(t, err)

	b, err := s.SettleBet(ctx, "b1", 3.5)
	require.NoError(t, err)
	assert.True(t, b.IsSettled)
	require.NotNil(t, b.Winnings)
	assert.Equal(t, 3.5, *b.Winnings)

	_, err = s.SettleBet(ctx, "b1", 1)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	_, err = s.SettleBet(ctx, "nope", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpdateMarket(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateMarket(ctx, newMarket("m1")))

	status := domain.MarketStatusResolved
	winner := "n"
	m, err := s.UpdateMarket(ctx, "m1", domain.MarketUpdate{Status: &status, WinningOutcomeID: &winner})
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)

	got, err := s.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "n", got.WinningOutcomeID)

	_, err = s.UpdateMarket(ctx, "missing", domain.MarketUpdate{Status: &status})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListMarkets_EndingSoon(t *testing.T) {
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
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids, "parsed date order, unparseable last")
}

func TestOpen_BackfillsResolvesAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE markets (
			id TEXT PRIMARY KEY, title TEXT NOT NULL, description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL, outcomes TEXT NOT NULL, status TEXT NOT NULL,
			resolution_date TEXT NOT NULL, creator_address TEXT NOT NULL,
			total_volume REAL NOT NULL DEFAULT 0, participant_count INTEGER NOT NULL DEFAULT 0,
			winning_outcome_id TEXT NOT NULL DEFAULT '', image_url TEXT NOT NULL DEFAULT '',
			chain_market_id TEXT NOT NULL DEFAULT '', transaction_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		INSERT INTO markets (id, title, category, outcomes, status, resolution_date, creator_address, created_at) VALUES
			('late', 'Late', 'other', '[]', 'active', '2028-01-01', 'c', '2026-05-01T10:00:00.000000000Z'),
			('soon', 'Soon', 'other', '[]', 'active', '2027-01-01', 'c', '2026-05-01T10:00:00.000000000Z');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	markets, err := s.ListMarkets(context.Background(), domain.MarketFilter{SortBy: domain.SortByEndingSoon})
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "soon", markets[0].ID)
}

func TestStore_Ping(t *testing.T) {
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}
