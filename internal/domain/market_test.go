package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomes(n int) []domain.Outcome {
	out := make([]domain.Outcome, n)
	for i := range out {
		out[i] = domain.Outcome{ID: string(rune('a' + i)), Label: "Option " + string(rune('A'+i))}
	}
	return out
}

func validNewMarket() domain.NewMarket {
	return domain.NewMarket{
		Title:          "Will it rain tomorrow?",
		Description:    "Resolves YES on any measurable rainfall.",
		Category:       domain.CategoryOther,
		Outcomes:       outcomes(2),
		ResolutionDate: "2027-01-01",
		CreatorAddress: "aleo1creator",
	}
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

func TestNewMarket_Validate_OK(t *testing.T) {
	n := validNewMarket()
	n.Title = "  Will it rain tomorrow?  "
	require.NoError(t, n.Validate())
	assert.Equal(t, "Will it rain tomorrow?", n.Title)
}

func TestNewMarket_Validate_OutcomeBounds(t *testing.T) {
	for _, count := range []int{0, 1, 11} {
		n := validNewMarket()
		n.Outcomes = outcomes(count)
		err := n.Validate()
		require.Error(t, err, "count=%d", count)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.Contains(t, fieldNames(t, err), "outcomes", "count=%d", count)
	}
	for _, count := range []int{2, 10} {
		n := validNewMarket()
		n.Outcomes = outcomes(count)
		assert.NoError(t, n.Validate(), "count=%d", count)
	}
}

func TestNewMarket_Validate_Fields(t *testing.T) {
	n := domain.NewMarket{
		Title:       "abc",
		Description: strings.Repeat("x", 1001),
		Category:    "weather",
		Outcomes: []domain.Outcome{
			{ID: "a", Label: "Yes"},
			{ID: "a", Label: ""},
		},
	}
	names := fieldNames(t, n.Validate())
	assert.Contains(t, names, "title")
	assert.Contains(t, names, "description")
	assert.Contains(t, names, "category")
	assert.Contains(t, names, "resolutionDate")
	assert.Contains(t, names, "creatorAddress")
	assert.Contains(t, names, "outcomes[1].id")
	assert.Contains(t, names, "outcomes[1].label")
}

func TestNewMarket_Validate_Probability(t *testing.T) {
	n := validNewMarket()
	bad := 120.0
	n.Outcomes[0].Probability = &bad
	assert.Contains(t, fieldNames(t, n.Validate()), "outcomes[0].probability")
}

func TestNewMarket_Validate_ChainMarketID(t *testing.T) {
	n := validNewMarket()
	n.ChainMarketID = " 123456 "
	require.NoError(t, n.Validate())
	assert.Equal(t, "123456", n.ChainMarketID)

	n.ChainMarketID = "market-1"
	assert.Contains(t, fieldNames(t, n.Validate()), "chainMarketId")
}

func TestNewMarket_Build(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := validNewMarket().Build("m1", now)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Zero(t, m.TotalVolume)
	assert.Zero(t, m.ParticipantCount)
	assert.Equal(t, now, m.CreatedAt)
}

func TestMarketUpdate_Validate(t *testing.T) {
	m := validNewMarket().Build("m1", time.Now())

	assert.Error(t, domain.MarketUpdate{}.Validate(m))

	bogus := domain.MarketStatus("paused")
	assert.Contains(t, fieldNames(t, domain.MarketUpdate{Status: &bogus}.Validate(m)), "status")

	missing := "zzz"
	assert.Contains(t, fieldNames(t, domain.MarketUpdate{WinningOutcomeID: &missing}.Validate(m)), "winningOutcomeId")

	resolved := domain.MarketStatusResolved
	winner := "a"
	u := domain.MarketUpdate{Status: &resolved, WinningOutcomeID: &winner}
	require.NoError(t, u.Validate(m))
	got := u.Apply(m)
	assert.Equal(t, domain.MarketStatusResolved, got.Status)
	assert.Equal(t, "a", got.WinningOutcomeID)
}

func TestMarket_Matches(t *testing.T) {
	m := domain.DemoMarkets()[0]
	assert.True(t, m.Matches(domain.MarketFilter{}))
	assert.True(t, m.Matches(domain.MarketFilter{Category: domain.CategoryCrypto, Search: "BITCOIN"}))
	assert.True(t, m.Matches(domain.MarketFilter{Search: "kraken"}))
	assert.False(t, m.Matches(domain.MarketFilter{Category: domain.CategorySports}))
	assert.False(t, m.Matches(domain.MarketFilter{Status: domain.MarketStatusResolved}))
	assert.False(t, m.Matches(domain.MarketFilter{Search: "dogecoin"}))
}

func TestSortMarkets(t *testing.T) {
	markets := domain.DemoMarkets()

	domain.SortMarkets(markets, domain.SortByVolume)
	assert.Equal(t, "3", markets[0].ID)
	assert.Equal(t, "4", markets[len(markets)-1].ID)

	domain.SortMarkets(markets, domain.SortByNewest)
	assert.Equal(t, "5", markets[0].ID)

	domain.SortMarkets(markets, domain.SortByEndingSoon)
	assert.Equal(t, "2026-12-31", markets[0].ResolutionDate)
	assert.Equal(t, "3", markets[len(markets)-1].ID)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, domain.Page(items, domain.ListOpts{}))
	assert.Equal(t, []int{2, 3}, domain.Page(items, domain.ListOpts{Offset: 1, Limit: 2}))
	assert.Empty(t, domain.Page(items, domain.ListOpts{Offset: 9}))
}
