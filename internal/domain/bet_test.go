package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestNewBet_Validate(t *testing.T) {
	ok := domain.NewBet{MarketID: "1", OutcomeID: "1a", Amount: 10, OwnerAddress: " aleo1me "}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "aleo1me", ok.OwnerAddress)

	for _, amount := range []float64{0, -5} {
		bad := domain.NewBet{MarketID: "1", OutcomeID: "1a", Amount: amount, OwnerAddress: "x"}
		err := bad.Validate()
		assert.True(t, errors.Is(err, domain.ErrValidation))
		assert.Contains(t, fieldNames(t, err), "amount")
	}

	names := fieldNames(t, (&domain.NewBet{Amount: 1}).Validate())
	assert.ElementsMatch(t, []string{"marketId", "outcomeId", "ownerAddress"}, names)
}

func TestNewBet_Validate_AmountScale(t *testing.T) {
	for _, amount := range []float64{1e-7, 0.1234567, 1e15, 2e18} {
		bad := domain.NewBet{MarketID: "1", OutcomeID: "1a", Amount: amount, OwnerAddress: "x"}
		assert.Equal(t, []string{"amount"}, fieldNames(t, bad.Validate()), "amount=%v", amount)
	}
	for _, amount := range []float64{0.000001, 0.123456, 999999999.5} {
		ok := domain.NewBet{MarketID: "1", OutcomeID: "1a", Amount: amount, OwnerAddress: "x"}
		assert.NoError(t, ok.Validate(), "amount=%v", amount)
	}
}

func TestSettlement_Validate(t *testing.T) {
	assert.NoError(t, domain.Settlement{Winnings: f64(0)}.Validate())
	assert.NoError(t, domain.Settlement{Winnings: f64(12.5)}.Validate())
	assert.Error(t, domain.Settlement{}.Validate())
	assert.Error(t, domain.Settlement{Winnings: f64(-1)}.Validate())
	assert.Error(t, domain.Settlement{Winnings: f64(0.0000001)}.Validate())
}

func TestComputePortfolioStats_Empty(t *testing.T) {
	stats := domain.ComputePortfolioStats(nil)
	assert.Equal(t, domain.PortfolioStats{}, stats)
}

func TestComputePortfolioStats_NothingSettled(t *testing.T) {
	stats := domain.ComputePortfolioStats([]domain.Bet{
		{Amount: 10},
		{Amount: 15.5},
	})
	assert.Equal(t, 2, stats.TotalBets)
	assert.Equal(t, 2, stats.ActiveBets)
	assert.InDelta(t, 25.5, stats.TotalWagered, 1e-9)
	assert.Zero(t, stats.TotalWinnings)
	assert.Zero(t, stats.WinRate)
}

func TestComputePortfolioStats_WinRate(t *testing.T) {
	stats := domain.ComputePortfolioStats([]domain.Bet{
		{Amount: 10, IsSettled: true, Winnings: f64(18)},
		{Amount: 10, IsSettled: true, Winnings: f64(0)},
		{Amount: 10, IsSettled: true, Winnings: f64(4.5)},
		{Amount: 5},
	})
	assert.Equal(t, 4, stats.TotalBets)
	assert.Equal(t, 1, stats.ActiveBets)
	assert.InDelta(t, 35, stats.TotalWagered, 1e-9)
	assert.InDelta(t, 22.5, stats.TotalWinnings, 1e-9)
	// 2 of 3 settled bets won: 66.67 rounds to 67.
	assert.Equal(t, 67, stats.WinRate)
}

func TestComputePortfolioStats_RoundsHalfUp(t *testing.T) {
	bets := make([]domain.Bet, 0, 8)
	for i := 0; i < 8; i++ {
		w := 0.0
		if i < 1 {
			w = 3
		}
		bets = append(bets, domain.Bet{Amount: 1, IsSettled: true, Winnings: f64(w)})
	}
	// 1/8 = 12.5%.
	assert.Equal(t, 13, domain.ComputePortfolioStats(bets).WinRate)
}

func TestComputePortfolioStats_DecimalSums(t *testing.T) {
	bets := make([]domain.Bet, 10)
	for i := range bets {
		bets[i] = domain.Bet{Amount: 0.1}
	}
	assert.Equal(t, 1.0, domain.ComputePortfolioStats(bets).TotalWagered)
}

func TestTxRequest_Validate(t *testing.T) {
	ok := domain.TxRequest{Function: domain.TxPlaceBet, ChainMarketID: "42", OutcomeID: "421", Amount: 1000}
	assert.NoError(t, ok.Validate())

	bad := domain.TxRequest{Function: "withdraw", ChainMarketID: "42"}
	assert.Contains(t, fieldNames(t, bad.Validate()), "function")

	create := domain.TxRequest{Function: domain.TxCreateMarket, ChainMarketID: "42", EndTimestamp: 1, NumOutcomes: 11}
	assert.Contains(t, fieldNames(t, create.Validate()), "numOutcomes")

	generated := domain.TxRequest{Function: domain.TxCreateMarket, EndTimestamp: 1, NumOutcomes: 2}
	assert.NoError(t, generated.Validate())

	missing := domain.TxRequest{Function: domain.TxPlaceBet, OutcomeID: "1", Amount: 1}
	assert.Contains(t, fieldNames(t, missing.Validate()), "chainMarketId")
}

func TestTxRequest_Validate_NonNumericIDs(t *testing.T) {
	bet := domain.TxRequest{Function: domain.TxPlaceBet, ChainMarketID: "abc", OutcomeID: "1field, 9", Amount: 5}
	fields := fieldNames(t, bet.Validate())
	assert.Contains(t, fields, "chainMarketId")
	assert.Contains(t, fields, "outcomeId")

	resolve := domain.TxRequest{Function: domain.TxResolveMarket, ChainMarketID: "42", WinningOutcomeID: "-1"}
	assert.Equal(t, []string{"winningOutcomeId"}, fieldNames(t, resolve.Validate()))
}

func TestIsChainID(t *testing.T) {
	assert.True(t, domain.IsChainID("0"))
	assert.True(t, domain.IsChainID("123456789"))
	for _, s := range []string{"", "12a", " 1", "1.5", "+1", "1field", strings.Repeat("9", 76)} {
		assert.False(t, domain.IsChainID(s), s)
	}
}
