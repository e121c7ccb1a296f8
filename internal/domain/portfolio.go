package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of decimal places stored for amounts.
	AmountScale = 6
	// MaxAmount bounds a single bet or payout.
	MaxAmount = 1e15
)

// PortfolioStats is derived from an owner's bets on every request.
type PortfolioStats struct {
	TotalBets     int     `json:"totalBets"`
	ActiveBets    int     `json:"activeBets"`
	TotalWagered  float64 `json:"totalWagered"`
	TotalWinnings float64 `json:"totalWinnings"`
	WinRate       int     `json:"winRate"`
}

// ComputePortfolioStats aggregates bets. WinRate is the percentage of settled
// bets with positive winnings, rounded half away from zero, and 0 when
// nothing is settled.
func ComputePortfolioStats(bets []Bet) PortfolioStats {
	wagered := decimal.Zero
	winnings := decimal.Zero
	var active, settled, won int

	for _, b := range bets {
		wagered = wagered.Add(decimal.NewFromFloat(b.Amount))
		if !b.IsSettled {
			active++
			continue
		}
		settled++
		if b.Winnings != nil {
			winnings = winnings.Add(decimal.NewFromFloat(*b.Winnings))
		}
		if b.Won() {
			won++
		}
	}

	stats := PortfolioStats{
		TotalBets:     len(bets),
		ActiveBets:    active,
		TotalWagered:  wagered.InexactFloat64(),
		TotalWinnings: winnings.InexactFloat64(),
	}
	if settled > 0 {
		rate := decimal.NewFromInt(int64(won)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(settled)), 4).
			Round(0)
		stats.WinRate = int(rate.IntPart())
	}
	return stats
}

// AddAmount returns a+b computed in decimal to avoid float drift across many
// small bets.
func AddAmount(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

// ValidAmount reports whether a is a finite, non-negative value below
// MaxAmount with at most AmountScale decimal places, so it is stored exactly
// by every backend.
func ValidAmount(a float64) bool {
	if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 || a >= MaxAmount {
		return false
	}
	return decimal.NewFromFloat(a).Exponent() >= -AmountScale
}
