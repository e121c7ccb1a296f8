package domain

import (
	"strings"
	"time"
)

// Bet is a wager by an address on one outcome of one market. Amount and
// outcome are fixed at creation; the only later change is settlement.
type Bet struct {
	ID            string    `json:"id"`
	MarketID      string    `json:"marketId"`
	OutcomeID     string    `json:"outcomeId"`
	Amount        float64   `json:"amount"`
	OwnerAddress  string    `json:"ownerAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	IsSettled     bool      `json:"isSettled"`
	Winnings      *float64  `json:"winnings,omitempty"`
	RecordNonce   string    `json:"recordNonce,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
}

// Won reports whether the bet is settled with positive winnings.
func (b Bet) Won() bool {
	return b.IsSettled && b.Winnings != nil && *b.Winnings > 0
}

// BetWithMarket is a bet enriched with its parent market. Market is nil when
// the market no longer exists.
type BetWithMarket struct {
	Bet
	Market *Market `json:"market"`
}

// NewBet is the inbound payload for placing a bet.
type NewBet struct {
	MarketID      string  `json:"marketId"`
	OutcomeID     string  `json:"outcomeId"`
	Amount        float64 `json:"amount"`
	OwnerAddress  string  `json:"ownerAddress"`
	RecordNonce   string  `json:"recordNonce"`
	TransactionID string  `json:"transactionId"`
}

// Validate trims identifiers in place and checks the payload shape. Whether
// the market and outcome exist is checked by the service.
func (n *NewBet) Validate() error {
	n.MarketID = strings.TrimSpace(n.MarketID)
	n.OutcomeID = strings.TrimSpace(n.OutcomeID)
	n.OwnerAddress = strings.TrimSpace(n.OwnerAddress)

	v := &Validator{}
	v.Check(n.MarketID != "", "marketId", "market id is required")
	v.Check(n.OutcomeID != "", "outcomeId", "outcome id is required")
	v.Check(n.Amount > 0, "amount", "amount must be positive")
	if n.Amount > 0 {
		v.Check(ValidAmount(n.Amount), "amount", "amount must be below 1e15 with at most 6 decimal places")
	}
	v.Check(n.OwnerAddress != "", "ownerAddress", "owner address is required")
	return v.Err()
}

// Build turns a validated payload into an unsettled bet.
func (n NewBet) Build(id string, now time.Time) Bet {
	return Bet{
		ID:            id,
		MarketID:      n.MarketID,
		OutcomeID:     n.OutcomeID,
		Amount:        n.Amount,
		OwnerAddress:  n.OwnerAddress,
		CreatedAt:     now.UTC(),
		RecordNonce:   n.RecordNonce,
		TransactionID: n.TransactionID,
	}
}

// Settlement is the inbound payload for settling a bet.
type Settlement struct {
	Winnings *float64 `json:"winnings"`
}

// Validate checks that winnings are present and not negative.
func (s Settlement) Validate() error {
	v := &Validator{}
	v.Check(s.Winnings != nil, "winnings", "winnings is required")
	if s.Winnings != nil {
		v.Check(*s.Winnings >= 0, "winnings", "winnings must not be negative")
		if *s.Winnings >= 0 {
			v.Check(ValidAmount(*s.Winnings), "winnings", "winnings must be below 1e15 with at most 6 decimal places")
		}
	}
	return v.Err()
}
