package domain

import "time"

// TxStatus is the explorer's view of a submitted transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusUnknown   TxStatus = "unknown"
)

// NetworkStatus is reported by GET /api/network-status.
type NetworkStatus struct {
	Network     string `json:"network"`
	Status      string `json:"status"`
	LatestBlock int64  `json:"latestBlock"`
	ProgramID   string `json:"programId"`
}

// TxVerification is reported by POST /api/verify-transaction. Verified only
// means the request was accepted; no proof is checked.
type TxVerification struct {
	Verified      bool      `json:"verified"`
	TransactionID string    `json:"transactionId"`
	ProgramID     string    `json:"programId"`
	Status        TxStatus  `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChainMarketState is the public on-chain mapping data for one market. Nil
// fields had no mapping entry.
type ChainMarketState struct {
	ChainMarketID    string  `json:"chainMarketId"`
	Volume           *uint64 `json:"volume"`
	Participants     *uint64 `json:"participants"`
	Resolved         bool    `json:"resolved"`
	WinningOutcomeID *string `json:"winningOutcomeId"`
}

// TxFunction names a program entry point the wallet can execute.
type TxFunction string

const (
	TxCreateMarket  TxFunction = "create_market"
	TxPlaceBet      TxFunction = "place_bet"
	TxResolveMarket TxFunction = "resolve_market"
)

// TxRequest is the inbound payload for building a wallet transaction.
type TxRequest struct {
	Function         TxFunction `json:"function"`
	ChainMarketID    string     `json:"chainMarketId"`
	OutcomeID        string     `json:"outcomeId"`
	Amount           uint64     `json:"amount"`
	EndTimestamp     uint64     `json:"endTimestamp"`
	NumOutcomes      uint8      `json:"numOutcomes"`
	WinningOutcomeID string     `json:"winningOutcomeId"`
	Fee              uint64     `json:"fee"`
}

// Validate checks the fields each function needs. Chain ids become Aleo
// field literals, so they must be plain decimal numbers. A create_market
// request may leave chainMarketId empty to have one generated.
func (r TxRequest) Validate() error {
	v := &Validator{}
	if r.ChainMarketID == "" {
		v.Check(r.Function == TxCreateMarket, "chainMarketId", "chain market id is required")
	} else {
		v.Check(IsChainID(r.ChainMarketID), "chainMarketId", "chain market id must be a decimal number")
	}
	switch r.Function {
	case TxPlaceBet:
		v.Check(IsChainID(r.OutcomeID), "outcomeId", "outcome id must be a decimal number")
		v.Check(r.Amount > 0, "amount", "amount must be positive")
	case TxCreateMarket:
		v.Check(r.EndTimestamp > 0, "endTimestamp", "end timestamp is required")
		v.Check(int(r.NumOutcomes) >= MinOutcomes && int(r.NumOutcomes) <= MaxOutcomes, "numOutcomes", "number of outcomes must be between 2 and 10")
	case TxResolveMarket:
		v.Check(IsChainID(r.WinningOutcomeID), "winningOutcomeId", "winning outcome id must be a decimal number")
	default:
		v.AddError("function", "function must be one of create_market, place_bet, resolve_market")
	}
	return v.Err()
}

// maxChainIDDigits keeps ids below the order of the Aleo base field.
const maxChainIDDigits = 75

// IsChainID reports whether s is a non-empty decimal number usable as a
// field literal.
func IsChainID(s string) bool {
	if s == "" || len(s) > maxChainIDDigits {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// WalletTransaction is the unsigned request handed to a wallet extension.
type WalletTransaction struct {
	ProgramID string     `json:"programId"`
	Function  TxFunction `json:"function"`
	Inputs    []string   `json:"inputs"`
	Fee       uint64     `json:"fee"`
	Network   string     `json:"network"`
	// ChainMarketID is the market id the inputs were built for, including
	// one generated for a create_market request that did not carry one.
	ChainMarketID string `json:"chainMarketId"`
}
