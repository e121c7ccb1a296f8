package aleo

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

const (
	// DefaultFee is the execution fee in microcredits.
	DefaultFee uint64 = 500_000
	// DefaultNetwork is the wallet-adapter network name.
	DefaultNetwork = "TestnetBeta"

	maxMarketID = 1_000_000_000
)

// FieldLiteral renders an id as an Aleo field literal.
func FieldLiteral(id string) string {
	return id + "field"
}

// TxBuilder turns TxRequests into wallet transactions for one program.
type TxBuilder struct {
	ProgramID string
	Network   string
	Fee       uint64
}

// Build validates req and returns the wallet transaction. A zero req.Fee
// uses the builder's default; a create_market request without a chain
// market id gets a random one.
func (b TxBuilder) Build(req domain.TxRequest) (domain.WalletTransaction, error) {
	if err := req.Validate(); err != nil {
		return domain.WalletTransaction{}, err
	}
	if req.ChainMarketID == "" {
		id, err := GenerateMarketID()
		if err != nil {
			return domain.WalletTransaction{}, err
		}
		req.ChainMarketID = id
	}

	var inputs []string
	switch req.Function {
	case domain.TxPlaceBet:
		inputs = PlaceBetInputs(req.ChainMarketID, req.OutcomeID, req.Amount)
	case domain.TxCreateMarket:
		inputs = CreateMarketInputs(req.ChainMarketID, req.EndTimestamp, req.NumOutcomes)
	case domain.TxResolveMarket:
		inputs = ResolveMarketInputs(req.ChainMarketID, req.WinningOutcomeID)
	}

	fee := req.Fee
	if fee == 0 {
		fee = b.Fee
	}
	if fee == 0 {
		fee = DefaultFee
	}
	tx := domain.WalletTransaction{
		ProgramID:     b.ProgramID,
		Function:      req.Function,
		Inputs:        inputs,
		Fee:           fee,
		Network:       b.Network,
		ChainMarketID: req.ChainMarketID,
	}
	if tx.ProgramID == "" {
		tx.ProgramID = DefaultProgramID
	}
	if tx.Network == "" {
		tx.Network = DefaultNetwork
	}
	return tx, nil
}

func PlaceBetInputs(marketID, outcomeID string, amount uint64) []string {
	return []string{FieldLiteral(marketID), FieldLiteral(outcomeID), strconv.FormatUint(amount, 10) + "u64"}
}

func CreateMarketInputs(marketID string, endTimestamp uint64, numOutcomes uint8) []string {
	return []string{
		FieldLiteral(marketID),
		strconv.FormatUint(endTimestamp, 10) + "u64",
		strconv.FormatUint(uint64(numOutcomes), 10) + "u8",
	}
}

func ResolveMarketInputs(marketID, winningOutcomeID string) []string {
	return []string{FieldLiteral(marketID), FieldLiteral(winningOutcomeID)}
}

// GenerateMarketID returns a random numeric id in [0, 1e9).
func GenerateMarketID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxMarketID))
	if err != nil {
		return "", fmt.Errorf("aleo: generate market id: %w", err)
	}
	return n.String(), nil
}

// OutcomeID derives the on-chain id of the index-th outcome of a market.
func OutcomeID(chainMarketID string, index int) string {
	return chainMarketID + strconv.Itoa(index)
}
