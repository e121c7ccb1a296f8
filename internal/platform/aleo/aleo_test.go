package aleo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/platform/aleo"
)

func newExplorer(t *testing.T, routes map[string]string) *aleo.ExplorerClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return aleo.NewExplorerClient(aleo.ExplorerConfig{BaseURL: srv.URL, RequestsPerSecond: 1000})
}

func TestExplorerClient_MarketState(t *testing.T) {
	base := "/program/" + aleo.DefaultProgramID + "/mapping/"
	c := newExplorer(t, map[string]string{
		base + "market_volumes/7field":      `"1500u64"`,
		base + "market_participants/7field": `"3u64"`,
		base + "market_resolved/7field":     `"true"`,
		base + "winning_outcomes/7field":    `"71field"`,
	})

	state, err := c.MarketState(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, state.Volume)
	assert.Equal(t, uint64(1500), *state.Volume)
	require.NotNil(t, state.Participants)
	assert.Equal(t, uint64(3), *state.Participants)
	assert.True(t, state.Resolved)
	require.NotNil(t, state.WinningOutcomeID)
	assert.Equal(t, "71", *state.WinningOutcomeID)
}

func TestExplorerClient_MarketState_Missing(t *testing.T) {
	c := newExplorer(t, nil)

	state, err := c.MarketState(context.Background(), "8")
	require.NoError(t, err)
	assert.Nil(t, state.Volume)
	assert.Nil(t, state.Participants)
	assert.False(t, state.Resolved)
	assert.Nil(t, state.WinningOutcomeID)
}

func TestExplorerClient_TransactionStatus(t *testing.T) {
	c := newExplorer(t, map[string]string{
		"/transaction/at1ok":  `{"status":"accepted"}`,
		"/transaction/at1bad": `{"status":"rejected"}`,
	})
	ctx := context.Background()

	s, err := c.TransactionStatus(ctx, "at1ok")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusConfirmed, s)

	s, err = c.TransactionStatus(ctx, "at1bad")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, s)

	s, err = c.TransactionStatus(ctx, "at1missing")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, s)
}

func TestExplorerClient_LatestHeight(t *testing.T) {
	c := newExplorer(t, map[string]string{"/latest/height": "123456"})
	h, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(123456), h)
}

func TestExplorerClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := aleo.NewExplorerClient(aleo.ExplorerConfig{BaseURL: srv.URL})

	_, err := c.LatestHeight(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestTxBuilder_Build(t *testing.T) {
	b := aleo.TxBuilder{}

	tx, err := b.Build(domain.TxRequest{Function: domain.TxPlaceBet, ChainMarketID: "42", OutcomeID: "420", Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, []string{"42field", "420field", "1000u64"}, tx.Inputs)
	assert.Equal(t, aleo.DefaultFee, tx.Fee)
	assert.Equal(t, aleo.DefaultProgramID, tx.ProgramID)
	assert.Equal(t, aleo.DefaultNetwork, tx.Network)

	tx, err = b.Build(domain.TxRequest{Function: domain.TxCreateMarket, ChainMarketID: "42", EndTimestamp: 1767225600, NumOutcomes: 2, Fee: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"42field", "1767225600u64", "2u8"}, tx.Inputs)
	assert.Equal(t, uint64(9), tx.Fee)

	tx, err = b.Build(domain.TxRequest{Function: domain.TxResolveMarket, ChainMarketID: "42", WinningOutcomeID: "421"})
	require.NoError(t, err)
	assert.Equal(t, []string{"42field", "421field"}, tx.Inputs)

	_, err = b.Build(domain.TxRequest{Function: "burn", ChainMarketID: "42"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = b.Build(domain.TxRequest{Function: domain.TxPlaceBet, ChainMarketID: "market-1", OutcomeID: "420", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTxBuilder_Build_GeneratesMarketID(t *testing.T) {
	tx, err := aleo.TxBuilder{}.Build(domain.TxRequest{Function: domain.TxCreateMarket, EndTimestamp: 1767225600, NumOutcomes: 3})
	require.NoError(t, err)
	require.NotEmpty(t, tx.ChainMarketID)
	assert.True(t, domain.IsChainID(tx.ChainMarketID))
	assert.Equal(t, aleo.FieldLiteral(tx.ChainMarketID), tx.Inputs[0])

	tx, err = aleo.TxBuilder{}.Build(domain.TxRequest{Function: domain.TxCreateMarket, ChainMarketID: "77", EndTimestamp: 1, NumOutcomes: 2})
	require.NoError(t, err)
	assert.Equal(t, "77", tx.ChainMarketID)
}

func TestGenerateMarketID(t *testing.T) {
	id, err := aleo.GenerateMarketID()
	require.NoError(t, err)
	n, err := strconv.ParseUint(id, 10, 64)
	require.NoError(t, err)
	assert.Less(t, n, uint64(1_000_000_000))

	assert.Equal(t, "421", aleo.OutcomeID("42", 1))
}
