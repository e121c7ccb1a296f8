package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCron(t *testing.T) {
	from := time.Date(2026, 3, 10, 14, 7, 30, 0, time.UTC) // Tuesday

	cases := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 10, 14, 15, 0, 0, time.UTC)},
		{"30 9-17 * * 1-5", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"0 12 * * 0", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)},
		{"5/20 * * * *", time.Date(2026, 3, 10, 14, 25, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			c, err := parseCron(tc.expr)
			require.NoError(t, err)
			got, err := c.next(from)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCron_Invalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "a * * * *", "*/0 * * * *", "5-1 * * * *"} {
		assert.Error(t, ValidateCron(expr), expr)
	}
	assert.NoError(t, ValidateCron("0 3 * * *"))
}

type fakeArchiver struct {
	res   domain.ArchiveResult
	err   error
	calls int
}

func (f *fakeArchiver) Export(_ context.Context, _ time.Time) (domain.ArchiveResult, error) {
	f.calls++
	return f.res, f.err
}

type recordedAlert struct{ event, title, msg string }

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (f *fakeAlerter) Notify(_ context.Context, event, title, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, recordedAlert{event, title, msg})
	return nil
}

func TestArchiver_Run(t *testing.T) {
	day := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

	t.Run("exported", func(t *testing.T) {
		exp := &fakeArchiver{res: domain.ArchiveResult{Markets: 6, Bets: 12}}
		alerts := &fakeAlerter{}
		a := NewArchiver(exp, alerts, testLogger())
		a.now = func() time.Time { return day }

		require.NoError(t, a.Run(context.Background()))
		require.Len(t, alerts.alerts, 1)
		assert.Equal(t, "archive_completed", alerts.alerts[0].event)
		assert.Contains(t, alerts.alerts[0].msg, "6 markets and 12 bets exported for 2026-06-01")
	})

	t.Run("skipped sends nothing", func(t *testing.T) {
		alerts := &fakeAlerter{}
		a := NewArchiver(&fakeArchiver{res: domain.ArchiveResult{Skipped: true}}, alerts, testLogger())
		require.NoError(t, a.Run(context.Background()))
		assert.Empty(t, alerts.alerts)
	})

	t.Run("failure alerts", func(t *testing.T) {
		alerts := &fakeAlerter{}
		a := NewArchiver(&fakeArchiver{err: errors.New("bucket gone")}, alerts, testLogger())
		err := a.Run(context.Background())
		assert.ErrorContains(t, err, "bucket gone")
		require.Len(t, alerts.alerts, 1)
		assert.Equal(t, "error", alerts.alerts[0].event)
	})

	t.Run("nil alerter", func(t *testing.T) {
		a := NewArchiver(&fakeArchiver{}, nil, testLogger())
		assert.NoError(t, a.Run(context.Background()))
	})
}

type fakeMarkets struct {
	mu      sync.Mutex
	markets []domain.Market
	updates map[string]domain.MarketUpdate
}

func (f *fakeMarkets) List(_ context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range f.markets {
		if m.Matches(filter) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMarkets) Update(_ context.Context, id string, upd domain.MarketUpdate) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]domain.MarketUpdate)
	}
	f.updates[id] = upd
	return domain.Market{ID: id}, nil
}

type fakeChain map[string]domain.ChainMarketState

func (f fakeChain) MarketState(_ context.Context, id string) (domain.ChainMarketState, error) {
	s, ok := f[id]
	if !ok {
		return domain.ChainMarketState{}, errors.New("explorer down")
	}
	return s, nil
}

func strPtr(s string) *string { return &s }

func TestChainSync_Run(t *testing.T) {
	outcomes := []domain.Outcome{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}}
	markets := &fakeMarkets{markets: []domain.Market{
		{ID: "a", Status: domain.MarketStatusActive, ChainMarketID: "100", Outcomes: outcomes},
		{ID: "b", Status: domain.MarketStatusActive, ChainMarketID: "200", Outcomes: outcomes},
		{ID: "c", Status: domain.MarketStatusActive, ChainMarketID: "300", Outcomes: outcomes},
		{ID: "d", Status: domain.MarketStatusActive, Outcomes: outcomes},
		{ID: "e", Status: domain.MarketStatusResolved, ChainMarketID: "500", Outcomes: outcomes},
		{ID: "f", Status: domain.MarketStatusActive, ChainMarketID: "600", Outcomes: outcomes},
		{ID: "g", Status: domain.MarketStatusActive, ChainMarketID: "700", Outcomes: outcomes},
	}}
	chain := fakeChain{
		"100": {Resolved: true, WinningOutcomeID: strPtr("1001")}, // index 1 → "no"
		"200": {Resolved: false},
		// "300" missing: explorer error is skipped
		"500": {Resolved: true, WinningOutcomeID: strPtr("5000")},
		"600": {Resolved: true, WinningOutcomeID: strPtr("yes")},
		"700": {Resolved: true, WinningOutcomeID: strPtr("7009")},
	}

	n, err := NewChainSync(markets, chain, testLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, markets.updates, 2)
	upd := markets.updates["a"]
	require.NotNil(t, upd.Status)
	assert.Equal(t, domain.MarketStatusResolved, *upd.Status)
	assert.Equal(t, "no", *upd.WinningOutcomeID)
	assert.Equal(t, "yes", *markets.updates["f"].WinningOutcomeID)
}

func TestOrchestrator_StopsCleanly(t *testing.T) {
	markets := &fakeMarkets{}
	o := NewOrchestrator(
		NewChainSync(markets, fakeChain{}, testLogger()),
		NewArchiver(&fakeArchiver{}, nil, testLogger()),
		time.Hour, "0 3 * * *", testLogger(),
	)
	require.True(t, o.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}

func TestOrchestrator_Disabled(t *testing.T) {
	assert.False(t, NewOrchestrator(nil, nil, time.Minute, "", testLogger()).Enabled())
	assert.False(t, NewOrchestrator(NewChainSync(&fakeMarkets{}, fakeChain{}, testLogger()), nil, 0, "", testLogger()).Enabled())
}
