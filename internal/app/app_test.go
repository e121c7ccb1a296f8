package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictmarket/internal/config"
	"github.com/alanyoungcy/predictmarket/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWire_MemoryDefaults(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "memory", deps.StorageName)
	assert.Equal(t, "local", deps.CacheName)
	assert.Nil(t, deps.Postgres)
	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Explorer)
	assert.False(t, deps.Notifier.Enabled())

	n, err := deps.Store.CountMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(domain.DemoMarkets())), n)
}

func TestWire_SQLiteSeedsOnce(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "markets.db")
	cfg.Chain.ExplorerEnabled = true
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/hook"

	for i := 0; i < 2; i++ {
		deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
		require.NoError(t, err)
		n, err := deps.Store.CountMarkets(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(len(domain.DemoMarkets())), n, "run %d", i)
		assert.NotNil(t, deps.Explorer)
		assert.True(t, deps.Notifier.Enabled())
		cleanup()
	}
}

func TestReportMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "report"
	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	var buf bytes.Buffer
	a := New(&cfg, testLogger())
	a.out = &buf

	require.NoError(t, a.ReportMode(context.Background(), deps))
	out := buf.String()
	assert.Contains(t, out, "6 markets (memory storage)")
	for _, m := range domain.DemoMarkets() {
		assert.Contains(t, out, string(m.Category))
	}
}

func TestModesRequireBackends(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(&cfg, testLogger())
	assert.ErrorContains(t, a.MigrateMode(context.Background(), deps), "postgres")
	assert.ErrorContains(t, a.ArchiveMode(context.Background(), deps), "s3.enabled")
}

func TestRun_UnknownMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "trade"
	a := New(&cfg, testLogger())
	defer a.Close()
	assert.ErrorContains(t, a.Run(context.Background()), `unsupported mode "trade"`)
}

func TestServerMode_StopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	deps, cleanup, err := Wire(context.Background(), &cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	a := New(&cfg, testLogger())
	done := make(chan error, 1)
	go func() { done <- a.ServerMode(ctx, deps) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestOutcomeLabels(t *testing.T) {
	m := domain.Market{
		Outcomes:         []domain.Outcome{{ID: "y", Label: "Yes"}, {ID: "n", Label: "No"}},
		WinningOutcomeID: "n",
	}
	assert.Equal(t, "Yes / No*", outcomeLabels(m))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
