package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/pipeline"
	"github.com/alanyoungcy/predictmarket/internal/server"
	"github.com/alanyoungcy/predictmarket/internal/server/handler"
	"github.com/alanyoungcy/predictmarket/internal/server/ws"
	"github.com/alanyoungcy/predictmarket/internal/service"
)

const shutdownTimeout = 5 * time.Second

// ServerMode serves the REST API and the event WebSocket until ctx is
// cancelled, then drains in-flight requests.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	svc := a.buildServices(deps)
	handlers := a.buildHandlers(deps, svc, hub)

	jobs := a.buildPipeline(deps, svc.markets)
	if jobs.Enabled() {
		g.Go(func() error {
			return jobs.Run(ctx)
		})
	}

	var limiter domain.RateLimiter
	if a.cfg.Server.RateLimitPerMinute > 0 {
		limiter = deps.RateLimiter
	}
	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, hub, limiter, a.logger)

	if a.cfg.Server.APIKey == "" {
		a.logger.WarnContext(ctx, "server.api_key not set; admin routes are open")
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

type services struct {
	markets   *service.MarketService
	bets      *service.BetService
	portfolio *service.PortfolioService
	chain     *service.ChainService
}

func (a *App) buildServices(deps *Dependencies) services {
	markets := service.NewMarketService(deps.Store, deps.MarketCache, deps.SignalBus, a.logger)
	if deps.AuditStore != nil {
		markets = markets.WithAudit(deps.AuditStore)
	}
	if deps.Notifier.Enabled() {
		markets = markets.WithNotifier(deps.Notifier)
	}
	bets := service.NewBetService(deps.Store, deps.MarketCache, deps.LockManager, deps.SignalBus, a.logger)
	portfolio := service.NewPortfolioService(deps.Store)
	chain := service.NewChainService(service.ChainConfig{
		Network:     a.cfg.Chain.Network,
		ProgramID:   a.cfg.Chain.ProgramID,
		LatestBlock: a.cfg.Chain.LatestBlock,
		DefaultFee:  a.cfg.Chain.DefaultFee,
	}, deps.Explorer, deps.Store, a.logger)

	return services{markets: markets, bets: bets, portfolio: portfolio, chain: chain}
}

func (a *App) buildHandlers(deps *Dependencies, svc services, hub *ws.Hub) server.Handlers {
	return server.Handlers{
		Health:    handler.NewHealthHandler(deps.Pingers, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, deps.StorageName, deps.CacheName, svc.markets, hub.ClientCount, a.logger),
		Markets:   handler.NewMarketHandler(svc.markets, svc.bets, a.logger),
		Bets:      handler.NewBetHandler(svc.bets, a.logger),
		Portfolio: handler.NewPortfolioHandler(svc.portfolio, a.logger),
		Chain:     handler.NewChainHandler(svc.chain, a.logger),
	}
}

// buildPipeline assembles the background jobs the configuration asks for.
func (a *App) buildPipeline(deps *Dependencies, markets *service.MarketService) *pipeline.Orchestrator {
	var sync *pipeline.ChainSync
	if deps.Explorer != nil && a.cfg.Chain.SyncInterval.Duration > 0 {
		sync = pipeline.NewChainSync(markets, deps.Explorer, a.logger)
	}
	var archiver *pipeline.Archiver
	if deps.Archiver != nil && a.cfg.Archive.Cron != "" {
		archiver = pipeline.NewArchiver(deps.Archiver, deps.Notifier, a.logger)
	}
	return pipeline.NewOrchestrator(sync, archiver, a.cfg.Chain.SyncInterval.Duration, a.cfg.Archive.Cron, a.logger)
}

// MigrateMode applies pending Postgres migrations and exits.
func (a *App) MigrateMode(ctx context.Context, deps *Dependencies) error {
	if deps.Postgres == nil {
		return errors.New("app: migrate mode requires the postgres backend")
	}
	applied, err := deps.Postgres.RunMigrations(ctx)
	if err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	if len(applied) == 0 {
		a.logger.InfoContext(ctx, "schema up to date")
		return nil
	}
	a.logger.InfoContext(ctx, "migrations applied", slog.Any("migrations", applied))
	return nil
}

// ArchiveMode exports today's snapshot of markets and bets to S3.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3.enabled")
	}
	if err := pipeline.NewArchiver(deps.Archiver, deps.Notifier, a.logger).Run(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// ReportMode prints a table of every market, ordered by volume, and the
// archived snapshots when S3 is enabled.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	markets, err := deps.Store.ListMarkets(ctx, domain.MarketFilter{SortBy: domain.SortByVolume})
	if err != nil {
		return fmt.Errorf("app: report: %w", err)
	}

	table := tablewriter.NewWriter(a.out)
	table.Header("#", "Title", "Category", "Status", "Volume", "Participants", "Outcomes")
	for i, m := range markets {
		table.Append(
			strconv.Itoa(i+1),
			truncate(m.Title, 48),
			string(m.Category),
			string(m.Status),
			fmt.Sprintf("%.2f", m.TotalVolume),
			strconv.Itoa(m.ParticipantCount),
			outcomeLabels(m),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("app: report: render markets: %w", err)
	}
	fmt.Fprintf(a.out, "  %d markets (%s storage)\n", len(markets), deps.StorageName)

	if deps.Archiver == nil {
		return nil
	}

	archive := tablewriter.NewWriter(a.out)
	archive.Header("Object", "Size", "Last modified")
	for _, kind := range []string{"markets", "bets"} {
		objects, err := deps.Archiver.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("app: report: list %s archive: %w", kind, err)
		}
		for _, o := range objects {
			archive.Append(o.Path, strconv.FormatInt(o.Size, 10), o.LastModified.UTC().Format(time.RFC3339))
		}
	}
	if err := archive.Render(); err != nil {
		return fmt.Errorf("app: report: render archive: %w", err)
	}
	return nil
}

// outcomeLabels marks the winning outcome with an asterisk.
func outcomeLabels(m domain.Market) string {
	labels := make([]string, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		l := o.Label
		if o.ID == m.WinningOutcomeID {
			l += "*"
		}
		labels = append(labels, l)
	}
	return strings.Join(labels, " / ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
