package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/predictmarket/internal/blob/s3"
	"github.com/alanyoungcy/predictmarket/internal/cache/local"
	"github.com/alanyoungcy/predictmarket/internal/cache/redis"
	"github.com/alanyoungcy/predictmarket/internal/config"
	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/notify"
	"github.com/alanyoungcy/predictmarket/internal/platform/aleo"
	"github.com/alanyoungcy/predictmarket/internal/server/handler"
	"github.com/alanyoungcy/predictmarket/internal/service"
	"github.com/alanyoungcy/predictmarket/internal/store/memory"
	"github.com/alanyoungcy/predictmarket/internal/store/postgres"
	"github.com/alanyoungcy/predictmarket/internal/store/sqlite"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Storage
	Store       domain.Store
	AuditStore  domain.AuditStore // postgres only
	Postgres    *postgres.Client  // postgres only
	StorageName string

	// Caches
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	CacheName   string

	// Blob storage
	Archiver *s3blob.ArchiveImpl

	// Chain
	Explorer service.Explorer

	// Notifications
	Notifier *notify.Notifier

	// Backends reported by the health endpoint.
	Pingers map[string]handler.Pinger
}

// seeder is implemented by the persistent backends.
type seeder interface {
	SeedMarkets(ctx context.Context, markets []domain.Market) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{
		StorageName: strings.ToLower(cfg.Storage.Backend),
		Pingers:     make(map[string]handler.Pinger),
	}

	// --- Storage ---
	switch deps.StorageName {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		store := postgres.NewStore(pgClient)
		closers = append(closers, func() { _ = store.Close() })

		// migrate mode applies migrations itself and reports them.
		if cfg.Postgres.RunMigrations && mode != "migrate" {
			applied, err := pgClient.RunMigrations(ctx)
			if err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
			if len(applied) > 0 {
				logger.InfoContext(ctx, "applied migrations", slog.Any("migrations", applied))
			}
		}
		deps.Store = store
		deps.Postgres = pgClient
		deps.Pingers["postgres"] = pgClient
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())

	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Store = store
		deps.Pingers["sqlite"] = store

	default:
		if cfg.Storage.SeedDemo {
			deps.Store = memory.NewSeeded()
		} else {
			deps.Store = memory.New()
		}
	}

	if s, ok := deps.Store.(seeder); ok && cfg.Storage.SeedDemo && mode != "migrate" {
		if err := s.SeedMarkets(ctx, domain.DemoMarkets()); err != nil {
			return fail(fmt.Errorf("wire: seed demo markets: %w", err))
		}
	}

	// --- Cache, limiter, locks, bus ---
	cacheTTL := time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient, cacheTTL)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.CacheName = "redis"
		deps.Pingers["redis"] = redisClient
	} else {
		deps.MarketCache = local.NewMarketCache(cacheTTL)
		deps.RateLimiter = local.NewRateLimiter()
		deps.LockManager = local.NewLockManager()
		deps.SignalBus = local.NewSignalBus()
		deps.CacheName = "local"
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		bucket := s3blob.NewBucket(s3Client)
		deps.Pingers["s3"] = s3Client
		deps.Archiver = s3blob.NewArchiver(
			bucket,
			bucket,
			deps.Store,
			deps.AuditStore,
			s3blob.ArchiverConfig{
				Prefix:   cfg.Archive.Prefix,
				PartSize: int64(cfg.Archive.PartSizeMB) << 20,
			},
			logger,
		)
	}

	// --- Chain explorer ---
	if cfg.Chain.ExplorerEnabled {
		deps.Explorer = aleo.NewExplorerClient(aleo.ExplorerConfig{
			BaseURL:           cfg.Chain.ExplorerURL,
			ProgramID:         cfg.Chain.ProgramID,
			Timeout:           cfg.Chain.Timeout.Duration,
			RequestsPerSecond: cfg.Chain.RequestsPerSec,
		})
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
