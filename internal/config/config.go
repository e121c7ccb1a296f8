// Package config defines the top-level configuration for the prediction
// market server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PREDICTMARKET_* environment variables.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Chain    ChainConfig    `toml:"chain"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// StorageConfig selects the market/bet backend.
type StorageConfig struct {
	// Backend is one of memory, postgres or sqlite.
	Backend    string `toml:"backend"`
	SeedDemo   bool   `toml:"seed_demo"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters. DSN wins over the
// discrete fields when set.
type PostgresConfig struct {
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When Enabled is false the
// in-process cache, limiter, locks and bus are used instead.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	KeyPrefix       string `toml:"key_prefix"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the admin routes. Empty leaves them open.
	APIKey             string `toml:"api_key"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
}

// ChainConfig describes the network the markets live on.
type ChainConfig struct {
	Network         string   `toml:"network"`
	ProgramID       string   `toml:"program_id"`
	ExplorerEnabled bool     `toml:"explorer_enabled"`
	ExplorerURL     string   `toml:"explorer_url"`
	DefaultFee      uint64   `toml:"default_fee"`
	LatestBlock     int64    `toml:"latest_block"`
	Timeout         duration `toml:"timeout"`
	RequestsPerSec  float64  `toml:"requests_per_second"`
	// SyncInterval polls the explorer for on-chain resolutions in server
	// mode. Zero disables the sync.
	SyncInterval duration `toml:"sync_interval"`
}

// ArchiveConfig controls the JSONL export.
type ArchiveConfig struct {
	Prefix     string `toml:"prefix"`
	PartSizeMB int    `toml:"part_size_mb"`
	// Cron schedules the export inside server mode, e.g. "0 3 * * *".
	// Empty disables it; archive mode runs once regardless.
	Cron string `toml:"cron"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPI       string   `toml:"telegram_api"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    "memory",
			SeedDemo:   true,
			SQLitePath: "predictmarket.db",
		},
		Postgres: PostgresConfig{
			Port:           5432,
			Database:       "postgres",
			User:           "postgres",
			SSLMode:        "require",
			PoolMaxConns:   10,
			PoolMinConns:   1,
			ConnectTimeout: duration{10 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			KeyPrefix:       "predictmarket:",
			CacheTTLMinutes: 5,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "predictmarket-archive",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:               3001,
			CORSOrigins:        []string{"http://localhost:5173"},
			RateLimitPerMinute: 120,
		},
		Chain: ChainConfig{
			Network:        "testnet",
			ProgramID:      "prediction_marketv01.aleo",
			ExplorerURL:    "https://api.explorer.provable.com/v2/testnet",
			DefaultFee:     500000,
			LatestBlock:    1234567,
			Timeout:        duration{10 * time.Second},
			RequestsPerSec: 5,
		},
		Archive: ArchiveConfig{
			Prefix:     "archive",
			PartSizeMB: 8,
		},
		Notify: NotifyConfig{
			Events: []string{"market_created", "market_resolved", "market_cancelled", "archive_completed", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"migrate": true,
	"archive": true,
	"report":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"memory":   true,
	"postgres": true,
	"sqlite":   true,
}

var validNotifyEvents = map[string]bool{
	"market_created":    true,
	"market_resolved":   true,
	"market_cancelled":  true,
	"archive_completed": true,
	"error":             true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("mode: must be one of server, migrate, archive, report; got %q", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log_level: must be one of debug, info, warn, error; got %q", c.LogLevel))
	}

	// Storage
	backend := strings.ToLower(c.Storage.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("storage: backend must be memory, postgres or sqlite; got %q", c.Storage.Backend))
	}
	if backend == "sqlite" && strings.TrimSpace(c.Storage.SQLitePath) == "" {
		errs = append(errs, "storage: sqlite_path must not be empty for the sqlite backend")
	}
	if mode == "migrate" && backend != "postgres" {
		errs = append(errs, "mode: migrate requires storage.backend = postgres")
	}

	// Postgres
	if backend == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if c.Redis.CacheTTLMinutes < 0 {
		errs = append(errs, "redis: cache_ttl_minutes must be >= 0")
	}

	// S3
	if c.S3.Enabled || mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}
	if mode == "archive" && !c.S3.Enabled {
		errs = append(errs, "mode: archive requires s3.enabled = true")
	}
	if c.Archive.Cron != "" {
		if !c.S3.Enabled {
			errs = append(errs, "archive: cron requires s3.enabled = true")
		}
		if n := len(strings.Fields(c.Archive.Cron)); n != 5 {
			errs = append(errs, fmt.Sprintf("archive: cron must have 5 fields, got %d", n))
		}
	}
	if c.Archive.PartSizeMB < 5 {
		// S3 rejects multipart parts below 5 MiB.
		errs = append(errs, fmt.Sprintf("archive: part_size_mb must be >= 5, got %d", c.Archive.PartSizeMB))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server: rate_limit_per_minute must be >= 0")
	}

	// Chain
	if c.Chain.Network == "" {
		errs = append(errs, "chain: network must not be empty")
	}
	if !strings.HasSuffix(c.Chain.ProgramID, ".aleo") {
		errs = append(errs, fmt.Sprintf("chain: program_id must end in .aleo, got %q", c.Chain.ProgramID))
	}
	if c.Chain.ExplorerEnabled && c.Chain.ExplorerURL == "" {
		errs = append(errs, "chain: explorer_url is required when explorer_enabled is set")
	}
	if c.Chain.SyncInterval.Duration < 0 {
		errs = append(errs, "chain: sync_interval must be >= 0")
	}
	if c.Chain.SyncInterval.Duration > 0 && !c.Chain.ExplorerEnabled {
		errs = append(errs, "chain: sync_interval requires explorer_enabled")
	}
	if c.Chain.LatestBlock < 0 {
		errs = append(errs, "chain: latest_block must be >= 0")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validNotifyEvents[e] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", e))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
