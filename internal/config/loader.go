package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDICTMARKET_* environment variable overrides,
// and returns the final Config. A missing file is not an error; the defaults
// plus environment apply. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDICTMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Storage ──
	setStr(&cfg.Storage.Backend, "PREDICTMARKET_STORAGE_BACKEND")
	setBool(&cfg.Storage.SeedDemo, "PREDICTMARKET_STORAGE_SEED_DEMO")
	setStr(&cfg.Storage.SQLitePath, "PREDICTMARKET_STORAGE_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // hosted-platform alias
	setStr(&cfg.Postgres.DSN, "PREDICTMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDICTMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDICTMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDICTMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDICTMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDICTMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDICTMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDICTMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDICTMARKET_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.ConnectTimeout, "PREDICTMARKET_POSTGRES_CONNECT_TIMEOUT")
	setBool(&cfg.Postgres.RunMigrations, "PREDICTMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PREDICTMARKET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PREDICTMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDICTMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDICTMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDICTMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDICTMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDICTMARKET_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "PREDICTMARKET_REDIS_KEY_PREFIX")
	setInt(&cfg.Redis.CacheTTLMinutes, "PREDICTMARKET_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PREDICTMARKET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PREDICTMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDICTMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDICTMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDICTMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDICTMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDICTMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDICTMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // hosted-platform alias
	setInt(&cfg.Server.Port, "PREDICTMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PREDICTMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "PREDICTMARKET_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Chain ──
	setStr(&cfg.Chain.Network, "PREDICTMARKET_CHAIN_NETWORK")
	setStr(&cfg.Chain.ProgramID, "PREDICTMARKET_CHAIN_PROGRAM_ID")
	setBool(&cfg.Chain.ExplorerEnabled, "PREDICTMARKET_CHAIN_EXPLORER_ENABLED")
	setStr(&cfg.Chain.ExplorerURL, "PREDICTMARKET_CHAIN_EXPLORER_URL")
	setUint64(&cfg.Chain.DefaultFee, "PREDICTMARKET_CHAIN_DEFAULT_FEE")
	setInt64(&cfg.Chain.LatestBlock, "PREDICTMARKET_CHAIN_LATEST_BLOCK")
	setDuration(&cfg.Chain.Timeout, "PREDICTMARKET_CHAIN_TIMEOUT")
	setFloat64(&cfg.Chain.RequestsPerSec, "PREDICTMARKET_CHAIN_REQUESTS_PER_SECOND")
	setDuration(&cfg.Chain.SyncInterval, "PREDICTMARKET_CHAIN_SYNC_INTERVAL")

	// ── Archive ──
	setStr(&cfg.Archive.Prefix, "PREDICTMARKET_ARCHIVE_PREFIX")
	setInt(&cfg.Archive.PartSizeMB, "PREDICTMARKET_ARCHIVE_PART_SIZE_MB")
	setStr(&cfg.Archive.Cron, "PREDICTMARKET_ARCHIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PREDICTMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDICTMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPI, "PREDICTMARKET_NOTIFY_TELEGRAM_API")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDICTMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDICTMARKET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PREDICTMARKET_MODE")
	setStr(&cfg.LogLevel, "PREDICTMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
