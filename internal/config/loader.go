package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBWATCH_* environment variable overrides, fills
// per-pair defaults and returns the final Config. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	for i := range cfg.Pairs {
		PairDefaults(&cfg.Pairs[i])
	}

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Pairs and tables are only configurable from the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── HTTP ──
	setDuration(&cfg.HTTP.Timeout, "ARBWATCH_HTTP_TIMEOUT")
	setStr(&cfg.HTTP.UserAgent, "ARBWATCH_HTTP_USER_AGENT")
	setStr(&cfg.HTTP.Proxy, "ARBWATCH_HTTP_PROXY")
	setFloat64(&cfg.HTTP.RateLimit, "ARBWATCH_HTTP_RATE_LIMIT")
	setInt(&cfg.HTTP.Burst, "ARBWATCH_HTTP_BURST")

	// ── CEX ──
	setStr(&cfg.CEX.FuturesDepthURL, "ARBWATCH_CEX_FUTURES_DEPTH_URL")
	setStr(&cfg.CEX.SpotDepthURL, "ARBWATCH_CEX_SPOT_DEPTH_URL")
	setStr(&cfg.CEX.FundingRateURL, "ARBWATCH_CEX_FUNDING_RATE_URL")
	setStr(&cfg.CEX.WSURL, "ARBWATCH_CEX_WS_URL")
	setDuration(&cfg.CEX.WSTimeout, "ARBWATCH_CEX_WS_TIMEOUT")

	// ── DEX ──
	setStr(&cfg.DEX.EVMAggregatorURL, "ARBWATCH_DEX_EVM_AGGREGATOR_URL")
	setStr(&cfg.DEX.AMMRouterURL, "ARBWATCH_DEX_AMM_ROUTER_URL")

	// ── Session ──
	setBool(&cfg.Session.AudioEnabled, "ARBWATCH_SESSION_AUDIO_ENABLED")
	setDuration(&cfg.Session.SoundCooldown, "ARBWATCH_SESSION_SOUND_COOLDOWN")
	setStr(&cfg.Session.RecordLevel, "ARBWATCH_SESSION_RECORD_LEVEL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBWATCH_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.ResultTTL, "ARBWATCH_REDIS_RESULT_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "ARBWATCH_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBWATCH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBWATCH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARBWATCH_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "ARBWATCH_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBWATCH_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBWATCH_SERVER_CORS_ORIGINS")
	setFloat64(&cfg.Server.RateLimit, "ARBWATCH_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.Burst, "ARBWATCH_SERVER_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBWATCH_MODE")
	setStr(&cfg.LogLevel, "ARBWATCH_LOG_LEVEL")
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
