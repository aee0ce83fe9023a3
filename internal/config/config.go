// Package config defines the top-level configuration for arbwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBWATCH_* environment variables.
type Config struct {
	HTTP     HTTPConfig                 `toml:"http"`
	CEX      CEXConfig                  `toml:"cex"`
	DEX      DEXConfig                  `toml:"dex"`
	Breaker  BreakerConfig              `toml:"breaker"`
	Session  SessionConfig              `toml:"session"`
	Postgres PostgresConfig             `toml:"postgres"`
	Redis    RedisConfig                `toml:"redis"`
	S3       S3Config                   `toml:"s3"`
	Archive  ArchiveConfig              `toml:"archive"`
	Server   ServerConfig               `toml:"server"`
	Notify   NotifyConfig               `toml:"notify"`
	Tables   map[string]TierTableConfig `toml:"tables"`
	Pairs    []PairConfig               `toml:"pairs"`
	Mode     string                     `toml:"mode"`
	LogLevel string                     `toml:"log_level"`
}

// HTTPConfig governs every outbound venue request.
type HTTPConfig struct {
	Timeout   duration `toml:"timeout"`
	UserAgent string   `toml:"user_agent"`
	// Proxy is prepended verbatim to CEX URLs.
	Proxy     string  `toml:"proxy"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// CEXConfig holds centralized-exchange endpoints. URLs may contain {symbol}.
type CEXConfig struct {
	FuturesDepthURL   string   `toml:"futures_depth_url"`
	SpotDepthURL      string   `toml:"spot_depth_url"`
	FundingRateURL    string   `toml:"funding_rate_url"`
	WSURL             string   `toml:"ws_url"`
	WSSubscribeMethod string   `toml:"ws_subscribe_method"`
	WSChannel         string   `toml:"ws_channel"`
	WSTimeout         duration `toml:"ws_timeout"`
}

// DEXConfig holds aggregator endpoints.
type DEXConfig struct {
	EVMAggregatorURL string `toml:"evm_aggregator_url"`
	AMMRouterURL     string `toml:"amm_router_url"`
}

// BreakerConfig configures the per-venue circuit breaker.
type BreakerConfig struct {
	MaxRequests         uint32   `toml:"max_requests"`
	Interval            duration `toml:"interval"`
	Timeout             duration `toml:"timeout"`
	ConsecutiveFailures uint32   `toml:"consecutive_failures"`
}

// SessionConfig seeds the rendering session.
type SessionConfig struct {
	AudioEnabled  bool     `toml:"audio_enabled"`
	SoundCooldown duration `toml:"sound_cooldown"`
	// RecordLevel is the lowest level whose escalations are persisted and
	// notified.
	RecordLevel string `toml:"record_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	ResultTTL    duration `toml:"result_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving alert history to S3.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   float64  `toml:"rate_limit"`
	Burst       int      `toml:"burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// TierTableConfig is one named threshold table.
type TierTableConfig struct {
	Tiers []TierConfig `toml:"tiers"`
}

// TierConfig is one row of a threshold table.
type TierConfig struct {
	Min       Decimal `toml:"min"`
	Level     string  `toml:"level"`
	Sound     bool    `toml:"sound"`
	Volume    float64 `toml:"volume"`
	Frequency float64 `toml:"frequency"`
}

// PairConfig is the whole configuration of one token: its venues, how often
// they are polled and which of them are compared.
type PairConfig struct {
	Name        string             `toml:"name"`
	Interval    duration           `toml:"interval"`
	Overlap     string             `toml:"overlap"`
	Backoff     BackoffConfig      `toml:"backoff"`
	Funding     FundingConfig      `toml:"funding"`
	Venues      []VenueConfig      `toml:"venues"`
	Comparisons []ComparisonConfig `toml:"comparisons"`
}

// BackoffConfig selects the retry policy of a pair's driver.
type BackoffConfig struct {
	Policy     string   `toml:"policy"`
	Max        duration `toml:"max"`
	Multiplier float64  `toml:"multiplier"`
}

// FundingConfig enables the funding-rate poller of a pair.
type FundingConfig struct {
	Enabled  bool     `toml:"enabled"`
	Symbol   string   `toml:"symbol"`
	Interval duration `toml:"interval"`
}

// VenueConfig describes one price source of a pair.
type VenueConfig struct {
	Name   string `toml:"name"`
	Kind   string `toml:"kind"`
	Symbol string `toml:"symbol"`
	// Target is the base quantity priced against the book or the DEX.
	Target Decimal `toml:"target"`
	// Depth is "weighted" (default) or "top".
	Depth      string `toml:"depth"`
	LegacySkew bool   `toml:"legacy_skew"`

	BaseToken     string  `toml:"base_token"`
	QuoteToken    string  `toml:"quote_token"`
	BaseDecimals  int32   `toml:"base_decimals"`
	QuoteDecimals int32   `toml:"quote_decimals"`
	BuyNotional   Decimal `toml:"buy_notional"`
}

// ComparisonConfig pairs two venues and names the tables that classify them.
type ComparisonConfig struct {
	ID        string `toml:"id"`
	A         string `toml:"a"`
	B         string `toml:"b"`
	BuyTable  string `toml:"buy_table"`
	SellTable string `toml:"sell_table"`
	Basis     string `toml:"basis"`
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

// Decimal accepts either a TOML string ("0.25") or a TOML number. Strings
// are preferred for prices since floats lose precision on the way in.
type Decimal struct {
	decimal.Decimal
}

// UnmarshalTOML implements toml.Unmarshaler.
func (v *Decimal) UnmarshalTOML(data any) error {
	switch x := data.(type) {
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", x, err)
		}
		v.Decimal = parsed
	case int64:
		v.Decimal = decimal.NewFromInt(x)
	case float64:
		v.Decimal = decimal.NewFromFloat(x)
	default:
		return fmt.Errorf("invalid decimal value of type %T", data)
	}
	return nil
}

// Venue kinds.
const (
	KindCEXFutures    = "cex_futures"
	KindCEXSpot       = "cex_spot"
	KindCEXWS         = "cex_ws"
	KindEVMAggregator = "evm_aggregator"
	KindAMMRouter     = "amm_router"
)

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   duration{5 * time.Second},
			UserAgent: "arbwatch/1.0",
			RateLimit: 10,
			Burst:     5,
		},
		CEX: CEXConfig{
			FuturesDepthURL:   "https://contract.mexc.com/api/v1/contract/depth/{symbol}",
			SpotDepthURL:      "https://api.mexc.com/api/v3/depth?symbol={symbol}&limit=50",
			FundingRateURL:    "https://contract.mexc.com/api/v1/contract/funding_rate/{symbol}",
			WSURL:             "wss://contract.mexc.com/edge",
			WSSubscribeMethod: "sub.depth.full",
			WSChannel:         "push.depth.full",
			WSTimeout:         duration{5 * time.Second},
		},
		DEX: DEXConfig{
			EVMAggregatorURL: "https://aggregator-api.kyberswap.com/bsc/api/v1/routes",
			AMMRouterURL:     "https://quote-api.jup.ag/v6/quote",
		},
		Breaker: BreakerConfig{
			MaxRequests:         1,
			Interval:            duration{time.Minute},
			Timeout:             duration{30 * time.Second},
			ConsecutiveFailures: 5,
		},
		Session: SessionConfig{
			AudioEnabled:  false,
			SoundCooldown: duration{10 * time.Second},
			RecordLevel:   "LARGE",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     20,
			MaxRetries:   3,
			TLSEnabled:   false,
			ResultTTL:    duration{10 * time.Minute},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbwatch-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 30,
			Cron:          "0 3 * * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   20,
			Burst:       40,
		},
		Notify: NotifyConfig{
			Events: []string{"alert_raised", "data_error"},
		},
		Tables:   map[string]TierTableConfig{},
		Mode:     "full",
		LogLevel: "info",
	}
}

// PairDefaults fills unset per-pair fields. Load applies it to every pair.
func PairDefaults(p *PairConfig) {
	if p.Interval.Duration == 0 {
		p.Interval = duration{3 * time.Second}
	}
	if p.Overlap == "" {
		p.Overlap = "skip"
	}
	if p.Backoff.Policy == "" {
		p.Backoff.Policy = "none"
	}
	if p.Backoff.Multiplier == 0 {
		p.Backoff.Multiplier = 2
	}
	if p.Backoff.Max.Duration == 0 {
		p.Backoff.Max = duration{time.Minute}
	}
	if p.Funding.Interval.Duration == 0 {
		p.Funding.Interval = duration{30 * time.Second}
	}
	for i := range p.Venues {
		if p.Venues[i].Depth == "" {
			p.Venues[i].Depth = "weighted"
		}
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validKinds = map[string]bool{
	KindCEXFutures:    true,
	KindCEXSpot:       true,
	KindCEXWS:         true,
	KindEVMAggregator: true,
	KindAMMRouter:     true,
}

var validLevels = map[string]bool{
	"NONE":     true,
	"POSITIVE": true,
	"LARGE":    true,
	"MEDIUM":   true,
	"HIGH":     true,
}

// minInterval is the fastest poll a pair may ask for.
const minInterval = 100 * time.Millisecond

// NeedsPostgres reports whether the mode persists alert history.
func (c *Config) NeedsPostgres() bool {
	m := strings.ToLower(c.Mode)
	return m == "full" || m == "server"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// HTTP
	if c.HTTP.Timeout.Duration <= 0 {
		errs = append(errs, "http: timeout must be > 0")
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, "http: rate_limit must be >= 0")
	}
	if c.CEX.WSTimeout.Duration <= 0 {
		errs = append(errs, "cex: ws_timeout must be > 0")
	}

	// Session
	if !validLevels[strings.ToUpper(c.Session.RecordLevel)] {
		errs = append(errs, fmt.Sprintf("session: unknown record_level %q", c.Session.RecordLevel))
	}

	// Postgres
	if c.NeedsPostgres() {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive / S3
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if len(strings.Fields(c.Archive.Cron)) != 5 {
			errs = append(errs, fmt.Sprintf("archive: cron %q must have 5 fields", c.Archive.Cron))
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Tables
	for name, tbl := range c.Tables {
		if len(tbl.Tiers) == 0 {
			errs = append(errs, fmt.Sprintf("tables.%s: at least one tier is required", name))
		}
		for i, tier := range tbl.Tiers {
			if !validLevels[strings.ToUpper(tier.Level)] {
				errs = append(errs, fmt.Sprintf("tables.%s.tiers[%d]: unknown level %q", name, i, tier.Level))
			}
			if tier.Sound && (tier.Volume <= 0 || tier.Frequency <= 0) {
				errs = append(errs, fmt.Sprintf("tables.%s.tiers[%d]: sound needs positive volume and frequency", name, i))
			}
		}
	}

	// Pairs
	if c.Mode != "server" && len(c.Pairs) == 0 {
		errs = append(errs, "pairs: at least one pair is required")
	}
	seenPairs := make(map[string]bool, len(c.Pairs))
	for i := range c.Pairs {
		errs = append(errs, c.validatePair(&c.Pairs[i], seenPairs)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validatePair(p *PairConfig, seen map[string]bool) []string {
	var errs []string
	prefix := fmt.Sprintf("pairs.%s", p.Name)
	if p.Name == "" {
		errs = append(errs, "pairs: name must not be empty")
	}
	if seen[p.Name] {
		errs = append(errs, fmt.Sprintf("%s: duplicate pair name", prefix))
	}
	seen[p.Name] = true

	if p.Interval.Duration < minInterval {
		errs = append(errs, fmt.Sprintf("%s: interval must be >= %s", prefix, minInterval))
	}
	if p.Overlap != "skip" && p.Overlap != "allow" {
		errs = append(errs, fmt.Sprintf("%s: overlap must be skip or allow, got %q", prefix, p.Overlap))
	}
	switch p.Backoff.Policy {
	case "none":
	case "exponential":
		if p.Backoff.Multiplier <= 1 {
			errs = append(errs, fmt.Sprintf("%s: backoff multiplier must be > 1", prefix))
		}
		if p.Backoff.Max.Duration < p.Interval.Duration {
			errs = append(errs, fmt.Sprintf("%s: backoff max must be >= interval", prefix))
		}
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown backoff policy %q", prefix, p.Backoff.Policy))
	}
	if p.Funding.Enabled && p.Funding.Symbol == "" {
		errs = append(errs, fmt.Sprintf("%s: funding.symbol is required when funding is enabled", prefix))
	}

	venues := make(map[string]bool, len(p.Venues))
	for _, v := range p.Venues {
		vp := fmt.Sprintf("%s.venues.%s", prefix, v.Name)
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: venue name must not be empty", prefix))
		}
		if venues[v.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate venue name", vp))
		}
		venues[v.Name] = true
		errs = append(errs, validateVenue(vp, v)...)
	}

	if len(p.Comparisons) == 0 {
		errs = append(errs, fmt.Sprintf("%s: at least one comparison is required", prefix))
	}
	for _, cmp := range p.Comparisons {
		cp := fmt.Sprintf("%s.comparisons.%s", prefix, cmp.ID)
		if cmp.ID == "" {
			errs = append(errs, fmt.Sprintf("%s: comparison id must not be empty", prefix))
		}
		if !venues[cmp.A] {
			errs = append(errs, fmt.Sprintf("%s: unknown venue a=%q", cp, cmp.A))
		}
		if !venues[cmp.B] {
			errs = append(errs, fmt.Sprintf("%s: unknown venue b=%q", cp, cmp.B))
		}
		if cmp.A == cmp.B {
			errs = append(errs, fmt.Sprintf("%s: a and b must differ", cp))
		}
		if _, ok := c.Tables[cmp.BuyTable]; !ok {
			errs = append(errs, fmt.Sprintf("%s: unknown buy_table %q", cp, cmp.BuyTable))
		}
		if cmp.SellTable != "" {
			if _, ok := c.Tables[cmp.SellTable]; !ok {
				errs = append(errs, fmt.Sprintf("%s: unknown sell_table %q", cp, cmp.SellTable))
			}
		}
		if b := strings.ToLower(cmp.Basis); b != "" && b != "absolute" && b != "percent" {
			errs = append(errs, fmt.Sprintf("%s: basis must be absolute or percent", cp))
		}
	}
	return errs
}

func validateVenue(prefix string, v VenueConfig) []string {
	var errs []string
	if !validKinds[v.Kind] {
		return append(errs, fmt.Sprintf("%s: unknown kind %q", prefix, v.Kind))
	}
	switch v.Kind {
	case KindCEXFutures, KindCEXSpot, KindCEXWS:
		if v.Symbol == "" {
			errs = append(errs, fmt.Sprintf("%s: symbol must not be empty", prefix))
		}
		if v.Depth != "weighted" && v.Depth != "top" {
			errs = append(errs, fmt.Sprintf("%s: depth must be weighted or top, got %q", prefix, v.Depth))
		}
		if v.Depth == "weighted" && !v.Target.IsPositive() {
			errs = append(errs, fmt.Sprintf("%s: target must be > 0 for weighted depth", prefix))
		}
	case KindEVMAggregator:
		if !common.IsHexAddress(v.BaseToken) {
			errs = append(errs, fmt.Sprintf("%s: base_token %q is not a hex address", prefix, v.BaseToken))
		}
		if !common.IsHexAddress(v.QuoteToken) {
			errs = append(errs, fmt.Sprintf("%s: quote_token %q is not a hex address", prefix, v.QuoteToken))
		}
		if !v.Target.IsPositive() || !v.BuyNotional.IsPositive() {
			errs = append(errs, fmt.Sprintf("%s: target and buy_notional must be > 0", prefix))
		}
	case KindAMMRouter:
		if _, err := solana.PublicKeyFromBase58(v.BaseToken); err != nil {
			errs = append(errs, fmt.Sprintf("%s: base_token %q is not a base58 mint", prefix, v.BaseToken))
		}
		if _, err := solana.PublicKeyFromBase58(v.QuoteToken); err != nil {
			errs = append(errs, fmt.Sprintf("%s: quote_token %q is not a base58 mint", prefix, v.QuoteToken))
		}
		if !v.Target.IsPositive() {
			errs = append(errs, fmt.Sprintf("%s: target must be > 0", prefix))
		}
	}
	if v.Kind == KindEVMAggregator || v.Kind == KindAMMRouter {
		if v.BaseDecimals < 0 || v.QuoteDecimals < 0 || v.BaseDecimals > 36 || v.QuoteDecimals > 36 {
			errs = append(errs, fmt.Sprintf("%s: token decimals must be 0-36", prefix))
		}
	}
	return errs
}
