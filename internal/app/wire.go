package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/arbwatch/internal/blob/s3"
	"github.com/alanyoungcy/arbwatch/internal/cache/redis"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/notify"
	"github.com/alanyoungcy/arbwatch/internal/render"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/service"
	"github.com/alanyoungcy/arbwatch/internal/store/postgres"
)

// Dependencies bundles everything the modes share. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	QuoteCache  domain.QuoteCache
	ResultCache domain.ResultCache
	SignalBus   domain.SignalBus
	AlertStore  domain.AlertStore // nil unless the mode persists history
	Archiver    domain.Archiver   // nil unless archival is enabled

	Notifier *notify.Notifier
	Session  *render.Session

	Alerts *service.AlertService
	Quotes *service.QuoteService

	// Health lists the dependencies /api/health probes.
	Health map[string]handler.Pinger
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

	deps := &Dependencies{Health: map[string]handler.Pinger{}}

	// --- PostgreSQL (only for modes that keep alert history) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.AlertStore = postgres.NewAlertStore(pgClient.Pool())
		deps.Health["postgres"] = pgClient
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MaxRetries:   cfg.Redis.MaxRetries,
		TLSEnabled:   cfg.Redis.TLSEnabled,
		ResultTTL:    cfg.Redis.ResultTTL.Duration,
		StreamMaxLen: cfg.Redis.StreamMaxLen,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.ResultCache = redis.NewResultCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Health["redis"] = redisClient

	// --- S3 archival (needs alert history to archive) ---
	if cfg.Archive.Enabled && deps.AlertStore != nil {
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.AlertStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	recordLevel, err := domain.ParseAlertLevel(cfg.Session.RecordLevel)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: session.record_level: %w", err)
	}
	deps.Session = render.NewSession(cfg.Session.AudioEnabled, cfg.Session.SoundCooldown.Duration)
	deps.Quotes = service.NewQuoteService(deps.QuoteCache, deps.SignalBus, logger)

	// A typed nil *Notifier would defeat the service's nil check.
	var notifier service.AlertNotifier
	if len(senders) > 0 {
		notifier = deps.Notifier
	}
	deps.Alerts = service.NewAlertService(
		deps.ResultCache, deps.AlertStore, deps.SignalBus, deps.Session, notifier, recordLevel, logger,
	)

	return deps, cleanup, nil
}
