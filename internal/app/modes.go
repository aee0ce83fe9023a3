package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/pipeline"
	"github.com/alanyoungcy/arbwatch/internal/render"
	"github.com/alanyoungcy/arbwatch/internal/server"
	"github.com/alanyoungcy/arbwatch/internal/server/handler"
	"github.com/alanyoungcy/arbwatch/internal/server/ws"
)

// MonitorMode polls every pair and renders to the log and the bus. There is
// no API server and no archival.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startPipeline(ctx, g, deps, false); err != nil {
		return err
	}
	return ignoreCanceled(g.Wait())
}

// ServerMode serves the API and WebSocket hub over data written by a
// separate monitor process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// FullMode runs the pipeline, the archiver and the API server in one
// process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startPipeline(ctx, g, deps, true); err != nil {
		return err
	}
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	return ignoreCanceled(g.Wait())
}

func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, archive bool) error {
	renderer := render.Multi{render.NewLogRenderer(a.logger), deps.Alerts}
	parts, err := buildPipeline(a.cfg, venueClients(a.cfg), deps.Quotes, renderer, deps.Alerts, a.logger)
	if err != nil {
		return fmt.Errorf("app: build pipeline: %w", err)
	}

	var archiver *pipeline.Archiver
	if archive && deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	}

	orch := pipeline.NewOrchestrator(parts.drivers, parts.funding, archiver, a.cfg.Archive.Cron, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	// Ticks still in flight at shutdown must not render into stores that
	// are being closed.
	g.Go(func() error {
		<-ctx.Done()
		orch.Stop()
		return nil
	})
	return nil
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Status: func() map[string]any {
			return map[string]any{"audio_enabled": deps.Session.AudioEnabled()}
		},
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		Burst:       a.cfg.Server.Burst,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(deps.Health, a.logger),
		Comparisons: handler.NewComparisonHandler(deps.Alerts, deps.Quotes, a.logger),
		Alerts:      handler.NewAlertHandler(deps.Alerts, a.logger),
		Session:     handler.NewSessionHandler(deps.Session, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	a.logger.InfoContext(ctx, "HTTP server configured",
		slog.Int("port", a.cfg.Server.Port),
		slog.Bool("auth", a.cfg.Server.APIKey != ""),
	)
}

// ignoreCanceled treats shutdown by signal as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
