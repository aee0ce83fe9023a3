package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs every pair driver, funding poller and the archiver cron
// side by side.
type Orchestrator struct {
	drivers     []*Driver
	funding     []*FundingPoller
	archiver    *Archiver
	archiveCron string
	logger      *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. archiver may be nil when
// archival is disabled.
func NewOrchestrator(
	drivers []*Driver,
	funding []*FundingPoller,
	archiver *Archiver,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		drivers:     drivers,
		funding:     funding,
		archiver:    archiver,
		archiveCron: archiveCron,
		logger:      logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts all loops in an errgroup and blocks until ctx is cancelled. A
// loop that fails for a reason other than shutdown cancels the rest.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Int("drivers", len(o.drivers)),
		slog.Int("funding_pollers", len(o.funding)),
		slog.Bool("archiver", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	for _, d := range o.drivers {
		g.Go(func() error {
			if err := d.Run(ctx); err != nil {
				return fmt.Errorf("driver %s: %w", d.Pair(), err)
			}
			return nil
		})
	}

	for _, p := range o.funding {
		g.Go(func() error {
			err := p.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("funding %s: %w", p.pair, err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// Stop halts every driver's timer. Funding pollers and the archiver stop
// with the context passed to Run.
func (o *Orchestrator) Stop() {
	for _, d := range o.drivers {
		d.Stop()
	}
}
