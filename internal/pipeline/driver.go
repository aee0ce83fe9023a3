// Package pipeline runs the long-lived loops: one polling driver per pair,
// the funding pollers, and the alert-history archiver.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/feed"
	"github.com/alanyoungcy/arbwatch/internal/metrics"
	"github.com/alanyoungcy/arbwatch/internal/render"
)

// OverlapPolicy decides what happens when the timer fires while the previous
// tick is still running.
type OverlapPolicy int

const (
	// OverlapSkip drops the fire and counts it.
	OverlapSkip OverlapPolicy = iota
	// OverlapAllow starts another tick alongside the running one.
	OverlapAllow
)

// ParseOverlap converts "skip" or "allow" into an OverlapPolicy.
func ParseOverlap(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return OverlapSkip, nil
	case "allow":
		return OverlapAllow, nil
	default:
		return OverlapSkip, fmt.Errorf("pipeline: unknown overlap policy %q", s)
	}
}

// BackoffPolicy stretches the poll interval while every venue of a pair is
// failing. The zero value never backs off.
type BackoffPolicy struct {
	Exponential bool
	Multiplier  float64
	Max         time.Duration
}

// Next returns the delay before the next tick after failures consecutive
// ticks in which no venue answered.
func (b BackoffPolicy) Next(base time.Duration, failures int) time.Duration {
	if !b.Exponential || failures <= 0 {
		return base
	}
	mult := b.Multiplier
	if mult <= 1 {
		mult = 2
	}
	next := float64(base) * math.Pow(mult, float64(failures))
	if b.Max > 0 && next > float64(b.Max) {
		return b.Max
	}
	if next > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(next)
}

// DriverConfig holds the per-pair polling settings.
type DriverConfig struct {
	Pair         string
	Interval     time.Duration
	FetchTimeout time.Duration
	Overlap      OverlapPolicy
	Backoff      BackoffPolicy
}

// TickReport summarises one tick. Quotes holds nil for every venue that
// failed. Discarded is set when the driver was stopped while the tick's
// fetches were in flight; nothing was rendered in that case.
type TickReport struct {
	Quotes    map[string]*domain.VenueQuote
	Failed    []string
	Results   []domain.ComparisonResult
	Discarded bool
}

// Driver polls every venue of one pair on a timer, evaluates the pair's
// comparisons on each tick and hands the results to a renderer.
type Driver struct {
	cfg         DriverConfig
	venues      []feed.QuoteFetcher
	comparisons []*arbitrage.Comparison
	renderer    render.Renderer
	logger      *slog.Logger

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	inflight atomic.Int32
	failures atomic.Int32
	tickDone chan struct{}
	wg       sync.WaitGroup
}

// NewDriver creates a Driver for cfg.Pair.
func NewDriver(
	cfg DriverConfig,
	venues []feed.QuoteFetcher,
	comparisons []*arbitrage.Comparison,
	renderer render.Renderer,
	logger *slog.Logger,
) *Driver {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	return &Driver{
		cfg:         cfg,
		venues:      venues,
		comparisons: comparisons,
		renderer:    renderer,
		logger: logger.With(
			slog.String("component", "driver"),
			slog.String("pair", cfg.Pair),
		),
		stopCh:   make(chan struct{}),
		tickDone: make(chan struct{}, 1),
	}
}

// Pair returns the pair this driver polls.
func (d *Driver) Pair() string { return d.cfg.Pair }

// Tick fetches every venue concurrently, evaluates each comparison and
// renders its result. A failing venue becomes a nil quote; a panicking venue,
// comparison or renderer is logged and does not affect the others.
func (d *Driver) Tick(ctx context.Context) TickReport {
	metrics.TicksTotal.WithLabelValues(d.cfg.Pair).Inc()

	quotes := make([]*domain.VenueQuote, len(d.venues))
	var g errgroup.Group
	for i, v := range d.venues {
		g.Go(func() error {
			defer d.recoverPanic("fetch", v.Name())
			fctx, cancel := context.WithTimeout(ctx, d.cfg.FetchTimeout)
			defer cancel()

			q, err := v.FetchQuote(fctx)
			if err != nil {
				d.logger.Warn("venue fetch failed",
					slog.String("venue", v.Name()),
					slog.String("kind", metrics.ErrorKind(err)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			quotes[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	report := TickReport{Quotes: make(map[string]*domain.VenueQuote, len(d.venues))}
	for i, v := range d.venues {
		report.Quotes[v.Name()] = quotes[i]
		if quotes[i] == nil {
			report.Failed = append(report.Failed, v.Name())
		}
	}

	if len(d.venues) > 0 && len(report.Failed) == len(d.venues) {
		d.failures.Add(1)
	} else {
		d.failures.Store(0)
	}

	if d.stopped.Load() {
		d.logger.Debug("driver stopped during tick, results discarded")
		report.Discarded = true
		return report
	}

	now := time.Now()
	for _, c := range d.comparisons {
		if res, ok := d.evaluate(ctx, c, report.Quotes, now); ok {
			report.Results = append(report.Results, res)
		}
	}
	return report
}

func (d *Driver) evaluate(ctx context.Context, c *arbitrage.Comparison, quotes map[string]*domain.VenueQuote, now time.Time) (res domain.ComparisonResult, ok bool) {
	defer d.recoverPanic("comparison", c.ID)

	res = c.Evaluate(quotes, now)
	if res.OK() {
		metrics.Spread.WithLabelValues(c.ID, string(domain.DirectionBuy)).Set(res.BuySpread.Value.InexactFloat64())
		metrics.Spread.WithLabelValues(c.ID, string(domain.DirectionSell)).Set(res.SellSpread.Value.InexactFloat64())
		metrics.Level.WithLabelValues(c.ID, string(domain.DirectionBuy)).Set(float64(res.BuyLevel.Level))
		metrics.Level.WithLabelValues(c.ID, string(domain.DirectionSell)).Set(float64(res.SellLevel.Level))
	} else {
		metrics.DataErrors.WithLabelValues(c.ID).Inc()
	}

	if err := d.renderer.Render(ctx, res); err != nil {
		d.logger.Error("render failed",
			slog.String("comparison", c.ID),
			slog.String("error", err.Error()),
		)
	}
	return res, true
}

func (d *Driver) recoverPanic(stage, name string) {
	if r := recover(); r != nil {
		d.logger.Error("recovered panic in tick",
			slog.String("stage", stage),
			slog.String("name", name),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())),
		)
	}
}

// delay is the wait before the next tick.
func (d *Driver) delay() time.Duration {
	next := d.cfg.Backoff.Next(d.cfg.Interval, int(d.failures.Load()))
	metrics.TickDelay.WithLabelValues(d.cfg.Pair).Set(next.Seconds())
	return next
}

// Run ticks immediately and then on every timer fire until ctx is cancelled
// or Stop is called. When a tick finishes the timer is re-armed from that
// tick's start, so backoff follows the outcome of the latest tick. Run waits
// for running ticks before returning and returns nil on a clean shutdown.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("driver starting",
		slog.Duration("interval", d.cfg.Interval),
		slog.Int("venues", len(d.venues)),
		slog.Int("comparisons", len(d.comparisons)),
	)
	defer d.wg.Wait()

	lastFire := time.Now()
	d.fire(ctx)

	timer := time.NewTimer(d.delay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopped", slog.String("reason", "context done"))
			return nil
		case <-d.stopCh:
			d.logger.Info("driver stopped", slog.String("reason", "stop"))
			return nil
		case <-timer.C:
			lastFire = time.Now()
			d.fire(ctx)
			timer.Reset(d.delay())
		case <-d.tickDone:
			timer.Reset(max(time.Until(lastFire.Add(d.delay())), 0))
		}
	}
}

// fire starts a tick in the background unless the overlap policy forbids it.
func (d *Driver) fire(ctx context.Context) {
	if d.cfg.Overlap == OverlapSkip && d.inflight.Load() > 0 {
		metrics.TicksSkipped.WithLabelValues(d.cfg.Pair).Inc()
		d.logger.Debug("tick skipped, previous tick still running")
		return
	}
	d.inflight.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inflight.Add(-1)
		d.Tick(ctx)
		select {
		case d.tickDone <- struct{}{}:
		default:
		}
	}()
}

// Stop ends the timer loop. Fetches already in flight run to completion
// within their timeout and their results are dropped.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopCh)
	})
}
