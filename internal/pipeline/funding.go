package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// FundingSource fetches the current funding rate of a perpetual contract.
type FundingSource interface {
	FundingRate(ctx context.Context, symbol string) (domain.FundingRate, error)
}

// FundingSink receives every funding rate fetched for a pair.
type FundingSink interface {
	RenderFunding(ctx context.Context, pair string, f domain.FundingRate) error
}

// FundingPoller fetches a pair's funding rate on a ticker.
type FundingPoller struct {
	pair     string
	symbol   string
	interval time.Duration
	timeout  time.Duration
	source   FundingSource
	sink     FundingSink
	logger   *slog.Logger
}

// NewFundingPoller creates a FundingPoller.
func NewFundingPoller(pair, symbol string, interval, timeout time.Duration, source FundingSource, sink FundingSink, logger *slog.Logger) *FundingPoller {
	return &FundingPoller{
		pair:     pair,
		symbol:   symbol,
		interval: interval,
		timeout:  timeout,
		source:   source,
		sink:     sink,
		logger: logger.With(
			slog.String("component", "funding"),
			slog.String("pair", pair),
		),
	}
}

// Poll runs a single fetch and hands the result to the sink. Failures are
// logged and otherwise ignored.
func (p *FundingPoller) Poll(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	f, err := p.source.FundingRate(fctx, p.symbol)
	if err != nil {
		p.logger.Warn("funding fetch failed", slog.String("error", err.Error()))
		return
	}
	if err := p.sink.RenderFunding(ctx, p.pair, f); err != nil {
		p.logger.Error("funding render failed", slog.String("error", err.Error()))
	}
}

// RunLoop polls immediately and then every interval until ctx is cancelled.
func (p *FundingPoller) RunLoop(ctx context.Context) error {
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("funding poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}
