package app

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/feed"
	"github.com/alanyoungcy/arbwatch/internal/pipeline"
	"github.com/alanyoungcy/arbwatch/internal/platform/cex"
	"github.com/alanyoungcy/arbwatch/internal/platform/dex"
	"github.com/alanyoungcy/arbwatch/internal/render"
)

// buildRegistry validates every configured threshold table. One bad table
// fails startup.
func buildRegistry(tables map[string]config.TierTableConfig) (*arbitrage.Registry, error) {
	reg := arbitrage.NewRegistry()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		tiers := make([]domain.Tier, 0, len(tables[name].Tiers))
		for i, tc := range tables[name].Tiers {
			level, err := domain.ParseAlertLevel(tc.Level)
			if err != nil {
				return nil, fmt.Errorf("table %q tier %d: %w", name, i, err)
			}
			tiers = append(tiers, domain.Tier{
				LowerBound: tc.Min.Decimal,
				Level:      level,
				Sound: domain.SoundCue{
					ShouldPlay: tc.Sound,
					Volume:     tc.Volume,
					Frequency:  tc.Frequency,
				},
			})
		}
		t, err := arbitrage.NewTierTable(name, tiers)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// venueClients creates only the adapters some configured venue or funding
// poller uses.
func venueClients(cfg *config.Config) feed.Clients {
	var needCEX, needWS, needEVM, needAMM bool
	for _, p := range cfg.Pairs {
		needCEX = needCEX || p.Funding.Enabled
		for _, v := range p.Venues {
			switch v.Kind {
			case config.KindCEXFutures, config.KindCEXSpot:
				needCEX = true
			case config.KindCEXWS:
				needWS = true
			case config.KindEVMAggregator:
				needEVM = true
			case config.KindAMMRouter:
				needAMM = true
			}
		}
	}

	var c feed.Clients
	if needCEX {
		c.CEX = cex.NewClient(cex.Config{
			FuturesDepthURL: cfg.CEX.FuturesDepthURL,
			SpotDepthURL:    cfg.CEX.SpotDepthURL,
			FundingRateURL:  cfg.CEX.FundingRateURL,
			Proxy:           cfg.HTTP.Proxy,
			UserAgent:       cfg.HTTP.UserAgent,
			Timeout:         cfg.HTTP.Timeout.Duration,
			RateLimit:       cfg.HTTP.RateLimit,
			Burst:           cfg.HTTP.Burst,
		})
	}
	if needWS {
		c.WS = cex.NewWSClient(cex.WSConfig{
			URL:             cfg.CEX.WSURL,
			SubscribeMethod: cfg.CEX.WSSubscribeMethod,
			Channel:         cfg.CEX.WSChannel,
			Timeout:         cfg.CEX.WSTimeout.Duration,
		})
	}
	dexCfg := func(url string) dex.Config {
		return dex.Config{
			BaseURL:   url,
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.HTTP.Timeout.Duration,
			RateLimit: cfg.HTTP.RateLimit,
			Burst:     cfg.HTTP.Burst,
		}
	}
	if needEVM {
		c.EVM = dex.NewEVMClient(dexCfg(cfg.DEX.EVMAggregatorURL))
	}
	if needAMM {
		c.AMM = dex.NewAMMClient(dexCfg(cfg.DEX.AMMRouterURL))
	}
	return c
}

// pipelineParts are the long-running loops built from configuration.
type pipelineParts struct {
	drivers []*pipeline.Driver
	funding []*pipeline.FundingPoller
}

// buildPipeline creates one driver per pair and one funding poller per pair
// that enables funding. Quotes go to sink, results to renderer and funding
// rates to fundingSink.
func buildPipeline(
	cfg *config.Config,
	clients feed.Clients,
	sink feed.QuoteSink,
	renderer render.Renderer,
	fundingSink pipeline.FundingSink,
	logger *slog.Logger,
) (*pipelineParts, error) {
	reg, err := buildRegistry(cfg.Tables)
	if err != nil {
		return nil, fmt.Errorf("tier tables: %w", err)
	}

	builder := feed.NewBuilder(clients, feed.BreakerSettings{
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval.Duration,
		Timeout:             cfg.Breaker.Timeout.Duration,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}, sink, logger)

	parts := &pipelineParts{}
	for _, p := range cfg.Pairs {
		venues := make([]feed.QuoteFetcher, 0, len(p.Venues))
		for _, v := range p.Venues {
			f, err := builder.Build(p.Name, v)
			if err != nil {
				return nil, err
			}
			venues = append(venues, f)
		}

		comparisons := make([]*arbitrage.Comparison, 0, len(p.Comparisons))
		for _, cc := range p.Comparisons {
			c, err := buildComparison(reg, p.Name, cc, logger)
			if err != nil {
				return nil, err
			}
			comparisons = append(comparisons, c)
		}

		overlap, err := pipeline.ParseOverlap(p.Overlap)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", p.Name, err)
		}
		parts.drivers = append(parts.drivers, pipeline.NewDriver(pipeline.DriverConfig{
			Pair:         p.Name,
			Interval:     p.Interval.Duration,
			FetchTimeout: cfg.HTTP.Timeout.Duration,
			Overlap:      overlap,
			Backoff: pipeline.BackoffPolicy{
				Exponential: strings.EqualFold(p.Backoff.Policy, "exponential"),
				Multiplier:  p.Backoff.Multiplier,
				Max:         p.Backoff.Max.Duration,
			},
		}, venues, comparisons, renderer, logger))

		if p.Funding.Enabled {
			if clients.CEX == nil {
				return nil, fmt.Errorf("pair %s: funding needs the cex client", p.Name)
			}
			parts.funding = append(parts.funding, pipeline.NewFundingPoller(
				p.Name, p.Funding.Symbol, p.Funding.Interval.Duration, cfg.HTTP.Timeout.Duration,
				clients.CEX, fundingSink, logger,
			))
		}
	}
	return parts, nil
}

func buildComparison(reg *arbitrage.Registry, pair string, cc config.ComparisonConfig, logger *slog.Logger) (*arbitrage.Comparison, error) {
	sellName := cc.SellTable
	if sellName == "" {
		sellName = cc.BuyTable
	}
	buy, err := reg.Get(cc.BuyTable)
	if err != nil {
		return nil, fmt.Errorf("comparison %s: buy table: %w", cc.ID, err)
	}
	sell, err := reg.Get(sellName)
	if err != nil {
		return nil, fmt.Errorf("comparison %s: sell table: %w", cc.ID, err)
	}
	for _, diff := range arbitrage.Asymmetries(buy, sell) {
		logger.Warn("buy and sell tables differ",
			slog.String("comparison", cc.ID),
			slog.String("detail", diff),
		)
	}

	classifier, err := arbitrage.NewClassifier(buy, sell)
	if err != nil {
		return nil, fmt.Errorf("comparison %s: %w", cc.ID, err)
	}
	basis, err := arbitrage.ParseBasis(cc.Basis)
	if err != nil {
		return nil, fmt.Errorf("comparison %s: %w", cc.ID, err)
	}
	return &arbitrage.Comparison{
		ID:         cc.ID,
		Pair:       pair,
		A:          cc.A,
		B:          cc.B,
		Basis:      basis,
		Classifier: classifier,
	}, nil
}
