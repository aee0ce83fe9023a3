package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/config"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform/cex"
)

// Clients bundles the adapters a Builder draws on. Any of them may be nil
// when no venue of that kind is configured.
type Clients struct {
	CEX *cex.Client
	WS  *cex.WSClient
	EVM EVMQuoter
	AMM AMMQuoter
}

// Builder turns venue config records into wrapped QuoteFetchers.
type Builder struct {
	clients Clients
	breaker BreakerSettings
	sink    QuoteSink
	logger  *slog.Logger
}

// NewBuilder creates a Builder. sink may be nil.
func NewBuilder(clients Clients, breaker BreakerSettings, sink QuoteSink, logger *slog.Logger) *Builder {
	return &Builder{clients: clients, breaker: breaker, sink: sink, logger: logger}
}

// Build returns the fetcher for one venue of pair, wrapped in a circuit
// breaker and instrumentation.
func (b *Builder) Build(pair string, v config.VenueConfig) (QuoteFetcher, error) {
	f, err := b.build(v)
	if err != nil {
		return nil, fmt.Errorf("feed: pair %s venue %s: %w", pair, v.Name, err)
	}
	f = WithBreaker(f, b.breaker, b.logger.With(slog.String("pair", pair)))
	return Observe(f, pair, b.sink), nil
}

func (b *Builder) build(v config.VenueConfig) (QuoteFetcher, error) {
	mode := arbitrage.FillStrict
	if v.LegacySkew {
		mode = arbitrage.FillLegacySkew
	}
	depth := func(src DepthSource) QuoteFetcher {
		if v.Depth == "top" {
			return NewTopOfBookVenue(v.Name, src)
		}
		return NewDepthVenue(v.Name, src, v.Target.Decimal, mode)
	}

	switch v.Kind {
	case config.KindCEXFutures:
		if b.clients.CEX == nil {
			return nil, fmt.Errorf("cex client not configured")
		}
		c, symbol := b.clients.CEX, v.Symbol
		return depth(func(ctx context.Context) (domain.DepthSnapshot, error) {
			return c.FuturesDepth(ctx, symbol)
		}), nil

	case config.KindCEXSpot:
		if b.clients.CEX == nil {
			return nil, fmt.Errorf("cex client not configured")
		}
		c, symbol := b.clients.CEX, v.Symbol
		return depth(func(ctx context.Context) (domain.DepthSnapshot, error) {
			return c.SpotDepth(ctx, symbol)
		}), nil

	case config.KindCEXWS:
		if b.clients.WS == nil {
			return nil, fmt.Errorf("cex websocket client not configured")
		}
		c, symbol := b.clients.WS, v.Symbol
		return depth(func(ctx context.Context) (domain.DepthSnapshot, error) {
			return c.SnapshotOnce(ctx, symbol)
		}), nil

	case config.KindEVMAggregator:
		if b.clients.EVM == nil {
			return nil, fmt.Errorf("evm aggregator client not configured")
		}
		base := Token[common.Address]{Address: common.HexToAddress(v.BaseToken), Decimals: v.BaseDecimals}
		quote := Token[common.Address]{Address: common.HexToAddress(v.QuoteToken), Decimals: v.QuoteDecimals}
		return NewEVMVenue(v.Name, b.clients.EVM, base, quote, v.Target.Decimal, v.BuyNotional.Decimal), nil

	case config.KindAMMRouter:
		if b.clients.AMM == nil {
			return nil, fmt.Errorf("amm router client not configured")
		}
		baseKey, err := solana.PublicKeyFromBase58(v.BaseToken)
		if err != nil {
			return nil, fmt.Errorf("base mint: %w", err)
		}
		quoteKey, err := solana.PublicKeyFromBase58(v.QuoteToken)
		if err != nil {
			return nil, fmt.Errorf("quote mint: %w", err)
		}
		base := Token[solana.PublicKey]{Address: baseKey, Decimals: v.BaseDecimals}
		quote := Token[solana.PublicKey]{Address: quoteKey, Decimals: v.QuoteDecimals}
		return NewAMMVenue(v.Name, b.clients.AMM, base, quote, v.Target.Decimal), nil

	default:
		return nil, fmt.Errorf("unknown venue kind %q", v.Kind)
	}
}
