package feed

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform/dex"
)

// EVMQuoter is the aggregator call an EVMVenue needs.
type EVMQuoter interface {
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
}

// AMMQuoter is the router call an AMMVenue needs.
type AMMQuoter interface {
	Quote(ctx context.Context, input, output solana.PublicKey, amount uint64, mode dex.SwapMode) (dex.AMMQuote, error)
}

// Token is one side of a DEX pair.
type Token[A any] struct {
	Address  A
	Decimals int32
}

// EVMVenue prices a token on an EVM aggregator. The bid is what selling
// Target base tokens returns per unit; the ask is what spending BuyNotional
// quote tokens costs per base unit received.
type EVMVenue struct {
	name        string
	client      EVMQuoter
	base        Token[common.Address]
	quote       Token[common.Address]
	target      decimal.Decimal
	buyNotional decimal.Decimal
}

// NewEVMVenue creates an aggregator-backed venue.
func NewEVMVenue(name string, client EVMQuoter, base, quote Token[common.Address], target, buyNotional decimal.Decimal) *EVMVenue {
	return &EVMVenue{name: name, client: client, base: base, quote: quote, target: target, buyNotional: buyNotional}
}

// Name returns the venue name.
func (v *EVMVenue) Name() string { return v.name }

// FetchQuote requests both legs concurrently.
func (v *EVMVenue) FetchQuote(ctx context.Context) (domain.VenueQuote, error) {
	var bid, ask decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := v.client.Quote(gctx, v.base.Address, v.quote.Address, dex.ToUnits(v.target, v.base.Decimals))
		if err != nil {
			return fmt.Errorf("sell leg: %w", err)
		}
		bid, err = dex.UnitPrice(dex.FromUnits(out, v.quote.Decimals), v.target)
		return err
	})
	g.Go(func() error {
		out, err := v.client.Quote(gctx, v.quote.Address, v.base.Address, dex.ToUnits(v.buyNotional, v.quote.Decimals))
		if err != nil {
			return fmt.Errorf("buy leg: %w", err)
		}
		ask, err = dex.UnitPrice(v.buyNotional, dex.FromUnits(out, v.base.Decimals))
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.VenueQuote{}, fmt.Errorf("feed: %s: %w", v.name, err)
	}
	return domain.VenueQuote{Venue: v.name, Bid: bid, Ask: ask, Timestamp: time.Now()}, nil
}

// AMMVenue prices a token on an AMM router at a fixed base quantity: the bid
// is an ExactIn sale of Target base, the ask an ExactOut purchase of it.
type AMMVenue struct {
	name   string
	client AMMQuoter
	base   Token[solana.PublicKey]
	quote  Token[solana.PublicKey]
	target decimal.Decimal
}

// NewAMMVenue creates a router-backed venue.
func NewAMMVenue(name string, client AMMQuoter, base, quote Token[solana.PublicKey], target decimal.Decimal) *AMMVenue {
	return &AMMVenue{name: name, client: client, base: base, quote: quote, target: target}
}

// Name returns the venue name.
func (v *AMMVenue) Name() string { return v.name }

// FetchQuote requests both legs concurrently.
func (v *AMMVenue) FetchQuote(ctx context.Context) (domain.VenueQuote, error) {
	units := dex.ToUnits(v.target, v.base.Decimals)
	if !units.IsUint64() || units.Sign() <= 0 {
		return domain.VenueQuote{}, fmt.Errorf("feed: %s: target %s does not fit in base units", v.name, v.target)
	}
	amount := units.Uint64()

	var bid, ask decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := v.client.Quote(gctx, v.base.Address, v.quote.Address, amount, dex.ExactIn)
		if err != nil {
			return fmt.Errorf("sell leg: %w", err)
		}
		bid, err = dex.UnitPrice(dex.FromUnits(new(big.Int).SetUint64(q.OutAmount), v.quote.Decimals), v.target)
		return err
	})
	g.Go(func() error {
		q, err := v.client.Quote(gctx, v.quote.Address, v.base.Address, amount, dex.ExactOut)
		if err != nil {
			return fmt.Errorf("buy leg: %w", err)
		}
		ask, err = dex.UnitPrice(dex.FromUnits(new(big.Int).SetUint64(q.InAmount), v.quote.Decimals), v.target)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.VenueQuote{}, fmt.Errorf("feed: %s: %w", v.name, err)
	}
	return domain.VenueQuote{Venue: v.name, Bid: bid, Ask: ask, Timestamp: time.Now()}, nil
}
