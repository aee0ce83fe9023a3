// Package feed turns venue adapters into QuoteFetchers, the one shape the
// polling driver consumes: a named call that yields this tick's bid and ask
// or an error.
package feed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// QuoteFetcher produces one venue's quote for the current tick.
type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context) (domain.VenueQuote, error)
}

type funcFetcher struct {
	name string
	fn   func(ctx context.Context) (domain.VenueQuote, error)
}

// FetcherFunc adapts fn to a QuoteFetcher.
func FetcherFunc(name string, fn func(ctx context.Context) (domain.VenueQuote, error)) QuoteFetcher {
	return funcFetcher{name: name, fn: fn}
}

func (f funcFetcher) Name() string { return f.name }

func (f funcFetcher) FetchQuote(ctx context.Context) (domain.VenueQuote, error) {
	return f.fn(ctx)
}

// DepthSource loads a fresh order-book snapshot.
type DepthSource func(ctx context.Context) (domain.DepthSnapshot, error)

// DepthVenue prices a venue from its order book, either by walking the book
// for a target quantity or by reading the top level.
type DepthVenue struct {
	name   string
	source DepthSource
	target decimal.Decimal
	mode   arbitrage.FillMode
	top    bool
}

// NewDepthVenue returns a venue priced by a depth-weighted fill of target.
func NewDepthVenue(name string, source DepthSource, target decimal.Decimal, mode arbitrage.FillMode) *DepthVenue {
	return &DepthVenue{name: name, source: source, target: target, mode: mode}
}

// NewTopOfBookVenue returns a venue priced at its best bid and ask.
func NewTopOfBookVenue(name string, source DepthSource) *DepthVenue {
	return &DepthVenue{name: name, source: source, top: true}
}

// Name returns the venue name.
func (v *DepthVenue) Name() string { return v.name }

// FetchQuote loads a snapshot and reduces it to a quote.
func (v *DepthVenue) FetchQuote(ctx context.Context) (domain.VenueQuote, error) {
	snap, err := v.source(ctx)
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("feed: %s: %w", v.name, err)
	}
	snap.Venue = v.name

	var q domain.VenueQuote
	if v.top {
		q, err = arbitrage.TopOfBook(snap)
	} else {
		q, err = arbitrage.QuoteBook(snap, v.target, v.mode)
	}
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("feed: %w", err)
	}
	return q, nil
}
