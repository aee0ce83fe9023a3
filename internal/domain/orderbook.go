package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one row of an order book. Size is quote-currency notional, so
// the base quantity resting at the level is Size / Price.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BaseQuantity returns the base-asset quantity available at the level.
func (l PriceLevel) BaseQuantity() decimal.Decimal {
	if !l.Price.IsPositive() {
		return decimal.Zero
	}
	return l.Size.Div(l.Price)
}

// DepthSnapshot is a point-in-time view of one venue's book. Bids are ordered
// best (highest) first and asks best (lowest) first, as the source delivers
// them. A snapshot is used for a single tick and never mutated.
type DepthSnapshot struct {
	Venue     string
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// FillQuote is the outcome of walking one side of a book for a target base
// quantity. When FilledQuantity < Target the quote is short of liquidity and
// AveragePrice is only meaningful if Partial is set.
type FillQuote struct {
	Target         decimal.Decimal
	FilledQuantity decimal.Decimal
	AveragePrice   decimal.Decimal
	Partial        bool
}

// VenueQuote is the bid/ask a venue offers for one tick, either top of book or
// depth-weighted fill prices.
type VenueQuote struct {
	Venue     string          `json:"venue"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
}

// Mid returns the arithmetic mid of bid and ask.
func (q VenueQuote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// FundingRate is the current perpetual funding rate and the time of the next
// settlement.
type FundingRate struct {
	Venue      string          `json:"venue"`
	Symbol     string          `json:"symbol"`
	Rate       decimal.Decimal `json:"rate"`
	NextSettle time.Time       `json:"nextSettle"`
	FetchedAt  time.Time       `json:"fetchedAt"`
}

// UntilSettle returns the time remaining before the next settlement relative
// to now, clamped at zero.
func (f FundingRate) UntilSettle(now time.Time) time.Duration {
	d := f.NextSettle.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
