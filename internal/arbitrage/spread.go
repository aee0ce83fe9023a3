// Package arbitrage turns venue quotes into classified cross-venue spreads.
// Everything here is a pure function of its inputs; fetching and scheduling
// live in the feed and pipeline packages.
package arbitrage

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Buy is the spread for buying on b and selling on a: a.Bid - b.Ask.
func Buy(a, b domain.VenueQuote) domain.SpreadResult {
	return domain.SpreadResult{Value: a.Bid.Sub(b.Ask), Direction: domain.DirectionBuy}
}

// Sell is the spread for buying on a and selling on b: b.Bid - a.Ask.
func Sell(a, b domain.VenueQuote) domain.SpreadResult {
	return domain.SpreadResult{Value: b.Bid.Sub(a.Ask), Direction: domain.DirectionSell}
}

// Spreads returns both directions for the pair (a, b).
func Spreads(a, b domain.VenueQuote) (buy, sell domain.SpreadResult) {
	return Buy(a, b), Sell(a, b)
}

// Basis selects the unit tier bounds are written in.
type Basis string

const (
	// BasisAbsolute compares raw price differences.
	BasisAbsolute Basis = "absolute"
	// BasisPercent compares the difference as a percent of the price paid.
	BasisPercent Basis = "percent"
)

// ParseBasis accepts "absolute", "percent", or empty (absolute).
func ParseBasis(s string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(s))) {
	case "", BasisAbsolute:
		return BasisAbsolute, nil
	case BasisPercent:
		return BasisPercent, nil
	default:
		return "", fmt.Errorf("arbitrage: unknown basis %q", s)
	}
}

// PercentOf rescales s to percent of reference. A non-positive reference
// yields zero.
func PercentOf(s domain.SpreadResult, reference decimal.Decimal) domain.SpreadResult {
	if !reference.IsPositive() {
		return domain.SpreadResult{Value: decimal.Zero, Direction: s.Direction}
	}
	return domain.SpreadResult{Value: s.Value.Div(reference).Mul(hundred), Direction: s.Direction}
}

// inBasis converts the pair of spreads to basis. The reference for each
// direction is the ask being paid: b.Ask for BUY, a.Ask for SELL.
func inBasis(basis Basis, a, b domain.VenueQuote, buy, sell domain.SpreadResult) (domain.SpreadResult, domain.SpreadResult) {
	if basis != BasisPercent {
		return buy, sell
	}
	return PercentOf(buy, b.Ask), PercentOf(sell, a.Ask)
}
