package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// FillMode selects how QuoteFill treats a walk that runs out of levels before
// reaching the target.
type FillMode int

const (
	// FillStrict fails with domain.ErrInsufficientLiquidity on a partial fill.
	FillStrict FillMode = iota
	// FillLegacySkew returns notional/target even when the book was too thin,
	// understating the average price. Only for matching historical numbers.
	FillLegacySkew
)

func (m FillMode) String() string {
	if m == FillLegacySkew {
		return "legacy_skew"
	}
	return "strict"
}

// QuoteFill walks levels best-to-worst and fills target base units. Each
// level's notional size is converted to base quantity at its own price. The
// average price is total notional divided by the original target.
func QuoteFill(levels []domain.PriceLevel, target decimal.Decimal, mode FillMode) (domain.FillQuote, error) {
	if !target.IsPositive() {
		return domain.FillQuote{}, fmt.Errorf("arbitrage: quote fill: %w", domain.ErrInvalidTarget)
	}

	notional := decimal.Zero
	filled := decimal.Zero
	for _, lvl := range levels {
		if filled.GreaterThanOrEqual(target) {
			break
		}
		if !lvl.Price.IsPositive() || !lvl.Size.IsPositive() {
			continue
		}
		fill := decimal.Min(target.Sub(filled), lvl.BaseQuantity())
		notional = notional.Add(fill.Mul(lvl.Price))
		filled = filled.Add(fill)
	}

	q := domain.FillQuote{
		Target:         target,
		FilledQuantity: filled,
	}
	if filled.LessThan(target) {
		if mode != FillLegacySkew {
			return q, fmt.Errorf("arbitrage: quote fill: filled %s of %s: %w",
				filled.String(), target.String(), domain.ErrInsufficientLiquidity)
		}
		q.Partial = true
	}
	q.AveragePrice = notional.Div(target)
	return q, nil
}

// QuoteBook prices target base units against both sides of snap: the bid is
// what selling target into the bids would average, the ask what buying it
// from the asks would cost.
func QuoteBook(snap domain.DepthSnapshot, target decimal.Decimal, mode FillMode) (domain.VenueQuote, error) {
	bid, err := QuoteFill(snap.Bids, target, mode)
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("arbitrage: %s bids: %w", snap.Venue, err)
	}
	ask, err := QuoteFill(snap.Asks, target, mode)
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("arbitrage: %s asks: %w", snap.Venue, err)
	}
	return domain.VenueQuote{
		Venue:     snap.Venue,
		Bid:       bid.AveragePrice,
		Ask:       ask.AveragePrice,
		Timestamp: snap.Timestamp,
	}, nil
}

// TopOfBook returns the best bid and best ask of snap.
func TopOfBook(snap domain.DepthSnapshot) (domain.VenueQuote, error) {
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return domain.VenueQuote{}, fmt.Errorf("arbitrage: %s top of book: empty side: %w",
			snap.Venue, domain.ErrInsufficientLiquidity)
	}
	return domain.VenueQuote{
		Venue:     snap.Venue,
		Bid:       snap.Bids[0].Price,
		Ask:       snap.Asks[0].Price,
		Timestamp: snap.Timestamp,
	}, nil
}
