package arbitrage

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Comparison pairs two venues of one token and classifies their spreads.
type Comparison struct {
	ID         string
	Pair       string
	A          string
	B          string
	Basis      Basis
	Classifier *Classifier
}

// Venues returns the venue names the comparison needs.
func (c *Comparison) Venues() []string { return []string{c.A, c.B} }

// Evaluate computes the comparison from this tick's quotes. A nil or absent
// quote for either venue yields a data-error result; nothing else in quotes
// is consulted.
func (c *Comparison) Evaluate(quotes map[string]*domain.VenueQuote, now time.Time) domain.ComparisonResult {
	res := domain.ComparisonResult{
		ComparisonID: c.ID,
		Pair:         c.Pair,
		VenueA:       c.A,
		VenueB:       c.B,
		Timestamp:    now,
	}

	a, b := quotes[c.A], quotes[c.B]
	if a == nil {
		res.Missing = append(res.Missing, c.A)
	}
	if b == nil {
		res.Missing = append(res.Missing, c.B)
	}
	if len(res.Missing) > 0 {
		res.DataError = fmt.Sprintf("data error: %s unavailable", strings.Join(res.Missing, ", "))
		return res
	}

	buy, sell := inBasis(c.Basis, *a, *b, Buy(*a, *b), Sell(*a, *b))
	res.BuySpread = buy
	res.SellSpread = sell
	res.BuyLevel = c.Classifier.Classify(buy)
	res.SellLevel = c.Classifier.Classify(sell)
	return res
}
