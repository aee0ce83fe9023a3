// Package dex queries decentralized-exchange aggregators for swap quotes: an
// EVM route aggregator addressed by token contract, and a Solana AMM router
// addressed by mint.
package dex

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform/rest"
)

// Config is shared by both aggregator clients.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

func (c Config) getter() *rest.Getter {
	return rest.NewGetter(rest.Options{
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
		Burst:     c.Burst,
	})
}

// ToUnits converts a human amount to integer base units of a token with the
// given decimals, truncating any remainder.
func ToUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FromUnits converts integer base units back to a human amount.
func FromUnits(units *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(units, -decimals)
}

// UnitPrice is quoteAmount / baseAmount in human units. It fails when the
// base side is not positive.
func UnitPrice(quoteAmount, baseAmount decimal.Decimal) (decimal.Decimal, error) {
	if !baseAmount.IsPositive() {
		return decimal.Zero, fmt.Errorf("dex: zero base amount in quote: %w", domain.ErrInsufficientLiquidity)
	}
	return quoteAmount.Div(baseAmount), nil
}
