package arbitrage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func levels(pairs ...[2]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.PriceLevel{Price: d(p[0]), Size: d(p[1])})
	}
	return out
}

func TestQuoteFill_WeightedAcrossLevels(t *testing.T) {
	book := levels([2]string{"10", "100"}, [2]string{"11", "100"})

	q, err := QuoteFill(book, d("15"), FillStrict)
	require.NoError(t, err)

	assert.True(t, q.FilledQuantity.Equal(d("15")))
	assert.False(t, q.Partial)
	// 10 units at 10 and 5 units at 11.
	assert.Equal(t, "10.333333", q.AveragePrice.StringFixed(6))
}

func TestQuoteFill_SingleLevelExact(t *testing.T) {
	q, err := QuoteFill(levels([2]string{"4", "40"}), d("10"), FillStrict)
	require.NoError(t, err)
	assert.True(t, q.AveragePrice.Equal(d("4")))
	assert.True(t, q.FilledQuantity.Equal(d("10")))
}

func TestQuoteFill_InsufficientLiquidity(t *testing.T) {
	book := levels([2]string{"10", "100"}, [2]string{"11", "100"})

	q, err := QuoteFill(book, d("25"), FillStrict)
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
	assert.True(t, q.AveragePrice.IsZero())
	assert.True(t, q.FilledQuantity.LessThan(d("25")))
}

func TestQuoteFill_LegacySkew(t *testing.T) {
	book := levels([2]string{"10", "100"})

	q, err := QuoteFill(book, d("20"), FillLegacySkew)
	require.NoError(t, err)
	assert.True(t, q.Partial)
	assert.True(t, q.FilledQuantity.Equal(d("10")))
	// 100 notional spread over the full 20 target understates the price.
	assert.True(t, q.AveragePrice.Equal(d("5")))
}

func TestQuoteFill_InvalidInput(t *testing.T) {
	_, err := QuoteFill(levels([2]string{"10", "100"}), decimal.Zero, FillStrict)
	require.ErrorIs(t, err, domain.ErrInvalidTarget)

	q, err := QuoteFill(levels([2]string{"0", "100"}, [2]string{"10", "-1"}, [2]string{"20", "200"}), d("5"), FillStrict)
	require.NoError(t, err)
	assert.True(t, q.AveragePrice.Equal(d("20")))
}

func TestQuoteBook(t *testing.T) {
	snap := domain.DepthSnapshot{
		Venue: "cex",
		Bids:  levels([2]string{"100", "500"}, [2]string{"99", "990"}),
		Asks:  levels([2]string{"101", "505"}, [2]string{"102", "1020"}),
	}

	q, err := QuoteBook(snap, d("10"), FillStrict)
	require.NoError(t, err)
	assert.Equal(t, "cex", q.Venue)
	assert.Equal(t, "99.5", q.Bid.String())
	assert.Equal(t, "101.5", q.Ask.String())

	_, err = QuoteBook(snap, d("100"), FillStrict)
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestTopOfBook(t *testing.T) {
	snap := domain.DepthSnapshot{
		Venue: "spot",
		Bids:  levels([2]string{"100", "1"}),
		Asks:  levels([2]string{"101", "1"}),
	}
	q, err := TopOfBook(snap)
	require.NoError(t, err)
	assert.True(t, q.Bid.Equal(d("100")))
	assert.True(t, q.Ask.Equal(d("101")))

	_, err = TopOfBook(domain.DepthSnapshot{Venue: "spot", Bids: snap.Bids})
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}
