package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func newComparison(t *testing.T) *Comparison {
	t.Helper()
	c, err := NewClassifier(mustTable(t, "std", standardTiers()), nil)
	require.NoError(t, err)
	return &Comparison{ID: "eth:cex-dex", Pair: "eth", A: "cex", B: "dex", Basis: BasisAbsolute, Classifier: c}
}

func TestComparison_CexVersusDex(t *testing.T) {
	cmp := newComparison(t)
	cex := quote("cex", "100", "101")
	// The DEX sells at 99 and buys at 98.
	dex := quote("dex", "99", "98")
	now := time.Unix(1700000000, 0)

	res := cmp.Evaluate(map[string]*domain.VenueQuote{"cex": &cex, "dex": &dex}, now)
	require.True(t, res.OK())
	assert.Equal(t, now, res.Timestamp)

	assert.True(t, res.BuySpread.Value.Equal(d("2")))
	assert.Equal(t, domain.LevelMedium, res.BuyLevel.Level)
	assert.True(t, res.BuyLevel.Sound.ShouldPlay)

	assert.True(t, res.SellSpread.Value.Equal(d("-2")))
	assert.Equal(t, domain.LevelNegative, res.SellLevel.Level)
	assert.False(t, res.SellLevel.Sound.ShouldPlay)
}

func TestComparison_MissingQuote(t *testing.T) {
	cmp := newComparison(t)
	cex := quote("cex", "100", "101")

	res := cmp.Evaluate(map[string]*domain.VenueQuote{"cex": &cex, "dex": nil}, time.Now())
	assert.False(t, res.OK())
	assert.Equal(t, []string{"dex"}, res.Missing)
	assert.Contains(t, res.DataError, "data error")
	assert.True(t, res.BuySpread.Value.IsZero())

	res = cmp.Evaluate(map[string]*domain.VenueQuote{}, time.Now())
	assert.Equal(t, []string{"cex", "dex"}, res.Missing)
}
