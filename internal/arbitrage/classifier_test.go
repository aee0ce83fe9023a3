package arbitrage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func beep(vol, freq float64) domain.SoundCue {
	return domain.SoundCue{ShouldPlay: true, Volume: vol, Frequency: freq}
}

func standardTiers() []domain.Tier {
	// Deliberately out of order; NewTierTable sorts.
	return []domain.Tier{
		{LowerBound: d("0"), Level: domain.LevelPositive},
		{LowerBound: d("3"), Level: domain.LevelHigh, Sound: beep(0.5, 880)},
		{LowerBound: d("1"), Level: domain.LevelLarge},
		{LowerBound: d("2"), Level: domain.LevelMedium, Sound: beep(0.3, 660)},
	}
}

func mustTable(t *testing.T, name string, tiers []domain.Tier) *TierTable {
	t.Helper()
	tbl, err := NewTierTable(name, tiers)
	require.NoError(t, err)
	return tbl
}

func TestTierTable_Classify(t *testing.T) {
	tbl := mustTable(t, "std", standardTiers())

	tests := []struct {
		value string
		level domain.AlertLevel
		sound bool
	}{
		{"5", domain.LevelHigh, true},
		{"3", domain.LevelHigh, true},
		{"2.5", domain.LevelMedium, true},
		{"1", domain.LevelLarge, false},
		{"0.01", domain.LevelPositive, false},
		{"0", domain.LevelPositive, false},
		{"-0.01", domain.LevelNegative, false},
		{"-2", domain.LevelNegative, false},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			c := tbl.Classify(d(tc.value))
			assert.Equal(t, tc.level, c.Level)
			assert.Equal(t, tc.sound, c.Sound.ShouldPlay)
		})
	}
}

func TestTierTable_NoneBelowLowestPositiveBound(t *testing.T) {
	tbl := mustTable(t, "sparse", []domain.Tier{{LowerBound: d("0.5"), Level: domain.LevelHigh, Sound: beep(1, 440)}})
	assert.Equal(t, domain.LevelNone, tbl.Classify(d("0.2")).Level)
	assert.Equal(t, domain.LevelNegative, tbl.Classify(d("-0.2")).Level)
	assert.Equal(t, domain.Silent, tbl.Classify(d("-0.2")).Sound)
}

func TestTierTable_Monotonic(t *testing.T) {
	tbl := mustTable(t, "std", standardTiers())

	prev := domain.LevelNegative
	for v := d("-5"); v.LessThanOrEqual(d("5")); v = v.Add(d("0.05")) {
		lvl := tbl.Classify(v).Level
		require.GreaterOrEqual(t, int(lvl), int(prev), "level fell at %s", v.String())
		prev = lvl
	}
}

func TestNewTierTable_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		tiers []domain.Tier
		want  string
	}{
		{
			name: "shadowed",
			tiers: []domain.Tier{
				{LowerBound: d("1"), Level: domain.LevelHigh},
				{LowerBound: d("1"), Level: domain.LevelLarge},
			},
			want: "unreachable",
		},
		{
			name: "inverted",
			tiers: []domain.Tier{
				{LowerBound: d("2"), Level: domain.LevelPositive},
				{LowerBound: d("1"), Level: domain.LevelHigh},
			},
			want: "above",
		},
		{
			name:  "negative tier",
			tiers: []domain.Tier{{LowerBound: d("-1"), Level: domain.LevelNegative}},
			want:  "reserved",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTierTable(tc.name, tc.tiers)
			require.ErrorIs(t, err, domain.ErrInvalidTierTable)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestClassifier_PerDirection(t *testing.T) {
	buy := mustTable(t, "buy", standardTiers())
	sell := mustTable(t, "sell", []domain.Tier{{LowerBound: d("10"), Level: domain.LevelHigh}})

	c, err := NewClassifier(buy, sell)
	require.NoError(t, err)

	v := d("4")
	assert.Equal(t, domain.LevelHigh, c.Classify(domain.SpreadResult{Value: v, Direction: domain.DirectionBuy}).Level)
	assert.Equal(t, domain.LevelNone, c.Classify(domain.SpreadResult{Value: v, Direction: domain.DirectionSell}).Level)

	shared, err := NewClassifier(buy, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelHigh, shared.Classify(domain.SpreadResult{Value: v, Direction: domain.DirectionSell}).Level)

	_, err = NewClassifier(nil, sell)
	require.Error(t, err)
}

func TestAsymmetries(t *testing.T) {
	buy := mustTable(t, "buy", standardTiers())
	assert.Empty(t, Asymmetries(buy, buy))
	assert.Empty(t, Asymmetries(buy, mustTable(t, "buy2", standardTiers())))

	sellTiers := standardTiers()
	sellTiers[1].LowerBound = decimal.NewFromFloat(3.5)
	sellTiers = sellTiers[:3]
	notes := Asymmetries(buy, mustTable(t, "sell", sellTiers))
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[0], "tiers")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustTable(t, "b", standardTiers())))
	require.NoError(t, r.Register(mustTable(t, "a", standardTiers())))
	require.Error(t, r.Register(mustTable(t, "a", standardTiers())))

	assert.Equal(t, []string{"a", "b"}, r.List())
	_, err := r.Get("missing")
	require.Error(t, err)
	tbl, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", tbl.Name())
}
