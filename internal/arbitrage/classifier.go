package arbitrage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// TierTable is a validated threshold table. Tiers are held highest bound
// first; the first tier whose bound the value reaches wins.
type TierTable struct {
	name  string
	tiers []domain.Tier
}

// NewTierTable sorts tiers by lower bound and rejects tables that cannot be
// classified monotonically: duplicate bounds (the later tier is shadowed),
// levels that fall as bounds rise, and explicit NEGATIVE tiers.
func NewTierTable(name string, tiers []domain.Tier) (*TierTable, error) {
	sorted := make([]domain.Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LowerBound.GreaterThan(sorted[j].LowerBound)
	})

	var problems []string
	for i, t := range sorted {
		if t.Level <= domain.LevelNegative {
			problems = append(problems, fmt.Sprintf("tier >= %s: level %s is reserved for unmatched negative spreads",
				t.LowerBound.String(), t.Level))
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.LowerBound.Equal(t.LowerBound) {
			problems = append(problems, fmt.Sprintf("tier >= %s (%s) is unreachable: shadowed by %s at the same bound",
				t.LowerBound.String(), t.Level, prev.Level))
			continue
		}
		if t.Level > prev.Level {
			problems = append(problems, fmt.Sprintf("tier >= %s maps to %s, above %s at the higher bound %s",
				t.LowerBound.String(), t.Level, prev.Level, prev.LowerBound.String()))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("arbitrage: table %q: %w: %s", name, domain.ErrInvalidTierTable, strings.Join(problems, "; "))
	}
	return &TierTable{name: name, tiers: sorted}, nil
}

// Name returns the table name.
func (t *TierTable) Name() string { return t.name }

// Tiers returns a copy of the tiers, highest bound first.
func (t *TierTable) Tiers() []domain.Tier {
	out := make([]domain.Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Classify maps v to a level. Unmatched negative values are NEGATIVE and
// unmatched non-negative values are NONE; neither plays sound.
func (t *TierTable) Classify(v decimal.Decimal) domain.Classification {
	for _, tier := range t.tiers {
		if v.GreaterThanOrEqual(tier.LowerBound) {
			return domain.Classification{Level: tier.Level, Sound: tier.Sound}
		}
	}
	if v.IsNegative() {
		return domain.Classification{Level: domain.LevelNegative, Sound: domain.Silent}
	}
	return domain.Classification{Level: domain.LevelNone, Sound: domain.Silent}
}

// Classifier holds one table per direction.
type Classifier struct {
	buy  *TierTable
	sell *TierTable
}

// NewClassifier returns a classifier. A nil sell table reuses buy.
func NewClassifier(buy, sell *TierTable) (*Classifier, error) {
	if buy == nil {
		return nil, errors.New("arbitrage: classifier: buy table is required")
	}
	if sell == nil {
		sell = buy
	}
	return &Classifier{buy: buy, sell: sell}, nil
}

// Classify picks the table for s.Direction and classifies s.Value.
func (c *Classifier) Classify(s domain.SpreadResult) domain.Classification {
	if s.Direction == domain.DirectionSell {
		return c.sell.Classify(s.Value)
	}
	return c.buy.Classify(s.Value)
}

// Asymmetries describes every way the buy and sell tables differ. Differences
// are legal but often copy-paste slips, so callers log them for review.
func Asymmetries(buy, sell *TierTable) []string {
	if buy == nil || sell == nil || buy == sell {
		return nil
	}
	var out []string
	if len(buy.tiers) != len(sell.tiers) {
		out = append(out, fmt.Sprintf("%q has %d tiers, %q has %d",
			buy.name, len(buy.tiers), sell.name, len(sell.tiers)))
	}
	n := min(len(buy.tiers), len(sell.tiers))
	for i := 0; i < n; i++ {
		b, s := buy.tiers[i], sell.tiers[i]
		if b.Level != s.Level {
			out = append(out, fmt.Sprintf("tier %d: level %s vs %s", i, b.Level, s.Level))
		}
		if !b.LowerBound.Equal(s.LowerBound) {
			out = append(out, fmt.Sprintf("tier %d (%s): bound %s vs %s", i, b.Level, b.LowerBound.String(), s.LowerBound.String()))
		}
		if b.Sound.ShouldPlay != s.Sound.ShouldPlay {
			out = append(out, fmt.Sprintf("tier %d (%s): sound %t vs %t", i, b.Level, b.Sound.ShouldPlay, s.Sound.ShouldPlay))
		}
	}
	return out
}
