package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction identifies which side of a cross-venue comparison a spread
// belongs to.
type Direction string

const (
	// DirectionBuy is the opportunity to buy on venue B and sell on venue A.
	DirectionBuy Direction = "BUY"
	// DirectionSell is the opportunity to buy on venue A and sell on venue B.
	DirectionSell Direction = "SELL"
)

// SpreadResult is a signed spread for one direction.
type SpreadResult struct {
	Value     decimal.Decimal `json:"value"`
	Direction Direction       `json:"direction"`
}

// AlertLevel is an ordered severity. NEGATIVE sits below NONE so that a
// larger spread never maps to a lower level.
type AlertLevel int

const (
	LevelNegative AlertLevel = iota
	LevelNone
	LevelPositive
	LevelLarge
	LevelMedium
	LevelHigh
)

var levelNames = map[AlertLevel]string{
	LevelNegative: "NEGATIVE",
	LevelNone:     "NONE",
	LevelPositive: "POSITIVE",
	LevelLarge:    "LARGE",
	LevelMedium:   "MEDIUM",
	LevelHigh:     "HIGH",
}

func (l AlertLevel) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("AlertLevel(%d)", int(l))
}

// MarshalText encodes the level by name.
func (l AlertLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name, case-insensitively.
func (l *AlertLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseAlertLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseAlertLevel converts a level name such as "high" into an AlertLevel.
func ParseAlertLevel(s string) (AlertLevel, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for lvl, name := range levelNames {
		if name == want {
			return lvl, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown alert level %q", s)
}

// SoundCue describes the audio the rendering surface should play for a
// classification.
type SoundCue struct {
	ShouldPlay bool    `json:"shouldPlay"`
	Volume     float64 `json:"volume"`
	Frequency  float64 `json:"frequency"`
}

// Silent is the cue for levels that never play sound.
var Silent = SoundCue{}

// Tier is one row of a threshold table: spreads at or above LowerBound map to
// Level.
type Tier struct {
	LowerBound decimal.Decimal
	Level      AlertLevel
	Sound      SoundCue
}

// Classification is the level and sound chosen for one spread.
type Classification struct {
	Level AlertLevel `json:"level"`
	Sound SoundCue   `json:"sound"`
}

// ComparisonResult is everything one comparison produced in one tick. When
// DataError is non-empty the spreads and levels are zero values.
type ComparisonResult struct {
	ComparisonID string         `json:"comparisonId"`
	Pair         string         `json:"pair"`
	VenueA       string         `json:"venueA"`
	VenueB       string         `json:"venueB"`
	BuySpread    SpreadResult   `json:"buySpread"`
	SellSpread   SpreadResult   `json:"sellSpread"`
	BuyLevel     Classification `json:"buyLevel"`
	SellLevel    Classification `json:"sellLevel"`
	DataError    string         `json:"error,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// OK reports whether both quotes were present and spreads were computed.
func (r ComparisonResult) OK() bool {
	return r.DataError == ""
}

// AlertRecord is a persisted level transition for one comparison direction.
type AlertRecord struct {
	ID           string          `json:"id"`
	Pair         string          `json:"pair"`
	ComparisonID string          `json:"comparisonId"`
	Direction    Direction       `json:"direction"`
	Level        AlertLevel      `json:"level"`
	PrevLevel    AlertLevel      `json:"prevLevel"`
	Spread       decimal.Decimal `json:"spread"`
	DetectedAt   time.Time       `json:"detectedAt"`
}
