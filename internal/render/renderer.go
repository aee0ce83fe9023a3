// Package render defines where comparison results go once a tick has
// produced them, and the session state that gates sounds between ticks.
package render

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Renderer consumes the result of one comparison in one tick.
type Renderer interface {
	Render(ctx context.Context, r domain.ComparisonResult) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(ctx context.Context, r domain.ComparisonResult) error

func (f RendererFunc) Render(ctx context.Context, r domain.ComparisonResult) error {
	return f(ctx, r)
}

// Payload is the client-facing shape of a result.
type Payload struct {
	ComparisonID string            `json:"comparisonId"`
	Pair         string            `json:"pair"`
	VenueA       string            `json:"venueA"`
	VenueB       string            `json:"venueB"`
	BuySpread    decimal.Decimal   `json:"buySpread"`
	SellSpread   decimal.Decimal   `json:"sellSpread"`
	BuyLevel     domain.AlertLevel `json:"buyLevel"`
	SellLevel    domain.AlertLevel `json:"sellLevel"`
	BuySound     domain.SoundCue   `json:"buySound"`
	SellSound    domain.SoundCue   `json:"sellSound"`
	Error        string            `json:"error,omitempty"`
	Missing      []string          `json:"missing,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// Escalation is a level change for one direction of a comparison.
type Escalation struct {
	Direction domain.Direction
	From      domain.AlertLevel
	To        domain.AlertLevel
	Spread    decimal.Decimal
}

// Gate builds the payload for r and advances the session. Sounds pass only
// when the session allows them; data-error results are always silent and
// leave the recorded levels untouched. The returned escalations list every
// direction whose level rose since the previous result.
func Gate(s *Session, r domain.ComparisonResult, now time.Time) (Payload, []Escalation) {
	p := Payload{
		ComparisonID: r.ComparisonID,
		Pair:         r.Pair,
		VenueA:       r.VenueA,
		VenueB:       r.VenueB,
		Error:        r.DataError,
		Missing:      r.Missing,
		Timestamp:    r.Timestamp,
	}
	if !r.OK() {
		p.BuyLevel, p.SellLevel = domain.LevelNone, domain.LevelNone
		return p, nil
	}

	p.BuySpread, p.SellSpread = r.BuySpread.Value, r.SellSpread.Value
	p.BuyLevel, p.SellLevel = r.BuyLevel.Level, r.SellLevel.Level

	var escalations []Escalation
	for _, side := range []struct {
		dir    domain.Direction
		class  domain.Classification
		spread decimal.Decimal
		sound  *domain.SoundCue
	}{
		{domain.DirectionBuy, r.BuyLevel, r.BuySpread.Value, &p.BuySound},
		{domain.DirectionSell, r.SellLevel, r.SellSpread.Value, &p.SellSound},
	} {
		key := Key(r.ComparisonID, side.dir)
		prev, seen := s.Transition(key, side.class.Level)
		if side.class.Level > domain.LevelNone && (!seen || side.class.Level > prev) {
			from := prev
			if !seen {
				from = domain.LevelNone
			}
			escalations = append(escalations, Escalation{
				Direction: side.dir, From: from, To: side.class.Level, Spread: side.spread,
			})
		}
		if s.ShouldSound(key, side.class.Sound, now) {
			*side.sound = side.class.Sound
		}
	}
	return p, escalations
}

// LogRenderer writes every result as a structured log line.
type LogRenderer struct {
	logger *slog.Logger
}

// NewLogRenderer creates a LogRenderer.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger.With(slog.String("component", "render"))}
}

func (l *LogRenderer) Render(ctx context.Context, r domain.ComparisonResult) error {
	if !r.OK() {
		l.logger.WarnContext(ctx, "comparison data error",
			slog.String("comparison", r.ComparisonID),
			slog.String("pair", r.Pair),
			slog.String("error", r.DataError),
		)
		return nil
	}
	l.logger.DebugContext(ctx, "comparison",
		slog.String("comparison", r.ComparisonID),
		slog.String("pair", r.Pair),
		slog.String("buy", r.BuySpread.Value.String()),
		slog.String("buy_level", r.BuyLevel.Level.String()),
		slog.String("sell", r.SellSpread.Value.String()),
		slog.String("sell_level", r.SellLevel.Level.String()),
	)
	return nil
}

// Multi fans a result out to several renderers. Every renderer runs even
// when an earlier one fails; the failures are joined.
type Multi []Renderer

func (m Multi) Render(ctx context.Context, r domain.ComparisonResult) error {
	var errs []error
	for _, rr := range m {
		if err := rr.Render(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
