package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/metrics"
)

// BreakerSettings configures the per-venue circuit breaker.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

type breakerFetcher struct {
	next QuoteFetcher
	cb   *gobreaker.CircuitBreaker[domain.VenueQuote]
}

// WithBreaker wraps f so that after ConsecutiveFailures venue failures in a
// row further fetches fail fast with domain.ErrVenueUnavailable until the
// breaker's Timeout elapses. A thin book does not count as a failure.
func WithBreaker(f QuoteFetcher, s BreakerSettings, logger *slog.Logger) QuoteFetcher {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	log := logger.With(slog.String("component", "breaker"), slog.String("venue", f.Name()))
	metrics.BreakerState.WithLabelValues(f.Name()).Set(0)

	cb := gobreaker.NewCircuitBreaker[domain.VenueQuote](gobreaker.Settings{
		Name:        f.Name(),
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrInsufficientLiquidity) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &breakerFetcher{next: f, cb: cb}
}

func (b *breakerFetcher) Name() string { return b.next.Name() }

func (b *breakerFetcher) FetchQuote(ctx context.Context) (domain.VenueQuote, error) {
	q, err := b.cb.Execute(func() (domain.VenueQuote, error) {
		return b.next.FetchQuote(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.VenueQuote{}, fmt.Errorf("feed: %s: %w: %w", b.next.Name(), err, domain.ErrVenueUnavailable)
	}
	return q, err
}
