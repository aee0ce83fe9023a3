package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// QuoteService keeps the last quote of every venue in the cache and mirrors
// it onto the quotes channel.
type QuoteService struct {
	cache  domain.QuoteCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewQuoteService creates a QuoteService. bus may be nil.
func NewQuoteService(cache domain.QuoteCache, bus domain.SignalBus, logger *slog.Logger) *QuoteService {
	return &QuoteService{
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "quote_service")),
	}
}

type quoteEvent struct {
	Pair      string    `json:"pair"`
	Venue     string    `json:"venue"`
	Bid       string    `json:"bid"`
	Ask       string    `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordQuote stores q. Failures are logged; the tick that produced q goes
// on regardless.
func (s *QuoteService) RecordQuote(ctx context.Context, pair string, q domain.VenueQuote) {
	if err := s.cache.SetQuote(ctx, pair, q); err != nil {
		s.logger.WarnContext(ctx, "cache quote failed",
			slog.String("pair", pair),
			slog.String("venue", q.Venue),
			slog.String("error", err.Error()),
		)
	}
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(quoteEvent{
		Pair:      pair,
		Venue:     q.Venue,
		Bid:       q.Bid.String(),
		Ask:       q.Ask.String(),
		Timestamp: q.Timestamp,
	})
	if err := s.bus.Publish(ctx, domain.ChannelQuotes, evt); err != nil {
		s.logger.WarnContext(ctx, "publish quote failed",
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
	}
}

// GetQuotes returns the cached quote of every venue of pair.
func (s *QuoteService) GetQuotes(ctx context.Context, pair string) (map[string]domain.VenueQuote, error) {
	quotes, err := s.cache.GetQuotes(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("quote_service: get quotes for %q: %w", pair, err)
	}
	return quotes, nil
}
