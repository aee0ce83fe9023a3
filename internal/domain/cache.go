package domain

import (
	"context"
	"time"
)

// QuoteCache keeps the most recent quote each venue produced for a pair.
type QuoteCache interface {
	SetQuote(ctx context.Context, pair string, q VenueQuote) error
	GetQuotes(ctx context.Context, pair string) (map[string]VenueQuote, error)
}

// ResultCache keeps the latest result of every comparison and the latest
// funding rate of every pair.
type ResultCache interface {
	SetResult(ctx context.Context, r ComparisonResult) error
	GetResult(ctx context.Context, comparisonID string) (ComparisonResult, error)
	SetFunding(ctx context.Context, pair string, f FundingRate) error
	GetFunding(ctx context.Context, pair string) (FundingRate, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channel names.
const (
	ChannelSpreads = "spreads"
	ChannelAlerts  = "alerts"
	ChannelFunding = "funding"
	ChannelQuotes  = "quotes"

	StreamAlerts = "alerts:history"
)

// DefaultResultTTL bounds how long a cached result stays readable after its
// driver stops producing new ones.
const DefaultResultTTL = 10 * time.Minute
