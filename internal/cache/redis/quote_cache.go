package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// QuoteCache implements domain.QuoteCache with one hash per pair at
// "quotes:{pair}", one JSON-encoded field per venue. The hash expires
// ResultTTL after its last write.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.rdb, ttl: c.resultTTL}
}

func quotesKey(pair string) string {
	return "quotes:" + pair
}

// SetQuote stores q as the latest quote of its venue.
func (qc *QuoteCache) SetQuote(ctx context.Context, pair string, q domain.VenueQuote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s/%s: %w", pair, q.Venue, err)
	}
	key := quotesKey(pair)
	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, q.Venue, data)
	pipe.Expire(ctx, key, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s/%s: %w", pair, q.Venue, err)
	}
	return nil
}

// GetQuotes returns every cached venue quote of pair, or domain.ErrNotFound
// when none are cached. Undecodable fields are skipped.
func (qc *QuoteCache) GetQuotes(ctx context.Context, pair string) (map[string]domain.VenueQuote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quotesKey(pair)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", pair, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}
	out := make(map[string]domain.VenueQuote, len(vals))
	for venue, raw := range vals {
		var q domain.VenueQuote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			continue
		}
		out[venue] = q
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
