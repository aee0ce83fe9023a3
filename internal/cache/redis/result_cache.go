package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// ResultCache implements domain.ResultCache with plain JSON string keys:
// "result:{comparisonID}" and "funding:{pair}".
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultCache creates a ResultCache backed by the given Client.
func NewResultCache(c *Client) *ResultCache {
	return &ResultCache{rdb: c.rdb, ttl: c.resultTTL}
}

func resultKey(id string) string    { return "result:" + id }
func fundingKey(pair string) string { return "funding:" + pair }

// SetResult stores the latest result of a comparison.
func (rc *ResultCache) SetResult(ctx context.Context, r domain.ComparisonResult) error {
	return rc.set(ctx, resultKey(r.ComparisonID), r)
}

// GetResult returns the latest result of a comparison, or domain.ErrNotFound.
func (rc *ResultCache) GetResult(ctx context.Context, comparisonID string) (domain.ComparisonResult, error) {
	var r domain.ComparisonResult
	err := rc.get(ctx, resultKey(comparisonID), &r)
	return r, err
}

// SetFunding stores the latest funding rate of a pair.
func (rc *ResultCache) SetFunding(ctx context.Context, pair string, f domain.FundingRate) error {
	return rc.set(ctx, fundingKey(pair), f)
}

// GetFunding returns the latest funding rate of a pair, or domain.ErrNotFound.
func (rc *ResultCache) GetFunding(ctx context.Context, pair string) (domain.FundingRate, error) {
	var f domain.FundingRate
	err := rc.get(ctx, fundingKey(pair), &f)
	return f, err
}

func (rc *ResultCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := rc.rdb.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (rc *ResultCache) get(ctx context.Context, key string, v any) error {
	data, err := rc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultCache = (*ResultCache)(nil)
