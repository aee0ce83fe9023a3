// Package redis backs the quote cache, the result cache and the signal bus
// with go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// ResultTTL bounds how long cached results and quotes stay readable.
	ResultTTL time.Duration
	// StreamMaxLen caps stream length through XADD MAXLEN ~.
	StreamMaxLen int64
}

// Client wraps a go-redis Client and the settings shared by the adapters
// built on it.
type Client struct {
	rdb          *redis.Client
	resultTTL    time.Duration
	streamMaxLen int64
}

// New creates a new Redis Client, pings it to verify connectivity, and returns
// the wrapper. It returns an error if the connection cannot be established.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return wrap(rdb, cfg), nil
}

func wrap(rdb *redis.Client, cfg ClientConfig) *Client {
	c := &Client{rdb: rdb, resultTTL: cfg.ResultTTL, streamMaxLen: cfg.StreamMaxLen}
	if c.resultTTL <= 0 {
		c.resultTTL = domain.DefaultResultTTL
	}
	if c.streamMaxLen <= 0 {
		c.streamMaxLen = defaultStreamMaxLen
	}
	return c
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
