// Package cex talks to a centralized exchange's public market-data API:
// futures and spot depth over REST, the perpetual funding rate, and a one-shot
// depth snapshot over WebSocket.
package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform/rest"
)

const defaultVenue = "mexc"

// Config holds the REST endpoints. Each URL may contain a {symbol}
// placeholder; Proxy is prepended to the final URL when set.
type Config struct {
	// Venue names the exchange on funding rates; it defaults to "mexc".
	Venue           string
	FuturesDepthURL string
	SpotDepthURL    string
	FundingRateURL  string
	Proxy           string
	UserAgent       string
	Timeout         time.Duration
	// RateLimit is requests per second across all endpoints; 0 disables it.
	RateLimit float64
	Burst     int
}

// Client is the REST client for the exchange's public endpoints.
type Client struct {
	cfg  Config
	http *rest.Getter
}

// NewClient creates a REST client. Every request is bounded by cfg.Timeout.
func NewClient(cfg Config) *Client {
	if cfg.Venue == "" {
		cfg.Venue = defaultVenue
	}
	return &Client{
		cfg: cfg,
		http: rest.NewGetter(rest.Options{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}),
	}
}

// FuturesDepth returns the contract order book for symbol. Level sizes are
// already notional.
func (c *Client) FuturesDepth(ctx context.Context, symbol string) (domain.DepthSnapshot, error) {
	body, err := c.get(ctx, c.cfg.FuturesDepthURL, symbol)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: futures depth %s: %w", symbol, err)
	}

	var resp futuresDepthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: decode futures depth %s: %w: %w", symbol, err, domain.ErrVenueUnavailable)
	}
	if resp.Data == nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: futures depth %s: missing data (code %d %s): %w",
			symbol, resp.Code, resp.Message, domain.ErrVenueUnavailable)
	}

	bids, asks, err := sides(resp.Data.Bids, resp.Data.Asks, false)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: futures depth %s: %w", symbol, err)
	}
	ts := time.Now()
	if resp.Data.Timestamp > 0 {
		ts = time.UnixMilli(resp.Data.Timestamp)
	}
	return domain.DepthSnapshot{Symbol: symbol, Bids: bids, Asks: asks, Timestamp: ts}, nil
}

// SpotDepth returns the spot order book for symbol with sizes converted from
// base quantity to notional.
func (c *Client) SpotDepth(ctx context.Context, symbol string) (domain.DepthSnapshot, error) {
	body, err := c.get(ctx, c.cfg.SpotDepthURL, symbol)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: spot depth %s: %w", symbol, err)
	}

	var resp spotDepthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: decode spot depth %s: %w: %w", symbol, err, domain.ErrVenueUnavailable)
	}

	bids, asks, err := sides(resp.Bids, resp.Asks, true)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("cex: spot depth %s: %w", symbol, err)
	}
	return domain.DepthSnapshot{Symbol: symbol, Bids: bids, Asks: asks, Timestamp: time.Now()}, nil
}

// FundingRate returns the current funding rate and next settlement time.
func (c *Client) FundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	body, err := c.get(ctx, c.cfg.FundingRateURL, symbol)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("cex: funding rate %s: %w", symbol, err)
	}

	var resp fundingRateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.FundingRate{}, fmt.Errorf("cex: decode funding rate %s: %w: %w", symbol, err, domain.ErrVenueUnavailable)
	}
	if resp.Data == nil || resp.Data.NextSettleTime <= 0 {
		return domain.FundingRate{}, fmt.Errorf("cex: funding rate %s: missing data: %w", symbol, domain.ErrVenueUnavailable)
	}

	return domain.FundingRate{
		Venue:      c.cfg.Venue,
		Symbol:     symbol,
		Rate:       resp.Data.FundingRate,
		NextSettle: time.UnixMilli(resp.Data.NextSettleTime),
		FetchedAt:  time.Now(),
	}, nil
}

// endpoint expands the {symbol} placeholder and applies the proxy prefix.
func (c *Client) endpoint(tmpl, symbol string) string {
	u := strings.ReplaceAll(tmpl, "{symbol}", url.PathEscape(symbol))
	return c.cfg.Proxy + u
}

func (c *Client) get(ctx context.Context, tmpl, symbol string) ([]byte, error) {
	if tmpl == "" {
		return nil, fmt.Errorf("endpoint not configured: %w", domain.ErrVenueUnavailable)
	}
	return c.http.Get(ctx, c.endpoint(tmpl, symbol))
}
