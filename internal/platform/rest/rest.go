// Package rest is the JSON-over-HTTP GET transport shared by the venue
// adapters. Every failure wraps domain.ErrVenueUnavailable.
package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// maxErrBody caps how much of a failed response is kept in the error.
const maxErrBody = 256

const defaultTimeout = 5 * time.Second

// Options configures a Getter.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// RateLimit is requests per second; 0 disables pacing.
	RateLimit float64
	Burst     int
}

// Getter issues paced GET requests with a fixed per-request timeout.
type Getter struct {
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGetter creates a Getter.
func NewGetter(opts Options) *Getter {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Getter{
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, max(opts.Burst, 1)),
	}
}

// Get fetches rawURL and returns the body of a 2xx response.
func (g *Getter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w: %w", err, domain.ErrVenueUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w: %w", err, domain.ErrVenueUnavailable)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %w", err, domain.ErrVenueUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", err, domain.ErrVenueUnavailable)
	}
	if err := CheckStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// CheckStatus maps non-2xx HTTP status codes to ErrVenueUnavailable, keeping
// the start of the body for context.
func CheckStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > maxErrBody {
		snippet = snippet[:maxErrBody]
	}
	if statusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited: %s: %w", snippet, domain.ErrVenueUnavailable)
	}
	return fmt.Errorf("HTTP %d: %s: %w", statusCode, snippet, domain.ErrVenueUnavailable)
}
