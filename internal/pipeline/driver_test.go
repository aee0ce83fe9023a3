package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/feed"
	"github.com/alanyoungcy/arbwatch/internal/render"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recorder struct {
	mu      sync.Mutex
	results []domain.ComparisonResult
}

func (r *recorder) Render(_ context.Context, res domain.ComparisonResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func fixed(name, bid, ask string) feed.QuoteFetcher {
	return feed.FetcherFunc(name, func(context.Context) (domain.VenueQuote, error) {
		return domain.VenueQuote{Venue: name, Bid: d(bid), Ask: d(ask)}, nil
	})
}

func failing(name string) feed.QuoteFetcher {
	return feed.FetcherFunc(name, func(context.Context) (domain.VenueQuote, error) {
		return domain.VenueQuote{}, domain.ErrVenueUnavailable
	})
}

func comparison(t *testing.T, id, a, b string) *arbitrage.Comparison {
	t.Helper()
	table, err := arbitrage.NewTierTable("std", []domain.Tier{
		{LowerBound: d("3"), Level: domain.LevelHigh, Sound: domain.SoundCue{ShouldPlay: true, Volume: 1, Frequency: 1000}},
		{LowerBound: d("2"), Level: domain.LevelMedium, Sound: domain.SoundCue{ShouldPlay: true, Volume: 0.5, Frequency: 800}},
		{LowerBound: d("1"), Level: domain.LevelLarge},
		{LowerBound: d("0"), Level: domain.LevelPositive},
	})
	require.NoError(t, err)
	cl, err := arbitrage.NewClassifier(table, nil)
	require.NoError(t, err)
	return &arbitrage.Comparison{ID: id, Pair: "sol", A: a, B: b, Classifier: cl}
}

func TestTick_CexVersusDex(t *testing.T) {
	rec := &recorder{}
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: time.Second},
		[]feed.QuoteFetcher{fixed("cex", "100", "101"), fixed("dex", "99", "98")},
		[]*arbitrage.Comparison{comparison(t, "cex-dex", "cex", "dex")},
		rec, discard())

	report := drv.Tick(context.Background())
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.True(t, res.BuySpread.Value.Equal(d("2")))
	assert.Equal(t, domain.LevelMedium, res.BuyLevel.Level)
	assert.True(t, res.BuyLevel.Sound.ShouldPlay)
	assert.True(t, res.SellSpread.Value.Equal(d("-2")))
	assert.Equal(t, domain.LevelNegative, res.SellLevel.Level)
	assert.False(t, res.SellLevel.Sound.ShouldPlay)
	assert.Equal(t, 1, rec.count())
}

func TestTick_IsolatesFailures(t *testing.T) {
	panicky := feed.FetcherFunc("panicky", func(context.Context) (domain.VenueQuote, error) {
		panic("boom")
	})
	rec := &recorder{}
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: time.Second},
		[]feed.QuoteFetcher{fixed("a", "100", "101"), fixed("b", "100", "100.5"), failing("c"), panicky},
		[]*arbitrage.Comparison{
			comparison(t, "a-b", "a", "b"),
			comparison(t, "a-c", "a", "c"),
			comparison(t, "b-panicky", "b", "panicky"),
		},
		rec, discard())

	report := drv.Tick(context.Background())
	assert.ElementsMatch(t, []string{"c", "panicky"}, report.Failed)
	assert.Nil(t, report.Quotes["c"])
	require.Len(t, report.Results, 3)

	assert.True(t, report.Results[0].OK())
	assert.Equal(t, "data error: c unavailable", report.Results[1].DataError)
	assert.Equal(t, []string{"panicky"}, report.Results[2].Missing)
	assert.Equal(t, 3, rec.count())
}

func TestTick_TimeoutBoundsSlowVenue(t *testing.T) {
	slow := feed.FetcherFunc("slow", func(ctx context.Context) (domain.VenueQuote, error) {
		<-ctx.Done()
		return domain.VenueQuote{}, ctx.Err()
	})
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: time.Second, FetchTimeout: 20 * time.Millisecond},
		[]feed.QuoteFetcher{slow, fixed("fast", "1", "2")},
		[]*arbitrage.Comparison{comparison(t, "c", "fast", "slow")},
		&recorder{}, discard())

	start := time.Now()
	report := drv.Tick(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"slow"}, report.Failed)
	assert.NotNil(t, report.Quotes["fast"])
}

func TestTick_RendererPanicIsRecovered(t *testing.T) {
	var rendered atomic.Int32
	r := render.RendererFunc(func(_ context.Context, res domain.ComparisonResult) error {
		if res.ComparisonID == "bad" {
			panic("render exploded")
		}
		rendered.Add(1)
		return errors.New("logged, not fatal")
	})
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: time.Second},
		[]feed.QuoteFetcher{fixed("a", "1", "2"), fixed("b", "1", "2")},
		[]*arbitrage.Comparison{comparison(t, "bad", "a", "b"), comparison(t, "good", "a", "b")},
		r, discard())

	report := drv.Tick(context.Background())
	require.Len(t, report.Results, 1)
	assert.Equal(t, "good", report.Results[0].ComparisonID)
	assert.Equal(t, int32(1), rendered.Load())
}

func TestBackoffPolicy_Next(t *testing.T) {
	base := time.Second
	assert.Equal(t, base, BackoffPolicy{}.Next(base, 5))

	exp := BackoffPolicy{Exponential: true, Multiplier: 2, Max: 10 * time.Second}
	assert.Equal(t, base, exp.Next(base, 0))
	assert.Equal(t, 2*time.Second, exp.Next(base, 1))
	assert.Equal(t, 8*time.Second, exp.Next(base, 3))
	assert.Equal(t, 10*time.Second, exp.Next(base, 4))
	assert.Equal(t, 10*time.Second, exp.Next(base, 500))
}

func TestTick_CountsAllFailedTicks(t *testing.T) {
	var healthy atomic.Bool
	flaky := feed.FetcherFunc("flaky", func(context.Context) (domain.VenueQuote, error) {
		if healthy.Load() {
			return domain.VenueQuote{Bid: d("1"), Ask: d("2")}, nil
		}
		return domain.VenueQuote{}, domain.ErrVenueUnavailable
	})
	drv := NewDriver(DriverConfig{
		Pair:     "sol",
		Interval: time.Second,
		Backoff:  BackoffPolicy{Exponential: true, Multiplier: 2, Max: time.Minute},
	}, []feed.QuoteFetcher{flaky, failing("down")}, nil, &recorder{}, discard())

	drv.Tick(context.Background())
	drv.Tick(context.Background())
	assert.Equal(t, 4*time.Second, drv.delay())

	healthy.Store(true)
	drv.Tick(context.Background())
	assert.Equal(t, time.Second, drv.delay(), "one answering venue resets backoff")
}

func TestParseOverlap(t *testing.T) {
	p, err := ParseOverlap("allow")
	require.NoError(t, err)
	assert.Equal(t, OverlapAllow, p)
	p, err = ParseOverlap("")
	require.NoError(t, err)
	assert.Equal(t, OverlapSkip, p)
	_, err = ParseOverlap("queue")
	assert.Error(t, err)
}

func TestRun_SkipsOverlappingTicks(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	blocking := feed.FetcherFunc("blocking", func(context.Context) (domain.VenueQuote, error) {
		calls.Add(1)
		<-release
		return domain.VenueQuote{Bid: d("1"), Ask: d("2")}, nil
	})
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: 10 * time.Millisecond, FetchTimeout: time.Minute},
		[]feed.QuoteFetcher{blocking}, nil, &recorder{}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- drv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "fires during a running tick are dropped")

	close(release)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_AllowOverlap(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	blocking := feed.FetcherFunc("blocking", func(context.Context) (domain.VenueQuote, error) {
		calls.Add(1)
		<-release
		return domain.VenueQuote{Bid: d("1"), Ask: d("2")}, nil
	})
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: 10 * time.Millisecond, FetchTimeout: time.Minute, Overlap: OverlapAllow},
		[]feed.QuoteFetcher{blocking}, nil, &recorder{}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- drv.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	close(release)
	cancel()
	require.NoError(t, <-done)
}

func TestRun_BackoffFollowsLatestTick(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	// Fails three times, then recovers.
	flaky := feed.FetcherFunc("flaky", func(context.Context) (domain.VenueQuote, error) {
		mu.Lock()
		defer mu.Unlock()
		times = append(times, time.Now())
		if len(times) <= 3 {
			return domain.VenueQuote{}, domain.ErrVenueUnavailable
		}
		return domain.VenueQuote{Bid: d("1"), Ask: d("2")}, nil
	})
	interval := 20 * time.Millisecond
	drv := NewDriver(DriverConfig{
		Pair:         "sol",
		Interval:     interval,
		FetchTimeout: time.Second,
		Backoff:      BackoffPolicy{Exponential: true, Multiplier: 2, Max: 2 * time.Second},
	}, []feed.QuoteFetcher{flaky}, nil, &recorder{}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- drv.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(times) >= 5
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	gap := func(i int) time.Duration { return times[i+1].Sub(times[i]) }
	slack := 5 * time.Millisecond
	assert.GreaterOrEqual(t, gap(0), 2*interval-slack, "first failure already doubles the wait")
	assert.GreaterOrEqual(t, gap(1), 4*interval-slack)
	assert.GreaterOrEqual(t, gap(2), 8*interval-slack)
	assert.Less(t, gap(3), 4*interval, "a healthy tick restores the base interval")
}

func TestStop_DiscardsInFlightResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var cancelled atomic.Bool
	slow := feed.FetcherFunc("slow", func(ctx context.Context) (domain.VenueQuote, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			cancelled.Store(true)
		}
		return domain.VenueQuote{Bid: d("1"), Ask: d("2")}, nil
	})
	rec := &recorder{}
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: time.Hour, FetchTimeout: time.Minute},
		[]feed.QuoteFetcher{slow, fixed("fast", "1", "2")},
		[]*arbitrage.Comparison{comparison(t, "c", "fast", "slow")},
		rec, discard())

	done := make(chan error, 1)
	go func() { done <- drv.Run(context.Background()) }()

	<-started
	drv.Stop()
	drv.Stop() // idempotent
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, cancelled.Load(), "Stop must not cancel in-flight fetches")
	assert.Zero(t, rec.count(), "results of a stopped tick are discarded")
}
