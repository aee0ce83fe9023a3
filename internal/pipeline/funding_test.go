package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fundingSourceFunc func(ctx context.Context, symbol string) (domain.FundingRate, error)

func (f fundingSourceFunc) FundingRate(ctx context.Context, symbol string) (domain.FundingRate, error) {
	return f(ctx, symbol)
}

type fundingRecorder struct {
	mu    sync.Mutex
	rates []domain.FundingRate
}

func (r *fundingRecorder) RenderFunding(_ context.Context, _ string, f domain.FundingRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates = append(r.rates, f)
	return nil
}

func (r *fundingRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rates)
}

func TestFundingPoller_Poll(t *testing.T) {
	src := fundingSourceFunc(func(_ context.Context, symbol string) (domain.FundingRate, error) {
		return domain.FundingRate{Symbol: symbol, Rate: d("0.0001")}, nil
	})
	rec := &fundingRecorder{}
	p := NewFundingPoller("sol", "SOL_USDT", time.Minute, time.Second, src, rec, discard())

	p.Poll(context.Background())
	require.Equal(t, 1, rec.len())
	assert.Equal(t, "SOL_USDT", rec.rates[0].Symbol)
}

func TestFundingPoller_FailureIsNotRendered(t *testing.T) {
	src := fundingSourceFunc(func(context.Context, string) (domain.FundingRate, error) {
		return domain.FundingRate{}, domain.ErrVenueUnavailable
	})
	rec := &fundingRecorder{}
	NewFundingPoller("sol", "SOL_USDT", time.Minute, time.Second, src, rec, discard()).Poll(context.Background())
	assert.Zero(t, rec.len())
}

func TestFundingPoller_RunLoopStopsOnCancel(t *testing.T) {
	src := fundingSourceFunc(func(_ context.Context, symbol string) (domain.FundingRate, error) {
		return domain.FundingRate{Symbol: symbol}, nil
	})
	rec := &fundingRecorder{}
	p := NewFundingPoller("sol", "SOL_USDT", 10*time.Millisecond, time.Second, src, rec, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunLoop(ctx) }()

	require.Eventually(t, func() bool { return rec.len() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
