package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/arbitrage"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/feed"
)

func TestOrchestrator_StopHaltsDriversAndDiscardsTicks(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := feed.FetcherFunc("slow", func(context.Context) (domain.VenueQuote, error) {
		close(started)
		<-release
		return domain.VenueQuote{Bid: d("1"), Ask: d("2")}, nil
	})
	rec := &recorder{}
	drv := NewDriver(DriverConfig{Pair: "sol", Interval: time.Hour, FetchTimeout: time.Minute},
		[]feed.QuoteFetcher{slow, fixed("fast", "1", "2")},
		[]*arbitrage.Comparison{comparison(t, "c", "fast", "slow")},
		rec, discard())
	orch := NewOrchestrator([]*Driver{drv}, nil, nil, "", discard())

	done := make(chan error, 1)
	go func() { done <- orch.Run(context.Background()) }()

	<-started
	orch.Stop()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Zero(t, rec.count())
}
