package feed

import (
	"context"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/metrics"
)

// QuoteSink receives every successful quote, e.g. to cache it.
type QuoteSink interface {
	RecordQuote(ctx context.Context, pair string, q domain.VenueQuote)
}

type observedFetcher struct {
	next QuoteFetcher
	pair string
	sink QuoteSink
}

// Observe wraps f to time every fetch, count failures by kind, and hand
// successful quotes to sink. sink may be nil.
func Observe(f QuoteFetcher, pair string, sink QuoteSink) QuoteFetcher {
	return &observedFetcher{next: f, pair: pair, sink: sink}
}

func (o *observedFetcher) Name() string { return o.next.Name() }

func (o *observedFetcher) FetchQuote(ctx context.Context) (domain.VenueQuote, error) {
	start := time.Now()
	q, err := o.next.FetchQuote(ctx)
	metrics.FetchDuration.WithLabelValues(o.pair, o.next.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues(o.pair, o.next.Name(), metrics.ErrorKind(err)).Inc()
		return q, err
	}
	if q.Venue == "" {
		q.Venue = o.next.Name()
	}
	if o.sink != nil {
		o.sink.RecordQuote(ctx, o.pair, q)
	}
	return q, nil
}
