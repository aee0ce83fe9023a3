// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

var (
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbwatch_fetch_duration_seconds",
		Help:    "Duration of one venue quote fetch",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms -> ~5s
	}, []string{"pair", "venue"})
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbwatch_fetch_errors_total",
		Help: "Failed venue fetches, partitioned by failure kind",
	}, []string{"pair", "venue", "kind"})

	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbwatch_ticks_total",
		Help: "Poll ticks started",
	}, []string{"pair"})
	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbwatch_ticks_skipped_total",
		Help: "Timer fires dropped because the previous tick was still running",
	}, []string{"pair"})
	TickDelay = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbwatch_tick_delay_seconds",
		Help: "Current delay before the next tick, including backoff",
	}, []string{"pair"})

	Spread = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbwatch_spread",
		Help: "Latest spread value",
	}, []string{"comparison", "direction"})
	Level = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbwatch_alert_level",
		Help: "Latest alert level (0=NEGATIVE .. 5=HIGH)",
	}, []string{"comparison", "direction"})
	DataErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbwatch_comparison_data_errors_total",
		Help: "Comparisons that could not be computed because a quote was missing",
	}, []string{"comparison"})
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbwatch_alerts_raised_total",
		Help: "Recorded level escalations",
	}, []string{"level"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbwatch_breaker_state",
		Help: "Circuit breaker state per venue (0=closed 1=half-open 2=open)",
	}, []string{"venue"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbwatch_ws_clients",
		Help: "Connected WebSocket clients",
	})
)

// ErrorKind buckets a fetch error for the kind label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrInsufficientLiquidity):
		return "liquidity"
	case errors.Is(err, domain.ErrVenueUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
