package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/metrics"
	"github.com/alanyoungcy/arbwatch/internal/render"
)

// AlertNotifier pushes alerts to chat channels. *notify.Notifier satisfies
// it.
type AlertNotifier interface {
	AlertRaised(ctx context.Context, rec domain.AlertRecord) error
	DataError(ctx context.Context, r domain.ComparisonResult) error
	FundingChanged(ctx context.Context, pair string, f domain.FundingRate) error
}

// AlertService is the renderer behind every driver. It caches each result,
// publishes it to clients, and records, publishes and notifies escalations
// that reach the record level.
type AlertService struct {
	results     domain.ResultCache
	alerts      domain.AlertStore
	bus         domain.SignalBus
	session     *render.Session
	notifier    AlertNotifier
	recordLevel domain.AlertLevel
	logger      *slog.Logger

	mu         sync.Mutex
	dataErrors map[string]bool
}

var _ render.Renderer = (*AlertService)(nil)

// NewAlertService creates an AlertService. alerts and notifier may be nil:
// escalations are then only published.
func NewAlertService(
	results domain.ResultCache,
	alerts domain.AlertStore,
	bus domain.SignalBus,
	session *render.Session,
	notifier AlertNotifier,
	recordLevel domain.AlertLevel,
	logger *slog.Logger,
) *AlertService {
	return &AlertService{
		results:     results,
		alerts:      alerts,
		bus:         bus,
		session:     session,
		notifier:    notifier,
		recordLevel: recordLevel,
		logger:      logger.With(slog.String("component", "alert_service")),
		dataErrors:  make(map[string]bool),
	}
}

// Session returns the session gating sounds.
func (s *AlertService) Session() *render.Session { return s.session }

// Render handles one comparison result. Cache and bus failures are logged;
// only a failure to persist an escalation is returned.
func (s *AlertService) Render(ctx context.Context, r domain.ComparisonResult) error {
	if err := s.results.SetResult(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "cache result failed",
			slog.String("comparison", r.ComparisonID),
			slog.String("error", err.Error()),
		)
	}

	payload, escalations := render.Gate(s.session, r, time.Now())
	s.publish(ctx, domain.ChannelSpreads, payload)

	s.trackDataError(ctx, r)

	var errs []error
	for _, esc := range escalations {
		if esc.To < s.recordLevel {
			continue
		}
		if err := s.raise(ctx, r, esc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// trackDataError notifies once when a comparison starts failing and logs
// when it recovers.
func (s *AlertService) trackDataError(ctx context.Context, r domain.ComparisonResult) {
	s.mu.Lock()
	was := s.dataErrors[r.ComparisonID]
	s.dataErrors[r.ComparisonID] = !r.OK()
	s.mu.Unlock()

	switch {
	case !r.OK() && !was:
		if s.notifier != nil {
			if err := s.notifier.DataError(ctx, r); err != nil {
				s.logger.WarnContext(ctx, "notify data error failed", slog.String("error", err.Error()))
			}
		}
	case r.OK() && was:
		s.logger.InfoContext(ctx, "comparison recovered", slog.String("comparison", r.ComparisonID))
	}
}

func (s *AlertService) raise(ctx context.Context, r domain.ComparisonResult, esc render.Escalation) error {
	rec := domain.AlertRecord{
		ID:           uuid.NewString(),
		Pair:         r.Pair,
		ComparisonID: r.ComparisonID,
		Direction:    esc.Direction,
		Level:        esc.To,
		PrevLevel:    esc.From,
		Spread:       esc.Spread,
		DetectedAt:   r.Timestamp,
	}
	metrics.AlertsRaised.WithLabelValues(rec.Level.String()).Inc()
	s.logger.InfoContext(ctx, "alert raised",
		slog.String("comparison", rec.ComparisonID),
		slog.String("direction", string(rec.Direction)),
		slog.String("level", rec.Level.String()),
		slog.String("prev_level", rec.PrevLevel.String()),
		slog.String("spread", rec.Spread.String()),
	)

	var err error
	if s.alerts != nil {
		if insErr := s.alerts.Insert(ctx, rec); insErr != nil {
			err = fmt.Errorf("alert_service: insert alert: %w", insErr)
		}
	}

	data := s.publish(ctx, domain.ChannelAlerts, alertEvent(rec))
	if data != nil {
		if streamErr := s.bus.StreamAppend(ctx, domain.StreamAlerts, data); streamErr != nil {
			s.logger.WarnContext(ctx, "append alert stream failed", slog.String("error", streamErr.Error()))
		}
	}

	if s.notifier != nil {
		if nErr := s.notifier.AlertRaised(ctx, rec); nErr != nil {
			s.logger.WarnContext(ctx, "notify alert failed", slog.String("error", nErr.Error()))
		}
	}
	return err
}

// RenderFunding caches and publishes a funding rate, notifying when the
// settle target moved.
func (s *AlertService) RenderFunding(ctx context.Context, pair string, f domain.FundingRate) error {
	if err := s.results.SetFunding(ctx, pair, f); err != nil {
		s.logger.WarnContext(ctx, "cache funding failed",
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
	}

	changed := s.session.FundingChanged(pair, f.NextSettle)
	s.publish(ctx, domain.ChannelFunding, FundingEvent{
		Pair:        pair,
		Venue:       f.Venue,
		Symbol:      f.Symbol,
		Rate:        f.Rate.String(),
		NextSettle:  f.NextSettle,
		UntilSettle: f.UntilSettle(time.Now()).Milliseconds(),
		Changed:     changed,
	})

	if changed && s.notifier != nil {
		if err := s.notifier.FundingChanged(ctx, pair, f); err != nil {
			s.logger.WarnContext(ctx, "notify funding failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// publish marshals v onto channel and returns the encoded bytes, or nil if
// encoding failed.
func (s *AlertService) publish(ctx context.Context, channel string, v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	return data
}

// LatestResult returns the cached result of a comparison.
func (s *AlertService) LatestResult(ctx context.Context, comparisonID string) (domain.ComparisonResult, error) {
	r, err := s.results.GetResult(ctx, comparisonID)
	if err != nil {
		return domain.ComparisonResult{}, fmt.Errorf("alert_service: get result %q: %w", comparisonID, err)
	}
	return r, nil
}

// LatestFunding returns the cached funding rate of a pair.
func (s *AlertService) LatestFunding(ctx context.Context, pair string) (domain.FundingRate, error) {
	f, err := s.results.GetFunding(ctx, pair)
	if err != nil {
		return domain.FundingRate{}, fmt.Errorf("alert_service: get funding %q: %w", pair, err)
	}
	return f, nil
}

// AlertFeed returns up to limit escalations appended to the alert stream
// after the entry with ID after. An empty after starts at the oldest
// retained entry. Entries whose payload is not JSON are skipped.
func (s *AlertService) AlertFeed(ctx context.Context, after string, limit int) ([]domain.StreamMessage, error) {
	if after == "" {
		after = "0"
	}
	msgs, err := s.bus.StreamRead(ctx, domain.StreamAlerts, after, limit)
	if err != nil {
		return nil, fmt.Errorf("alert_service: read alert feed: %w", err)
	}
	out := msgs[:0]
	for _, m := range msgs {
		if json.Valid(m.Payload) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListRecent returns recorded alerts, newest first. With pair set only that
// pair's alerts are returned.
func (s *AlertService) ListRecent(ctx context.Context, pair string, limit int) ([]domain.AlertRecord, error) {
	if s.alerts == nil {
		return nil, nil
	}
	var (
		recs []domain.AlertRecord
		err  error
	)
	if pair != "" {
		recs, err = s.alerts.ListByPair(ctx, pair, limit)
	} else {
		recs, err = s.alerts.ListRecent(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("alert_service: list recent: %w", err)
	}
	return recs, nil
}

// AlertEvent is the bus shape of a recorded escalation.
type AlertEvent struct {
	ID           string            `json:"id"`
	Pair         string            `json:"pair"`
	ComparisonID string            `json:"comparisonId"`
	Direction    domain.Direction  `json:"direction"`
	Level        domain.AlertLevel `json:"level"`
	PrevLevel    domain.AlertLevel `json:"prevLevel"`
	Spread       string            `json:"spread"`
	DetectedAt   time.Time         `json:"detectedAt"`
}

func alertEvent(rec domain.AlertRecord) AlertEvent {
	return AlertEvent{
		ID:           rec.ID,
		Pair:         rec.Pair,
		ComparisonID: rec.ComparisonID,
		Direction:    rec.Direction,
		Level:        rec.Level,
		PrevLevel:    rec.PrevLevel,
		Spread:       rec.Spread.String(),
		DetectedAt:   rec.DetectedAt,
	}
}

// FundingEvent is the bus shape of a funding update.
type FundingEvent struct {
	Pair        string    `json:"pair"`
	Venue       string    `json:"venue"`
	Symbol      string    `json:"symbol"`
	Rate        string    `json:"rate"`
	NextSettle  time.Time `json:"nextSettle"`
	UntilSettle int64     `json:"untilSettleMs"`
	Changed     bool      `json:"changed"`
}
