// Package notify pushes alert escalations and data errors to chat channels.
// Every message goes to all registered senders, filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Event types accepted in notify.events.
const (
	EventAlertRaised    = "alert_raised"
	EventDataError      = "data_error"
	EventFundingChanged = "funding_changed"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every Sender whose event type is enabled.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list enables every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event would be delivered.
func (n *Notifier) Enabled(event string) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify delivers title and message if event is enabled. One sender failing
// does not stop delivery to the others; all failures are joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}

// AlertRaised notifies about a recorded escalation.
func (n *Notifier) AlertRaised(ctx context.Context, rec domain.AlertRecord) error {
	title := fmt.Sprintf("%s %s %s", strings.ToUpper(rec.Pair), rec.Direction, rec.Level)
	msg := fmt.Sprintf("comparison %s: spread %s (was %s)",
		rec.ComparisonID, rec.Spread.StringFixed(4), rec.PrevLevel)
	return n.Notify(ctx, EventAlertRaised, title, msg)
}

// DataError notifies that a comparison could not be computed.
func (n *Notifier) DataError(ctx context.Context, r domain.ComparisonResult) error {
	title := fmt.Sprintf("%s data error", strings.ToUpper(r.Pair))
	return n.Notify(ctx, EventDataError, title, fmt.Sprintf("comparison %s: %s", r.ComparisonID, r.DataError))
}

// FundingChanged notifies that a pair's funding settle time moved.
func (n *Notifier) FundingChanged(ctx context.Context, pair string, f domain.FundingRate) error {
	title := fmt.Sprintf("%s funding", strings.ToUpper(pair))
	msg := fmt.Sprintf("%s rate %s, next settle %s",
		f.Symbol, f.Rate.String(), f.NextSettle.UTC().Format("2006-01-02 15:04 MST"))
	return n.Notify(ctx, EventFundingChanged, title, msg)
}
