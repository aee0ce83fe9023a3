package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// AlertLister lists recorded escalations. *service.AlertService satisfies it.
type AlertLister interface {
	ListRecent(ctx context.Context, pair string, limit int) ([]domain.AlertRecord, error)
	AlertFeed(ctx context.Context, after string, limit int) ([]domain.StreamMessage, error)
}

// AlertHandler serves alert history.
type AlertHandler struct {
	alerts AlertLister
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts AlertLister, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

type listAlertsResponse struct {
	Alerts []domain.AlertRecord `json:"alerts"`
}

// ListAlerts returns recorded escalations, newest first.
// GET /api/alerts?limit=50&pair=BTC
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.alerts.ListRecent(r.Context(), r.URL.Query().Get("pair"), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "alerts")
		return
	}
	if recs == nil {
		recs = []domain.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, listAlertsResponse{Alerts: recs})
}

type feedEntry struct {
	ID    string          `json:"id"`
	Alert json.RawMessage `json:"alert"`
}

type alertFeedResponse struct {
	Entries []feedEntry `json:"entries"`
	Next    string      `json:"next"`
}

// AlertFeed pages through the durable alert stream. Pass the returned next
// cursor as after to continue.
// GET /api/alerts/feed?after=0&limit=50
func (h *AlertHandler) AlertFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}

	msgs, err := h.alerts.AlertFeed(r.Context(), after, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "alert feed")
		return
	}

	resp := alertFeedResponse{Entries: make([]feedEntry, 0, len(msgs)), Next: after}
	for _, m := range msgs {
		resp.Entries = append(resp.Entries, feedEntry{ID: m.ID, Alert: m.Payload})
		resp.Next = m.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
