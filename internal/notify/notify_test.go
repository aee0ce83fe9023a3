package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type captureSender struct {
	name   string
	err    error
	titles []string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return c.err
}

func (c *captureSender) Name() string { return c.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &captureSender{name: "cap"}
	n := NewNotifier([]Sender{s}, []string{EventAlertRaised}, discard())

	require.NoError(t, n.AlertRaised(context.Background(), domain.AlertRecord{
		Pair: "sol", ComparisonID: "c", Direction: domain.DirectionBuy,
		Level: domain.LevelHigh, PrevLevel: domain.LevelLarge, Spread: decimal.NewFromInt(3),
	}))
	require.NoError(t, n.DataError(context.Background(), domain.ComparisonResult{Pair: "sol", DataError: "x"}))

	assert.Equal(t, []string{"SOL BUY HIGH"}, s.titles)
	assert.False(t, n.Enabled(EventDataError))
}

func TestNotifier_EmptyEventsAllowsAll(t *testing.T) {
	s := &captureSender{name: "cap"}
	n := NewNotifier([]Sender{s}, nil, discard())
	assert.True(t, n.Enabled(EventFundingChanged))

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled(EventAlertRaised))
	assert.NoError(t, nilNotifier.Notify(context.Background(), EventAlertRaised, "t", "m"))
}

func TestNotifier_JoinsSenderFailures(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("down")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventDataError, "t", "m")
	assert.ErrorContains(t, err, "bad: down")
	assert.Len(t, good.titles, 1, "remaining senders still receive the message")
}

func TestTelegramSender(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "*Title*\nbody", got.Text)
}

func TestDiscordSender_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p discordPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || len(p.Embeds) != 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if p.Embeds[0].Title == "fail" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	assert.NoError(t, s.Send(context.Background(), "ok", "m"))
	assert.ErrorContains(t, s.Send(context.Background(), "fail", "m"), "status 400")
}

func TestFundingChangedMessage(t *testing.T) {
	s := &captureSender{name: "cap"}
	n := NewNotifier([]Sender{s}, []string{EventFundingChanged}, discard())
	err := n.FundingChanged(context.Background(), "bnb", domain.FundingRate{
		Symbol: "BNB_USDT", Rate: decimal.RequireFromString("0.0001"),
		NextSettle: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"BNB funding"}, s.titles)
}
