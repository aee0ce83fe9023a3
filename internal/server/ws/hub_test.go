package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type chanBus struct {
	domain.SignalBus
	chans map[string]chan []byte
}

func newChanBus() *chanBus {
	b := &chanBus{chans: make(map[string]chan []byte)}
	for _, ch := range Channels {
		b.chans[ch] = make(chan []byte, 16)
	}
	return b
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.chans[channel], nil
}

func startHub(t *testing.T) (*chanBus, *httptest.Server, *Hub) {
	t.Helper()
	bus := newChanBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Mode:   "full",
		Status: func() map[string]any { return map[string]any{"audio_enabled": true} },
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return bus, srv, hub
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHubRelaysSubscribedChannels(t *testing.T) {
	bus, srv, _ := startHub(t)
	conn := dial(t, srv, "?channels=alerts")

	status := readEnvelope(t, conn)
	assert.Equal(t, "status", status["channel"])
	data := status["data"].(map[string]any)
	assert.Equal(t, "full", data["mode"])
	assert.Equal(t, true, data["audio_enabled"])

	bus.chans[domain.ChannelSpreads] <- []byte(`{"comparisonId":"ignored"}`)
	bus.chans[domain.ChannelAlerts] <- []byte(`{"id":"a1","level":"HIGH"}`)

	got := readEnvelope(t, conn)
	assert.Equal(t, "alerts", got["channel"])
	assert.Equal(t, map[string]any{"id": "a1", "level": "HIGH"}, got["data"])
}

func TestHubProtoEncoding(t *testing.T) {
	bus, srv, _ := startHub(t)
	conn := dial(t, srv, "?encoding=proto&channels=funding")

	kind, _, err := conn.ReadMessage() // status
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	bus.chans[domain.ChannelFunding] <- []byte(`{"pair":"BTC","rate":"0.0001"}`)

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &s))
	m := s.AsMap()
	assert.Equal(t, "funding", m["channel"])
	assert.Equal(t, "BTC", m["data"].(map[string]any)["pair"])
}

func TestEncodeJSONNonJSONPayload(t *testing.T) {
	out, err := encodeJSON(broadcastMsg{channel: "quotes", data: []byte("plain text")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"quotes","data":"plain text"}`, string(out))
}
