// Package ws bridges the signal bus to browser WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/metrics"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256
)

// Channels lists the bus channels the hub relays.
var Channels = []string{
	domain.ChannelSpreads,
	domain.ChannelAlerts,
	domain.ChannelFunding,
	domain.ChannelQuotes,
}

// envelope is the frame sent to clients. In proto mode the same shape is
// sent as a google.protobuf.Struct.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	proto bool
	subs  map[string]bool
	mu    sync.RWMutex
}

// subscribeMsg is what a client sends to change its channel set:
// {"action":"subscribe","channels":["alerts"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// Config captures hub settings and the metadata sent to clients on connect.
type Config struct {
	Mode           string
	StartedAt      time.Time
	AllowedOrigins []string
	// Status, when set, adds fields to the status frame.
	Status func() map[string]any
}

// Hub manages connected WebSocket clients and relays bus messages to the
// clients subscribed to their channel.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	cfg        Config
	upgrader   websocket.Upgrader
}

// NewHub creates a hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = "unknown"
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}

	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws_hub")),
		cfg:        cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.ContainsFunc(h.cfg.AllowedOrigins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin)
	})
}

// Run subscribes to every relayed channel and serves the hub until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for _, ch := range Channels {
		go h.subscribeToChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WSClients.Set(0)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			h.logger.Info("client connected",
				slog.String("client", c.id),
				slog.Bool("proto", c.proto),
				slog.Int("total_clients", n),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			h.logger.Info("client disconnected",
				slog.String("client", c.id),
				slog.Int("total_clients", n),
			)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut encodes msg once per encoding and queues it on every subscribed
// client. Slow clients lose the message.
func (h *Hub) fanOut(msg broadcastMsg) {
	var jsonFrame, protoFrame []byte

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(msg.channel) {
			continue
		}

		var frame []byte
		var err error
		if c.proto {
			if protoFrame == nil {
				protoFrame, err = encodeProto(msg)
			}
			frame = protoFrame
		} else {
			if jsonFrame == nil {
				jsonFrame, err = encodeJSON(msg)
			}
			frame = jsonFrame
		}
		if err != nil {
			h.logger.Warn("encode frame failed",
				slog.String("channel", msg.channel),
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case c.send <- frame:
		default:
			h.logger.Warn("dropping message for slow client", slog.String("client", c.id))
		}
	}
}

// encodeJSON wraps the payload in an envelope. Payloads that are not JSON are
// sent as a string.
func encodeJSON(msg broadcastMsg) ([]byte, error) {
	data := json.RawMessage(msg.data)
	if !json.Valid(msg.data) {
		quoted, err := json.Marshal(string(msg.data))
		if err != nil {
			return nil, err
		}
		data = quoted
	}
	return json.Marshal(envelope{Channel: msg.channel, Data: data})
}

func encodeProto(msg broadcastMsg) ([]byte, error) {
	raw, err := encodeJSON(msg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// subscribeToChannel forwards one bus channel into the broadcast loop.
func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("subscribed to channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("channel subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and registers the client. ?encoding=proto
// selects binary structpb frames; ?channels=a,b narrows the initial
// subscription set.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		proto: r.URL.Query().Get("encoding") == "proto",
		subs:  make(map[string]bool),
	}
	initial := Channels
	if v := r.URL.Query().Get("channels"); v != "" {
		initial = strings.Split(v, ",")
	}
	for _, ch := range initial {
		if ch = strings.TrimSpace(ch); ch != "" {
			c.subs[ch] = true
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close",
					slog.String("client", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}
}

// sendStatus queues the status frame clients use to mark the connection
// healthy before any data flows.
func (c *client) sendStatus() {
	payload := map[string]any{
		"client":         c.id,
		"mode":           c.hub.cfg.Mode,
		"uptime_seconds": max(int64(time.Since(c.hub.cfg.StartedAt).Seconds()), 0),
		"channels":       Channels,
	}
	if c.hub.cfg.Status != nil {
		for k, v := range c.hub.cfg.Status() {
			payload[k] = v
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	msg := broadcastMsg{channel: "status", data: data}
	var frame []byte
	if c.proto {
		frame, err = encodeProto(msg)
	} else {
		frame, err = encodeJSON(msg)
	}
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

// writePump writes queued frames (binary in proto mode, text otherwise) and
// keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	kind := websocket.TextMessage
	if c.proto {
		kind = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(kind, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
