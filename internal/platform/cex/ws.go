package cex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const (
	// wsDefaultTimeout bounds the whole subscribe-wait-close exchange.
	wsDefaultTimeout = 5 * time.Second

	// wsCloseGrace is how long a close frame may take to write.
	wsCloseGrace = time.Second
)

// WSConfig configures the one-shot depth snapshot.
type WSConfig struct {
	URL             string
	SubscribeMethod string
	Channel         string
	Timeout         time.Duration
}

// WSClient fetches a single depth snapshot per call over a fresh WebSocket
// connection: connect, subscribe, wait for the first matching message, close.
type WSClient struct {
	cfg    WSConfig
	dialer *websocket.Dialer
}

// NewWSClient creates a one-shot WebSocket client.
func NewWSClient(cfg WSConfig) *WSClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = wsDefaultTimeout
	}
	return &WSClient{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
	}
}

type subscribeRequest struct {
	Method string         `json:"method"`
	Param  subscribeParam `json:"param"`
}

type subscribeParam struct {
	Symbol string `json:"symbol"`
}

// SnapshotOnce returns the first full depth message for symbol. It fails with
// domain.ErrTimeout when nothing matching arrives within the configured
// window; any other failure wraps domain.ErrVenueUnavailable.
func (w *WSClient) SnapshotOnce(ctx context.Context, symbol string) (domain.DepthSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	conn, _, err := w.dialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		return domain.DepthSnapshot{}, w.classify(ctx, "connect", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	// Unblock ReadMessage if the caller cancels before the deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	sub := subscribeRequest{Method: w.cfg.SubscribeMethod, Param: subscribeParam{Symbol: symbol}}
	if err := conn.WriteJSON(sub); err != nil {
		return domain.DepthSnapshot{}, w.classify(ctx, "subscribe", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return domain.DepthSnapshot{}, w.classify(ctx, "read", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Channel != w.cfg.Channel || msg.Symbol != symbol || msg.Data == nil {
			continue
		}
		if len(msg.Data.Bids) == 0 || len(msg.Data.Asks) == 0 {
			continue
		}

		bids, asks, err := sides(msg.Data.Bids, msg.Data.Asks, false)
		if err != nil {
			return domain.DepthSnapshot{}, fmt.Errorf("cex/ws: %s: %w", symbol, err)
		}

		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsCloseGrace))

		ts := time.Now()
		if msg.TS > 0 {
			ts = time.UnixMilli(msg.TS)
		}
		return domain.DepthSnapshot{Symbol: symbol, Bids: bids, Asks: asks, Timestamp: ts}, nil
	}
}

// classify maps a connection error to ErrTimeout when the wait window
// elapsed, and to ErrVenueUnavailable otherwise.
func (w *WSClient) classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("cex/ws: %s: %w: %w", op, ctx.Err(), domain.ErrVenueUnavailable)
	}
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("cex/ws: %s: no snapshot within %s: %w", op, w.cfg.Timeout, domain.ErrTimeout)
	}
	return fmt.Errorf("cex/ws: %s: %w: %w", op, err, domain.ErrVenueUnavailable)
}
