package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Application close codes used during the handshake.
const (
	CloseTokenMissing = 4001
	CloseTokenInvalid = 4003
)

type Options struct {
	ReadLimit    int64
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	return o
}

type WebSocket struct {
	*websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	opts      Options
	log       *slog.Logger
	closeOnce sync.Once
}

func NewWebSocket(parent context.Context, log *slog.Logger, conn *websocket.Conn, opts Options) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel, opts: opts.withDefaults(), log: log}
}

// Done is closed once the socket is closed from either side.
func (w *WebSocket) Done() <-chan struct{} {
	return w.ctx.Done()
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteWait))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) Ping() error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteWait))
	return w.Conn.WriteMessage(websocket.PingMessage, nil)
}

// ReadLoop blocks until the peer goes away, calling onMsg for every non-empty
// text or binary frame in arrival order.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer w.Close()

	w.Conn.SetReadLimit(w.opts.ReadLimit)
	_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	})

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			w.logReadError(err)
			return
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		w.log.Warn("ws - read loop - frame exceeded read limit", slog.Int64("limit", w.opts.ReadLimit))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		w.log.Debug("ws - read loop - peer closed", "err", err)
	case errors.Is(err, net.ErrClosed):
		w.log.Debug("ws - read loop - closed locally")
	default:
		w.log.Info("ws - read loop - read failed", "err", err)
	}
}

// CloseWith sends a close frame with code and reason, then tears the socket down.
func (w *WebSocket) CloseWith(code int, reason string) {
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = w.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.opts.WriteWait))
		w.cancel()
		_ = w.Conn.Close()
	})
}

func (w *WebSocket) Close() {
	w.CloseWith(websocket.CloseNormalClosure, "")
}
